package locations

import (
	"fmt"
	"strings"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

func (s *Service) validate(l Location) error {
	if l.WarehouseID <= 0 {
		return fmt.Errorf("warehouse_id: %w", shared.ErrRequiredField)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("name: %w", shared.ErrRequiredField)
	}
	if !l.Type.IsValid() {
		return fmt.Errorf("type must be storage, receiving or shipping: %w", shared.ErrValidation)
	}
	return nil
}
