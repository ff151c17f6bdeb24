package warehouses

import (
	"fmt"
	"strings"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

func (s *Service) validate(w Warehouse) error {
	if strings.TrimSpace(w.Code) == "" {
		return fmt.Errorf("code: %w", shared.ErrRequiredField)
	}
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("name: %w", shared.ErrRequiredField)
	}
	return nil
}
