package products

import (
	"fmt"
	"strings"

	"github.com/wareflow/wareflow/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("sku: %w", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name: %w", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.UnitOfMeasure) == "" {
		return fmt.Errorf("unit_of_measure: %w", shared.ErrRequiredField)
	}
	if p.ReorderLevel.IsNegative() {
		return fmt.Errorf("reorder_level must be zero or greater: %w", shared.ErrValidation)
	}
	return nil
}
