package stock

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates an unknown movement, product or location id.
	ErrNotFound = errors.New("stock: not found")
	// ErrInvalidTransition indicates a lifecycle rule violation.
	ErrInvalidTransition = errors.New("stock: invalid status transition")
	// ErrAlreadyExecuted indicates a re-entrant execute on a done movement.
	ErrAlreadyExecuted = errors.New("stock: movement already executed")
)

// ValidationError indicates malformed caller input. Always recoverable by
// correcting the request.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "stock: validation: " + e.Message
	}
	return fmt.Sprintf("stock: validation: %s: %s", e.Field, e.Message)
}

// InsufficientStockError names the offending product and location when an
// execution would drive a balance negative.
type InsufficientStockError struct {
	ProductID  int64
	LocationID int64
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: insufficient stock for product %d at location %d: requested %s, available %s",
		e.ProductID, e.LocationID, e.Requested.String(), e.Available.String())
}

// IsValidation reports whether err is caller input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInsufficientStock reports whether err is a non-negative invariant violation.
func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}
