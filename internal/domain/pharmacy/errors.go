package pharmacy

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound      = errors.New("prescription item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ValidationError marks a missing or malformed request field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// InvalidQuantityError rejects a request for more than the prescription
// still allows, or for a non-positive quantity.
type InvalidQuantityError struct {
	Requested int
	Remaining int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d: %d remaining on prescription", e.Requested, e.Remaining)
}
