package payment

import (
	"errors"
	"fmt"
)

// ErrBillNotFound is returned when the referenced bill does not exist.
var ErrBillNotFound = errors.New("bill not found")

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}
