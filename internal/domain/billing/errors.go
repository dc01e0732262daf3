package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTreatment is returned when the patient has no treatment to bill.
	ErrNoTreatment = errors.New("no treatment found for patient")

	// ErrBillNotFound is returned when a bill lookup finds nothing.
	ErrBillNotFound = errors.New("bill not found")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}
