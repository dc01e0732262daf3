// Package pharmacy issues prescribed medicines against live stock. An issue
// never exceeds what the prescription still allows and never drives a
// medicine's stock negative.
package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

type Medicine struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	StockQuantity  int       `json:"stock_quantity"`
}

type PrescriptionItem struct {
	ID             uuid.UUID `json:"id"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	MedicineID     uuid.UUID `json:"medicine_id"`
	Quantity       int       `json:"quantity"`
}

// MedicineIssue is one dispensing act against a prescription item.
type MedicineIssue struct {
	ID                 uuid.UUID `json:"id"`
	PrescriptionItemID uuid.UUID `json:"prescription_item_id"`
	PatientID          uuid.UUID `json:"patient_id"`
	ChemistID          uuid.UUID `json:"chemist_id"`
	IssuedQuantity     int       `json:"issued_quantity"`
	CreatedAt          time.Time `json:"created_at"`
}

// DispenseCheck is the locked snapshot a dispensing decision is made
// against: the item's medicine and stock, the prescribed quantity, and how
// much has already gone out the door.
type DispenseCheck struct {
	MedicineID         uuid.UUID
	StockQuantity      int
	PrescribedQuantity int
	AlreadyIssued      int
}

// Remaining is how much of the prescription is still unfulfilled.
func (c DispenseCheck) Remaining() int {
	return c.PrescribedQuantity - c.AlreadyIssued
}

// DispenseInput carries the fields of a dispensing request. IssuedQuantity
// is a pointer so an absent field can be told apart from an explicit zero:
// the former is a missing-field rejection, the latter an invalid quantity.
type DispenseInput struct {
	PrescriptionItemID uuid.UUID `json:"prescription_item_id"`
	PatientID          uuid.UUID `json:"patient_id"`
	IssuedQuantity     *int      `json:"issued_quantity"`
}
