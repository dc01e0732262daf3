// Package billing prices a patient's latest treatment into a bill with line
// items. All amounts are integer minor currency units.
package billing

import (
	"time"

	"github.com/google/uuid"
)

// Bill statuses.
const (
	StatusIssued  = "ISSUED"
	StatusPartial = "PARTIAL"
	StatusPaid    = "PAID"
)

// Bill item types.
const (
	ItemConsultation = "CONSULTATION"
	ItemRoom         = "ROOM"
	ItemLab          = "LAB"
	ItemMedicine     = "MEDICINE"
)

type Bill struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	TreatmentID uuid.UUID `json:"treatment_id"`
	TotalCents  int64     `json:"total_cents"`
	Status      string    `json:"status"`
	IssuedAt    time.Time `json:"issued_at"`
}

type BillItem struct {
	ID          uuid.UUID  `json:"id"`
	BillID      uuid.UUID  `json:"bill_id"`
	ItemType    string     `json:"item_type"`
	RefID       *uuid.UUID `json:"ref_id,omitempty"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
}

type Treatment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Diagnosis string    `json:"diagnosis"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Accommodation is one room stay billed per started day.
type Accommodation struct {
	RoomID         uuid.UUID  `json:"room_id"`
	DailyRateCents int64      `json:"daily_rate_cents"`
	CheckIn        time.Time  `json:"check_in"`
	CheckOut       *time.Time `json:"check_out,omitempty"`
}

// BillSummary is the engine's result: the identifiers and total a caller
// needs to hand off to payment.
type BillSummary struct {
	BillID      uuid.UUID `json:"bill_id"`
	TreatmentID uuid.UUID `json:"treatment_id"`
	TotalCents  int64     `json:"total_cents"`
}

// StayDays returns the whole days billed for the accommodation: elapsed whole
// hours between check-in and check-out (or now, for open stays) divided by 24
// and rounded up, never less than one day.
func (a Accommodation) StayDays(now time.Time) int {
	end := now
	if a.CheckOut != nil {
		end = *a.CheckOut
	}

	hours := int(end.Sub(a.CheckIn).Hours())
	days := (hours + 23) / 24
	if days < 1 {
		return 1
	}
	return days
}

// SumItems totals a bill's line items.
func SumItems(items []*BillItem) int64 {
	var total int64
	for _, it := range items {
		total += it.AmountCents
	}
	return total
}
