// Package audit records the activity log written by every mutating engine
// operation. Entries carry typed metadata; serialization to JSON happens only
// at the storage boundary.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened.
type Action string

const (
	ActionBillIssued        Action = "BILL_ISSUED"
	ActionPaymentRecorded   Action = "PAYMENT_SUCCESS"
	ActionMedicineDispensed Action = "MEDICINE_DISPATCHED"
)

// Metadata is implemented by the typed per-action payloads stored alongside
// an entry.
type Metadata interface {
	Action() Action
}

// BillIssued is the metadata recorded when a bill is generated.
type BillIssued struct {
	BillID      uuid.UUID `json:"bill_id"`
	TreatmentID uuid.UUID `json:"treatment_id"`
	TotalCents  int64     `json:"total_cents"`
}

func (BillIssued) Action() Action { return ActionBillIssued }

// PaymentRecorded is the metadata recorded when a payment succeeds.
type PaymentRecorded struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	BillID      uuid.UUID `json:"bill_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
}

func (PaymentRecorded) Action() Action { return ActionPaymentRecorded }

// MedicineDispensed is the metadata recorded when a prescription item is
// issued.
type MedicineDispensed struct {
	IssueID            uuid.UUID `json:"issue_id"`
	PrescriptionItemID uuid.UUID `json:"prescription_item_id"`
	MedicineID         uuid.UUID `json:"medicine_id"`
	Quantity           int       `json:"quantity"`
}

func (MedicineDispensed) Action() Action { return ActionMedicineDispensed }

// Entry is one activity-log row.
type Entry struct {
	ID         uuid.UUID
	ActorID    uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Meta       Metadata
	CreatedAt  time.Time
}

// Recorder persists activity-log entries. Implementations join the caller's
// transaction when one is present in the context.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, e Entry) error

func (f RecorderFunc) Record(ctx context.Context, e Entry) error {
	return f(ctx, e)
}
