package billing

import (
	"context"

	"github.com/google/uuid"
)

// TreatmentRepository reads the clinical side the engine bills against.
type TreatmentRepository interface {
	// LatestByPatient returns the patient's most recent treatment, or
	// ErrNoTreatment when none exists.
	LatestByPatient(ctx context.Context, patientID uuid.UUID) (*Treatment, error)
}

// BillRepository persists bills and their line items.
type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	AddItem(ctx context.Context, item *BillItem) error
	// SumItems recomputes the bill total from its stored line items.
	SumItems(ctx context.Context, billID uuid.UUID) (int64, error)
	SetTotal(ctx context.Context, billID uuid.UUID, totalCents int64) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	GetItems(ctx context.Context, billID uuid.UUID) ([]*BillItem, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error)
}

// ChargeSourceRepository reads the charge sources priced into a bill.
type ChargeSourceRepository interface {
	// Accommodations returns the patient's non-cancelled room stays.
	Accommodations(ctx context.Context, patientID uuid.UUID) ([]*Accommodation, error)
	// CountLabRequests counts lab requests ordered under the treatment.
	CountLabRequests(ctx context.Context, treatmentID uuid.UUID) (int, error)
	// MedicineChargeCents sums prescribed quantity times unit price across
	// the treatment's prescriptions.
	MedicineChargeCents(ctx context.Context, treatmentID uuid.UUID) (int64, error)
}
