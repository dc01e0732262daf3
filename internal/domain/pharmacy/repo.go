package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type MedicineRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error)
	List(ctx context.Context, limit, offset int) ([]*Medicine, int, error)
	// DecrementStock subtracts qty from a medicine's stock, failing with
	// ErrInsufficientStock rather than letting the count go negative.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error
}

type PrescriptionRepository interface {
	// ItemForDispense returns the dispensing snapshot for a prescription
	// item, holding row locks on the item and its medicine until the
	// transaction ends. Returns ErrItemNotFound for an unknown item.
	ItemForDispense(ctx context.Context, itemID uuid.UUID) (*DispenseCheck, error)
}

type IssueRepository interface {
	Create(ctx context.Context, issue *MedicineIssue) error
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*MedicineIssue, error)
}
