package payment

import (
	"context"

	"github.com/google/uuid"
)

// PaymentRepository persists payment rows.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
}

// LedgerRepository manages the wallet chain.
type LedgerRepository interface {
	// LastBalanceForUpdate returns the balance after the newest entry,
	// serializing concurrent appenders until the transaction ends. An empty
	// ledger yields zero.
	LastBalanceForUpdate(ctx context.Context) (int64, error)
	// Append inserts an entry; the database assigns Seq and CreatedAt.
	Append(ctx context.Context, e *LedgerEntry) error
	// CurrentBalance reads the newest balance without locking.
	CurrentBalance(ctx context.Context) (int64, error)
	List(ctx context.Context, limit, offset int) ([]*LedgerEntry, int, error)
}

// BillRepository is the narrow view of bills this engine needs.
type BillRepository interface {
	// TotalCents returns a bill's total, or ErrBillNotFound.
	TotalCents(ctx context.Context, billID uuid.UUID) (int64, error)
	MarkPaid(ctx context.Context, billID uuid.UUID) error
}
