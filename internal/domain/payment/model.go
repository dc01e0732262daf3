// Package payment records payments against bills and keeps the hospital
// wallet ledger, an append-only chain of entries with a running balance.
package payment

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	StatusSuccess = "SUCCESS"
)

// Ledger entry directions.
const (
	DirectionCredit = "CREDIT"
	DirectionDebit  = "DEBIT"
)

type Payment struct {
	ID          uuid.UUID `json:"id"`
	BillID      uuid.UUID `json:"bill_id"`
	PayerID     uuid.UUID `json:"payer_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	PaidAt      time.Time `json:"paid_at"`
}

// LedgerEntry is one link in the wallet chain. Seq is assigned by the
// database and defines the chain order; BalanceAfterCents must equal the
// previous entry's balance plus or minus this entry's amount.
type LedgerEntry struct {
	ID                uuid.UUID  `json:"id"`
	Seq               int64      `json:"seq"`
	BillID            *uuid.UUID `json:"bill_id,omitempty"`
	PaymentID         *uuid.UUID `json:"payment_id,omitempty"`
	Direction         string     `json:"direction"`
	AmountCents       int64      `json:"amount_cents"`
	BalanceAfterCents int64      `json:"balance_after_cents"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NextBalance applies an entry's direction to the previous balance.
func NextBalance(prev int64, direction string, amountCents int64) int64 {
	if direction == DirectionDebit {
		return prev - amountCents
	}
	return prev + amountCents
}

// RecordPaymentInput carries the fields of a payment request.
type RecordPaymentInput struct {
	BillID      uuid.UUID `json:"bill_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method"`
	PayerID     uuid.UUID `json:"payer_id"`
}

// PaymentResult is returned to the caller after a successful payment.
type PaymentResult struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	BillID      uuid.UUID `json:"bill_id"`
	AmountCents int64     `json:"amount_cents"`
	BillPaid    bool      `json:"bill_paid"`
}
