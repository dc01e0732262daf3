package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hms/hms/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

func (r *paymentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payments (id, bill_id, payer_id, amount_cents, method, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.BillID, p.PayerID, p.AmountCents, p.Method, p.Status, p.PaidAt)
	return err
}

// =========== Ledger Repository ===========

// walletLockKey is the advisory lock key serializing wallet appends. The
// single hospital wallet means one global chain.
const walletLockKey = int64(7201)

type ledgerRepoPG struct{ pool *pgxpool.Pool }

func NewLedgerRepoPG(pool *pgxpool.Pool) LedgerRepository { return &ledgerRepoPG{pool: pool} }

func (r *ledgerRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *ledgerRepoPG) LastBalanceForUpdate(ctx context.Context) (int64, error) {
	// The transaction-scoped advisory lock also covers the empty-ledger
	// case, where there is no row to lock.
	if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, walletLockKey); err != nil {
		return 0, err
	}

	var balance int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT balance_after_cents FROM wallet_ledger ORDER BY seq DESC LIMIT 1`).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *ledgerRepoPG) Append(ctx context.Context, e *LedgerEntry) error {
	e.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO wallet_ledger (id, bill_id, payment_id, direction, amount_cents, balance_after_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq, created_at`,
		e.ID, e.BillID, e.PaymentID, e.Direction, e.AmountCents, e.BalanceAfterCents).
		Scan(&e.Seq, &e.CreatedAt)
}

func (r *ledgerRepoPG) CurrentBalance(ctx context.Context) (int64, error) {
	var balance int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT balance_after_cents FROM wallet_ledger ORDER BY seq DESC LIMIT 1`).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *ledgerRepoPG) List(ctx context.Context, limit, offset int) ([]*LedgerEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM wallet_ledger`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, seq, bill_id, payment_id, direction, amount_cents, balance_after_cents, created_at
		FROM wallet_ledger
		ORDER BY seq DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.Seq, &e.BillID, &e.PaymentID, &e.Direction, &e.AmountCents, &e.BalanceAfterCents, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

// =========== Bill Repository ===========

type billRepoPG struct{ pool *pgxpool.Pool }

func NewBillRepoPG(pool *pgxpool.Pool) BillRepository { return &billRepoPG{pool: pool} }

func (r *billRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *billRepoPG) TotalCents(ctx context.Context, billID uuid.UUID) (int64, error) {
	var total int64
	err := r.conn(ctx).QueryRow(ctx, `SELECT total_cents FROM bills WHERE id = $1`, billID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrBillNotFound
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *billRepoPG) MarkPaid(ctx context.Context, billID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE bills SET status = 'PAID' WHERE id = $1`, billID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}
