package pharmacy

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

// =========== Medicine Repository ===========

type medicineRepoPG struct{ pool *pgxpool.Pool }

func NewMedicineRepoPG(pool *pgxpool.Pool) MedicineRepository { return &medicineRepoPG{pool: pool} }

func (r *medicineRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *medicineRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	var m Medicine
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, unit_price_cents, stock_quantity FROM medicines WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.UnitPriceCents, &m.StockQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *medicineRepoPG) List(ctx context.Context, limit, offset int) ([]*Medicine, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM medicines`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, unit_price_cents, stock_quantity
		FROM medicines
		ORDER BY name
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var medicines []*Medicine
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.UnitPriceCents, &m.StockQuantity); err != nil {
			return nil, 0, err
		}
		medicines = append(medicines, &m)
	}
	return medicines, total, rows.Err()
}

func (r *medicineRepoPG) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	// The guard keeps stock from going negative even if callers raced past
	// their snapshots.
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicines SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *prescriptionRepoPG) ItemForDispense(ctx context.Context, itemID uuid.UUID) (*DispenseCheck, error) {
	// FOR UPDATE OF pi, m serializes concurrent dispenses of the same item
	// or medicine for the rest of the transaction.
	var c DispenseCheck
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT m.id, m.stock_quantity, pi.quantity,
			COALESCE((SELECT SUM(mi.issued_quantity) FROM medicine_issues mi WHERE mi.prescription_item_id = pi.id), 0)
		FROM prescription_items pi
		JOIN medicines m ON m.id = pi.medicine_id
		WHERE pi.id = $1
		FOR UPDATE OF pi, m`, itemID).
		Scan(&c.MedicineID, &c.StockQuantity, &c.PrescribedQuantity, &c.AlreadyIssued)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// =========== Issue Repository ===========

type issueRepoPG struct{ pool *pgxpool.Pool }

func NewIssueRepoPG(pool *pgxpool.Pool) IssueRepository { return &issueRepoPG{pool: pool} }

func (r *issueRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *issueRepoPG) Create(ctx context.Context, issue *MedicineIssue) error {
	issue.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicine_issues (id, prescription_item_id, patient_id, chemist_id, issued_quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		issue.ID, issue.PrescriptionItemID, issue.PatientID, issue.ChemistID, issue.IssuedQuantity).
		Scan(&issue.CreatedAt)
}

func (r *issueRepoPG) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*MedicineIssue, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_item_id, patient_id, chemist_id, issued_quantity, created_at
		FROM medicine_issues
		WHERE prescription_item_id = $1
		ORDER BY created_at`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []*MedicineIssue
	for rows.Next() {
		var i MedicineIssue
		if err := rows.Scan(&i.ID, &i.PrescriptionItemID, &i.PatientID, &i.ChemistID, &i.IssuedQuantity, &i.CreatedAt); err != nil {
			return nil, err
		}
		issues = append(issues, &i)
	}
	return issues, rows.Err()
}
