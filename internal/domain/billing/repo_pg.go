package billing

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

// =========== Treatment Repository ===========

type treatmentRepoPG struct{ pool *pgxpool.Pool }

func NewTreatmentRepoPG(pool *pgxpool.Pool) TreatmentRepository { return &treatmentRepoPG{pool: pool} }

func (r *treatmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *treatmentRepoPG) LatestByPatient(ctx context.Context, patientID uuid.UUID) (*Treatment, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, diagnosis, status, created_at
		FROM treatments
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, patientID)

	var t Treatment
	err := row.Scan(&t.ID, &t.PatientID, &t.DoctorID, &t.Diagnosis, &t.Status, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoTreatment
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
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

const billCols = `id, patient_id, treatment_id, total_cents, status, issued_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.PatientID, &b.TreatmentID, &b.TotalCents, &b.Status, &b.IssuedAt)
	return &b, err
}

func (r *billRepoPG) Create(ctx context.Context, b *Bill) error {
	b.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bills (id, patient_id, treatment_id, total_cents, status, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		b.ID, b.PatientID, b.TreatmentID, b.TotalCents, b.Status, b.IssuedAt)
	return err
}

func (r *billRepoPG) AddItem(ctx context.Context, item *BillItem) error {
	item.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bill_items (id, bill_id, item_type, ref_id, description, amount_cents)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.BillID, item.ItemType, item.RefID, item.Description, item.AmountCents)
	return err
}

func (r *billRepoPG) SumItems(ctx context.Context, billID uuid.UUID) (int64, error) {
	var total int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM bill_items WHERE bill_id = $1`,
		billID).Scan(&total)
	return total, err
}

func (r *billRepoPG) SetTotal(ctx context.Context, billID uuid.UUID, totalCents int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bills SET total_cents = $2 WHERE id = $1`, billID, totalCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (r *billRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx,
		`SELECT `+billCols+` FROM bills WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBillNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *billRepoPG) GetItems(ctx context.Context, billID uuid.UUID) ([]*BillItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, bill_id, item_type, ref_id, description, amount_cents
		FROM bill_items
		WHERE bill_id = $1
		ORDER BY item_type`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*BillItem
	for rows.Next() {
		var it BillItem
		if err := rows.Scan(&it.ID, &it.BillID, &it.ItemType, &it.RefID, &it.Description, &it.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *billRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Bill, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM bills WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+billCols+`
		FROM bills
		WHERE patient_id = $1
		ORDER BY issued_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bills []*Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.PatientID, &b.TreatmentID, &b.TotalCents, &b.Status, &b.IssuedAt); err != nil {
			return nil, 0, err
		}
		bills = append(bills, &b)
	}
	return bills, total, rows.Err()
}

// =========== Charge Source Repository ===========

type chargeSourceRepoPG struct{ pool *pgxpool.Pool }

func NewChargeSourceRepoPG(pool *pgxpool.Pool) ChargeSourceRepository {
	return &chargeSourceRepoPG{pool: pool}
}

func (r *chargeSourceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *chargeSourceRepoPG) Accommodations(ctx context.Context, patientID uuid.UUID) ([]*Accommodation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.room_id, r.daily_rate_cents, a.check_in, a.check_out
		FROM accommodations a
		JOIN rooms r ON r.id = a.room_id
		WHERE a.patient_id = $1 AND a.status <> 'CANCELLED'
		ORDER BY a.check_in`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accs []*Accommodation
	for rows.Next() {
		var a Accommodation
		if err := rows.Scan(&a.RoomID, &a.DailyRateCents, &a.CheckIn, &a.CheckOut); err != nil {
			return nil, err
		}
		accs = append(accs, &a)
	}
	return accs, rows.Err()
}

func (r *chargeSourceRepoPG) CountLabRequests(ctx context.Context, treatmentID uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_requests WHERE treatment_id = $1`, treatmentID).Scan(&count)
	return count, err
}

func (r *chargeSourceRepoPG) MedicineChargeCents(ctx context.Context, treatmentID uuid.UUID) (int64, error) {
	var total int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(pi.quantity * m.unit_price_cents), 0)
		FROM prescriptions p
		JOIN prescription_items pi ON pi.prescription_id = p.id
		JOIN medicines m ON m.id = pi.medicine_id
		WHERE p.treatment_id = $1`, treatmentID).Scan(&total)
	return total, err
}
