package audit

import (
	"context"
	"encoding/json"
	"fmt"

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

type recorderPG struct{ pool *pgxpool.Pool }

// NewRecorderPG returns a Recorder backed by the activity_log table.
func NewRecorderPG(pool *pgxpool.Pool) Recorder { return &recorderPG{pool: pool} }

func (r *recorderPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *recorderPG) Record(ctx context.Context, e Entry) error {
	if e.Meta == nil {
		return fmt.Errorf("audit entry requires metadata")
	}

	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO activity_log (id, actor_id, action, entity_type, entity_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.ActorID, string(e.Meta.Action()), e.EntityType, e.EntityID, meta)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}
