package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ledgercore/ledgercore/internal/platform/db"
)

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds audit writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO audit_logs (id, tenant_id, actor_id, action, entity_type, entity_id, detail, severity, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entry.ID, entry.TenantID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID, detail, string(entry.Severity), entry.OccurredAt)
	return db.MapError(err, "audit_logs")
}

func (r *txRepository) ListEntries(ctx context.Context, tenantID uuid.UUID, entityType, entityID string) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, selectEntries+` WHERE tenant_id=$1 AND entity_type=$2 AND entity_id=$3 ORDER BY occurred_at, id`, tenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (r *txRepository) ListTimeline(ctx context.Context, tenantID uuid.UUID, q TimelineQuery) ([]Entry, error) {
	where := []string{"tenant_id=$1"}
	args := []any{tenantID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !q.From.IsZero() {
		add("occurred_at >= $%d", q.From)
	}
	if !q.To.IsZero() {
		add("occurred_at < $%d", q.To)
	}
	if q.ActorID != uuid.Nil {
		add("actor_id = $%d", q.ActorID)
	}
	if q.EntityType != "" {
		add("entity_type = $%d", q.EntityType)
	}
	if q.Action != "" {
		add("action = $%d", q.Action)
	}
	if q.Severity != "" {
		add("severity = $%d", string(q.Severity))
	}
	args = append(args, q.Limit, q.Offset)
	sql := fmt.Sprintf("%s WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d",
		selectEntries, strings.Join(where, " AND "), len(args)-1, len(args))
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

const selectEntries = `SELECT id, tenant_id, actor_id, action, entity_type, entity_id, detail, severity, occurred_at FROM audit_logs`

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			detail   []byte
			severity string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &detail, &severity, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Severity = Severity(severity)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
