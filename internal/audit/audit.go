package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// Severity grades an audit entry.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s == SeverityInfo || s == SeverityWarning || s == SeverityCritical
}

// Entry represents a record stored in audit_logs.
type Entry struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	ActorID    uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Detail     map[string]any
	Severity   Severity
	OccurredAt time.Time
}

// TxRepository persists audit entries in the caller's transaction.
type TxRepository interface {
	InsertEntry(ctx context.Context, entry Entry) error
	ListEntries(ctx context.Context, tenantID uuid.UUID, entityType, entityID string) ([]Entry, error)
	TimelineReader
}

// ErrRecorderMissing is returned when Record is called on a nil Recorder.
var ErrRecorderMissing = errors.New("audit: recorder not initialised")

// Recorder validates and writes audit entries.
type Recorder struct {
	now func() time.Time
}

// NewRecorder constructs Recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// WithNow overrides the clock for testing.
func (r *Recorder) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Record persists the entry. Tenant, actor, action and entity are mandatory;
// severity defaults to Info.
func (r *Recorder) Record(ctx context.Context, tx TxRepository, entry Entry) (Entry, error) {
	if r == nil {
		return Entry{}, ErrRecorderMissing
	}
	switch {
	case entry.TenantID == uuid.Nil:
		return Entry{}, shared.Invalid("tenant_id", "required")
	case entry.ActorID == uuid.Nil:
		return Entry{}, shared.Invalid("actor_id", "required")
	case strings.TrimSpace(entry.Action) == "":
		return Entry{}, shared.Invalid("action", "required")
	case strings.TrimSpace(entry.EntityType) == "" || strings.TrimSpace(entry.EntityID) == "":
		return Entry{}, shared.Invalid("entity", "entity type and id are required")
	}
	if entry.Severity == "" {
		entry.Severity = SeverityInfo
	}
	if !entry.Severity.Valid() {
		return Entry{}, shared.Invalid("severity", "unknown severity %q", entry.Severity)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now()
	}
	if entry.Detail == nil {
		entry.Detail = map[string]any{}
	}
	if err := tx.InsertEntry(ctx, entry); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
