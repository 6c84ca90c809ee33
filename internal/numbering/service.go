package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// TxRepository exposes the transactional operations the generator needs.
// Implementations must hold the sequence lock until the surrounding
// transaction ends.
type TxRepository interface {
	LockSequence(ctx context.Context, tenantID uuid.UUID, kind Kind, year int) error
	ListNumbers(ctx context.Context, tenantID uuid.UUID, kind Kind, year int) ([]string, error)
	InsertNumber(ctx context.Context, tenantID uuid.UUID, kind Kind, year int, number string) error
}

// ErrNumberTaken is returned by InsertNumber when the number already exists.
var ErrNumberTaken = errors.New("numbering: number already issued")

// Generator issues gap-free document numbers.
type Generator struct {
	now func() time.Time
}

// NewGenerator constructs Generator.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// WithNow overrides the clock for testing.
func (g *Generator) WithNow(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

// Next allocates the next number for (tenant, kind, current calendar year)
// inside the caller's transaction. A rollback of that transaction releases
// the number. Document dates never select the series, so a backdated order
// still draws from this year's counter.
func (g *Generator) Next(ctx context.Context, tx TxRepository, tenantID uuid.UUID, kind Kind) (string, error) {
	if tenantID == uuid.Nil {
		return "", shared.Invalid("tenant_id", "required")
	}
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	year := g.now().UTC().Year()
	if err := tx.LockSequence(ctx, tenantID, kind, year); err != nil {
		return "", err
	}
	issued, err := tx.ListNumbers(ctx, tenantID, kind, year)
	if err != nil {
		return "", err
	}
	number := Format(kind, year, MaxCounter(kind, year, issued)+1)
	if err := tx.InsertNumber(ctx, tenantID, kind, year, number); err != nil {
		if errors.Is(err, ErrNumberTaken) {
			return "", &shared.ConcurrencyConflictError{Resource: shared.SequenceLockKey(tenantID, string(kind), year), Reason: "number " + number + " already issued", Err: err}
		}
		return "", err
	}
	return number, nil
}
