package numbering

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ledgercore/ledgercore/internal/shared"
)

type memoryRepo struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	numbers map[string][]string
}

type memoryTx struct {
	repo    *memoryRepo
	held    []*sync.Mutex
	pending map[string][]string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{locks: map[string]*sync.Mutex{}, numbers: map[string][]string{}}
}

func scopeKey(tenantID uuid.UUID, kind Kind, year int) string {
	return fmt.Sprintf("%s/%s/%d", tenantID, kind, year)
}

// withTx mirrors a database transaction: locks are released at the end and
// inserted numbers only become visible on commit.
func (r *memoryRepo) withTx(fn func(tx *memoryTx) error) error {
	tx := &memoryTx{repo: r, pending: map[string][]string{}}
	defer func() {
		for _, l := range tx.held {
			l.Unlock()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	r.mu.Lock()
	for k, v := range tx.pending {
		r.numbers[k] = append(r.numbers[k], v...)
	}
	r.mu.Unlock()
	return nil
}

func (tx *memoryTx) LockSequence(ctx context.Context, tenantID uuid.UUID, kind Kind, year int) error {
	key := scopeKey(tenantID, kind, year)
	tx.repo.mu.Lock()
	l, ok := tx.repo.locks[key]
	if !ok {
		l = &sync.Mutex{}
		tx.repo.locks[key] = l
	}
	tx.repo.mu.Unlock()
	l.Lock()
	tx.held = append(tx.held, l)
	return nil
}

func (tx *memoryTx) ListNumbers(ctx context.Context, tenantID uuid.UUID, kind Kind, year int) ([]string, error) {
	key := scopeKey(tenantID, kind, year)
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	out := append([]string{}, tx.repo.numbers[key]...)
	return append(out, tx.pending[key]...), nil
}

func (tx *memoryTx) InsertNumber(ctx context.Context, tenantID uuid.UUID, kind Kind, year int, number string) error {
	existing, _ := tx.ListNumbers(ctx, tenantID, kind, year)
	for _, n := range existing {
		if n == number {
			return ErrNumberTaken
		}
	}
	key := scopeKey(tenantID, kind, year)
	tx.pending[key] = append(tx.pending[key], number)
	return nil
}

var jan2025 = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestGenerator() *Generator {
	gen := NewGenerator()
	gen.WithNow(func() time.Time { return jan2025 })
	return gen
}

func TestNextStartsAtOnePerYearAndKind(t *testing.T) {
	repo := newMemoryRepo()
	gen := NewGenerator()
	ctx := context.Background()
	tenant := uuid.New()

	next := func(kind Kind, at time.Time) string {
		gen.WithNow(func() time.Time { return at })
		var number string
		require.NoError(t, repo.withTx(func(tx *memoryTx) error {
			var err error
			number, err = gen.Next(ctx, tx, tenant, kind)
			return err
		}))
		return number
	}

	require.Equal(t, "SO-2025-0001", next(KindSalesOrder, jan2025))
	require.Equal(t, "SO-2025-0002", next(KindSalesOrder, jan2025))
	require.Equal(t, "PO-2025-0001", next(KindPurchaseOrder, jan2025))
	require.Equal(t, "PAY-2025-0001", next(KindPayment, jan2025))
	require.Equal(t, "SO-2026-0001", next(KindSalesOrder, jan2025.AddDate(1, 0, 0)))
	require.Equal(t, "JE-2025-0001", next(KindJournalEntry, jan2025))
}

func TestNextSkipsMalformedNumbers(t *testing.T) {
	repo := newMemoryRepo()
	tenant := uuid.New()
	repo.numbers[scopeKey(tenant, KindSalesOrder, 2025)] = []string{"SO-2025-0007", "SO-2025-abc", "SO-2025-", "SO-2025-00x9", "legacy"}

	var number string
	require.NoError(t, repo.withTx(func(tx *memoryTx) error {
		var err error
		number, err = newTestGenerator().Next(context.Background(), tx, tenant, KindSalesOrder)
		return err
	}))
	require.Equal(t, "SO-2025-0008", number)
}

func TestNextIsolatesTenants(t *testing.T) {
	repo := newMemoryRepo()
	gen := newTestGenerator()
	a, b := uuid.New(), uuid.New()
	for _, tenant := range []uuid.UUID{a, a, b} {
		require.NoError(t, repo.withTx(func(tx *memoryTx) error {
			_, err := gen.Next(context.Background(), tx, tenant, KindPayment)
			return err
		}))
	}
	require.Equal(t, []string{"PAY-2025-0001", "PAY-2025-0002"}, repo.numbers[scopeKey(a, KindPayment, 2025)])
	require.Equal(t, []string{"PAY-2025-0001"}, repo.numbers[scopeKey(b, KindPayment, 2025)])
}

func TestNextRollbackLeavesNoGap(t *testing.T) {
	repo := newMemoryRepo()
	gen := newTestGenerator()
	tenant := uuid.New()
	boom := errors.New("boom")

	err := repo.withTx(func(tx *memoryTx) error {
		_, err := gen.Next(context.Background(), tx, tenant, KindSalesOrder)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	var number string
	require.NoError(t, repo.withTx(func(tx *memoryTx) error {
		number, err = gen.Next(context.Background(), tx, tenant, KindSalesOrder)
		return err
	}))
	require.Equal(t, "SO-2025-0001", number)
}

func TestNextConcurrentCallersGetDistinctConsecutiveNumbers(t *testing.T) {
	repo := newMemoryRepo()
	gen := newTestGenerator()
	tenant := uuid.New()
	const callers = 50

	var mu sync.Mutex
	issued := make([]string, 0, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			return repo.withTx(func(tx *memoryTx) error {
				number, err := gen.Next(context.Background(), tx, tenant, KindJournalEntry)
				if err != nil {
					return err
				}
				mu.Lock()
				issued = append(issued, number)
				mu.Unlock()
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())

	sort.Strings(issued)
	for i, number := range issued {
		require.Equal(t, Format(KindJournalEntry, 2025, i+1), number)
	}
}

func TestNextRejectsInvalidInput(t *testing.T) {
	repo := newMemoryRepo()
	err := repo.withTx(func(tx *memoryTx) error {
		_, err := newTestGenerator().Next(context.Background(), tx, uuid.Nil, KindSalesOrder)
		return err
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	err = repo.withTx(func(tx *memoryTx) error {
		_, err := newTestGenerator().Next(context.Background(), tx, uuid.New(), Kind("XX"))
		return err
	})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseAndFormat(t *testing.T) {
	kind, year, counter, err := Parse("PO-2024-0042")
	require.NoError(t, err)
	require.Equal(t, KindPurchaseOrder, kind)
	require.Equal(t, 2024, year)
	require.Equal(t, 42, counter)

	require.Equal(t, "SO-2025-10000", Format(KindSalesOrder, 2025, 10000))
	_, _, counter, err = Parse("SO-2025-10000")
	require.NoError(t, err)
	require.Equal(t, 10000, counter)

	for _, bad := range []string{"", "SO-2025", "XX-2025-0001", "SO-25-0001", "SO-2025-00a1", "SO-2025-0000"} {
		_, _, _, err := Parse(bad)
		require.ErrorIs(t, err, ErrMalformedNumber, bad)
	}
}
