package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/payments"
	"github.com/ledgercore/ledgercore/internal/platform/db"
	"github.com/ledgercore/ledgercore/internal/procurement"
	"github.com/ledgercore/ledgercore/internal/sales"
)

// Scope is the set of repositories bound to one atomic unit of work.
type Scope struct {
	Sequences numbering.TxRepository
	Ledger    accounting.TxRepository
	Stock     inventory.TxRepository
	Sales     sales.TxRepository
	Purchases procurement.TxRepository
	Payments  payments.TxRepository
	Audit     audit.TxRepository
}

// Store opens atomic scopes. Everything fn writes through the scope commits
// when fn returns nil and rolls back otherwise, including on panic. A scope
// already carried by ctx is reused instead of opening a new one.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, scope Scope) error) error
}

type scopeContextKey struct{}

// ContextWithScope stores the scope in context.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, scope)
}

// ScopeFromContext extracts the active scope from context.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	scope, ok := ctx.Value(scopeContextKey{}).(Scope)
	return scope, ok
}

// PostgresStore runs scopes in pgx transactions.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts db.TxOptions
}

// NewPostgresStore constructs PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts db.TxOptions) *PostgresStore {
	return &PostgresStore{pool: pool, opts: opts}
}

// NewPostgresScope binds every repository to tx.
func NewPostgresScope(tx pgx.Tx) Scope {
	return Scope{
		Sequences: numbering.NewTxRepository(tx),
		Ledger:    accounting.NewTxRepository(tx),
		Stock:     inventory.NewTxRepository(tx),
		Sales:     sales.NewTxRepository(tx),
		Purchases: procurement.NewTxRepository(tx),
		Payments:  payments.NewTxRepository(tx),
		Audit:     audit.NewTxRepository(tx),
	}
}

// WithTx implements Store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, scope Scope) error) error {
	if scope, ok := ScopeFromContext(ctx); ok {
		return fn(ctx, scope)
	}
	return db.WithTx(ctx, s.pool, s.opts, func(tx pgx.Tx) error {
		scope := NewPostgresScope(tx)
		return fn(ContextWithScope(ctx, scope), scope)
	})
}
