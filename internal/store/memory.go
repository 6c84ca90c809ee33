package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgercore/ledgercore/internal/accounting"
	"github.com/ledgercore/ledgercore/internal/audit"
	"github.com/ledgercore/ledgercore/internal/inventory"
	"github.com/ledgercore/ledgercore/internal/numbering"
	"github.com/ledgercore/ledgercore/internal/payments"
	"github.com/ledgercore/ledgercore/internal/procurement"
	"github.com/ledgercore/ledgercore/internal/sales"
)

type numberRow struct {
	tenantID uuid.UUID
	kind     numbering.Kind
	year     int
	number   string
}

type mappingKey struct {
	tenantID uuid.UUID
	key      string
}

type memoryState struct {
	numbers  []numberRow
	accounts map[uuid.UUID]accounting.Account
	mappings map[mappingKey]uuid.UUID
	entries  map[uuid.UUID]accounting.JournalEntry
	items    map[uuid.UUID]inventory.Item
	layers   []inventory.CostLayer
	layerSeq int64
	stockTx  []inventory.Transaction
	orders   map[uuid.UUID]sales.Order
	pos      map[uuid.UUID]procurement.PurchaseOrder
	payments []payments.Payment
	audit    []audit.Entry
}

func newMemoryState() *memoryState {
	return &memoryState{
		accounts: make(map[uuid.UUID]accounting.Account),
		mappings: make(map[mappingKey]uuid.UUID),
		entries:  make(map[uuid.UUID]accounting.JournalEntry),
		items:    make(map[uuid.UUID]inventory.Item),
		orders:   make(map[uuid.UUID]sales.Order),
		pos:      make(map[uuid.UUID]procurement.PurchaseOrder),
	}
}

func (s *memoryState) clone() *memoryState {
	out := newMemoryState()
	out.numbers = append([]numberRow(nil), s.numbers...)
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.mappings {
		out.mappings[k] = v
	}
	for k, v := range s.entries {
		v.Lines = append([]accounting.JournalLine(nil), v.Lines...)
		out.entries[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	out.layers = append([]inventory.CostLayer(nil), s.layers...)
	out.layerSeq = s.layerSeq
	out.stockTx = append([]inventory.Transaction(nil), s.stockTx...)
	for k, v := range s.orders {
		v.Lines = append([]sales.Line(nil), v.Lines...)
		out.orders[k] = v
	}
	for k, v := range s.pos {
		v.Lines = append([]procurement.POLine(nil), v.Lines...)
		out.pos[k] = v
	}
	out.payments = append([]payments.Payment(nil), s.payments...)
	out.audit = append([]audit.Entry(nil), s.audit...)
	return out
}

// Stats counts committed rows per table.
type Stats struct {
	Numbers           int
	JournalEntries    int
	StockTransactions int
	SalesOrders       int
	PurchaseOrders    int
	Payments          int
	AuditEntries      int
}

// MemoryStore is an in-process Store. Scopes are serialized by one mutex and
// work on a copy of the state that replaces the committed state only when fn
// succeeds.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState

	faultMu sync.RWMutex
	fault   func(op string) error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// InjectFault installs a hook consulted before every write. Returning an
// error from it fails that write. Pass nil to remove the hook.
func (m *MemoryStore) InjectFault(fault func(op string) error) {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	m.fault = fault
}

func (m *MemoryStore) checkFault(op string) error {
	m.faultMu.RLock()
	defer m.faultMu.RUnlock()
	if m.fault == nil {
		return nil
	}
	return m.fault(op)
}

// WithTx implements Store.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, scope Scope) error) error {
	if scope, ok := ScopeFromContext(ctx); ok {
		return fn(ctx, scope)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{store: m, state: m.state.clone()}
	scope := tx.scope()
	if err := fn(ContextWithScope(ctx, scope), scope); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// Stats reports committed row counts.
func (m *MemoryStore) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Numbers:           len(m.state.numbers),
		JournalEntries:    len(m.state.entries),
		StockTransactions: len(m.state.stockTx),
		SalesOrders:       len(m.state.orders),
		PurchaseOrders:    len(m.state.pos),
		Payments:          len(m.state.payments),
		AuditEntries:      len(m.state.audit),
	}
}

// memoryTx implements every repository against a private state copy.
type memoryTx struct {
	store *MemoryStore
	state *memoryState
}

func (tx *memoryTx) scope() Scope {
	return Scope{
		Sequences: tx,
		Ledger:    tx,
		Stock:     tx,
		Sales:     tx,
		Purchases: tx,
		Payments:  tx,
		Audit:     tx,
	}
}
