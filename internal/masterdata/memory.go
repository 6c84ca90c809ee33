package masterdata

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

type itemPricing struct {
	price decimal.Decimal
	cost  decimal.Decimal
}

// MemoryDirectory is an in-process Directory for tests and local runs.
type MemoryDirectory struct {
	mu         sync.RWMutex
	currencies map[uuid.UUID]string
	customers  map[uuid.UUID]uuid.UUID
	suppliers  map[uuid.UUID]uuid.UUID
	items      map[uuid.UUID]map[uuid.UUID]itemPricing
}

// NewMemoryDirectory returns an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		currencies: make(map[uuid.UUID]string),
		customers:  make(map[uuid.UUID]uuid.UUID),
		suppliers:  make(map[uuid.UUID]uuid.UUID),
		items:      make(map[uuid.UUID]map[uuid.UUID]itemPricing),
	}
}

// AddTenant registers a tenant with its default currency.
func (d *MemoryDirectory) AddTenant(tenantID uuid.UUID, currency string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.currencies[tenantID] = currency
}

// AddCustomer registers a customer of tenantID.
func (d *MemoryDirectory) AddCustomer(tenantID, customerID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[customerID] = tenantID
}

// AddSupplier registers a supplier of tenantID.
func (d *MemoryDirectory) AddSupplier(tenantID, supplierID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suppliers[supplierID] = tenantID
}

// SetItem records the default price and cost of an item.
func (d *MemoryDirectory) SetItem(tenantID, itemID uuid.UUID, price, cost decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.items[tenantID] == nil {
		d.items[tenantID] = make(map[uuid.UUID]itemPricing)
	}
	d.items[tenantID][itemID] = itemPricing{price: price, cost: cost}
}

func (d *MemoryDirectory) TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.currencies[tenantID]
	return ok, nil
}

func (d *MemoryDirectory) DefaultCurrency(ctx context.Context, tenantID uuid.UUID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	currency, ok := d.currencies[tenantID]
	if !ok {
		return "", shared.NewNotFound("tenant", tenantID)
	}
	return currency, nil
}

func (d *MemoryDirectory) CustomerExists(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.customers[customerID]
	return ok && owner == tenantID, nil
}

func (d *MemoryDirectory) SupplierExists(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	owner, ok := d.suppliers[supplierID]
	return ok && owner == tenantID, nil
}

func (d *MemoryDirectory) ItemUnitPrice(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	p, err := d.item(tenantID, itemID)
	return p.price, err
}

func (d *MemoryDirectory) ItemUnitCost(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	p, err := d.item(tenantID, itemID)
	return p.cost, err
}

// ListTenants returns the registered tenants in id order.
func (d *MemoryDirectory) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(d.currencies))
	for id := range d.currencies {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (d *MemoryDirectory) item(tenantID, itemID uuid.UUID) (itemPricing, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.items[tenantID][itemID]
	if !ok {
		return itemPricing{}, shared.NewNotFound("item", itemID)
	}
	return p, nil
}
