package masterdata

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledgercore/ledgercore/internal/shared"
)

// Directory answers master data lookups the coordinator needs before it
// touches any ledger or stock state.
type Directory interface {
	TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error)
	DefaultCurrency(ctx context.Context, tenantID uuid.UUID) (string, error)
	CustomerExists(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error)
	SupplierExists(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error)
	ItemUnitPrice(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error)
	ItemUnitCost(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error)
}

// PostgresDirectory reads master data straight from the pool.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory constructs PostgresDirectory.
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE id=$1)`, tenantID)
}

func (d *PostgresDirectory) DefaultCurrency(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var currency string
	err := d.pool.QueryRow(ctx, `SELECT default_currency FROM tenants WHERE id=$1`, tenantID).Scan(&currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", shared.NewNotFound("tenant", tenantID)
	}
	return currency, err
}

func (d *PostgresDirectory) CustomerExists(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE tenant_id=$1 AND id=$2 AND is_active)`, tenantID, customerID)
}

func (d *PostgresDirectory) SupplierExists(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	return d.exists(ctx, `SELECT EXISTS(SELECT 1 FROM suppliers WHERE tenant_id=$1 AND id=$2 AND is_active)`, tenantID, supplierID)
}

func (d *PostgresDirectory) ItemUnitPrice(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	return d.itemAmount(ctx, `SELECT unit_price FROM items WHERE tenant_id=$1 AND id=$2`, tenantID, itemID)
}

func (d *PostgresDirectory) ItemUnitCost(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	return d.itemAmount(ctx, `SELECT unit_cost FROM items WHERE tenant_id=$1 AND id=$2`, tenantID, itemID)
}

// ListTenants returns every tenant id, oldest first.
func (d *PostgresDirectory) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := d.pool.Query(ctx, `SELECT id FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (d *PostgresDirectory) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := d.pool.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (d *PostgresDirectory) itemAmount(ctx context.Context, query string, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := d.pool.QueryRow(ctx, query, tenantID, itemID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, shared.NewNotFound("item", itemID)
	}
	return amount, err
}
