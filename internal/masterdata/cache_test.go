package masterdata

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ledgercore/ledgercore/internal/shared"
)

type countingDirectory struct {
	*MemoryDirectory
	priceCalls    int
	customerCalls int
}

func (c *countingDirectory) ItemUnitPrice(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	c.priceCalls++
	return c.MemoryDirectory.ItemUnitPrice(ctx, tenantID, itemID)
}

func (c *countingDirectory) CustomerExists(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	c.customerCalls++
	return c.MemoryDirectory.CustomerExists(ctx, tenantID, customerID)
}

func newTestCache(t *testing.T) (*CachedDirectory, *countingDirectory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	inner := &countingDirectory{MemoryDirectory: NewMemoryDirectory()}
	return NewCachedDirectory(inner, client, time.Minute, nil), inner, mr
}

func TestCachedDirectoryMemoizesPrices(t *testing.T) {
	cache, inner, _ := newTestCache(t)
	ctx := context.Background()
	tenant, item := uuid.New(), uuid.New()
	inner.SetItem(tenant, item, decimal.RequireFromString("10.00"), decimal.RequireFromString("4.00"))

	for i := 0; i < 3; i++ {
		price, err := cache.ItemUnitPrice(ctx, tenant, item)
		require.NoError(t, err)
		require.Equal(t, "10.00", price.StringFixed(2))
	}
	require.Equal(t, 1, inner.priceCalls)

	inner.SetItem(tenant, item, decimal.RequireFromString("12.00"), decimal.RequireFromString("4.00"))
	require.NoError(t, cache.Invalidate(ctx))
	price, err := cache.ItemUnitPrice(ctx, tenant, item)
	require.NoError(t, err)
	require.Equal(t, "12.00", price.StringFixed(2))
	require.Equal(t, 2, inner.priceCalls)

	_, err = cache.ItemUnitPrice(ctx, tenant, uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCachedDirectoryOnlyCachesPositiveExistence(t *testing.T) {
	cache, inner, _ := newTestCache(t)
	ctx := context.Background()
	tenant, customer := uuid.New(), uuid.New()

	ok, err := cache.CustomerExists(ctx, tenant, customer)
	require.NoError(t, err)
	require.False(t, ok)

	inner.AddCustomer(tenant, customer)
	ok, err = cache.CustomerExists(ctx, tenant, customer)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = cache.CustomerExists(ctx, tenant, customer)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, inner.customerCalls)
}

func TestCachedDirectoryFallsThroughWhenRedisIsDown(t *testing.T) {
	cache, inner, mr := newTestCache(t)
	ctx := context.Background()
	tenant := uuid.New()
	inner.AddTenant(tenant, "EUR")
	mr.Close()

	currency, err := cache.DefaultCurrency(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, "EUR", currency)
}
