package masterdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const cacheVersionKey = "masterdata:version"

// CachedDirectory memoizes lookups in Redis. Existence is cached only when
// positive so newly created parties are visible at once. A Redis failure
// falls through to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedDirectory wraps next with a Redis cache.
func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

// Invalidate drops every cached entry by bumping the key version.
func (c *CachedDirectory) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *CachedDirectory) TenantExists(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	return c.cachedExists(ctx, c.key(ctx, "tenant", tenantID.String()), func(ctx context.Context) (bool, error) {
		return c.next.TenantExists(ctx, tenantID)
	})
}

func (c *CachedDirectory) DefaultCurrency(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return c.cachedString(ctx, c.key(ctx, "currency", tenantID.String()), func(ctx context.Context) (string, error) {
		return c.next.DefaultCurrency(ctx, tenantID)
	})
}

func (c *CachedDirectory) CustomerExists(ctx context.Context, tenantID, customerID uuid.UUID) (bool, error) {
	return c.cachedExists(ctx, c.key(ctx, "customer", tenantID.String(), customerID.String()), func(ctx context.Context) (bool, error) {
		return c.next.CustomerExists(ctx, tenantID, customerID)
	})
}

func (c *CachedDirectory) SupplierExists(ctx context.Context, tenantID, supplierID uuid.UUID) (bool, error) {
	return c.cachedExists(ctx, c.key(ctx, "supplier", tenantID.String(), supplierID.String()), func(ctx context.Context) (bool, error) {
		return c.next.SupplierExists(ctx, tenantID, supplierID)
	})
}

func (c *CachedDirectory) ItemUnitPrice(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	return c.cachedDecimal(ctx, c.key(ctx, "item_price", tenantID.String(), itemID.String()), func(ctx context.Context) (decimal.Decimal, error) {
		return c.next.ItemUnitPrice(ctx, tenantID, itemID)
	})
}

func (c *CachedDirectory) ItemUnitCost(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	return c.cachedDecimal(ctx, c.key(ctx, "item_cost", tenantID.String(), itemID.String()), func(ctx context.Context) (decimal.Decimal, error) {
		return c.next.ItemUnitCost(ctx, tenantID, itemID)
	})
}

// key composes the cache key with the current version. An empty key disables
// caching for the call.
func (c *CachedDirectory) key(ctx context.Context, parts ...string) string {
	if c.client == nil {
		return ""
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 1
	} else if err != nil {
		c.logger.Warn("masterdata cache unavailable", slog.Any("error", err))
		return ""
	}
	return fmt.Sprintf("masterdata:%d:%s", ver, strings.Join(parts, ":"))
}

func (c *CachedDirectory) lookup(ctx context.Context, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("masterdata cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return "", false
	}
	return val, true
}

func (c *CachedDirectory) store(ctx context.Context, key, value string) {
	if key == "" {
		return
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("masterdata cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (c *CachedDirectory) cachedExists(ctx context.Context, key string, load func(context.Context) (bool, error)) (bool, error) {
	if val, ok := c.lookup(ctx, key); ok && val == "1" {
		return true, nil
	}
	ok, err := load(ctx)
	if err != nil || !ok {
		return ok, err
	}
	c.store(ctx, key, "1")
	return true, nil
}

func (c *CachedDirectory) cachedString(ctx context.Context, key string, load func(context.Context) (string, error)) (string, error) {
	if val, ok := c.lookup(ctx, key); ok {
		return val, nil
	}
	val, err := load(ctx)
	if err != nil {
		return "", err
	}
	c.store(ctx, key, val)
	return val, nil
}

func (c *CachedDirectory) cachedDecimal(ctx context.Context, key string, load func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if val, ok := c.lookup(ctx, key); ok {
		if amount, err := decimal.NewFromString(val); err == nil {
			return amount, nil
		}
	}
	amount, err := load(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	c.store(ctx, key, amount.String())
	return amount, nil
}
