// Package cache decorates the catalog with a Redis-backed TTL cache.
// Only display metadata is cached; stock enforcement always goes through
// the inventory ledger, which reads locked rows from the database.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
	"github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
	platformpg "github.com/maiphun1412/thietbi-dientu-backend/internal/platform/postgres"
)

var (
	_ ports.ProductReader   = (*ProductCache)(nil)
	_ ports.InventoryLedger = (*ProductCache)(nil)
)

// ProductCache is a read-through cache in front of a ProductReader. It
// also fronts the inventory ledger so every stock mutation evicts the
// product it touched.
type ProductCache struct {
	next   ports.ProductReader
	ledger ports.InventoryLedger
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewProductCache wraps next and ledger. A zero ttl defaults to one
// minute.
func NewProductCache(next ports.ProductReader, ledger ports.InventoryLedger, client *redis.Client, ttl time.Duration, logger *slog.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductCache{next: next, ledger: ledger, client: client, ttl: ttl, logger: logger}
}

func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }

// GetProduct serves from Redis when possible. Reads inside an open
// transaction go straight to the database: checkout prices order lines
// from the same rows it is about to lock, and a cached price may
// already be stale. Cache failures degrade to the underlying reader.
func (c *ProductCache) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if platformpg.InTx(ctx) {
		return c.next.GetProduct(ctx, id)
	}

	key := productKey(id)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var product domain.Product
		if err := json.Unmarshal([]byte(cached), &product); err == nil {
			return &product, nil
		}
		// Corrupt entry, drop it and fall through.
		c.client.Del(ctx, key)
	} else if err != redis.Nil {
		c.logger.Warn("product cache read failed", slog.Int64("product_id", id), slog.String("error", err.Error()))
	}

	product, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(product); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("product cache write failed", slog.Int64("product_id", id), slog.String("error", err.Error()))
		}
	}
	return product, nil
}

// TryDecrement reserves stock through the ledger and evicts the product.
func (c *ProductCache) TryDecrement(ctx context.Context, productID int64, optionID *int64, qty int64) error {
	if err := c.ledger.TryDecrement(ctx, productID, optionID, qty); err != nil {
		return err
	}
	c.Invalidate(ctx, productID)
	return nil
}

// Increment restores stock through the ledger and evicts the product.
func (c *ProductCache) Increment(ctx context.Context, productID int64, optionID *int64, qty int64) error {
	if err := c.ledger.Increment(ctx, productID, optionID, qty); err != nil {
		return err
	}
	c.Invalidate(ctx, productID)
	return nil
}

// AddSold credits the sold counter through the ledger and evicts the
// product.
func (c *ProductCache) AddSold(ctx context.Context, productID int64, qty int64) error {
	if err := c.ledger.AddSold(ctx, productID, qty); err != nil {
		return err
	}
	c.Invalidate(ctx, productID)
	return nil
}

// Invalidate evicts a product after a stock mutation so reads do not
// serve stale counts for the whole TTL.
func (c *ProductCache) Invalidate(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		c.logger.Warn("product cache invalidation failed", slog.Int64("product_id", id), slog.String("error", err.Error()))
	}
}
