package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mce-digital/salesbridge/internal/erp"
)

// Cache keeps eligible-order lookups warm for a short window. The public
// form triggers one remote search per page view; a few seconds of staleness
// is acceptable there because submission re-validates against the ERP anyway.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func eligibleKey(partnerID int64) string {
	if partnerID == 0 {
		return "portal:eligible:all"
	}
	return fmt.Sprintf("portal:eligible:%d", partnerID)
}

// FetchOrders loads cached orders or populates them via the loader. Redis
// being down degrades to a direct lookup, never to an error.
func (c *Cache) FetchOrders(ctx context.Context, key string, loader func(context.Context) ([]erp.SaleOrder, error)) ([]erp.SaleOrder, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var orders []erp.SaleOrder
		if err := json.Unmarshal(payload, &orders); err == nil {
			return orders, nil
		}
	}

	orders, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(orders); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return orders, nil
}
