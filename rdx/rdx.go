// Package rdx wraps the redis client used for the gateway-customer
// cache and the order event channel.
package rdx

import (
	"context"
	"fmt"
	"time"

	"tienda/config"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin helper over a redis connection.
type Cache struct {
	Conn *redis.Client
}

func Connect(ctx context.Context, cfg config.Config) (*Cache, error) {
	conn := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Cache{Conn: conn}, nil
}

// CustomerID returns the cached gateway customer id for an identity
// key, or "" when absent.
func (c *Cache) CustomerID(ctx context.Context, key string) string {
	v, err := c.Conn.Get(ctx, "customer:"+key).Result()
	if err != nil {
		return ""
	}
	return v
}

// SetCustomerID caches a gateway customer id for 30 days.
func (c *Cache) SetCustomerID(ctx context.Context, key, customerID string) error {
	return c.Conn.Set(ctx, "customer:"+key, customerID, 30*24*time.Hour).Err()
}
