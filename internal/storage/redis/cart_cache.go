// Package redis — кэш корзин поверх Redis (cache-aside). Авторитетное
// хранилище корзин остаётся за CartStore; промах кэша не ошибка для
// вызывающего, а сигнал сходить в хранилище.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saveitforlater/checkout/internal/domain"
)

// ErrCacheMiss возвращается, когда корзины нет в кэше.
var ErrCacheMiss = errors.New("cache miss")

// CartCache реализует domain.CartCache поверх Redis.
type CartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewCartCache создаёт кэш с базовым TTL 15 минут.
func NewCartCache(client *redis.Client) *CartCache {
	return &CartCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

// Get возвращает корзину из кэша или ErrCacheMiss.
func (c *CartCache) Get(ctx context.Context, ownerID string) (domain.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, ErrCacheMiss
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return cart, nil
}

// Set кладёт корзину в кэш. TTL размазывается джиттером, чтобы записи
// не протухали одновременно.
func (c *CartCache) Set(ctx context.Context, cart domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := c.client.Set(ctx, cacheKey(cart.OwnerID), data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete инвалидирует кэш корзины владельца.
func (c *CartCache) Delete(ctx context.Context, ownerID string) error {
	if err := c.client.Del(ctx, cacheKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(ownerID string) string {
	return fmt.Sprintf("cart:%s", ownerID)
}

var _ domain.CartCache = (*CartCache)(nil)
