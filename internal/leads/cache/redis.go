// Package cache keeps recently read leads close to the adapter. Redis is the
// primary; an in-process map takes over while Redis is unhealthy.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"leadtrack/internal/leads/models"
	id "leadtrack/pkg/domain"
	"leadtrack/pkg/platform/sentinel"
)

// RedisCache stores leads as JSON under <prefix><cpf> with a TTL.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache scopes keys with prefix so both table layouts can share a
// Redis database.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(nid id.NationalID) string {
	return c.prefix + nid.String()
}

func (c *RedisCache) Find(ctx context.Context, nid id.NationalID) (*models.Lead, error) {
	raw, err := c.client.Get(ctx, c.key(nid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("redis get lead: %w", err)
	}
	var lead models.Lead
	if err := json.Unmarshal(raw, &lead); err != nil {
		return nil, fmt.Errorf("decode cached lead: %w", err)
	}
	return &lead, nil
}

func (c *RedisCache) Save(ctx context.Context, lead *models.Lead) error {
	if lead == nil {
		return nil
	}
	raw, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}
	if err := c.client.Set(ctx, c.key(lead.NationalID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set lead: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, nid id.NationalID) error {
	if err := c.client.Del(ctx, c.key(nid)).Err(); err != nil {
		return fmt.Errorf("redis del lead: %w", err)
	}
	return nil
}
