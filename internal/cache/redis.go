package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"btcoracle/internal/config"
	"btcoracle/internal/errs"
)

const (
	keyLatestPrice = "oracle:price:latest"
	key24hRange    = "oracle:price:range24h"
	keyVolatility  = "oracle:volatility:%d"
)

// RedisCache represents Redis cache implementation
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (r *RedisCache) setJSON(ctx context.Context, key string, data interface{}, expiration time.Duration) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return r.client.Set(ctx, key, b, expiration).Err()
}

func (r *RedisCache) getJSON(ctx context.Context, key string, dest interface{}) error {
	b, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return errs.ErrNoData
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

// SetLatestPrice caches the latest aggregated price record.
func (r *RedisCache) SetLatestPrice(ctx context.Context, data interface{}, expiration time.Duration) error {
	return r.setJSON(ctx, keyLatestPrice, data, expiration)
}

// GetLatestPrice reads the cached aggregated price record.
func (r *RedisCache) GetLatestPrice(ctx context.Context, dest interface{}) error {
	return r.getJSON(ctx, keyLatestPrice, dest)
}

// Set24hRange caches the 24h high/low/range.
func (r *RedisCache) Set24hRange(ctx context.Context, data interface{}, expiration time.Duration) error {
	return r.setJSON(ctx, key24hRange, data, expiration)
}

// Get24hRange reads the cached 24h range.
func (r *RedisCache) Get24hRange(ctx context.Context, dest interface{}) error {
	return r.getJSON(ctx, key24hRange, dest)
}

// SetVolatility caches the latest volatility for a timeframe.
func (r *RedisCache) SetVolatility(ctx context.Context, timeframeDays int, value float64, expiration time.Duration) error {
	return r.client.Set(ctx, fmt.Sprintf(keyVolatility, timeframeDays), value, expiration).Err()
}

// GetVolatility reads the cached volatility for a timeframe.
func (r *RedisCache) GetVolatility(ctx context.Context, timeframeDays int) (float64, error) {
	s, err := r.client.Get(ctx, fmt.Sprintf(keyVolatility, timeframeDays)).Result()
	if err == redis.Nil {
		return 0, errs.ErrNoData
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

// Ping checks the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
