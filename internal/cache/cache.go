package cache

import (
	"context"
	"time"

	"btcoracle/internal/config"
)

// Cacher is the read-path cache for values served by the public API. It
// only ever holds the most recently stored copy; misses fall through to
// the record stores.
type Cacher interface {
	SetLatestPrice(ctx context.Context, data interface{}, expiration time.Duration) error
	GetLatestPrice(ctx context.Context, dest interface{}) error

	Set24hRange(ctx context.Context, data interface{}, expiration time.Duration) error
	Get24hRange(ctx context.Context, dest interface{}) error

	SetVolatility(ctx context.Context, timeframeDays int, value float64, expiration time.Duration) error
	GetVolatility(ctx context.Context, timeframeDays int) (float64, error)

	Ping(ctx context.Context) error
}

// New creates a cache instance based on configuration: Redis when
// enabled, in-process memory otherwise.
func New(cfg config.RedisConfig) (Cacher, error) {
	if cfg.Enabled {
		return NewRedisCache(cfg)
	}
	return NewMemoryCache(), nil
}
