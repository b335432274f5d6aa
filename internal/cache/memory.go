package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"btcoracle/internal/errs"
)

// MemoryCache is the in-process fallback used when Redis is disabled or
// unreachable. Values are stored as JSON to mirror Redis semantics.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

func (m *MemoryCache) set(key string, data interface{}, expiration time.Duration) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{data: b, expiresAt: expiresAt}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) get(key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return errs.ErrNoData
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return errs.ErrNoData
	}
	return json.Unmarshal(entry.data, dest)
}

// SetLatestPrice caches the latest aggregated price record.
func (m *MemoryCache) SetLatestPrice(_ context.Context, data interface{}, expiration time.Duration) error {
	return m.set(keyLatestPrice, data, expiration)
}

// GetLatestPrice reads the cached aggregated price record.
func (m *MemoryCache) GetLatestPrice(_ context.Context, dest interface{}) error {
	return m.get(keyLatestPrice, dest)
}

// Set24hRange caches the 24h high/low/range.
func (m *MemoryCache) Set24hRange(_ context.Context, data interface{}, expiration time.Duration) error {
	return m.set(key24hRange, data, expiration)
}

// Get24hRange reads the cached 24h range.
func (m *MemoryCache) Get24hRange(_ context.Context, dest interface{}) error {
	return m.get(key24hRange, dest)
}

// SetVolatility caches the latest volatility for a timeframe.
func (m *MemoryCache) SetVolatility(_ context.Context, timeframeDays int, value float64, expiration time.Duration) error {
	return m.set(fmt.Sprintf(keyVolatility, timeframeDays), value, expiration)
}

// GetVolatility reads the cached volatility for a timeframe.
func (m *MemoryCache) GetVolatility(_ context.Context, timeframeDays int) (float64, error) {
	var v float64
	if err := m.get(fmt.Sprintf(keyVolatility, timeframeDays), &v); err != nil {
		return 0, err
	}
	return v, nil
}

// Ping always succeeds for the memory cache.
func (m *MemoryCache) Ping(_ context.Context) error {
	return nil
}
