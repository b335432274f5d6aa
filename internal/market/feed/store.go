package feed

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"btcoracle/internal/errs"
)

// SQLStore persists price feed records in Postgres.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a Postgres-backed feed store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Insert appends one audit record. Records are never updated or deleted.
func (s *SQLStore) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO price_feed_records (source, price, weight, timestamp)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, rec.Source, rec.Price, rec.Weight, rec.Timestamp); err != nil {
		return fmt.Errorf("failed to insert price feed record: %w", err)
	}
	return nil
}

// HighLow returns the max and min fetched price within [from, to].
func (s *SQLStore) HighLow(ctx context.Context, from, to time.Time) (float64, float64, error) {
	query := `
		SELECT MAX(price), MIN(price)
		FROM price_feed_records
		WHERE timestamp BETWEEN $1 AND $2
	`
	var high, low sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&high, &low); err != nil {
		return 0, 0, fmt.Errorf("failed to query feed high/low: %w", err)
	}
	if !high.Valid || !low.Valid {
		return 0, 0, errs.ErrNoData
	}
	return high.Float64, low.Float64, nil
}

// MemoryStore is the in-memory Store used in tests and when the process
// runs without a database.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an in-memory feed store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends one audit record.
func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

// HighLow returns the max and min fetched price within [from, to].
func (s *MemoryStore) HighLow(_ context.Context, from, to time.Time) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var high, low float64
	found := false
	for _, r := range s.records {
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		if !found {
			high, low = r.Price, r.Price
			found = true
			continue
		}
		if r.Price > high {
			high = r.Price
		}
		if r.Price < low {
			low = r.Price
		}
	}
	if !found {
		return 0, 0, errs.ErrNoData
	}
	return high, low, nil
}

// Records returns a copy of all stored records.
func (s *MemoryStore) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
