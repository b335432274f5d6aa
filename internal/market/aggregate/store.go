package aggregate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"btcoracle/internal/errs"
)

// Store persists aggregated price records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Latest(ctx context.Context) (*Record, error)
}

// SQLStore persists aggregated price records in Postgres.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a Postgres-backed aggregated price store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Insert appends one aggregated price record.
func (s *SQLStore) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO aggregated_prices (price, timestamp, volatility, source_count, high_24h, low_24h)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var high, low sql.NullFloat64
	if rec.Range24h != nil {
		high = sql.NullFloat64{Float64: rec.Range24h.High, Valid: true}
		low = sql.NullFloat64{Float64: rec.Range24h.Low, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query,
		rec.Price, rec.Timestamp, rec.Volatility, rec.SourceCount, high, low); err != nil {
		return fmt.Errorf("failed to insert aggregated price: %w", err)
	}
	return nil
}

// Latest returns the most recent aggregated price record, or ErrNoData.
func (s *SQLStore) Latest(ctx context.Context) (*Record, error) {
	query := `
		SELECT price, timestamp, volatility, source_count, high_24h, low_24h
		FROM aggregated_prices
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var rec Record
	var high, low sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query).Scan(
		&rec.Price, &rec.Timestamp, &rec.Volatility, &rec.SourceCount, &high, &low)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest aggregated price: %w", err)
	}
	if high.Valid && low.Valid {
		rec.Range24h = &Range{High: high.Float64, Low: low.Float64, Range: high.Float64 - low.Float64}
	}
	return &rec, nil
}

// MemoryStore is the in-memory Store used in tests and database-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an in-memory aggregated price store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends one aggregated price record.
func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

// Latest returns the most recent aggregated price record, or ErrNoData.
func (s *MemoryStore) Latest(_ context.Context) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return nil, errs.ErrNoData
	}
	latest := s.records[0]
	for _, r := range s.records[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return &latest, nil
}
