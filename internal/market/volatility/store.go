package volatility

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"btcoracle/internal/errs"
)

// Store persists volatility records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	LatestByTimeframe(ctx context.Context, timeframeDays int) (*Record, error)
}

// SQLStore persists volatility records in Postgres.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a Postgres-backed volatility store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Insert appends one volatility record.
func (s *SQLStore) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO volatility_records (
			period_ms, volatility, timestamp, timeframe_days,
			calculation_method, data_points, start_timestamp, end_timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, query,
		rec.Period.Milliseconds(), rec.Volatility, rec.Timestamp, rec.TimeframeDays,
		rec.CalculationMethod, rec.DataPoints, rec.StartTimestamp, rec.EndTimestamp); err != nil {
		return fmt.Errorf("failed to insert volatility record: %w", err)
	}
	return nil
}

// LatestByTimeframe returns the most recent record for a timeframe, or
// ErrNoData.
func (s *SQLStore) LatestByTimeframe(ctx context.Context, timeframeDays int) (*Record, error) {
	query := `
		SELECT period_ms, volatility, timestamp, timeframe_days,
		       calculation_method, data_points, start_timestamp, end_timestamp
		FROM volatility_records
		WHERE timeframe_days = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var rec Record
	var periodMs int64
	err := s.db.QueryRowContext(ctx, query, timeframeDays).Scan(
		&periodMs, &rec.Volatility, &rec.Timestamp, &rec.TimeframeDays,
		&rec.CalculationMethod, &rec.DataPoints, &rec.StartTimestamp, &rec.EndTimestamp)
	if err == sql.ErrNoRows {
		return nil, errs.ErrNoData
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest volatility: %w", err)
	}
	rec.Period = time.Duration(periodMs) * time.Millisecond
	return &rec, nil
}

// MemoryStore is the in-memory Store used in tests and database-less runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an in-memory volatility store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert appends one volatility record.
func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

// LatestByTimeframe returns the most recent record for a timeframe, or
// ErrNoData.
func (s *MemoryStore) LatestByTimeframe(_ context.Context, timeframeDays int) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Record
	for i := range s.records {
		r := &s.records[i]
		if r.TimeframeDays != timeframeDays {
			continue
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	if latest == nil {
		return nil, errs.ErrNoData
	}
	out := *latest
	return &out, nil
}
