package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"btcoracle/internal/errs"
)

// SQLStore persists historical price points in Postgres.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a Postgres-backed history store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Upsert writes points idempotently keyed on (source, timestamp).
// Replaying the same fetch never creates duplicate rows.
func (s *SQLStore) Upsert(ctx context.Context, points []Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO historical_prices (
			source, timestamp, price, is_daily, day_index, open, high, low, volume
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		) ON CONFLICT (source, timestamp) DO UPDATE SET
			price = EXCLUDED.price,
			is_daily = EXCLUDED.is_daily,
			day_index = EXCLUDED.day_index,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			volume = EXCLUDED.volume
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx,
			p.Source, p.Timestamp, p.Price, p.IsDaily, p.DayIndex,
			nullable(p.Open), nullable(p.High), nullable(p.Low), nullable(p.Volume)); err != nil {
			return 0, fmt.Errorf("failed to upsert point %s@%s: %w", p.Source, p.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(points), nil
}

// DailyCloses returns daily points in (from, to], ordered ascending.
func (s *SQLStore) DailyCloses(ctx context.Context, from, to time.Time) ([]Point, error) {
	query := `
		SELECT source, timestamp, price, is_daily, day_index, open, high, low, volume
		FROM historical_prices
		WHERE is_daily = true AND timestamp > $1 AND timestamp <= $2
		ORDER BY timestamp ASC
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily closes: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var open, high, low, volume sql.NullFloat64
		if err := rows.Scan(&p.Source, &p.Timestamp, &p.Price, &p.IsDaily, &p.DayIndex,
			&open, &high, &low, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan historical point: %w", err)
		}
		p.Open = fromNull(open)
		p.High = fromNull(high)
		p.Low = fromNull(low)
		p.Volume = fromNull(volume)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating historical points: %w", err)
	}
	return points, nil
}

// HighLow scans [from, to] for the window high and low, falling back to
// close prices where OHLC is absent.
func (s *SQLStore) HighLow(ctx context.Context, from, to time.Time) (float64, float64, error) {
	query := `
		SELECT MAX(COALESCE(high, price)), MIN(COALESCE(low, price))
		FROM historical_prices
		WHERE timestamp BETWEEN $1 AND $2
	`
	var high, low sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query, from, to).Scan(&high, &low); err != nil {
		return 0, 0, fmt.Errorf("failed to query history high/low: %w", err)
	}
	if !high.Valid || !low.Valid {
		return 0, 0, errs.ErrNoData
	}
	return high.Float64, low.Float64, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// MemoryStore is the in-memory Store used in tests and database-less runs.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]Point // key: source + "@" + unix ms
}

// NewMemoryStore creates an in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{points: make(map[string]Point)}
}

func memKey(p Point) string {
	return fmt.Sprintf("%s@%d", p.Source, p.Timestamp.UnixMilli())
}

// Upsert writes points idempotently keyed on (source, timestamp).
func (s *MemoryStore) Upsert(_ context.Context, points []Point) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[memKey(p)] = p
	}
	return len(points), nil
}

// DailyCloses returns daily points in (from, to], ordered ascending.
func (s *MemoryStore) DailyCloses(_ context.Context, from, to time.Time) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Point
	for _, p := range s.points {
		if p.IsDaily && p.Timestamp.After(from) && !p.Timestamp.After(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// HighLow scans [from, to] for the window high and low.
func (s *MemoryStore) HighLow(_ context.Context, from, to time.Time) (float64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var high, low float64
	found := false
	for _, p := range s.points {
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		h, l := p.Price, p.Price
		if p.High != nil {
			h = *p.High
		}
		if p.Low != nil {
			l = *p.Low
		}
		if !found {
			high, low = h, l
			found = true
			continue
		}
		if h > high {
			high = h
		}
		if l < low {
			low = l
		}
	}
	if !found {
		return 0, 0, errs.ErrNoData
	}
	return high, low, nil
}

// Len returns the number of stored points.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}
