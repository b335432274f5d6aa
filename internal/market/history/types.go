package history

import (
	"context"
	"time"
)

// msPerDay is the day-bucket width for DayIndex derivation.
const msPerDay = 86_400_000

// Point is one historical price point, normally a daily close with
// optional OHLCV. Unique key is (Source, Timestamp); re-ingestion
// upserts, never duplicates.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"` // close
	Source    string    `json:"source"`
	IsDaily   bool      `json:"isDaily"`
	DayIndex  int64     `json:"dayIndex"`
	Open      *float64  `json:"open,omitempty"`
	High      *float64  `json:"high,omitempty"`
	Low       *float64  `json:"low,omitempty"`
	Volume    *float64  `json:"volume,omitempty"`
}

// DayIndexOf buckets a timestamp into an integer day index.
func DayIndexOf(t time.Time) int64 {
	return t.UnixMilli() / msPerDay
}

// Store persists historical price points.
type Store interface {
	// Upsert writes points idempotently on (source, timestamp) and
	// returns the number of points written.
	Upsert(ctx context.Context, points []Point) (int, error)
	// DailyCloses returns daily points with timestamp in (from, to],
	// ordered ascending.
	DailyCloses(ctx context.Context, from, to time.Time) ([]Point, error)
	// HighLow returns the max high and min low over [from, to], falling
	// back to close prices where OHLC is absent.
	HighLow(ctx context.Context, from, to time.Time) (high, low float64, err error)
}

// Provider fetches daily candles from one upstream API.
type Provider interface {
	Name() string
	// DailyCandles returns up to days daily points, most recent last.
	DailyCandles(ctx context.Context, days int) ([]Point, error)
}
