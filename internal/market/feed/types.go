package feed

import (
	"context"
	"time"
)

// ParseFunc maps one source's response body to a single price.
type ParseFunc func(body []byte) (float64, error)

// Source describes one exchange price endpoint.
type Source struct {
	Name     string
	Endpoint string
	Weight   float64
	Parse    ParseFunc
}

// Quote is one validated price from one source within a cycle. Quotes are
// ephemeral; the persisted audit form is Record.
type Quote struct {
	Source    string
	Price     float64
	Weight    float64
	FetchedAt time.Time
}

// Record is the append-only audit row written once per successful,
// validated fetch.
type Record struct {
	Source    string    `json:"source"`
	Price     float64   `json:"price"`
	Weight    float64   `json:"weight"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists price feed audit records.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	// HighLow returns the min and max fetched price in [from, to].
	HighLow(ctx context.Context, from, to time.Time) (high, low float64, err error)
}
