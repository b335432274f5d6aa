package aggregate

import (
	"time"

	"btcoracle/internal/market/feed"
)

// Record is the canonical aggregated price read by all consumers.
// Append-only; the latest record by timestamp is the current price.
type Record struct {
	Price       float64   `json:"price"`
	Timestamp   time.Time `json:"timestamp"`
	Volatility  float64   `json:"volatility"`
	SourceCount int       `json:"sourceCount"`
	Range24h    *Range    `json:"range24h,omitempty"`
}

// Range is the 24-hour high/low window attached to a Record when data
// exists; absent otherwise, never zero-filled.
type Range struct {
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Range float64 `json:"range"`
}

// WeightedPrice combines quotes into a single weight-normalized price.
// ok is false when no quote exists or the weights sum to zero, in which
// case no aggregated record may be produced for the cycle.
func WeightedPrice(quotes []feed.Quote) (price float64, ok bool) {
	if len(quotes) == 0 {
		return 0, false
	}

	var weightedSum, totalWeight float64
	for _, q := range quotes {
		weightedSum += q.Price * q.Weight
		totalWeight += q.Weight
	}
	if totalWeight <= 0 {
		return 0, false
	}
	return weightedSum / totalWeight, true
}
