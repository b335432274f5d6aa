package aggregate

import (
	"testing"

	"btcoracle/internal/market/feed"
)

func quotesFromPrices(prices ...float64) []feed.Quote {
	quotes := make([]feed.Quote, len(prices))
	for i, p := range prices {
		quotes[i] = feed.Quote{Source: "test", Price: p, Weight: 1}
	}
	return quotes
}

func TestFilterOutliers_RemovesExtremeQuote(t *testing.T) {
	quotes := quotesFromPrices(100, 101, 99, 102, 1000)

	kept, removed := FilterOutliers(quotes, nil)

	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if len(kept) != 4 {
		t.Fatalf("kept %d quotes, want 4", len(kept))
	}
	for _, q := range kept {
		if q.Price == 1000 {
			t.Fatalf("outlier 1000 survived the filter")
		}
	}
}

func TestFilterOutliers_SmallSamplePassesThrough(t *testing.T) {
	quotes := quotesFromPrices(100, 500, 900)

	kept, removed := FilterOutliers(quotes, nil)

	if removed != 0 {
		t.Fatalf("removed = %d, want 0 for sample below quartile minimum", removed)
	}
	if len(kept) != 3 {
		t.Fatalf("kept %d quotes, want all 3", len(kept))
	}
}

func TestFilterOutliers_CleanSetUnchanged(t *testing.T) {
	quotes := quotesFromPrices(100, 100.5, 99.8, 100.2, 100.1)

	kept, removed := FilterOutliers(quotes, nil)

	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if len(kept) != len(quotes) {
		t.Fatalf("kept %d quotes, want %d", len(kept), len(quotes))
	}
}

func TestFilterOutliers_ZeroIQRCollapsesFences(t *testing.T) {
	// Zero IQR collapses the fences to a point; everything off the
	// quartile price is discarded.
	quotes := quotesFromPrices(100, 100, 100, 100, 250, 40)

	kept, removed := FilterOutliers(quotes, nil)

	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if len(kept) != 4 {
		t.Fatalf("kept %d quotes, want 4", len(kept))
	}
	for _, q := range kept {
		if q.Price != 100 {
			t.Fatalf("unexpected survivor price %f", q.Price)
		}
	}
}
