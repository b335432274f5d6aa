package aggregate

import (
	"math"
	"testing"

	"btcoracle/internal/market/feed"
)

func TestWeightedPrice(t *testing.T) {
	quotes := []feed.Quote{
		{Source: "a", Price: 100, Weight: 0.2},
		{Source: "b", Price: 110, Weight: 0.1},
		{Source: "c", Price: 90, Weight: 0.1},
	}

	price, ok := WeightedPrice(quotes)
	if !ok {
		t.Fatal("expected a price")
	}

	want := (100*0.2 + 110*0.1 + 90*0.1) / 0.4
	if math.Abs(price-want) > 1e-9 {
		t.Fatalf("price = %f, want %f", price, want)
	}
}

func TestWeightedPrice_SingleQuote(t *testing.T) {
	price, ok := WeightedPrice([]feed.Quote{{Source: "only", Price: 95000.5, Weight: 0.15}})
	if !ok {
		t.Fatal("expected a price")
	}
	if price != 95000.5 {
		t.Fatalf("price = %f, want the quote's own price", price)
	}
}

func TestWeightedPrice_NoQuotes(t *testing.T) {
	if _, ok := WeightedPrice(nil); ok {
		t.Fatal("expected ok=false for empty input")
	}
}

func TestWeightedPrice_ZeroWeights(t *testing.T) {
	quotes := []feed.Quote{
		{Source: "a", Price: 100, Weight: 0},
		{Source: "b", Price: 110, Weight: 0},
	}
	if _, ok := WeightedPrice(quotes); ok {
		t.Fatal("expected ok=false when weights sum to zero")
	}
}
