package history

import (
	"context"
	"testing"
	"time"

	"btcoracle/internal/errs"
)

func fptr(v float64) *float64 { return &v }

func TestDayIndexOf(t *testing.T) {
	epoch := time.Unix(0, 0).UTC()
	if got := DayIndexOf(epoch); got != 0 {
		t.Fatalf("DayIndexOf(epoch) = %d, want 0", got)
	}
	if got := DayIndexOf(epoch.Add(24 * time.Hour)); got != 1 {
		t.Fatalf("DayIndexOf(epoch+1d) = %d, want 1", got)
	}
	// Last millisecond of day zero still buckets to day zero.
	if got := DayIndexOf(epoch.Add(24*time.Hour - time.Millisecond)); got != 0 {
		t.Fatalf("DayIndexOf(end of day 0) = %d, want 0", got)
	}
}

func TestMemoryStore_UpsertIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	first := Point{Timestamp: ts, Price: 90000, Source: "coingecko", IsDaily: true, DayIndex: DayIndexOf(ts)}
	if _, err := store.Upsert(context.Background(), []Point{first}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// Same (source, timestamp) with a different payload replaces the row.
	second := first
	second.Price = 91000
	second.High = fptr(92000)
	if _, err := store.Upsert(context.Background(), []Point{second}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if store.Len() != 1 {
		t.Fatalf("store holds %d points, want 1", store.Len())
	}

	points, err := store.DailyCloses(context.Background(), ts.Add(-time.Hour), ts)
	if err != nil {
		t.Fatalf("daily closes failed: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("got %d points, want 1", len(points))
	}
	if points[0].Price != 91000 {
		t.Fatalf("price = %f, want the replayed payload 91000", points[0].Price)
	}

	// A different source at the same timestamp is a distinct row.
	other := first
	other.Source = "coincap_daily"
	if _, err := store.Upsert(context.Background(), []Point{other}); err != nil {
		t.Fatalf("third upsert failed: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("store holds %d points, want 2", store.Len())
	}
}

func TestMemoryStore_DailyClosesWindowAndOrder(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	var points []Point
	for i := 0; i < 5; i++ {
		ts := base.AddDate(0, 0, i)
		points = append(points, Point{
			Timestamp: ts, Price: 90000 + float64(i), Source: "test", IsDaily: true, DayIndex: DayIndexOf(ts),
		})
	}
	// An intraday point must never appear in the daily series.
	points = append(points, Point{Timestamp: base.Add(6 * time.Hour), Price: 1, Source: "test", IsDaily: false})

	if _, err := store.Upsert(context.Background(), points); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// (from, to] excludes the boundary point at from.
	got, err := store.DailyCloses(context.Background(), base, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("daily closes failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d points, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Fatal("points not in ascending timestamp order")
		}
	}
	if got[0].Price != 90001 {
		t.Fatalf("first price = %f, want 90001 (from-boundary excluded)", got[0].Price)
	}
}

func TestMemoryStore_HighLowUsesOHLCWhenPresent(t *testing.T) {
	store := NewMemoryStore()
	ts := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	points := []Point{
		{Timestamp: ts, Price: 90000, Source: "a", IsDaily: true, High: fptr(93000), Low: fptr(89000)},
		{Timestamp: ts.Add(24 * time.Hour), Price: 91000, Source: "a", IsDaily: true},
	}
	if _, err := store.Upsert(context.Background(), points); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	high, low, err := store.HighLow(context.Background(), ts.Add(-time.Hour), ts.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("high/low failed: %v", err)
	}
	if high != 93000 {
		t.Fatalf("high = %f, want 93000 from the candle high", high)
	}
	if low != 89000 {
		t.Fatalf("low = %f, want 89000 from the candle low", low)
	}
}

func TestMemoryStore_HighLowNoData(t *testing.T) {
	store := NewMemoryStore()
	_, _, err := store.HighLow(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if !errs.IsNoData(err) {
		t.Fatalf("err = %v, want no-data", err)
	}
}
