package volatility

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"btcoracle/internal/errs"
	"btcoracle/internal/market/history"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestAnnualizedVolatility_ConstantSeries(t *testing.T) {
	vol, n, err := AnnualizedVolatility([]float64{100, 100, 100, 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("validReturns = %d, want 3", n)
	}
	if vol != 0 {
		t.Fatalf("volatility = %f, want 0 for a constant series", vol)
	}
}

func TestAnnualizedVolatility_SingleReturn(t *testing.T) {
	// One return has zero deviation from its own mean under the
	// population estimator.
	vol, n, err := AnnualizedVolatility([]float64{100, 110})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("validReturns = %d, want 1", n)
	}
	if vol != 0 {
		t.Fatalf("volatility = %f, want 0", vol)
	}
}

func TestAnnualizedVolatility_KnownSeries(t *testing.T) {
	closes := []float64{100, 110, 100, 110, 100}

	vol, n, err := AnnualizedVolatility(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("validReturns = %d, want 4", n)
	}

	// Returns alternate between +ln(1.1) and -ln(1.1) with mean
	// -ln(1.1)*0 ... compute the expected value directly.
	r := math.Log(1.1)
	returns := []float64{r, -r, r, -r}
	var sum float64
	for _, v := range returns {
		sum += v
	}
	mean := sum / 4
	var ss float64
	for _, v := range returns {
		d := v - mean
		ss += d * d
	}
	want := math.Sqrt(ss/4) * math.Sqrt(365)

	if math.Abs(vol-want) > 1e-9 {
		t.Fatalf("volatility = %f, want %f", vol, want)
	}
}

func TestAnnualizedVolatility_SkipsNonPositivePairs(t *testing.T) {
	vol, n, err := AnnualizedVolatility([]float64{100, 0, 100, 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Pairs (100,0) and (0,100) are skipped; only (100,100) remains.
	if n != 1 {
		t.Fatalf("validReturns = %d, want 1", n)
	}
	if vol != 0 {
		t.Fatalf("volatility = %f, want 0", vol)
	}
}

func TestAnnualizedVolatility_InsufficientData(t *testing.T) {
	if _, _, err := AnnualizedVolatility([]float64{100}); err == nil {
		t.Fatal("expected error for fewer than 2 points")
	}
	if _, _, err := AnnualizedVolatility([]float64{0, -5}); err == nil {
		t.Fatal("expected error when no valid returns exist")
	}
}

func seedDailySeries(t *testing.T, store *history.MemoryStore, days int, prices func(i int) float64) {
	t.Helper()
	now := time.Now().UTC()
	points := make([]history.Point, 0, days)
	for i := 0; i < days; i++ {
		ts := now.AddDate(0, 0, -(days - i))
		points = append(points, history.Point{
			Timestamp: ts,
			Price:     prices(i),
			Source:    "test",
			IsDaily:   true,
			DayIndex:  history.DayIndexOf(ts),
		})
	}
	if _, err := store.Upsert(context.Background(), points); err != nil {
		t.Fatalf("seed upsert failed: %v", err)
	}
}

func TestEngine_ComputePersistsRecord(t *testing.T) {
	historyStore := history.NewMemoryStore()
	seedDailySeries(t, historyStore, 30, func(i int) float64 {
		return 90000 + float64(i%5)*200
	})

	store := NewMemoryStore()
	engine := NewEngine(historyStore, store, testLogger(), nil)

	rec, err := engine.Compute(context.Background(), 30)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if rec.TimeframeDays != 30 {
		t.Fatalf("timeframe = %d, want 30", rec.TimeframeDays)
	}
	if rec.Volatility <= 0 {
		t.Fatalf("volatility = %f, want positive for a varying series", rec.Volatility)
	}
	if rec.CalculationMethod != "standard" {
		t.Fatalf("method = %q, want standard", rec.CalculationMethod)
	}

	stored, err := store.LatestByTimeframe(context.Background(), 30)
	if err != nil {
		t.Fatalf("latest lookup failed: %v", err)
	}
	if stored.Volatility != rec.Volatility {
		t.Fatal("stored record does not match computed record")
	}

	got, err := engine.CurrentVolatility(context.Background(), 30)
	if err != nil {
		t.Fatalf("current volatility failed: %v", err)
	}
	if got != rec.Volatility {
		t.Fatal("current volatility does not match computed record")
	}
}

func TestEngine_ComputeSparseWindow(t *testing.T) {
	engine := NewEngine(history.NewMemoryStore(), NewMemoryStore(), testLogger(), nil)

	if _, err := engine.Compute(context.Background(), 30); err == nil {
		t.Fatal("expected error for an empty series")
	}
}

func TestEngine_ForDurationNearestTimeframe(t *testing.T) {
	historyStore := history.NewMemoryStore()
	seedDailySeries(t, historyStore, 400, func(i int) float64 {
		return 90000 + float64(i%7)*150
	})

	store := NewMemoryStore()
	engine := NewEngine(historyStore, store, testLogger(), nil)
	engine.ComputeAll(context.Background())

	// 45 days is equidistant from 30 and 60; the smaller timeframe wins.
	want30, err := engine.CurrentVolatility(context.Background(), 30)
	if err != nil {
		t.Fatalf("30d volatility missing: %v", err)
	}
	got, err := engine.ForDuration(context.Background(), 45*24*time.Hour)
	if err != nil {
		t.Fatalf("for-duration lookup failed: %v", err)
	}
	if got != want30 {
		t.Fatalf("45d duration resolved to %f, want the 30d value %f", got, want30)
	}

	// A very long duration resolves to the largest timeframe.
	want360, err := engine.CurrentVolatility(context.Background(), 360)
	if err != nil {
		t.Fatalf("360d volatility missing: %v", err)
	}
	got, err = engine.ForDuration(context.Background(), 2000*24*time.Hour)
	if err != nil {
		t.Fatalf("for-duration lookup failed: %v", err)
	}
	if got != want360 {
		t.Fatalf("2000d duration resolved to %f, want the 360d value %f", got, want360)
	}
}

func TestEngine_ForDurationFallsBackAcrossTimeframes(t *testing.T) {
	store := NewMemoryStore()
	// Only a 90d record exists.
	if err := store.Insert(context.Background(), &Record{
		TimeframeDays: 90,
		Volatility:    0.55,
		Timestamp:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	engine := NewEngine(history.NewMemoryStore(), store, testLogger(), nil)

	got, err := engine.ForDuration(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("for-duration lookup failed: %v", err)
	}
	if got != 0.55 {
		t.Fatalf("volatility = %f, want the 90d fallback 0.55", got)
	}
}

func TestEngine_ForDurationNoData(t *testing.T) {
	engine := NewEngine(history.NewMemoryStore(), NewMemoryStore(), testLogger(), nil)
	if _, err := engine.ForDuration(context.Background(), 30*24*time.Hour); !errs.IsNoData(err) {
		t.Fatalf("err = %v, want no-data", err)
	}
}
