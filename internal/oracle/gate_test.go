package oracle

import (
	"testing"
	"time"

	"btcoracle/internal/config"
	"btcoracle/internal/market/aggregate"
)

func gateConfig() config.OracleConfig {
	return config.OracleConfig{
		MinPriceChangePercent: 0.5,
		MaxTimeBetweenUpdates: 6 * time.Hour,
		MinTimeBetweenUpdates: 30 * time.Minute,
		MinSourceCount:        3,
	}
}

func record(price float64, sources int) *aggregate.Record {
	return &aggregate.Record{Price: price, SourceCount: sources, Timestamp: time.Now().UTC()}
}

func lastSubmission(price float64, age time.Duration, now time.Time) *SubmissionRecord {
	return &SubmissionRecord{
		PriceSats:   ToSatoshis(price),
		SubmittedAt: now.Add(-age),
		Status:      StatusSubmitted,
	}
}

func TestEvaluate_InitialSubmission(t *testing.T) {
	now := time.Now().UTC()
	d := Evaluate(record(95000, 1), nil, gateConfig(), now)
	if !d.Update {
		t.Fatal("expected update with no prior submission")
	}
	if d.Reason != ReasonInitialSubmission {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonInitialSubmission)
	}
}

func TestEvaluate_InsufficientSourcesOverridesEverything(t *testing.T) {
	now := time.Now().UTC()
	// Price moved 10% and the max interval has elapsed, but only two
	// sources contributed.
	d := Evaluate(record(104500, 2), lastSubmission(95000, 7*time.Hour, now), gateConfig(), now)
	if d.Update {
		t.Fatal("expected hold with too few sources")
	}
	if d.Reason != ReasonInsufficientSources {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonInsufficientSources)
	}
}

func TestEvaluate_MaxTimeForcesUpdate(t *testing.T) {
	now := time.Now().UTC()
	// Price is unchanged but the record is stale.
	d := Evaluate(record(95000, 4), lastSubmission(95000, 7*time.Hour, now), gateConfig(), now)
	if !d.Update {
		t.Fatal("expected forced update past the max interval")
	}
	if d.Reason != ReasonMaxTimeExceeded {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonMaxTimeExceeded)
	}
}

func TestEvaluate_ThrottleBeatsLargeMove(t *testing.T) {
	now := time.Now().UTC()
	// A 5% move only 10 minutes after the last submission is held.
	d := Evaluate(record(99750, 4), lastSubmission(95000, 10*time.Minute, now), gateConfig(), now)
	if d.Update {
		t.Fatal("expected throttle to hold a large move")
	}
	if d.Reason != ReasonThrottled {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonThrottled)
	}
}

func TestEvaluate_PriceChangeThreshold(t *testing.T) {
	now := time.Now().UTC()
	cfg := gateConfig()
	last := lastSubmission(95000, time.Hour, now)

	// Exactly at the threshold submits.
	d := Evaluate(record(95475, 4), last, cfg, now)
	if !d.Update {
		t.Fatal("expected update at exactly the threshold")
	}
	if d.Reason != ReasonPriceChange {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonPriceChange)
	}
	if d.PercentChange < 0.499 || d.PercentChange > 0.501 {
		t.Fatalf("percentChange = %f, want ~0.5", d.PercentChange)
	}

	// Just under the threshold holds.
	d = Evaluate(record(95100, 4), last, cfg, now)
	if d.Update {
		t.Fatal("expected hold below the threshold")
	}
	if d.Reason != ReasonNoUpdateNeeded {
		t.Fatalf("reason = %q, want %q", d.Reason, ReasonNoUpdateNeeded)
	}

	// Downward moves count the same as upward ones.
	d = Evaluate(record(94500, 4), last, cfg, now)
	if !d.Update {
		t.Fatal("expected update on a downward move past the threshold")
	}
}

func TestSatoshiConversion(t *testing.T) {
	if got := ToSatoshis(95000.123456789); got != 9500012345679 {
		t.Fatalf("ToSatoshis = %d, want 9500012345679", got)
	}
	if got := FromSatoshis(9500000000000); got != 95000 {
		t.Fatalf("FromSatoshis = %f, want 95000", got)
	}
}
