package oracle

import (
	"math"
	"time"

	"btcoracle/internal/config"
	"btcoracle/internal/market/aggregate"
)

// Decision reasons, recorded verbatim in the submission ledger.
const (
	ReasonInitialSubmission   = "initial submission"
	ReasonInsufficientSources = "insufficient sources"
	ReasonMaxTimeExceeded     = "max time exceeded"
	ReasonThrottled           = "throttled"
	ReasonNoUpdateNeeded      = "no update needed"
	ReasonPriceChange         = "price change threshold met"
)

// Decision is the outcome of one submission gate evaluation.
type Decision struct {
	Update        bool
	Reason        string
	PercentChange float64
}

// Evaluate applies the submission rules in strict precedence order;
// the first matching rule wins:
//
//  1. no prior submission        -> update (initial submission)
//  2. too few sources            -> hold (confidence gate, overrides all)
//  3. max interval elapsed       -> update (forced refresh)
//  4. min interval not elapsed   -> hold (throttle, even on large moves)
//  5. price delta vs threshold   -> update iff |change| >= threshold
func Evaluate(latest *aggregate.Record, last *SubmissionRecord, cfg config.OracleConfig, now time.Time) Decision {
	if last == nil {
		return Decision{Update: true, Reason: ReasonInitialSubmission}
	}

	if latest.SourceCount < cfg.MinSourceCount {
		return Decision{Update: false, Reason: ReasonInsufficientSources}
	}

	elapsed := now.Sub(last.SubmittedAt)
	if elapsed >= cfg.MaxTimeBetweenUpdates {
		return Decision{Update: true, Reason: ReasonMaxTimeExceeded}
	}
	if elapsed < cfg.MinTimeBetweenUpdates {
		return Decision{Update: false, Reason: ReasonThrottled}
	}

	lastPrice := FromSatoshis(last.PriceSats)
	if lastPrice <= 0 {
		return Decision{Update: true, Reason: ReasonInitialSubmission}
	}
	percentChange := math.Abs(latest.Price-lastPrice) / lastPrice * 100
	if percentChange >= cfg.MinPriceChangePercent {
		return Decision{Update: true, Reason: ReasonPriceChange, PercentChange: percentChange}
	}
	return Decision{Update: false, Reason: ReasonNoUpdateNeeded, PercentChange: percentChange}
}

// satoshisPerUnit is the integer scaling applied before on-chain
// submission.
const satoshisPerUnit = 1e8

// ToSatoshis converts a price to the integer on-chain unit.
func ToSatoshis(price float64) int64 {
	return int64(math.Round(price * satoshisPerUnit))
}

// FromSatoshis converts an on-chain integer price back to a float.
func FromSatoshis(sats int64) float64 {
	return float64(sats) / satoshisPerUnit
}
