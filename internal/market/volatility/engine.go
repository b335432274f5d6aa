package volatility

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"btcoracle/internal/errs"
	"btcoracle/internal/market/history"
	"btcoracle/internal/monitor"
)

// StandardTimeframes are the lookback windows, in days, recomputed every
// ingestion cycle.
var StandardTimeframes = []int{30, 60, 90, 180, 360}

// tradingDaysPerYear scales daily volatility to annualized. Crypto trades
// every day of the year.
const periodsPerYear = 365

// calculationMethodStandard marks records produced by the log-return
// population-stddev method.
const calculationMethodStandard = "standard"

// Record is one stored volatility computation. Append-only; the latest
// record for a timeframe is its current value.
type Record struct {
	Period            time.Duration `json:"period"`
	Volatility        float64       `json:"volatility"`
	Timestamp         time.Time     `json:"timestamp"` // computedAt
	TimeframeDays     int           `json:"timeframe"`
	CalculationMethod string        `json:"calculationMethod"`
	DataPoints        int           `json:"dataPoints"`
	StartTimestamp    time.Time     `json:"startTimestamp"`
	EndTimestamp      time.Time     `json:"endTimestamp"`
}

// HistorySource supplies the daily close series the engine reads.
type HistorySource interface {
	DailyCloses(ctx context.Context, from, to time.Time) ([]history.Point, error)
}

// Engine computes annualized log-return volatility over the historical
// series.
type Engine struct {
	history HistorySource
	store   Store
	log     *logrus.Logger
	metrics *monitor.Metrics
}

// NewEngine creates a volatility engine.
func NewEngine(src HistorySource, store Store, log *logrus.Logger, metrics *monitor.Metrics) *Engine {
	return &Engine{history: src, store: store, log: log, metrics: metrics}
}

// AnnualizedVolatility computes the population standard deviation of
// consecutive log returns, annualized by sqrt(365). Pairs containing a
// non-positive price are skipped. Returns the number of valid returns
// used; fewer than one valid return is reported as insufficient data.
func AnnualizedVolatility(closes []float64) (vol float64, validReturns int, err error) {
	if len(closes) < 2 {
		return 0, 0, errs.New(errs.CodeInsufficientData, "need at least 2 price points")
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	if len(returns) == 0 {
		return 0, 0, errs.New(errs.CodeInsufficientData, "no valid log returns")
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSquares float64
	for _, r := range returns {
		diff := r - mean
		sumSquares += diff * diff
	}
	// Population standard deviation (divide by N). A single return
	// therefore yields 0 volatility.
	stdDev := math.Sqrt(sumSquares / float64(len(returns)))

	return stdDev * math.Sqrt(periodsPerYear), len(returns), nil
}

// Compute calculates and persists volatility for one timeframe. It
// returns ErrNoData-classified errors when the series is too sparse; no
// record is stored in that case.
func (e *Engine) Compute(ctx context.Context, timeframeDays int) (*Record, error) {
	now := time.Now().UTC()
	from := now.Add(-time.Duration(timeframeDays) * 24 * time.Hour)

	points, err := e.history.DailyCloses(ctx, from, now)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "failed to load daily closes", err)
	}
	if len(points) < 2 {
		return nil, errs.New(errs.CodeInsufficientData, "fewer than 2 daily points in window")
	}

	closes := make([]float64, len(points))
	for i, p := range points {
		closes[i] = p.Price
	}

	vol, _, err := AnnualizedVolatility(closes)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Period:            time.Duration(timeframeDays) * 24 * time.Hour,
		Volatility:        vol,
		Timestamp:         now,
		TimeframeDays:     timeframeDays,
		CalculationMethod: calculationMethodStandard,
		DataPoints:        len(points),
		// Actual span of data used, which may be narrower than the
		// nominal window when the series is sparse.
		StartTimestamp: points[0].Timestamp,
		EndTimestamp:   points[len(points)-1].Timestamp,
	}

	if err := e.store.Insert(ctx, rec); err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "failed to store volatility record", err)
	}
	if e.metrics != nil {
		e.metrics.Volatility.WithLabelValues(timeframeLabel(timeframeDays)).Set(vol)
	}
	return rec, nil
}

// ComputeAll recomputes every standard timeframe. Failures are isolated
// per timeframe: one failing window never prevents the others.
func (e *Engine) ComputeAll(ctx context.Context) {
	for _, timeframe := range StandardTimeframes {
		if _, err := e.Compute(ctx, timeframe); err != nil {
			e.log.WithFields(logrus.Fields{
				"timeframe_days": timeframe,
				"error":          err.Error(),
			}).Warn("volatility computation skipped")
		}
	}
}

// CurrentVolatility returns the latest stored volatility for a
// timeframe, or ErrNoData. It never computes synchronously.
func (e *Engine) CurrentVolatility(ctx context.Context, timeframeDays int) (float64, error) {
	rec, err := e.store.LatestByTimeframe(ctx, timeframeDays)
	if err != nil {
		return 0, err
	}
	return rec.Volatility, nil
}

// ForDuration answers "nearest volatility for a given option duration":
// timeframes are tried in increasing order of absolute day distance from
// the target (ties broken by the smaller timeframe) until one has a
// stored value. No stored value anywhere is a hard no-data signal.
func (e *Engine) ForDuration(ctx context.Context, duration time.Duration) (float64, error) {
	targetDays := duration.Hours() / 24

	candidates := make([]int, len(StandardTimeframes))
	copy(candidates, StandardTimeframes)
	sort.SliceStable(candidates, func(i, j int) bool {
		di := math.Abs(float64(candidates[i]) - targetDays)
		dj := math.Abs(float64(candidates[j]) - targetDays)
		if di == dj {
			return candidates[i] < candidates[j]
		}
		return di < dj
	})

	for _, timeframe := range candidates {
		vol, err := e.CurrentVolatility(ctx, timeframe)
		if err == nil {
			return vol, nil
		}
		if !errs.IsNoData(err) {
			return 0, err
		}
	}
	return 0, errs.ErrNoData
}

func timeframeLabel(days int) string {
	return strconv.Itoa(days)
}
