package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"btcoracle/internal/errs"
	"btcoracle/internal/market/feed"
	"btcoracle/internal/monitor"
)

// QuoteFetcher supplies one cycle's validated quotes.
type QuoteFetcher interface {
	FetchAll(ctx context.Context) []feed.Quote
}

// VolatilitySource supplies the latest stored volatility for a timeframe.
type VolatilitySource interface {
	CurrentVolatility(ctx context.Context, timeframeDays int) (float64, error)
}

// RangeSource supplies a high/low scan over a time window. The primary
// implementation is the historical OHLC store; the feed record store acts
// as fallback when no OHLC data exists yet.
type RangeSource interface {
	HighLow(ctx context.Context, from, to time.Time) (high, low float64, err error)
}

// ReadCache holds the latest values for the non-blocking read surface.
type ReadCache interface {
	SetLatestPrice(ctx context.Context, data interface{}, expiration time.Duration) error
	Set24hRange(ctx context.Context, data interface{}, expiration time.Duration) error
}

// Service runs the fast aggregation cycle: fetch, filter, combine,
// persist, cache.
type Service struct {
	fetcher    QuoteFetcher
	store      Store
	volatility VolatilitySource
	ranges     []RangeSource
	cache      ReadCache
	onRecord   func(*Record)
	log        *logrus.Logger
	metrics    *monitor.Metrics
}

// NewService creates the aggregation service. ranges are tried in order
// until one has data. onRecord, when non-nil, is invoked with every new
// record (used for websocket broadcast).
func NewService(fetcher QuoteFetcher, store Store, volatility VolatilitySource, ranges []RangeSource, cache ReadCache, log *logrus.Logger, metrics *monitor.Metrics) *Service {
	return &Service{
		fetcher:    fetcher,
		store:      store,
		volatility: volatility,
		ranges:     ranges,
		cache:      cache,
		log:        log,
		metrics:    metrics,
	}
}

// OnRecord registers a callback invoked with each newly produced record.
func (s *Service) OnRecord(fn func(*Record)) {
	s.onRecord = fn
}

// RunCycle executes one aggregation cycle. A cycle with zero usable
// quotes logs a warning and produces no record; that is not an error.
func (s *Service) RunCycle(ctx context.Context) error {
	quotes := s.fetcher.FetchAll(ctx)
	if len(quotes) == 0 {
		s.log.Warn("no price sources succeeded this cycle, skipping aggregation")
		if s.metrics != nil {
			s.metrics.AggregationCycles.WithLabelValues("no_sources").Inc()
		}
		return nil
	}

	filtered, removed := FilterOutliers(quotes, s.log)
	if s.metrics != nil && removed > 0 {
		s.metrics.OutliersRemoved.Add(float64(removed))
	}

	price, ok := WeightedPrice(filtered)
	if !ok {
		s.log.Warn("quote weights sum to zero, skipping aggregation")
		if s.metrics != nil {
			s.metrics.AggregationCycles.WithLabelValues("zero_weight").Inc()
		}
		return nil
	}

	rec := &Record{
		Price:       price,
		Timestamp:   time.Now().UTC(),
		SourceCount: len(filtered),
	}

	// Latest 30-day volatility rides along on every record; consumers
	// expect a number, so a missing value defaults to 0.
	if s.volatility != nil {
		vol, err := s.volatility.CurrentVolatility(ctx, 30)
		if err != nil && !errs.IsNoData(err) {
			s.log.WithField("error", err.Error()).Warn("failed to read current volatility")
		}
		rec.Volatility = vol
	}

	rec.Range24h = s.range24h(ctx, rec.Timestamp)

	if err := s.store.Insert(ctx, rec); err != nil {
		if s.metrics != nil {
			s.metrics.AggregationCycles.WithLabelValues("store_error").Inc()
		}
		return fmt.Errorf("failed to store aggregated price: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetLatestPrice(ctx, rec, 5*time.Minute); err != nil {
			s.log.WithField("error", err.Error()).Warn("failed to cache latest price")
		}
		if rec.Range24h != nil {
			if err := s.cache.Set24hRange(ctx, rec.Range24h, 5*time.Minute); err != nil {
				s.log.WithField("error", err.Error()).Warn("failed to cache 24h range")
			}
		}
	}

	if s.metrics != nil {
		s.metrics.AggregatedPrice.Set(rec.Price)
		s.metrics.SourcesUsed.Set(float64(rec.SourceCount))
		s.metrics.AggregationCycles.WithLabelValues("ok").Inc()
	}

	s.log.WithFields(logrus.Fields{
		"price":        rec.Price,
		"source_count": rec.SourceCount,
		"outliers":     removed,
	}).Info("aggregated price produced")

	if s.onRecord != nil {
		s.onRecord(rec)
	}
	return nil
}

// range24h scans the configured range sources in order; absence of data
// yields nil, never a zero-valued range.
func (s *Service) range24h(ctx context.Context, at time.Time) *Range {
	from := at.Add(-24 * time.Hour)
	for _, src := range s.ranges {
		high, low, err := src.HighLow(ctx, from, at)
		if err != nil {
			if !errs.IsNoData(err) {
				s.log.WithField("error", err.Error()).Warn("24h range scan failed")
			}
			continue
		}
		return &Range{High: high, Low: low, Range: high - low}
	}
	return nil
}

// Latest returns the most recent aggregated price record, or ErrNoData.
// It never triggers a fetch.
func (s *Service) Latest(ctx context.Context) (*Record, error) {
	return s.store.Latest(ctx)
}
