package history

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"btcoracle/internal/errs"
	"btcoracle/internal/monitor"
)

// Recalculator is notified after ingestion so volatility reads the
// just-written series.
type Recalculator interface {
	ComputeAll(ctx context.Context)
}

// Service ingests daily closes through an ordered provider chain:
// providers are tried in sequence until one succeeds.
type Service struct {
	providers    []Provider
	store        Store
	recalc       Recalculator
	backfillDays int
	log          *logrus.Logger
	metrics      *monitor.Metrics
}

// NewService creates the historical ingestion service.
func NewService(providers []Provider, store Store, recalc Recalculator, backfillDays int, log *logrus.Logger, metrics *monitor.Metrics) *Service {
	return &Service{
		providers:    providers,
		store:        store,
		recalc:       recalc,
		backfillDays: backfillDays,
		log:          log,
		metrics:      metrics,
	}
}

// RunBulk fetches the configured backfill window of daily candles. Used
// for initial backfill and periodic full refresh; upsert keeps replays
// idempotent.
func (s *Service) RunBulk(ctx context.Context) error {
	return s.ingest(ctx, s.backfillDays, "bulk")
}

// RunIncremental fetches only the latest completed day.
func (s *Service) RunIncremental(ctx context.Context) error {
	return s.ingest(ctx, 1, "incremental")
}

func (s *Service) ingest(ctx context.Context, days int, mode string) error {
	var lastErr error
	for _, provider := range s.providers {
		points, err := provider.DailyCandles(ctx, days)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"provider": provider.Name(),
				"mode":     mode,
				"error":    err.Error(),
			}).Warn("historical provider failed, trying next")
			lastErr = err
			continue
		}

		if mode == "incremental" {
			points = completedDaysOnly(points)
			if len(points) == 0 {
				s.log.WithField("provider", provider.Name()).Warn("no completed day available yet")
				continue
			}
		}

		n, err := s.store.Upsert(ctx, points)
		if err != nil {
			return errs.Wrap(errs.CodeStorage, "failed to upsert historical points", err)
		}

		if s.metrics != nil {
			s.metrics.HistoryPointsUpserted.WithLabelValues(provider.Name()).Add(float64(n))
		}
		s.log.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"mode":     mode,
			"points":   n,
		}).Info("historical points ingested")

		// Volatility reads the just-written series, so recomputation
		// strictly follows ingestion.
		if s.recalc != nil {
			s.recalc.ComputeAll(ctx)
		}
		return nil
	}

	err := errs.Wrap(errs.CodePrimarySourceExhausted, "all historical providers failed", lastErr)
	s.log.WithFields(logrus.Fields{
		"mode":  mode,
		"error": err.Error(),
	}).Error("historical ingestion cycle failed, will retry next schedule")
	if s.metrics != nil {
		s.metrics.HistoryCycleErrors.WithLabelValues(mode).Inc()
	}
	return err
}

// completedDaysOnly drops points from the still-open UTC day.
func completedDaysOnly(points []Point) []Point {
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Timestamp.Before(todayStart) {
			out = append(out, p)
		}
	}
	return out
}
