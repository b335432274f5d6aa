package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"btcoracle/internal/config"
	"btcoracle/internal/errs"
	"btcoracle/internal/market/aggregate"
	"btcoracle/internal/monitor"
)

// PriceSource supplies the latest aggregated price record.
type PriceSource interface {
	Latest(ctx context.Context) (*aggregate.Record, error)
}

// Service evaluates the submission gate against the latest aggregated
// price and publishes when the rules allow. The evaluate-then-write
// sequence runs under a single-writer mutex so overlapping invocations
// cannot race on the latest ledger entry.
type Service struct {
	mu        sync.Mutex
	prices    PriceSource
	ledger    Ledger
	publisher Publisher
	cfg       config.OracleConfig
	log       *logrus.Logger
	metrics   *monitor.Metrics
}

// NewService creates the submission service.
func NewService(prices PriceSource, ledger Ledger, publisher Publisher, cfg config.OracleConfig, log *logrus.Logger, metrics *monitor.Metrics) *Service {
	return &Service{
		prices:    prices,
		ledger:    ledger,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		metrics:   metrics,
	}
}

// CheckAndSubmit runs one gate evaluation. Missing inputs (no aggregated
// price yet) end the cycle quietly; unexpected failures are contained so
// one bad cycle never cancels future scheduled runs.
func (s *Service) CheckAndSubmit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, err := s.prices.Latest(ctx)
	if err != nil {
		if errs.IsNoData(err) {
			s.log.Warn("no aggregated price available, skipping submission check")
			return nil
		}
		return errs.Wrap(errs.CodeSubmissionDecision, "failed to read latest aggregated price", err)
	}

	last, err := s.ledger.Latest(ctx)
	if err != nil {
		if !errs.IsNoData(err) {
			return errs.Wrap(errs.CodeSubmissionDecision, "failed to read last submission", err)
		}
		last = nil
	}

	decision := Evaluate(latest, last, s.cfg, time.Now().UTC())
	if !decision.Update {
		s.log.WithFields(logrus.Fields{
			"reason":         decision.Reason,
			"percent_change": decision.PercentChange,
		}).Info("submission gate held price update")
		if s.metrics != nil {
			s.metrics.SubmissionSkipped.WithLabelValues(decision.Reason).Inc()
		}
		return nil
	}

	priceSats := ToSatoshis(latest.Price)
	txid, err := s.publisher.Publish(ctx, priceSats)
	if err != nil {
		// Ledger truthfulness: a failed publish is never recorded as
		// submitted.
		rec := &SubmissionRecord{
			ID:            uuid.NewString(),
			PriceSats:     priceSats,
			SubmittedAt:   time.Now().UTC(),
			Status:        StatusFailed,
			Reason:        decision.Reason,
			PercentChange: decision.PercentChange,
			SourceCount:   latest.SourceCount,
		}
		if insertErr := s.ledger.Insert(ctx, rec); insertErr != nil {
			s.log.WithField("error", insertErr.Error()).Error("failed to record failed submission")
		}
		if s.metrics != nil {
			s.metrics.Submissions.WithLabelValues(StatusFailed).Inc()
		}
		return errs.Wrap(errs.CodeChainPublish, "failed to publish price update", err)
	}

	rec := &SubmissionRecord{
		ID:            uuid.NewString(),
		TxID:          txid,
		PriceSats:     priceSats,
		SubmittedAt:   time.Now().UTC(),
		Status:        StatusSubmitted,
		Reason:        decision.Reason,
		PercentChange: decision.PercentChange,
		SourceCount:   latest.SourceCount,
	}
	if err := s.ledger.Insert(ctx, rec); err != nil {
		return fmt.Errorf("price published (txid %s) but ledger write failed: %w", txid, err)
	}

	if s.metrics != nil {
		s.metrics.Submissions.WithLabelValues(StatusSubmitted).Inc()
	}
	s.log.WithFields(logrus.Fields{
		"txid":           txid,
		"price_sats":     priceSats,
		"reason":         decision.Reason,
		"percent_change": decision.PercentChange,
		"source_count":   latest.SourceCount,
	}).Info("price update submitted on-chain")
	return nil
}
