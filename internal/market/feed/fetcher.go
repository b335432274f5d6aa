package feed

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"btcoracle/internal/config"
	"btcoracle/internal/monitor"
)

// Fetcher queries every configured source once per cycle. Fetches run
// concurrently, each with its own bounded timeout; a failed or slow
// source is excluded from the cycle and never aborts it.
type Fetcher struct {
	sources  []Source
	client   *http.Client
	store    Store
	limiters map[string]*rate.Limiter
	timeout  time.Duration
	log      *logrus.Logger
	metrics  *monitor.Metrics
}

// NewFetcher creates a source fetcher.
func NewFetcher(sources []Source, cfg config.FeedConfig, store Store, log *logrus.Logger, metrics *monitor.Metrics) *Fetcher {
	limiters := make(map[string]*rate.Limiter, len(sources))
	for _, s := range sources {
		limiters[s.Name] = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestBurst)
	}
	return &Fetcher{
		sources:  sources,
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		store:    store,
		limiters: limiters,
		timeout:  cfg.FetchTimeout,
		log:      log,
		metrics:  metrics,
	}
}

// FetchAll fetches all sources concurrently and returns the quotes that
// passed validation. It returns only after every fetch attempt has
// resolved, so callers never aggregate a partial set mid-fetch.
func (f *Fetcher) FetchAll(ctx context.Context) []Quote {
	var wg sync.WaitGroup
	results := make(chan *Quote, len(f.sources))

	for _, source := range f.sources {
		wg.Add(1)
		go func(s Source) {
			defer wg.Done()

			quote, err := f.fetchOne(ctx, s)
			if err != nil {
				f.log.WithFields(logrus.Fields{
					"source": s.Name,
					"error":  err.Error(),
				}).Warn("excluding price source for this cycle")
				if f.metrics != nil {
					f.metrics.FetchErrors.WithLabelValues(s.Name).Inc()
				}
				results <- nil
				return
			}
			results <- quote
		}(source)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	quotes := make([]Quote, 0, len(f.sources))
	for q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

func (f *Fetcher) fetchOne(ctx context.Context, s Source) (*Quote, error) {
	if limiter := f.limiters[s.Name]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, s.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if f.metrics != nil {
		f.metrics.FetchLatency.WithLabelValues(s.Name).Observe(time.Since(start).Seconds())
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	price, err := s.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return nil, fmt.Errorf("parsed price %f is not a valid positive number", price)
	}

	quote := &Quote{
		Source:    s.Name,
		Price:     price,
		Weight:    s.Weight,
		FetchedAt: time.Now().UTC(),
	}

	// Audit write is best-effort: a storage hiccup must not drop a valid
	// quote from the cycle.
	if f.store != nil {
		rec := &Record{Source: quote.Source, Price: quote.Price, Weight: quote.Weight, Timestamp: quote.FetchedAt}
		if err := f.store.Insert(ctx, rec); err != nil {
			f.log.WithFields(logrus.Fields{
				"source": s.Name,
				"error":  err.Error(),
			}).Error("failed to persist price feed record")
		}
	}

	return quote, nil
}
