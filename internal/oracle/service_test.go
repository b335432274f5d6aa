package oracle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"btcoracle/internal/config"
	"btcoracle/internal/errs"
	"btcoracle/internal/market/aggregate"
)

type stubPrices struct {
	rec *aggregate.Record
	err error
}

func (s *stubPrices) Latest(context.Context) (*aggregate.Record, error) {
	return s.rec, s.err
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, int64) (string, error) {
	return "", errors.New("bridge unreachable")
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func publishConfig(endpoint string) config.OracleConfig {
	cfg := gateConfig()
	cfg.Network = "testnet"
	cfg.ContractAddress = "oracle-contract"
	cfg.PublisherEndpoint = endpoint
	return cfg
}

func TestCheckAndSubmit_InitialSubmission(t *testing.T) {
	prices := &stubPrices{rec: &aggregate.Record{Price: 95000, SourceCount: 4, Timestamp: time.Now().UTC()}}
	ledger := NewMemoryLedger()

	svc := NewService(prices, ledger, &DryRunPublisher{}, gateConfig(), testLogger(), nil)
	require.NoError(t, svc.CheckAndSubmit(context.Background()))

	rec, err := ledger.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, rec.Status)
	assert.Equal(t, ReasonInitialSubmission, rec.Reason)
	assert.Equal(t, ToSatoshis(95000), rec.PriceSats)
	assert.NotEmpty(t, rec.TxID)
	assert.Equal(t, 4, rec.SourceCount)
}

func TestCheckAndSubmit_NoAggregatedPriceYet(t *testing.T) {
	prices := &stubPrices{err: errs.ErrNoData}
	ledger := NewMemoryLedger()

	svc := NewService(prices, ledger, &DryRunPublisher{}, gateConfig(), testLogger(), nil)
	require.NoError(t, svc.CheckAndSubmit(context.Background()))

	_, err := ledger.Latest(context.Background())
	assert.True(t, errs.IsNoData(err), "nothing should be recorded")
}

func TestCheckAndSubmit_HoldWritesNothing(t *testing.T) {
	prices := &stubPrices{rec: &aggregate.Record{Price: 95001, SourceCount: 4, Timestamp: time.Now().UTC()}}
	ledger := NewMemoryLedger()

	// Seed a fresh prior submission so the throttle holds.
	require.NoError(t, ledger.Insert(context.Background(), &SubmissionRecord{
		ID:          "seed",
		PriceSats:   ToSatoshis(95000),
		SubmittedAt: time.Now().UTC().Add(-10 * time.Minute),
		Status:      StatusSubmitted,
	}))

	svc := NewService(prices, ledger, &DryRunPublisher{}, gateConfig(), testLogger(), nil)
	require.NoError(t, svc.CheckAndSubmit(context.Background()))

	recent, err := ledger.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1, "a held decision must not append to the ledger")
}

func TestCheckAndSubmit_FailedPublishRecordedAsFailed(t *testing.T) {
	prices := &stubPrices{rec: &aggregate.Record{Price: 95000, SourceCount: 4, Timestamp: time.Now().UTC()}}
	ledger := NewMemoryLedger()

	svc := NewService(prices, ledger, failingPublisher{}, gateConfig(), testLogger(), nil)
	err := svc.CheckAndSubmit(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.CodeChainPublish, errs.CodeOf(err))

	rec, lerr := ledger.Latest(context.Background())
	require.NoError(t, lerr)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Empty(t, rec.TxID)
}

func TestHTTPPublisher_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"txid":"abc123"}`))
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(publishConfig(srv.URL))
	txid, err := pub.Publish(context.Background(), ToSatoshis(95000))
	require.NoError(t, err)
	assert.Equal(t, "abc123", txid)
}

func TestHTTPPublisher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(publishConfig(srv.URL))
	if _, err := pub.Publish(context.Background(), 1); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestNewPublisher_Selection(t *testing.T) {
	cfg := publishConfig("http://bridge.local")
	if _, ok := NewPublisher(cfg).(*HTTPPublisher); !ok {
		t.Fatal("expected HTTP publisher with an endpoint and dry-run off")
	}

	cfg.DryRun = true
	if _, ok := NewPublisher(cfg).(*DryRunPublisher); !ok {
		t.Fatal("expected dry-run publisher when dry_run is set")
	}

	cfg = publishConfig("")
	if _, ok := NewPublisher(cfg).(*DryRunPublisher); !ok {
		t.Fatal("expected dry-run publisher without an endpoint")
	}
}
