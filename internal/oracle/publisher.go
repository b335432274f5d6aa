package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"btcoracle/internal/config"
)

// Publisher pushes a price update to the on-chain oracle contract and
// returns the transaction identifier.
type Publisher interface {
	Publish(ctx context.Context, priceSats int64) (txid string, err error)
}

// HTTPPublisher submits price updates through the contract bridge
// service, which signs and broadcasts the actual transaction.
type HTTPPublisher struct {
	endpoint string
	contract string
	network  string
	client   *http.Client
}

// NewHTTPPublisher creates a bridge-backed publisher.
func NewHTTPPublisher(cfg config.OracleConfig) *HTTPPublisher {
	return &HTTPPublisher{
		endpoint: cfg.PublisherEndpoint,
		contract: cfg.ContractAddress,
		network:  cfg.Network,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Publish implements Publisher.
func (p *HTTPPublisher) Publish(ctx context.Context, priceSats int64) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"contract":   p.contract,
		"network":    p.network,
		"price_sats": priceSats,
		"timestamp":  time.Now().UTC().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal publish payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("publisher returned status %d: %s", resp.StatusCode, string(snippet))
	}

	var result struct {
		TxID string `json:"txid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode publish response: %w", err)
	}
	if result.TxID == "" {
		return "", fmt.Errorf("publisher response missing txid")
	}
	return result.TxID, nil
}

// DryRunPublisher fabricates transaction identifiers without touching
// the chain. Selected by config for test networks and local runs.
type DryRunPublisher struct{}

// Publish implements Publisher.
func (p *DryRunPublisher) Publish(_ context.Context, _ int64) (string, error) {
	return "dryrun-" + uuid.NewString(), nil
}

// NewPublisher selects the publisher implementation from configuration.
func NewPublisher(cfg config.OracleConfig) Publisher {
	if cfg.DryRun || cfg.PublisherEndpoint == "" {
		return &DryRunPublisher{}
	}
	return NewHTTPPublisher(cfg)
}
