package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultCoinGeckoEndpoint = "https://api.coingecko.com/api/v3/coins/bitcoin/ohlc"
	defaultCoinCapEndpoint   = "https://api.coincap.io/v2/assets/bitcoin/history"

	// SourceCoinGecko labels OHLCV points from the primary provider.
	SourceCoinGecko = "coingecko"
	// SourceCoinCapDaily labels close-only fallback points so downstream
	// code can tell provenance apart.
	SourceCoinCapDaily = "coincap_daily"
)

// CoinGeckoProvider is the primary daily-candle provider (OHLC).
type CoinGeckoProvider struct {
	endpoint string
	client   *http.Client
}

// NewCoinGeckoProvider creates the primary OHLC provider. An empty
// endpoint selects the public API.
func NewCoinGeckoProvider(endpoint string, timeout time.Duration) *CoinGeckoProvider {
	if endpoint == "" {
		endpoint = defaultCoinGeckoEndpoint
	}
	return &CoinGeckoProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (p *CoinGeckoProvider) Name() string { return SourceCoinGecko }

// DailyCandles fetches daily OHLC candles. The response shape is
// [[timestampMs, open, high, low, close], ...].
func (p *CoinGeckoProvider) DailyCandles(ctx context.Context, days int) ([]Point, error) {
	url := fmt.Sprintf("%s?vs_currency=usd&days=%d", p.endpoint, days)
	body, err := fetchBody(ctx, p.client, url)
	if err != nil {
		return nil, fmt.Errorf("coingecko ohlc request failed: %w", err)
	}

	var raw [][]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coingecko ohlc response: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("coingecko ohlc response contained no candles")
	}

	points := make([]Point, 0, len(raw))
	for _, candle := range raw {
		if len(candle) < 5 {
			return nil, fmt.Errorf("coingecko candle has %d fields, want 5", len(candle))
		}
		ts := time.UnixMilli(int64(candle[0])).UTC()
		open, high, low, close := candle[1], candle[2], candle[3], candle[4]
		points = append(points, Point{
			Timestamp: ts,
			Price:     close,
			Source:    SourceCoinGecko,
			IsDaily:   true,
			DayIndex:  DayIndexOf(ts),
			Open:      &open,
			High:      &high,
			Low:       &low,
		})
	}
	return points, nil
}

// CoinCapProvider is the close-only fallback provider.
type CoinCapProvider struct {
	endpoint string
	client   *http.Client
}

// NewCoinCapProvider creates the fallback close-price provider.
func NewCoinCapProvider(endpoint string, timeout time.Duration) *CoinCapProvider {
	if endpoint == "" {
		endpoint = defaultCoinCapEndpoint
	}
	return &CoinCapProvider{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (p *CoinCapProvider) Name() string { return SourceCoinCapDaily }

// DailyCandles fetches daily close prices. The response shape is
// {"data":[{"priceUsd":"95000.1","time":1700000000000}, ...]}.
func (p *CoinCapProvider) DailyCandles(ctx context.Context, days int) ([]Point, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)
	url := fmt.Sprintf("%s?interval=d1&start=%d&end=%d", p.endpoint, start.UnixMilli(), end.UnixMilli())
	body, err := fetchBody(ctx, p.client, url)
	if err != nil {
		return nil, fmt.Errorf("coincap history request failed: %w", err)
	}

	var raw struct {
		Data []struct {
			PriceUSD string `json:"priceUsd"`
			Time     int64  `json:"time"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal coincap response: %w", err)
	}
	if len(raw.Data) == 0 {
		return nil, fmt.Errorf("coincap response contained no data points")
	}

	points := make([]Point, 0, len(raw.Data))
	for _, d := range raw.Data {
		price, err := strconv.ParseFloat(d.PriceUSD, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse coincap price %q: %w", d.PriceUSD, err)
		}
		ts := time.UnixMilli(d.Time).UTC()
		points = append(points, Point{
			Timestamp: ts,
			Price:     price,
			Source:    SourceCoinCapDaily,
			IsDaily:   true,
			DayIndex:  DayIndexOf(ts),
		})
	}
	return points, nil
}

func fetchBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(snippet))
	}
	return io.ReadAll(resp.Body)
}
