package feed

import (
	"testing"

	"btcoracle/internal/config"
)

func TestParsers(t *testing.T) {
	cases := []struct {
		name  string
		parse ParseFunc
		body  string
		want  float64
	}{
		{"coingecko", ParseCoinGecko, `{"bitcoin":{"usd":95000.12}}`, 95000.12},
		{"binance", ParseBinance, `{"symbol":"BTCUSDT","price":"95010.50"}`, 95010.50},
		{"coinbase", ParseCoinbase, `{"data":{"base":"BTC","currency":"USD","amount":"94990.00"}}`, 94990},
		{"kraken", ParseKraken, `{"error":[],"result":{"XXBTZUSD":{"c":["95005.0","0.5"]}}}`, 95005},
		{"bitstamp", ParseBitstamp, `{"last":"94980.00","high":"96000"}`, 94980},
		{"gemini", ParseGemini, `{"last":"95020.00","bid":"95015"}`, 95020},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.parse([]byte(tc.body))
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("price = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestParsers_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		parse ParseFunc
		body  string
	}{
		{"coingecko missing field", ParseCoinGecko, `{"ethereum":{"usd":5000}}`},
		{"binance bad number", ParseBinance, `{"price":"not-a-number"}`},
		{"kraken api error", ParseKraken, `{"error":["EGeneral:Internal error"],"result":{}}`},
		{"kraken empty result", ParseKraken, `{"error":[],"result":{}}`},
		{"invalid json", ParseBitstamp, `<html>rate limited</html>`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.parse([]byte(tc.body)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestSourcesFromConfig_EmptyEnablesBuiltins(t *testing.T) {
	sources, err := SourcesFromConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != len(builtins) {
		t.Fatalf("got %d sources, want %d builtins", len(sources), len(builtins))
	}
}

func TestSourcesFromConfig_Overrides(t *testing.T) {
	sources, err := SourcesFromConfig([]config.SourceConfig{
		{Name: "coingecko", Enabled: true, Weight: 0.4, Endpoint: "http://localhost/cg"},
		{Name: "binance", Enabled: false},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1 (disabled source excluded)", len(sources))
	}
	s := sources[0]
	if s.Name != "coingecko" || s.Weight != 0.4 || s.Endpoint != "http://localhost/cg" {
		t.Fatalf("override not applied: %+v", s)
	}
	if s.Parse == nil {
		t.Fatal("builtin parser not attached")
	}
}

func TestSourcesFromConfig_UnknownSource(t *testing.T) {
	_, err := SourcesFromConfig([]config.SourceConfig{{Name: "mtgox", Enabled: true}})
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
}
