package feed

import (
	"encoding/json"
	"fmt"
	"strconv"

	"btcoracle/internal/config"
)

// Built-in BTC/USD sources. Config selects which are enabled and may
// override endpoint and weight.

func parseFloatString(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number format %q: %w", s, err)
	}
	return v, nil
}

// ParseCoinGecko parses {"bitcoin":{"usd":95000.12}}
func ParseCoinGecko(body []byte) (float64, error) {
	var data struct {
		Bitcoin struct {
			USD float64 `json:"usd"`
		} `json:"bitcoin"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("failed to unmarshal coingecko response: %w", err)
	}
	if data.Bitcoin.USD == 0 {
		return 0, fmt.Errorf("coingecko response missing bitcoin.usd")
	}
	return data.Bitcoin.USD, nil
}

// ParseBinance parses {"symbol":"BTCUSDT","price":"95000.00"}
func ParseBinance(body []byte) (float64, error) {
	var data struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("failed to unmarshal binance response: %w", err)
	}
	return parseFloatString(data.Price)
}

// ParseCoinbase parses {"data":{"amount":"95000.00"}}
func ParseCoinbase(body []byte) (float64, error) {
	var data struct {
		Data struct {
			Amount string `json:"amount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("failed to unmarshal coinbase response: %w", err)
	}
	return parseFloatString(data.Data.Amount)
}

// ParseKraken parses {"error":[],"result":{"XXBTZUSD":{"c":["95000.0","1.0"]}}}
func ParseKraken(body []byte) (float64, error) {
	var data struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			LastTrade []string `json:"c"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("failed to unmarshal kraken response: %w", err)
	}
	if len(data.Error) > 0 {
		return 0, fmt.Errorf("kraken API returned errors: %v", data.Error)
	}
	for _, ticker := range data.Result {
		if len(ticker.LastTrade) == 0 {
			return 0, fmt.Errorf("kraken ticker missing last trade price")
		}
		return parseFloatString(ticker.LastTrade[0])
	}
	return 0, fmt.Errorf("kraken response contained no ticker data")
}

// ParseBitstamp parses {"last":"95000.00", ...}
func ParseBitstamp(body []byte) (float64, error) {
	var data struct {
		Last string `json:"last"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("failed to unmarshal bitstamp response: %w", err)
	}
	return parseFloatString(data.Last)
}

// ParseGemini parses {"last":"95000.00", ...}
func ParseGemini(body []byte) (float64, error) {
	var data struct {
		Last string `json:"last"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, fmt.Errorf("failed to unmarshal gemini response: %w", err)
	}
	return parseFloatString(data.Last)
}

type builtin struct {
	endpoint string
	weight   float64
	parse    ParseFunc
}

var builtins = map[string]builtin{
	"coingecko": {
		endpoint: "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd",
		weight:   0.2,
		parse:    ParseCoinGecko,
	},
	"binance": {
		endpoint: "https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT",
		weight:   0.15,
		parse:    ParseBinance,
	},
	"coinbase": {
		endpoint: "https://api.coinbase.com/v2/prices/BTC-USD/spot",
		weight:   0.15,
		parse:    ParseCoinbase,
	},
	"kraken": {
		endpoint: "https://api.kraken.com/0/public/Ticker?pair=XBTUSD",
		weight:   0.15,
		parse:    ParseKraken,
	},
	"bitstamp": {
		endpoint: "https://www.bitstamp.net/api/v2/ticker/btcusd/",
		weight:   0.1,
		parse:    ParseBitstamp,
	},
	"gemini": {
		endpoint: "https://api.gemini.com/v1/pubticker/btcusd",
		weight:   0.1,
		parse:    ParseGemini,
	},
}

// SourcesFromConfig resolves the configured source list against the
// built-in registry. An empty config list enables every built-in source
// with its default weight.
func SourcesFromConfig(cfgs []config.SourceConfig) ([]Source, error) {
	if len(cfgs) == 0 {
		sources := make([]Source, 0, len(builtins))
		for name, b := range builtins {
			sources = append(sources, Source{Name: name, Endpoint: b.endpoint, Weight: b.weight, Parse: b.parse})
		}
		return sources, nil
	}

	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		if !c.Enabled {
			continue
		}
		b, ok := builtins[c.Name]
		if !ok {
			return nil, fmt.Errorf("unknown price source %q", c.Name)
		}
		s := Source{Name: c.Name, Endpoint: b.endpoint, Weight: b.weight, Parse: b.parse}
		if c.Endpoint != "" {
			s.Endpoint = c.Endpoint
		}
		if c.Weight > 0 {
			s.Weight = c.Weight
		}
		sources = append(sources, s)
	}
	return sources, nil
}
