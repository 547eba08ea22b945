// Package rates fetches fiat conversion rates for display purposes.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultTimeout = 5 * time.Second
	cacheTTL       = 10 * time.Minute

	// fallbackUSDCIDR is used when the upstream API and the cache are both
	// unavailable. Conversion is cosmetic, so a stale rate beats an error.
	fallbackUSDCIDR = 16500.0

	pairUSDCIDR = "usdc-idr"
)

// ClientConfig holds settings for the rates client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches the USDC to IDR conversion rate from CoinGecko, caching
// results in Redis.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      domain.RateCache
	logger     *slog.Logger
}

// New creates a rates Client. The cache may be nil.
func New(cfg ClientConfig, cache domain.RateCache, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		cache:      cache,
		logger:     logger,
	}
}

// USDCToIDR returns the current USDC/IDR rate. It serves from cache when
// possible and falls back to a static rate when the upstream fails.
func (c *Client) USDCToIDR(ctx context.Context) (float64, error) {
	if c.cache != nil {
		rate, err := c.cache.GetRate(ctx, pairUSDCIDR)
		if err == nil && rate > 0 {
			return rate, nil
		}
	}

	rate, err := c.fetch(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "rate fetch failed, using fallback",
			slog.String("pair", pairUSDCIDR),
			slog.Float64("fallback", fallbackUSDCIDR),
			slog.String("error", err.Error()))
		return fallbackUSDCIDR, nil
	}

	if c.cache != nil {
		if err := c.cache.SetRate(ctx, pairUSDCIDR, rate, cacheTTL); err != nil {
			c.logger.WarnContext(ctx, "rate cache write failed",
				slog.String("error", err.Error()))
		}
	}

	return rate, nil
}

// ConvertIDR converts a rupiah amount into USDC at the current rate,
// returning both the converted amount and the rate used.
func (c *Client) ConvertIDR(ctx context.Context, amountIDR float64) (float64, float64, error) {
	rate, err := c.USDCToIDR(ctx)
	if err != nil {
		return 0, 0, err
	}
	return amountIDR / rate, rate, nil
}

func (c *Client) fetch(ctx context.Context) (float64, error) {
	url := c.baseURL + "/simple/price?ids=usd-coin&vs_currencies=idr"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("rates: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rates: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rates: fetch: unexpected status %d", resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("rates: decode: %w", err)
	}

	rate, ok := body["usd-coin"]["idr"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("rates: missing usd-coin/idr in response")
	}
	return rate, nil
}
