// Package yields fetches lending pool yields from the DefiLlama yields API
// and filters them down to a trusted set of protocols.
package yields

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

const (
	defaultBaseURL = "https://yields.llama.fi"
	defaultTimeout = 10 * time.Second
	cacheTTL       = 5 * time.Minute
	topPools       = 5
	maxSaneAPY     = 100.0
)

// trustedProtocols is the allow-list of lending protocols eligible for
// routing. Pools from any other project are dropped at ingestion.
var trustedProtocols = map[string]bool{
	"moonwell":    true,
	"aave-v3":     true,
	"compound-v3": true,
	"spark":       true,
}

// fallbackPools is returned when the upstream API is unreachable and the
// cache is cold, so routing degrades to stale-but-sane data instead of
// failing outright.
var fallbackPools = []domain.Pool{
	{Protocol: "moonwell", APY: 5.2, TVL: 48_000_000, Symbol: "USDC", PoolID: "fallback-moonwell-usdc"},
	{Protocol: "aave-v3", APY: 4.1, TVL: 310_000_000, Symbol: "USDC", PoolID: "fallback-aave-v3-usdc"},
	{Protocol: "compound-v3", APY: 3.8, TVL: 250_000_000, Symbol: "USDC", PoolID: "fallback-compound-v3-usdc"},
	{Protocol: "spark", APY: 3.5, TVL: 95_000_000, Symbol: "USDC", PoolID: "fallback-spark-usdc"},
}

// ClientConfig holds settings for the yields client.
type ClientConfig struct {
	BaseURL string
	Chain   string
	Symbol  string
	Timeout time.Duration
}

// Client fetches, filters, and ranks yield pools. Results are cached in
// Redis so a burst of requests reuses one upstream call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	chain      string
	symbol     string
	cache      domain.PoolCache
	logger     *slog.Logger
}

// New creates a yields Client. The cache may be nil, in which case every
// call hits the upstream API.
func New(cfg ClientConfig, cache domain.PoolCache, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Chain == "" {
		cfg.Chain = "Base"
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "USDC"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		chain:      cfg.Chain,
		symbol:     cfg.Symbol,
		cache:      cache,
		logger:     logger,
	}
}

// llamaPool mirrors the subset of the DefiLlama /pools response we consume.
type llamaPool struct {
	Chain   string  `json:"chain"`
	Project string  `json:"project"`
	Symbol  string  `json:"symbol"`
	TVLUSD  float64 `json:"tvlUsd"`
	APY     float64 `json:"apy"`
	Pool    string  `json:"pool"`
}

type llamaResponse struct {
	Status string      `json:"status"`
	Data   []llamaPool `json:"data"`
}

// TopPools returns up to five trusted pools sorted by APY descending. It
// serves from cache when possible, and falls back to a static pool list
// when both the cache and the upstream API are unavailable.
func (c *Client) TopPools(ctx context.Context) ([]domain.Pool, error) {
	if c.cache != nil {
		pools, err := c.cache.GetPools(ctx)
		if err == nil && len(pools) > 0 {
			return pools, nil
		}
	}

	pools, err := c.fetch(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "yields fetch failed, using fallback pools",
			slog.String("error", err.Error()))
		return fallbackPools, nil
	}

	if c.cache != nil {
		if err := c.cache.SetPools(ctx, pools, cacheTTL); err != nil {
			c.logger.WarnContext(ctx, "yields cache write failed",
				slog.String("error", err.Error()))
		}
	}

	return pools, nil
}

func (c *Client) fetch(ctx context.Context) ([]domain.Pool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools", nil)
	if err != nil {
		return nil, fmt.Errorf("yields: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yields: fetch pools: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yields: fetch pools: unexpected status %d", resp.StatusCode)
	}

	var body llamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("yields: decode pools: %w", err)
	}

	pools := c.filter(body.Data)
	if len(pools) == 0 {
		return nil, fmt.Errorf("yields: no trusted pools for %s/%s", c.chain, c.symbol)
	}
	return pools, nil
}

// filter keeps trusted-protocol pools on the configured chain and symbol
// with an APY inside (0, 100], sorts by APY descending, and truncates to
// the top five.
func (c *Client) filter(raw []llamaPool) []domain.Pool {
	var pools []domain.Pool
	for _, p := range raw {
		if !strings.EqualFold(p.Chain, c.chain) {
			continue
		}
		if !strings.EqualFold(p.Symbol, c.symbol) {
			continue
		}
		if !trustedProtocols[strings.ToLower(p.Project)] {
			continue
		}
		if p.APY <= 0 || p.APY > maxSaneAPY {
			continue
		}
		pools = append(pools, domain.Pool{
			Protocol: strings.ToLower(p.Project),
			APY:      p.APY,
			TVL:      p.TVLUSD,
			Symbol:   p.Symbol,
			PoolID:   p.Pool,
		})
	}

	sort.Slice(pools, func(i, j int) bool {
		return pools[i].APY > pools[j].APY
	})

	if len(pools) > topPools {
		pools = pools[:topPools]
	}
	return pools
}

// Trusted reports whether the given protocol is on the allow-list.
func Trusted(protocol string) bool {
	return trustedProtocols[strings.ToLower(protocol)]
}
