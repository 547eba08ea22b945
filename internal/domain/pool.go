package domain

// Pool is one candidate lending pool as reported by the yield provider,
// already filtered to the trusted allow-list and a sane APY band.
type Pool struct {
	Protocol string  `json:"protocol"`
	APY      float64 `json:"apy"`
	TVL      float64 `json:"tvl"`
	Symbol   string  `json:"symbol"`
	PoolID   string  `json:"pool_id"`
}
