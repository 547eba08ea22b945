// Package config defines the top-level configuration for the yield router
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by YIELDROUTER_* environment
// variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Yields   YieldsConfig   `toml:"yields"`
	Rates    RatesConfig    `toml:"rates"`
	Advisor  AdvisorConfig  `toml:"advisor"`
	Lending  LendingConfig  `toml:"lending"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the operator wallet credentials.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
	Address    string `toml:"address"`
}

// ChainConfig holds the EVM chain connection parameters. Pools maps a
// protocol name to its lending-pool contract address.
type ChainConfig struct {
	Enabled bool              `toml:"enabled"`
	RPCURL  string            `toml:"rpc_url"`
	ChainID int64             `toml:"chain_id"`
	WETH    string            `toml:"weth"`
	Pools   map[string]string `toml:"pools"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for profile
// images.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	PublicBaseURL  string `toml:"public_base_url"`
}

// YieldsConfig holds the yield source parameters.
type YieldsConfig struct {
	BaseURL string   `toml:"base_url"`
	Chain   string   `toml:"chain"`
	Symbol  string   `toml:"symbol"`
	Timeout duration `toml:"timeout"`
}

// RatesConfig holds the fiat rate source parameters.
type RatesConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// AdvisorConfig holds the advisory gate parameters. When UseLLM is false,
// or the API key is empty, only the deterministic rules run.
type AdvisorConfig struct {
	UseLLM          bool    `toml:"use_llm"`
	AnthropicAPIKey string  `toml:"anthropic_api_key"`
	Model           string  `toml:"model"`
	AmountCeiling   float64 `toml:"amount_ceiling"`
}

// LendingConfig holds the ledger policy knobs.
type LendingConfig struct {
	// DefaultAPY is substituted on the auto-routing path when no snapshot
	// is available.
	DefaultAPY float64 `toml:"default_apy"`
	// StrictAmounts rejects withdrawals exceeding the remaining principal
	// instead of capping them.
	StrictAmounts bool `toml:"strict_amounts"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML decoding from strings like "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			Enabled: false,
			RPCURL:  "https://mainnet.base.org",
			ChainID: 8453,
			WETH:    "0x4200000000000000000000000000000000000006",
			Pools:   map[string]string{},
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "yieldrouter-media",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Yields: YieldsConfig{
			BaseURL: "https://yields.llama.fi",
			Chain:   "Base",
			Symbol:  "USDC",
			Timeout: duration{10 * time.Second},
		},
		Rates: RatesConfig{
			BaseURL: "https://api.coingecko.com/api/v3",
			Timeout: duration{5 * time.Second},
		},
		Advisor: AdvisorConfig{
			UseLLM:        false,
			Model:         "claude-sonnet-4-20250514",
			AmountCeiling: 1_000_000,
		},
		Lending: LendingConfig{
			DefaultAPY:    3.0,
			StrictAmounts: false,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "withdrawal", "position_closed", "advisory_rejected"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain is optional; when enabled it needs an endpoint and a key.
	if c.Chain.Enabled {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url must not be empty when enabled")
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, "chain: chain_id must be positive")
		}
		if c.Wallet.PrivateKey == "" {
			errs = append(errs, "wallet: private_key is required when chain execution is enabled")
		}
	}

	// Supabase
	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is optional; when enabled it needs a bucket.
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Advisor
	if c.Advisor.UseLLM && c.Advisor.AnthropicAPIKey == "" {
		errs = append(errs, "advisor: anthropic_api_key is required when use_llm is set")
	}
	if c.Advisor.AmountCeiling <= 0 {
		errs = append(errs, "advisor: amount_ceiling must be > 0")
	}

	// Lending
	if c.Lending.DefaultAPY <= 0 || c.Lending.DefaultAPY > 50 {
		errs = append(errs, fmt.Sprintf("lending: default_apy must be in (0, 50], got %g", c.Lending.DefaultAPY))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
		errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
