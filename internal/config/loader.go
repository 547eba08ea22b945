package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies YIELDROUTER_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known YIELDROUTER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// Wallet
	setStr(&cfg.Wallet.PrivateKey, "YIELDROUTER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.Address, "YIELDROUTER_WALLET_ADDRESS")

	// Chain
	setBool(&cfg.Chain.Enabled, "YIELDROUTER_CHAIN_ENABLED")
	setStr(&cfg.Chain.RPCURL, "YIELDROUTER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "YIELDROUTER_CHAIN_ID")
	setStr(&cfg.Chain.WETH, "YIELDROUTER_CHAIN_WETH")

	// Supabase
	setStr(&cfg.Supabase.DSN, "YIELDROUTER_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "YIELDROUTER_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "YIELDROUTER_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "YIELDROUTER_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "YIELDROUTER_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "YIELDROUTER_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "YIELDROUTER_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "YIELDROUTER_SUPABASE_SSLMODE")
	setInt(&cfg.Supabase.PoolMaxConns, "YIELDROUTER_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "YIELDROUTER_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "YIELDROUTER_SUPABASE_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "YIELDROUTER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "YIELDROUTER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "YIELDROUTER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "YIELDROUTER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "YIELDROUTER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "YIELDROUTER_REDIS_TLS_ENABLED")

	// S3
	setBool(&cfg.S3.Enabled, "YIELDROUTER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "YIELDROUTER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "YIELDROUTER_S3_REGION")
	setStr(&cfg.S3.Bucket, "YIELDROUTER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "YIELDROUTER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "YIELDROUTER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "YIELDROUTER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "YIELDROUTER_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.PublicBaseURL, "YIELDROUTER_S3_PUBLIC_BASE_URL")

	// Yields
	setStr(&cfg.Yields.BaseURL, "YIELDROUTER_YIELDS_BASE_URL")
	setStr(&cfg.Yields.Chain, "YIELDROUTER_YIELDS_CHAIN")
	setStr(&cfg.Yields.Symbol, "YIELDROUTER_YIELDS_SYMBOL")
	setDuration(&cfg.Yields.Timeout, "YIELDROUTER_YIELDS_TIMEOUT")

	// Rates
	setStr(&cfg.Rates.BaseURL, "YIELDROUTER_RATES_BASE_URL")
	setStr(&cfg.Rates.APIKey, "YIELDROUTER_RATES_API_KEY")
	setDuration(&cfg.Rates.Timeout, "YIELDROUTER_RATES_TIMEOUT")

	// Advisor
	setBool(&cfg.Advisor.UseLLM, "YIELDROUTER_ADVISOR_USE_LLM")
	setStr(&cfg.Advisor.AnthropicAPIKey, "YIELDROUTER_ADVISOR_ANTHROPIC_API_KEY")
	setStr(&cfg.Advisor.AnthropicAPIKey, "ANTHROPIC_API_KEY") // compatibility alias
	setStr(&cfg.Advisor.Model, "YIELDROUTER_ADVISOR_MODEL")
	setFloat64(&cfg.Advisor.AmountCeiling, "YIELDROUTER_ADVISOR_AMOUNT_CEILING")

	// Lending
	setFloat64(&cfg.Lending.DefaultAPY, "YIELDROUTER_LENDING_DEFAULT_APY")
	setBool(&cfg.Lending.StrictAmounts, "YIELDROUTER_LENDING_STRICT_AMOUNTS")

	// Server
	setInt(&cfg.Server.Port, "YIELDROUTER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "YIELDROUTER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "YIELDROUTER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "YIELDROUTER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "YIELDROUTER_SERVER_RATE_WINDOW")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "YIELDROUTER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "YIELDROUTER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "YIELDROUTER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "YIELDROUTER_NOTIFY_EVENTS")

	// Top-level
	setStr(&cfg.LogLevel, "YIELDROUTER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
