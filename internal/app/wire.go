package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/deqrypt/yieldrouter/internal/advisor"
	s3blob "github.com/deqrypt/yieldrouter/internal/blob/s3"
	"github.com/deqrypt/yieldrouter/internal/cache/redis"
	"github.com/deqrypt/yieldrouter/internal/chain"
	"github.com/deqrypt/yieldrouter/internal/config"
	"github.com/deqrypt/yieldrouter/internal/domain"
	"github.com/deqrypt/yieldrouter/internal/notify"
	"github.com/deqrypt/yieldrouter/internal/rates"
	"github.com/deqrypt/yieldrouter/internal/store/postgres"
	"github.com/deqrypt/yieldrouter/internal/yields"
)

// Dependencies bundles every domain-level dependency the application needs.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PositionStore    domain.PositionStore
	TransactionStore domain.TransactionStore
	ProfileStore     domain.ProfileStore

	// Caches and coordination
	PoolCache   domain.PoolCache
	RateCache   domain.RateCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// External sources
	Yields *yields.Client
	Rates  *rates.Client

	// Advisory gate
	Advisor domain.Advisor

	// On-chain executor; nil when chain execution is disabled.
	Chain domain.ChainExecutor

	// Blob storage; nil when S3 is disabled.
	BlobWriter domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier

	// Connectivity probes for the health endpoint.
	PostgresPing func(ctx context.Context) error
	RedisPing    func(ctx context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PositionStore = postgres.NewPositionStore(pool)
	deps.TransactionStore = postgres.NewTransactionStore(pool)
	deps.ProfileStore = postgres.NewProfileStore(pool)
	deps.PostgresPing = pgClient.Ping

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PoolCache = redis.NewPoolCache(redisClient)
	deps.RateCache = redis.NewRateCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.RedisPing = redisClient.Ping

	// --- External sources ---
	deps.Yields = yields.New(yields.ClientConfig{
		BaseURL: cfg.Yields.BaseURL,
		Chain:   cfg.Yields.Chain,
		Symbol:  cfg.Yields.Symbol,
		Timeout: cfg.Yields.Timeout.Duration,
	}, deps.PoolCache, logger)

	deps.Rates = rates.New(rates.ClientConfig{
		BaseURL: cfg.Rates.BaseURL,
		APIKey:  cfg.Rates.APIKey,
		Timeout: cfg.Rates.Timeout.Duration,
	}, deps.RateCache, logger)

	// --- Advisory gate ---
	rules := advisor.NewRuleAdvisor(cfg.Advisor.AmountCeiling)
	if cfg.Advisor.UseLLM && cfg.Advisor.AnthropicAPIKey != "" {
		deps.Advisor = advisor.NewLLMAdvisor(advisor.LLMConfig{
			APIKey: cfg.Advisor.AnthropicAPIKey,
			Model:  cfg.Advisor.Model,
		}, rules, logger)
	} else {
		deps.Advisor = rules
	}

	// --- Chain executor (optional) ---
	if cfg.Chain.Enabled {
		exec, err := chain.New(ctx, chain.Config{
			RPCURL:     cfg.Chain.RPCURL,
			PrivateKey: cfg.Wallet.PrivateKey,
			ChainID:    cfg.Chain.ChainID,
			WETH:       cfg.Chain.WETH,
			Pools:      cfg.Chain.Pools,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain: %w", err)
		}
		closers = append(closers, exec.Close)
		deps.Chain = exec
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client, cfg.S3.PublicBaseURL)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
