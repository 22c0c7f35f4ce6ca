package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	s3blob "github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/blob/s3"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/cache/memory"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/cache/redis"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/config"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/crypto"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/metrics"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/notify"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/platform/dexscreener"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/platform/jupiter"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/platform/solana"
	memstore "github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/store/memory"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	PositionStore domain.PositionStore
	TradeStore    domain.TradeStore
	AuditStore    domain.AuditStore

	// Caches and coordination
	QuoteCache domain.QuoteCache
	Locks      domain.KeyLocker
	Deduper    domain.RequestDeduper
	EventBus   domain.EventBus // nil without Redis

	// Upstreams
	Swaps  *jupiter.Client
	Chain  *solana.Client
	Prices *dexscreener.Client

	// Wallets
	Keyring *crypto.Keyring

	// Blob storage; nil unless S3 is enabled.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	Metrics *metrics.Metrics

	// Health probes by dependency name.
	Health map[string]func(context.Context) error

	// Sweepers bound the in-process caches; run periodically.
	Sweepers []func()
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Health: make(map[string]func(context.Context) error)}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.New(reg)

	// --- Wallets ---
	keys := make(map[string]crypto.KeyConfig, len(cfg.Agents))
	for _, ag := range cfg.Agents {
		keys[ag.ID] = crypto.KeyConfig{
			RawPrivateKey:    ag.PrivateKey,
			EncryptedKeyPath: ag.EncryptedKeyPath,
			KeyPassword:      ag.KeyPassword,
		}
	}
	keyring, err := crypto.LoadKeyring(keys)
	if err != nil {
		return fail("keyring", err)
	}
	deps.Keyring = keyring
	if len(cfg.Agents) == 0 {
		logger.WarnContext(ctx, "no agents configured; every trade will be rejected")
	}

	// --- Stores ---
	switch cfg.Storage.Backend {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		// Run migrations if enabled.
		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.PositionStore = postgres.NewPositionStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Health["postgres"] = pgClient.Ping
	default:
		deps.PositionStore = memstore.NewPositionStore()
		deps.TradeStore = memstore.NewTradeStore()
		deps.AuditStore = memstore.NewAuditStore()
	}

	// --- Caches, locks, dedup and events ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient, cfg.Redis.LockTTL.Duration, 0)
		deps.Deduper = redis.NewDeduper(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
		deps.Health["redis"] = redisClient.Ping
	} else {
		quotes := memory.NewQuoteCache()
		dedup := memory.NewDeduper()
		deps.QuoteCache = quotes
		deps.Locks = memory.NewKeyLocker()
		deps.Deduper = dedup
		deps.Sweepers = append(deps.Sweepers, func() { quotes.Sweep() }, dedup.Cleanup)
	}

	// --- Upstreams ---
	chain, err := solana.Dial(ctx, solana.Config{
		URL:          cfg.Solana.RPCURL,
		Commitment:   cfg.Solana.Commitment,
		PollInterval: cfg.Solana.PollInterval.Duration,
		Timeout:      cfg.Solana.Timeout.Duration,
	})
	if err != nil {
		return fail("solana", err)
	}
	closers = append(closers, chain.Close)
	deps.Chain = chain

	deps.Swaps = jupiter.New(jupiter.Config{
		BaseURL: cfg.Jupiter.BaseURL,
		APIKey:  cfg.Jupiter.APIKey,
		Timeout: cfg.Jupiter.Timeout.Duration,
	})
	deps.Prices = dexscreener.New(dexscreener.Config{
		BaseURL: cfg.DexScreener.BaseURL,
		ChainID: cfg.DexScreener.ChainID,
		Timeout: cfg.DexScreener.Timeout.Duration,
	})

	// --- S3 archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			KeyPrefix:      cfg.S3.KeyPrefix,
		})
		if err != nil {
			return fail("s3", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client, 0),
			deps.PositionStore,
			deps.TradeStore,
			deps.AuditStore,
		)
		deps.Health["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("storage", cfg.Storage.Backend),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("archive", deps.Archiver != nil),
		slog.Int("notify_senders", len(senders)),
		slog.Duration("lock_ttl", cfg.Redis.LockTTL.Duration),
	)

	return deps, cleanup, nil
}

// sweepInterval is how often in-process caches are pruned.
const sweepInterval = time.Minute
