// Package config defines the top-level configuration for tradecore and
// provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/milestone"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRADECORE_* environment variables.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Solana      SolanaConfig      `toml:"solana"`
	Jupiter     JupiterConfig     `toml:"jupiter"`
	DexScreener DexScreenerConfig `toml:"dexscreener"`
	Executor    ExecutorConfig    `toml:"executor"`
	Pricing     PricingConfig     `toml:"pricing"`
	Positions   PositionsConfig   `toml:"positions"`
	Risk        RiskConfig        `toml:"risk"`
	Storage     StorageConfig     `toml:"storage"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Notify      NotifyConfig      `toml:"notify"`
	Agents      []AgentConfig     `toml:"agents"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled      bool     `toml:"enabled"`
	Port         int      `toml:"port"`
	APIKey       string   `toml:"api_key"`
	CORSOrigins  []string `toml:"cors_origins"`
	RateLimitRPS float64  `toml:"rate_limit_rps"`
	RateBurst    int      `toml:"rate_burst"`
}

// SolanaConfig holds the chain RPC endpoint.
type SolanaConfig struct {
	RPCURL       string   `toml:"rpc_url"`
	Commitment   string   `toml:"commitment"`
	NativeMint   string   `toml:"native_mint"`
	PollInterval duration `toml:"poll_interval"`
	Timeout      duration `toml:"timeout"`
}

// JupiterConfig holds the swap aggregator endpoint.
type JupiterConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// DexScreenerConfig holds the price discovery endpoint.
type DexScreenerConfig struct {
	BaseURL string   `toml:"base_url"`
	ChainID string   `toml:"chain_id"`
	Timeout duration `toml:"timeout"`
}

// ExecutorConfig tunes the retry state machine and fee escalation.
type ExecutorConfig struct {
	SlippageBps           int      `toml:"slippage_bps"`
	MaxAttempts           int      `toml:"max_attempts"`
	InitialPriorityFee    uint64   `toml:"initial_priority_fee_lamports"`
	PriorityFeeMultiplier float64  `toml:"priority_fee_multiplier"`
	MaxPriorityFee        uint64   `toml:"max_priority_fee_lamports"`
	FeeReserveLamports    uint64   `toml:"fee_reserve_lamports"`
	BaseFeeLamports       uint64   `toml:"base_fee_lamports"`
	BackoffInitial        duration `toml:"backoff_initial"`
	BackoffMax            duration `toml:"backoff_max"`
	QuoteTimeout          duration `toml:"quote_timeout"`
	SubmitTimeout         duration `toml:"submit_timeout"`
	ConfirmTimeout        duration `toml:"confirm_timeout"`
	RecheckTimeout        duration `toml:"recheck_timeout"`
	DedupTTL              duration `toml:"dedup_ttl"`
}

// PricingConfig tunes the price fetcher.
type PricingConfig struct {
	CacheTTL       duration `toml:"cache_ttl"`
	FetchTimeout   duration `toml:"fetch_timeout"`
	MaxConcurrency int      `toml:"max_concurrency"`
}

// PositionsConfig holds the take-profit ladder and the optional background
// valuation refresh.
type PositionsConfig struct {
	Milestones      []float64 `toml:"milestones"`
	RefreshInterval duration  `toml:"refresh_interval"` // 0 disables the refresher
}

// RiskConfig holds pre-trade limits. Zero disables a limit.
type RiskConfig struct {
	MaxBuyNative     string `toml:"max_buy_native"`
	MaxOpenPositions int    `toml:"max_open_positions"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `toml:"backend"` // "memory" or "postgres"
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters. When enabled, Redis backs
// the quote cache, trade locks, request dedup and the event bus.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
}

// S3Config holds S3-compatible object storage parameters for archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	KeyPrefix      string `toml:"key_prefix"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramAPIURL    string   `toml:"telegram_api_url"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// AgentConfig maps an agent ID to its wallet key.
type AgentConfig struct {
	ID               string `toml:"id"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NativeMintSOL is the wrapped SOL mint used as the native asset.
const NativeMintSOL = "So11111111111111111111111111111111111111112"

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:      true,
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000"},
			RateLimitRPS: 20,
			RateBurst:    40,
		},
		Solana: SolanaConfig{
			RPCURL:       "https://api.mainnet-beta.solana.com",
			Commitment:   "confirmed",
			NativeMint:   NativeMintSOL,
			PollInterval: duration{500 * time.Millisecond},
			Timeout:      duration{10 * time.Second},
		},
		Jupiter: JupiterConfig{
			BaseURL: "https://quote-api.jup.ag/v6",
			Timeout: duration{10 * time.Second},
		},
		DexScreener: DexScreenerConfig{
			BaseURL: "https://api.dexscreener.com",
			ChainID: "solana",
			Timeout: duration{5 * time.Second},
		},
		Executor: ExecutorConfig{
			SlippageBps:           100,
			MaxAttempts:           3,
			InitialPriorityFee:    10_000,
			PriorityFeeMultiplier: 2,
			MaxPriorityFee:        2_000_000,
			FeeReserveLamports:    5_000_000,
			BaseFeeLamports:       5_000,
			BackoffInitial:        duration{500 * time.Millisecond},
			BackoffMax:            duration{4 * time.Second},
			QuoteTimeout:          duration{5 * time.Second},
			SubmitTimeout:         duration{10 * time.Second},
			ConfirmTimeout:        duration{30 * time.Second},
			RecheckTimeout:        duration{2 * time.Second},
			DedupTTL:              duration{10 * time.Minute},
		},
		Pricing: PricingConfig{
			CacheTTL:       duration{30 * time.Second},
			FetchTimeout:   duration{5 * time.Second},
			MaxConcurrency: 8,
		},
		Positions: PositionsConfig{
			Milestones: []float64{1.5, 2, 3, 5, 10},
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradecore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			KeyPrefix:  "tradecore:",
			LockTTL:    duration{2 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tradecore-archive",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"trade.executed", "trade.failed", "milestone.hit", "position.closed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":    true, // HTTP API and background refresher
	"server":  true, // HTTP API only
	"monitor": true, // refresher only
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Ladder returns the configured take-profit ladder.
func (c *Config) Ladder() milestone.Ladder {
	return milestone.Ladder(c.Positions.Milestones)
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("unknown mode %q (valid: full, server, monitor)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if c.Server.RateLimitRPS < 0 {
			add("server: rate_limit_rps must be >= 0")
		}
	}

	// Chain and upstreams
	if c.Solana.RPCURL == "" {
		add("solana: rpc_url must not be empty")
	}
	if c.Solana.NativeMint == "" {
		add("solana: native_mint must not be empty")
	}
	if c.Jupiter.BaseURL == "" {
		add("jupiter: base_url must not be empty")
	}
	if c.DexScreener.BaseURL == "" {
		add("dexscreener: base_url must not be empty")
	}

	// Executor
	if c.Executor.MaxAttempts < 1 {
		add("executor: max_attempts must be >= 1")
	}
	if c.Executor.SlippageBps < 0 || c.Executor.SlippageBps > 10_000 {
		add("executor: slippage_bps must be 0-10000, got %d", c.Executor.SlippageBps)
	}
	if c.Executor.PriorityFeeMultiplier < 1 {
		add("executor: priority_fee_multiplier must be >= 1")
	}
	if c.Executor.MaxPriorityFee < c.Executor.InitialPriorityFee {
		add("executor: max_priority_fee_lamports must not be below initial_priority_fee_lamports")
	}
	if c.Executor.ConfirmTimeout.Duration <= 0 {
		add("executor: confirm_timeout must be > 0")
	}

	// Pricing
	if c.Pricing.CacheTTL.Duration <= 0 {
		add("pricing: cache_ttl must be > 0")
	}

	// Positions
	if err := c.Ladder().Validate(); err != nil {
		add("positions: milestones: %w", err)
	}
	if c.Positions.RefreshInterval.Duration < 0 {
		add("positions: refresh_interval must be >= 0")
	}
	if c.Mode == "monitor" && c.Positions.RefreshInterval.Duration == 0 {
		add("positions: refresh_interval is required for mode monitor")
	}

	// Risk
	if c.Risk.MaxBuyNative != "" {
		if _, err := parseDecimal(c.Risk.MaxBuyNative); err != nil {
			add("risk: max_buy_native: %w", err)
		}
	}
	if c.Risk.MaxOpenPositions < 0 {
		add("risk: max_open_positions must be >= 0")
	}

	// Storage
	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				add("postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				add("postgres: port must be 1-65535, got %d", c.Postgres.Port)
			}
			if c.Postgres.Database == "" {
				add("postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must be 0-pool_max_conns")
		}
	default:
		add("storage: unknown backend %q (valid: memory, postgres)", c.Storage.Backend)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			add("redis: lock_ttl must be > 0")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		add("s3: bucket must not be empty")
	}

	// Agents
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			add("agents[%d]: id must not be empty", i)
			continue
		}
		if seen[a.ID] {
			add("agents[%d]: duplicate id %q", i, a.ID)
		}
		seen[a.ID] = true
		if a.PrivateKey == "" && a.EncryptedKeyPath == "" {
			add("agents[%d] %s: either private_key or encrypted_key_path must be set", i, a.ID)
		}
		if a.EncryptedKeyPath != "" && a.KeyPassword == "" {
			add("agents[%d] %s: key_password is required when encrypted_key_path is set", i, a.ID)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(errs...))
	}
	return nil
}
