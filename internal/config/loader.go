package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADECORE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADECORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRADECORE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADECORE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "TRADECORE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADECORE_SERVER_CORS_ORIGINS")
	setFloat64(&cfg.Server.RateLimitRPS, "TRADECORE_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateBurst, "TRADECORE_SERVER_RATE_BURST")

	// ── Upstreams ──
	setStr(&cfg.Solana.RPCURL, "TRADECORE_SOLANA_RPC_URL")
	setStr(&cfg.Solana.Commitment, "TRADECORE_SOLANA_COMMITMENT")
	setStr(&cfg.Solana.NativeMint, "TRADECORE_SOLANA_NATIVE_MINT")
	setDuration(&cfg.Solana.PollInterval, "TRADECORE_SOLANA_POLL_INTERVAL")
	setStr(&cfg.Jupiter.BaseURL, "TRADECORE_JUPITER_BASE_URL")
	setStr(&cfg.Jupiter.APIKey, "TRADECORE_JUPITER_API_KEY")
	setStr(&cfg.DexScreener.BaseURL, "TRADECORE_DEXSCREENER_BASE_URL")
	setStr(&cfg.DexScreener.ChainID, "TRADECORE_DEXSCREENER_CHAIN_ID")

	// ── Executor ──
	setInt(&cfg.Executor.SlippageBps, "TRADECORE_EXECUTOR_SLIPPAGE_BPS")
	setInt(&cfg.Executor.MaxAttempts, "TRADECORE_EXECUTOR_MAX_ATTEMPTS")
	setUint64(&cfg.Executor.InitialPriorityFee, "TRADECORE_EXECUTOR_INITIAL_PRIORITY_FEE_LAMPORTS")
	setFloat64(&cfg.Executor.PriorityFeeMultiplier, "TRADECORE_EXECUTOR_PRIORITY_FEE_MULTIPLIER")
	setUint64(&cfg.Executor.MaxPriorityFee, "TRADECORE_EXECUTOR_MAX_PRIORITY_FEE_LAMPORTS")
	setDuration(&cfg.Executor.ConfirmTimeout, "TRADECORE_EXECUTOR_CONFIRM_TIMEOUT")

	// ── Pricing and positions ──
	setDuration(&cfg.Pricing.CacheTTL, "TRADECORE_PRICING_CACHE_TTL")
	setFloatSlice(&cfg.Positions.Milestones, "TRADECORE_POSITIONS_MILESTONES")
	setDuration(&cfg.Positions.RefreshInterval, "TRADECORE_POSITIONS_REFRESH_INTERVAL")

	// ── Risk ──
	setStr(&cfg.Risk.MaxBuyNative, "TRADECORE_RISK_MAX_BUY_NATIVE")
	setInt(&cfg.Risk.MaxOpenPositions, "TRADECORE_RISK_MAX_OPEN_POSITIONS")

	// ── Storage ──
	setStr(&cfg.Storage.Backend, "TRADECORE_STORAGE_BACKEND")
	setStr(&cfg.Postgres.DSN, "TRADECORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADECORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADECORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADECORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADECORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADECORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADECORE_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "TRADECORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRADECORE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRADECORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADECORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADECORE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "TRADECORE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "TRADECORE_REDIS_KEY_PREFIX")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRADECORE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRADECORE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADECORE_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADECORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADECORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADECORE_S3_SECRET_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRADECORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRADECORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRADECORE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRADECORE_NOTIFY_EVENTS")

	// ── Agent keys, e.g. TRADECORE_AGENT_ALPHA_1_PRIVATE_KEY ──
	for i := range cfg.Agents {
		prefix := "TRADECORE_AGENT_" + envName(cfg.Agents[i].ID) + "_"
		setStr(&cfg.Agents[i].PrivateKey, prefix+"PRIVATE_KEY")
		setStr(&cfg.Agents[i].KeyPassword, prefix+"KEY_PASSWORD")
	}

	// ── Top-level ──
	setStr(&cfg.Mode, "TRADECORE_MODE")
	setStr(&cfg.LogLevel, "TRADECORE_LOG_LEVEL")
}

// envName upper-cases id and maps every non-alphanumeric rune to '_'.
func envName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
}

// MaxBuyNative returns the parsed risk.max_buy_native, zero when unset or
// invalid.
func (c *Config) MaxBuyNative() decimal.Decimal {
	d, err := parseDecimal(c.Risk.MaxBuyNative)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s is negative", s)
	}
	return d, nil
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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

// setFloatSlice parses a comma-separated list. Any malformed element leaves
// dst unchanged.
func setFloatSlice(dst *[]float64, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []float64
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return
		}
		out = append(out, f)
	}
	if len(out) > 0 {
		*dst = out
	}
}
