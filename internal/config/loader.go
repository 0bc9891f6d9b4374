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
// built-in defaults, applies NAVORACLE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known NAVORACLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Oracle ──
	setStr(&cfg.Oracle.Address, "NAVORACLE_ORACLE_ADDRESS")
	setStr(&cfg.Oracle.CanonicalSymbol, "NAVORACLE_ORACLE_CANONICAL_SYMBOL")
	setStr(&cfg.Oracle.CanonicalAddress, "NAVORACLE_ORACLE_CANONICAL_ADDRESS")
	setInt(&cfg.Oracle.CanonicalDecimals, "NAVORACLE_ORACLE_CANONICAL_DECIMALS")
	setStr(&cfg.Oracle.CanonicalNetwork, "NAVORACLE_ORACLE_CANONICAL_NETWORK")
	setStr(&cfg.Oracle.ShareToken, "NAVORACLE_ORACLE_SHARE_TOKEN")
	setStr(&cfg.Oracle.ShareTokenNetwork, "NAVORACLE_ORACLE_SHARE_TOKEN_NETWORK")
	setDuration(&cfg.Oracle.Interval, "NAVORACLE_ORACLE_INTERVAL")
	setInt(&cfg.Oracle.RetryAttempts, "NAVORACLE_ORACLE_RETRY_ATTEMPTS")
	setDuration(&cfg.Oracle.RetryBackoff, "NAVORACLE_ORACLE_RETRY_BACKOFF")

	// ── Rewards ──
	setBool(&cfg.Rewards.Enabled, "NAVORACLE_REWARDS_ENABLED")
	setStr(&cfg.Rewards.BaseURL, "NAVORACLE_REWARDS_BASE_URL")

	// ── Quote ──
	setStr(&cfg.Quote.BaseURL, "NAVORACLE_QUOTE_BASE_URL")
	setDuration(&cfg.Quote.Timeout, "NAVORACLE_QUOTE_TIMEOUT")

	// ── PriceFeed ──
	setStr(&cfg.PriceFeed.BaseURL, "NAVORACLE_PRICE_FEED_BASE_URL")
	setStr(&cfg.PriceFeed.FallbackRate, "NAVORACLE_PRICE_FEED_FALLBACK_RATE")
	setDuration(&cfg.PriceFeed.CacheTTL, "NAVORACLE_PRICE_FEED_CACHE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "NAVORACLE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "NAVORACLE_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "NAVORACLE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NAVORACLE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NAVORACLE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NAVORACLE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NAVORACLE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NAVORACLE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NAVORACLE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NAVORACLE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NAVORACLE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "NAVORACLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NAVORACLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NAVORACLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NAVORACLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NAVORACLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NAVORACLE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "NAVORACLE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "NAVORACLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NAVORACLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "NAVORACLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NAVORACLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NAVORACLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NAVORACLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NAVORACLE_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "NAVORACLE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "NAVORACLE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NAVORACLE_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "NAVORACLE_MODE")
	setStr(&cfg.LogLevel, "NAVORACLE_LOG_LEVEL")

	// Per-network RPC overrides, e.g. NAVORACLE_RPC_URL_BASE for
	// networks["base"].
	for name, net := range cfg.Networks {
		key := "NAVORACLE_RPC_URL_" + strings.ToUpper(name)
		if v := os.Getenv(key); v != "" {
			net.RPCURL = v
			cfg.Networks[name] = net
		}
	}
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
