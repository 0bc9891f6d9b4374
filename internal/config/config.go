// Package config defines the top-level configuration for the NAV oracle
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by NAVORACLE_* environment variables.
type Config struct {
	Oracle    OracleConfig             `toml:"oracle"`
	Networks  map[string]NetworkConfig `toml:"networks"`
	Lending   LendingConfig            `toml:"lending"`
	Pools     []PoolConfig             `toml:"pools"`
	Spot      SpotConfig               `toml:"spot"`
	Rewards   RewardsConfig            `toml:"rewards"`
	Quote     QuoteConfig              `toml:"quote"`
	PriceFeed PriceFeedConfig          `toml:"price_feed"`
	Postgres  PostgresConfig           `toml:"postgres"`
	Redis     RedisConfig              `toml:"redis"`
	S3        S3Config                 `toml:"s3"`
	Server    ServerConfig             `toml:"server"`
	Mode      string                   `toml:"mode"`
	LogLevel  string                   `toml:"log_level"`
}

// OracleConfig holds the tracked address, the canonical valuation asset,
// and the aggregation run parameters.
type OracleConfig struct {
	// Address is the portfolio address every adapter reads positions for.
	Address string `toml:"address"`
	// Canonical is the asset all valuations are expressed in.
	CanonicalSymbol   string `toml:"canonical_symbol"`
	CanonicalAddress  string `toml:"canonical_address"`
	CanonicalDecimals int    `toml:"canonical_decimals"`
	CanonicalNetwork  string `toml:"canonical_network"`
	// ShareToken is the vault share token whose total supply divides NAV
	// into a share price. Empty disables share price computation.
	ShareToken        string   `toml:"share_token"`
	ShareTokenNetwork string   `toml:"share_token_network"`
	Interval          duration `toml:"interval"`
	RetryAttempts     int      `toml:"retry_attempts"`
	RetryBackoff      duration `toml:"retry_backoff"`
}

// NetworkConfig holds per-chain connection parameters.
type NetworkConfig struct {
	RPCURL         string `toml:"rpc_url"`
	ChainID        int    `toml:"chain_id"`
	NativeSymbol   string `toml:"native_symbol"`
	NativeDecimals int    `toml:"native_decimals"`
}

// LendingMarket declares one supply/debt wrapper pair on a lending
// protocol. Underlying resolution happens on chain; the pair itself is
// static configuration so a mismatched netting input is always a config
// bug, never runtime data.
type LendingMarket struct {
	Network     string `toml:"network"`
	SupplyToken string `toml:"supply_token"`
	DebtToken   string `toml:"debt_token"`
}

// LendingConfig holds the lending protocol adapter parameters.
type LendingConfig struct {
	Enabled  bool            `toml:"enabled"`
	Protocol string          `toml:"protocol"`
	Markets  []LendingMarket `toml:"markets"`
}

// PoolConfig declares one liquidity pool whose share balance is valued
// through single-asset withdrawal simulation.
type PoolConfig struct {
	Name     string `toml:"name"`
	Network  string `toml:"network"`
	Address  string `toml:"address"`
	LPToken  string `toml:"lp_token"`
	Protocol string `toml:"protocol"`
}

// SpotToken declares one plain wallet balance to track.
type SpotToken struct {
	Network string `toml:"network"`
	Address string `toml:"address"`
}

// SpotConfig holds the spot balance adapter parameters.
type SpotConfig struct {
	Enabled       bool        `toml:"enabled"`
	Tokens        []SpotToken `toml:"tokens"`
	TrackNative   bool        `toml:"track_native"`
	NativeNetwork string      `toml:"native_network"`
}

// RewardsConfig holds the reward distributor feed parameters.
type RewardsConfig struct {
	Enabled  bool     `toml:"enabled"`
	BaseURL  string   `toml:"base_url"`
	Networks []string `toml:"networks"`
}

// QuoteConfig holds the swap quote service parameters used for
// sale simulation against the canonical asset.
type QuoteConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout duration `toml:"timeout"`
	// Intermediates maps a token address to the intermediate asset used
	// for two-hop conversion when no direct route to the canonical
	// asset exists.
	Intermediates map[string]string `toml:"intermediates"`
}

// PriceFeedConfig holds the external pool price feed parameters.
type PriceFeedConfig struct {
	BaseURL string `toml:"base_url"`
	// RatePools maps "BASE/QUOTE" symbol pairs to the pool whose market
	// price supplies the conversion rate.
	RatePools map[string]string `toml:"rate_pools"`
	// FallbackRate is the conservative rate applied when the feed is
	// unreachable, as a decimal string.
	FallbackRate string   `toml:"fallback_rate"`
	CacheTTL     duration `toml:"cache_ttl"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for raw
// snapshot archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Oracle: OracleConfig{
			CanonicalSymbol:   "USDC",
			CanonicalDecimals: 6,
			CanonicalNetwork:  "base",
			Interval:          duration{5 * time.Minute},
			RetryAttempts:     3,
			RetryBackoff:      duration{2 * time.Second},
		},
		Networks: map[string]NetworkConfig{},
		Lending: LendingConfig{
			Enabled:  true,
			Protocol: "aave",
		},
		Spot: SpotConfig{
			Enabled:     true,
			TrackNative: true,
		},
		Rewards: RewardsConfig{
			Enabled: true,
			BaseURL: "https://api.merkl.xyz",
		},
		Quote: QuoteConfig{
			BaseURL:       "https://api.cow.fi",
			Timeout:       duration{30 * time.Second},
			Intermediates: map[string]string{},
		},
		PriceFeed: PriceFeedConfig{
			BaseURL:      "https://api.geckoterminal.com/api/v2",
			RatePools:    map[string]string{},
			FallbackRate: "0.8",
			CacheTTL:     duration{60 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "navoracle",
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
			Bucket:         "navoracle-snapshots",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Mode:     "daemon",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"snapshot": true,
	"daemon":   true,
	"server":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: snapshot, daemon, server)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Oracle
	if c.Oracle.Address == "" {
		errs = append(errs, "oracle: address must not be empty")
	}
	if c.Oracle.CanonicalAddress == "" {
		errs = append(errs, "oracle: canonical_address must not be empty")
	}
	if c.Oracle.CanonicalDecimals < 0 || c.Oracle.CanonicalDecimals > 36 {
		errs = append(errs, fmt.Sprintf("oracle: canonical_decimals must be 0-36, got %d", c.Oracle.CanonicalDecimals))
	}
	if _, ok := c.Networks[c.Oracle.CanonicalNetwork]; !ok {
		errs = append(errs, fmt.Sprintf("oracle: canonical_network %q is not declared under [networks]", c.Oracle.CanonicalNetwork))
	}
	if c.Oracle.ShareToken != "" {
		if _, ok := c.Networks[c.Oracle.ShareTokenNetwork]; !ok {
			errs = append(errs, fmt.Sprintf("oracle: share_token_network %q is not declared under [networks]", c.Oracle.ShareTokenNetwork))
		}
	}
	if c.Oracle.RetryAttempts < 1 {
		errs = append(errs, "oracle: retry_attempts must be >= 1")
	}
	if c.Oracle.RetryBackoff.Duration < 0 {
		errs = append(errs, "oracle: retry_backoff must not be negative")
	}
	if c.Oracle.Interval.Duration <= 0 && c.Mode == "daemon" {
		errs = append(errs, "oracle: interval must be > 0 in daemon mode")
	}

	// Networks
	if len(c.Networks) == 0 {
		errs = append(errs, "networks: at least one network must be declared")
	}
	for name, net := range c.Networks {
		if net.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("networks.%s: rpc_url must not be empty", name))
		}
		if net.ChainID <= 0 {
			errs = append(errs, fmt.Sprintf("networks.%s: chain_id must be positive", name))
		}
	}

	// Lending markets must reference declared networks and carry both legs.
	if c.Lending.Enabled {
		for i, m := range c.Lending.Markets {
			if _, ok := c.Networks[m.Network]; !ok {
				errs = append(errs, fmt.Sprintf("lending.markets[%d]: network %q is not declared under [networks]", i, m.Network))
			}
			if m.SupplyToken == "" && m.DebtToken == "" {
				errs = append(errs, fmt.Sprintf("lending.markets[%d]: at least one of supply_token or debt_token must be set", i))
			}
		}
	}

	// Pools
	for i, p := range c.Pools {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("pools[%d]: name must not be empty", i))
		}
		if p.Address == "" {
			errs = append(errs, fmt.Sprintf("pools[%d]: address must not be empty", i))
		}
		if _, ok := c.Networks[p.Network]; !ok {
			errs = append(errs, fmt.Sprintf("pools[%d]: network %q is not declared under [networks]", i, p.Network))
		}
	}

	// Spot
	if c.Spot.Enabled {
		for i, tok := range c.Spot.Tokens {
			if _, ok := c.Networks[tok.Network]; !ok {
				errs = append(errs, fmt.Sprintf("spot.tokens[%d]: network %q is not declared under [networks]", i, tok.Network))
			}
		}
		if c.Spot.TrackNative && c.Spot.NativeNetwork != "" {
			if _, ok := c.Networks[c.Spot.NativeNetwork]; !ok {
				errs = append(errs, fmt.Sprintf("spot: native_network %q is not declared under [networks]", c.Spot.NativeNetwork))
			}
		}
	}

	// Rewards
	if c.Rewards.Enabled && c.Rewards.BaseURL == "" {
		errs = append(errs, "rewards: base_url must not be empty when enabled")
	}

	// Quote
	if c.Quote.BaseURL == "" {
		errs = append(errs, "quote: base_url must not be empty")
	}
	if c.Quote.Timeout.Duration <= 0 {
		errs = append(errs, "quote: timeout must be > 0")
	}

	// PriceFeed
	if c.PriceFeed.BaseURL == "" {
		errs = append(errs, "price_feed: base_url must not be empty")
	}
	if c.PriceFeed.FallbackRate == "" {
		errs = append(errs, "price_feed: fallback_rate must not be empty")
	}
	if c.PriceFeed.CacheTTL.Duration < 0 {
		errs = append(errs, "price_feed: cache_ttl must not be negative")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
