package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Networks != nil {
		out.Networks = make(map[string]NetworkConfig, len(cfg.Networks))
		for k, v := range cfg.Networks {
			// RPC URLs commonly embed provider API keys.
			redact(&v.RPCURL)
			out.Networks[k] = v
		}
	}
	if cfg.Quote.Intermediates != nil {
		out.Quote.Intermediates = make(map[string]string, len(cfg.Quote.Intermediates))
		for k, v := range cfg.Quote.Intermediates {
			out.Quote.Intermediates[k] = v
		}
	}
	if cfg.PriceFeed.RatePools != nil {
		out.PriceFeed.RatePools = make(map[string]string, len(cfg.PriceFeed.RatePools))
		for k, v := range cfg.PriceFeed.RatePools {
			out.PriceFeed.RatePools[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
