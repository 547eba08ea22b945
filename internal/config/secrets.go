package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields
// replaced by the redaction placeholder "***". Use this when logging or
// printing the active configuration so secrets are never accidentally
// exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Wallet = cfg.Wallet
	redact(&out.Wallet.PrivateKey)

	out.Supabase = cfg.Supabase
	redact(&out.Supabase.DSN)
	redact(&out.Supabase.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.Rates = cfg.Rates
	redact(&out.Rates.APIKey)

	out.Advisor = cfg.Advisor
	redact(&out.Advisor.AnthropicAPIKey)

	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through
	// the redacted copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Chain.Pools != nil {
		out.Chain.Pools = make(map[string]string, len(cfg.Chain.Pools))
		for k, v := range cfg.Chain.Pools {
			out.Chain.Pools[k] = v
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
