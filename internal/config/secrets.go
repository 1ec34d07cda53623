package config

// Redacted returns a copy of cfg with sensitive fields replaced by "***".
// Use this when logging the active configuration.
func Redacted(cfg *Config) Config {
	out := *cfg

	redact(&out.Session.Password)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Notify.TelegramBotToken)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
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
