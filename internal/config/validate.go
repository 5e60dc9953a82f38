package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"alertcore/internal/domain"
	"alertcore/internal/retry"
)

// validateConfig checks cross-field constraints after defaults.
// Params: config snapshot with defaults applied.
// Returns: first error naming the offending key path.
func validateConfig(cfg Config) error {
	if len(cfg.Rule) == 0 {
		return errors.New("at least one rule is required")
	}
	if err := validateLogSink("log.console", cfg.Log.Console, false); err != nil {
		return err
	}
	if err := validateLogSink("log.file", cfg.Log.File, true); err != nil {
		return err
	}
	if err := validateIngest(cfg.Ingest); err != nil {
		return err
	}
	if cfg.Events.NATS.Enabled && len(cfg.Events.NATS.URL) == 0 {
		return errors.New("events.nats.url is required when events.nats.enabled=true")
	}
	if err := validateNotify(cfg.Notify); err != nil {
		return err
	}

	registry, err := retry.NewRegistry(RetryOverrides(cfg))
	if err != nil {
		var presetErr *retry.PresetError
		if errors.As(err, &presetErr) {
			return fmt.Errorf("retry.%s: %w", presetErr.Name, presetErr.Err)
		}
		return err
	}
	if _, ok := registry.Get(cfg.Notify.RetryPreset); !ok {
		return fmt.Errorf("notify.retry_preset has unknown value %q", cfg.Notify.RetryPreset)
	}

	converted, err := AlertRules(cfg)
	if err != nil {
		return err
	}
	for _, rule := range converted {
		if err := validateRuleChannels(cfg.Notify, rule); err != nil {
			return err
		}
	}
	return nil
}

// validateIngest checks HTTP and NATS ingest sections.
func validateIngest(cfg IngestConfig) error {
	paths := map[string]string{
		"ingest.http.health_path":  cfg.HTTP.HealthPath,
		"ingest.http.ready_path":   cfg.HTTP.ReadyPath,
		"ingest.http.ingest_path":  cfg.HTTP.IngestPath,
		"ingest.http.metrics_path": cfg.HTTP.MetricsPath,
	}
	for key, value := range paths {
		if !strings.HasPrefix(value, "/") {
			return fmt.Errorf("%s must start with '/'", key)
		}
	}
	if !cfg.NATS.Enabled {
		return nil
	}
	if len(cfg.NATS.URL) == 0 {
		return errors.New("ingest.nats.url is required when ingest.nats.enabled=true")
	}
	if cfg.NATS.NackDelayMS < 0 {
		return errors.New("ingest.nats.nack_delay_ms must be >=0")
	}
	if cfg.NATS.MaxDeliver == 0 || cfg.NATS.MaxDeliver < -1 {
		return errors.New("ingest.nats.max_deliver must be -1 or >0")
	}
	return nil
}

// validateNotify checks dispatcher policy and enabled channel transports.
func validateNotify(cfg NotifyConfig) error {
	if cfg.MaxRetries < 0 {
		return errors.New("notify.max_retries must be >=0")
	}
	if cfg.Slack.Enabled {
		if err := validateURL("notify.slack.webhook_url", cfg.Slack.WebhookURL); err != nil {
			return err
		}
	}
	if cfg.PagerDuty.Enabled {
		if err := validateURL("notify.pagerduty.api_base", cfg.PagerDuty.APIBase); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.PagerDuty.RoutingKey) == "" {
			return errors.New("notify.pagerduty.routing_key is required when notify.pagerduty.enabled=true")
		}
	}
	webhooks := []struct {
		name string
		cfg  HTTPNotifier
	}{
		{name: "notify.webhook", cfg: cfg.Webhook},
		{name: "notify.email", cfg: cfg.Email},
		{name: "notify.sms", cfg: cfg.SMS},
	}
	for _, webhook := range webhooks {
		if !webhook.cfg.Enabled {
			continue
		}
		if err := validateURL(webhook.name+".url", webhook.cfg.URL); err != nil {
			return err
		}
		switch webhook.cfg.Method {
		case "POST", "PUT":
		default:
			return fmt.Errorf("%s.method has unsupported value %q", webhook.name, webhook.cfg.Method)
		}
	}
	if cfg.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.BotToken) == "" {
			return errors.New("notify.telegram.bot_token is required when notify.telegram.enabled=true")
		}
		if err := validateURL("notify.telegram.api_base", cfg.Telegram.APIBase); err != nil {
			return err
		}
	}
	return nil
}

// validateRuleChannels ensures rule notifications target enabled transports.
// Params: notify config and converted rule.
// Returns: error naming the notification entry.
func validateRuleChannels(cfg NotifyConfig, rule domain.AlertRule) error {
	for index, policy := range rule.Notifications {
		path := fmt.Sprintf("rule.%s.notification[%d]", rule.ID, index)
		if !ChannelEnabled(cfg, policy.Channel) {
			return fmt.Errorf("%s.channel %q is not enabled in [notify.%s]", path, policy.Channel, policy.Channel)
		}
		if policy.Escalation == nil {
			continue
		}
		for _, target := range policy.Escalation.EscalateTo {
			if !ChannelEnabled(cfg, target) {
				return fmt.Errorf("%s.escalation.escalate_to %q is not enabled in [notify.%s]", path, target, target)
			}
		}
	}
	return nil
}

func validateURL(key, raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%s is required", key)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", key)
	}
	return nil
}

// validateLogSink validates one log sink configuration.
// Params: sink name, sink values, and whether path is required.
// Returns: sink validation error.
func validateLogSink(name string, sink LogSinkConfig, requirePath bool) error {
	if !sink.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(sink.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%s.level has unsupported value %q", name, sink.Level)
	}

	switch strings.ToLower(strings.TrimSpace(sink.Format)) {
	case "line", "json":
	default:
		return fmt.Errorf("%s.format has unsupported value %q", name, sink.Format)
	}

	if requirePath && strings.TrimSpace(sink.Path) == "" {
		return fmt.Errorf("%s.path is required", name)
	}

	return nil
}
