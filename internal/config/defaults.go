package config

import "strings"

// applyDefaults fills missing optional fields.
// Params: mutable config snapshot.
// Returns: config updated in-place.
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.ReloadIntervalSec <= 0 {
		cfg.Service.ReloadIntervalSec = defaultReloadSeconds
	}

	if cfg.Log.Console.Level == "" {
		cfg.Log.Console.Level = "info"
	}
	if cfg.Log.Console.Format == "" {
		cfg.Log.Console.Format = "line"
	}
	if cfg.Log.File.Level == "" {
		cfg.Log.File.Level = "info"
	}
	if cfg.Log.File.Format == "" {
		cfg.Log.File.Format = "json"
	}
	if !cfg.Log.Console.Enabled && !cfg.Log.File.Enabled {
		cfg.Log.Console.Enabled = true
	}

	fillHTTPIngestDefaults(&cfg.Ingest.HTTP)
	fillNATSIngestDefaults(&cfg.Ingest.NATS)
	fillAlertingDefaults(&cfg.Alerting)
	fillNotifyDefaults(&cfg.Notify)

	events := &cfg.Events.NATS
	if len(events.URL) == 0 {
		events.URL = append([]string(nil), cfg.Ingest.NATS.URL...)
	}
	events.URL = normalizeNATSURLs(events.URL)
	if strings.TrimSpace(events.Subject) == "" {
		events.Subject = defaultNATSEventSubject
	}
	if strings.TrimSpace(events.Stream) == "" {
		events.Stream = defaultNATSEventStream
	}
	if events.PublishTimeoutSec <= 0 {
		events.PublishTimeoutSec = defaultNATSPublishTimeout
	}
}

func fillHTTPIngestDefaults(cfg *HTTPIngestConfig) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = defaultHTTPListen
	}
	if strings.TrimSpace(cfg.HealthPath) == "" {
		cfg.HealthPath = defaultHealthPath
	}
	if strings.TrimSpace(cfg.ReadyPath) == "" {
		cfg.ReadyPath = defaultReadyPath
	}
	if strings.TrimSpace(cfg.IngestPath) == "" {
		cfg.IngestPath = defaultIngestPath
	}
	if strings.TrimSpace(cfg.MetricsPath) == "" {
		cfg.MetricsPath = defaultMetricsPath
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
}

func fillNATSIngestDefaults(cfg *NATSIngestConfig) {
	cfg.URL = normalizeNATSURLs(cfg.URL)
	if len(cfg.URL) == 0 {
		cfg.URL = []string{defaultNATSURL}
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		cfg.Subject = defaultNATSSampleSubject
	}
	if strings.TrimSpace(cfg.Stream) == "" {
		cfg.Stream = defaultNATSSampleStream
	}
	if strings.TrimSpace(cfg.ConsumerName) == "" {
		cfg.ConsumerName = defaultNATSIngestConsumer
	}
	if strings.TrimSpace(cfg.DeliverGroup) == "" {
		cfg.DeliverGroup = defaultNATSIngestGroup
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultNATSIngestWorkers
	}
	if cfg.AckWaitSec <= 0 {
		cfg.AckWaitSec = defaultNATSAckWaitSec
	}
	if cfg.NackDelayMS == 0 {
		cfg.NackDelayMS = defaultNATSNackDelayMS
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = defaultNATSMaxDeliver
	}
	if cfg.MaxAckPending <= 0 {
		cfg.MaxAckPending = defaultNATSMaxAckPending
	}
}

func fillAlertingDefaults(cfg *AlertingConfig) {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.SuppressionSweepSec <= 0 {
		cfg.SuppressionSweepSec = defaultSuppressionSweepSec
	}
	if cfg.StatsExportSec <= 0 {
		cfg.StatsExportSec = defaultStatsExportSec
	}
	if cfg.EscalationPollSec <= 0 {
		cfg.EscalationPollSec = defaultEscalationPollSec
	}
	if cfg.SeriesIdleSec <= 0 {
		cfg.SeriesIdleSec = defaultSeriesIdleSec
	}
}

func fillNotifyDefaults(cfg *NotifyConfig) {
	if cfg.DrainIntervalSec <= 0 {
		cfg.DrainIntervalSec = defaultDrainIntervalSec
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultNotifyMaxRetries
	}
	if cfg.BaseBackoffSec <= 0 {
		cfg.BaseBackoffSec = defaultBaseBackoffSec
	}
	if cfg.AttemptTimeoutSec <= 0 {
		cfg.AttemptTimeoutSec = defaultAttemptTimeoutSec
	}
	if cfg.RetentionSec <= 0 {
		cfg.RetentionSec = defaultRetentionSec
	}
	if strings.TrimSpace(cfg.RetryPreset) == "" {
		cfg.RetryPreset = defaultRetryPreset
	}
	if strings.TrimSpace(cfg.PagerDuty.APIBase) == "" {
		cfg.PagerDuty.APIBase = defaultPagerDutyAPIBase
	}
	if strings.TrimSpace(cfg.Telegram.APIBase) == "" {
		cfg.Telegram.APIBase = defaultTelegramAPIBase
	}
	for _, webhook := range []*HTTPNotifier{&cfg.Webhook, &cfg.Email, &cfg.SMS} {
		if strings.TrimSpace(webhook.Method) == "" {
			webhook.Method = "POST"
		}
		webhook.Method = strings.ToUpper(strings.TrimSpace(webhook.Method))
	}
}

// normalizeNATSURLs trims URLs and drops empty entries.
func normalizeNATSURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
