package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultServiceName         = "alertcore"
	defaultHTTPListen          = ":8080"
	defaultHealthPath          = "/healthz"
	defaultReadyPath           = "/readyz"
	defaultIngestPath          = "/ingest"
	defaultMetricsPath         = "/metrics"
	defaultMaxBodyBytes        = 2 << 20
	defaultNATSURL             = "nats://127.0.0.1:4222"
	defaultNATSSampleSubject   = "alertcore.samples"
	defaultNATSSampleStream    = "ALERTCORE_SAMPLES"
	defaultNATSIngestConsumer  = "alertcore-ingest"
	defaultNATSIngestGroup     = "alertcore-workers"
	defaultNATSIngestWorkers   = 1
	defaultNATSAckWaitSec      = 30
	defaultNATSNackDelayMS     = 1000
	defaultNATSMaxDeliver      = -1
	defaultNATSMaxAckPending   = 2048
	defaultNATSEventSubject    = "alertcore.events"
	defaultNATSEventStream     = "ALERTCORE_EVENTS"
	defaultNATSPublishTimeout  = 5
	defaultReloadSeconds       = 5
	defaultHistorySize         = 1000
	defaultSuppressionSweepSec = 60
	defaultStatsExportSec      = 300
	defaultEscalationPollSec   = 5
	defaultSeriesIdleSec       = 3600
	defaultDrainIntervalSec    = 30
	defaultNotifyMaxRetries    = 3
	defaultBaseBackoffSec      = 60
	defaultAttemptTimeoutSec   = 10
	defaultRetentionSec        = 24 * 60 * 60
	defaultRetryPreset         = "quick"
	defaultPagerDutyAPIBase    = "https://events.pagerduty.com"
	defaultTelegramAPIBase     = "https://api.telegram.org"
)

var legacyRuleArrayPattern = regexp.MustCompile(`(?m)^\s*\[\[\s*rule\s*\]\]`)

// Config holds service runtime settings and alert rules.
// Params: TOML sections from file or merged directory snapshot.
// Returns: validated runtime configuration.
type Config struct {
	Service  ServiceConfig                `toml:"service"`
	Log      LogConfig                    `toml:"log"`
	Ingest   IngestConfig                 `toml:"ingest"`
	Alerting AlertingConfig               `toml:"alerting"`
	Notify   NotifyConfig                 `toml:"notify"`
	Events   EventsConfig                 `toml:"events"`
	Retry    map[string]RetryPresetConfig `toml:"retry"`
	Rule     []RuleConfig                 `toml:"rule"`
}

// rawConfig mirrors TOML model before runtime normalization.
// Params: decoded sections from one TOML source.
// Returns: raw rule map keyed by rule id.
type rawConfig struct {
	Service  ServiceConfig                `toml:"service"`
	Log      LogConfig                    `toml:"log"`
	Ingest   IngestConfig                 `toml:"ingest"`
	Alerting AlertingConfig               `toml:"alerting"`
	Notify   NotifyConfig                 `toml:"notify"`
	Events   EventsConfig                 `toml:"events"`
	Retry    map[string]RetryPresetConfig `toml:"retry"`
	Rule     map[string]rawRuleConfig     `toml:"rule"`
}

// ServiceConfig contains process-level settings.
type ServiceConfig struct {
	Name              string `toml:"name"`
	ReloadEnabled     bool   `toml:"reload_enabled"`
	ReloadIntervalSec int    `toml:"reload_interval_sec"`
}

// IngestConfig defines inbound sample interfaces.
// Params: embedded HTTP and NATS subscription controls.
// Returns: ingestion runtime options.
type IngestConfig struct {
	HTTP HTTPIngestConfig `toml:"http"`
	NATS NATSIngestConfig `toml:"nats"`
}

// HTTPIngestConfig configures the HTTP listener shared by ingest, admin API and metrics.
// Params: enable flag, listen/endpoints, and optional body size limit.
// Returns: HTTP server behavior.
type HTTPIngestConfig struct {
	Enabled      bool   `toml:"enabled"`
	Listen       string `toml:"listen"`
	HealthPath   string `toml:"health_path"`
	ReadyPath    string `toml:"ready_path"`
	IngestPath   string `toml:"ingest_path"`
	MetricsPath  string `toml:"metrics_path"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// NATSIngestConfig configures JetStream queue-consumer ingestion.
// Params: connection, routing keys, and worker/ack/redelivery policy.
// Returns: NATS ingest behavior.
type NATSIngestConfig struct {
	Enabled       bool     `toml:"enabled"`
	URL           []string `toml:"url"`
	Subject       string   `toml:"subject"`
	Stream        string   `toml:"stream"`
	ConsumerName  string   `toml:"consumer_name"`
	DeliverGroup  string   `toml:"deliver_group"`
	Workers       int      `toml:"workers"`
	AckWaitSec    int      `toml:"ack_wait_sec"`
	NackDelayMS   int      `toml:"nack_delay_ms"`
	MaxDeliver    int      `toml:"max_deliver"`
	MaxAckPending int      `toml:"max_ack_pending"`
}

// AlertingConfig tunes the lifecycle manager and its periodic tasks.
type AlertingConfig struct {
	HistorySize               int  `toml:"history_size"`
	SuppressionSweepSec       int  `toml:"suppression_sweep_sec"`
	StatsExportSec            int  `toml:"stats_export_sec"`
	EscalationPollSec         int  `toml:"escalation_poll_sec"`
	SeriesIdleSec             int  `toml:"series_idle_sec"`
	ResumeOnSuppressionExpiry bool `toml:"resume_on_suppression_expiry"`
}

// NotifyConfig contains dispatcher policy and channel transports.
// Params: drain cadence, delivery retry policy, and per-channel settings.
// Returns: notification runtime options.
type NotifyConfig struct {
	DrainIntervalSec  int    `toml:"drain_interval_sec"`
	MaxRetries        int    `toml:"max_retries"`
	BaseBackoffSec    int    `toml:"base_backoff_sec"`
	AttemptTimeoutSec int    `toml:"attempt_timeout_sec"`
	RetentionSec      int    `toml:"retention_sec"`
	RetryPreset       string `toml:"retry_preset"`

	Slack     SlackNotifier     `toml:"slack"`
	PagerDuty PagerDutyNotifier `toml:"pagerduty"`
	Webhook   HTTPNotifier      `toml:"webhook"`
	Email     HTTPNotifier      `toml:"email"`
	SMS       HTTPNotifier      `toml:"sms"`
	Telegram  TelegramNotifier  `toml:"telegram"`
}

// SlackNotifier configures Slack incoming-webhook delivery.
type SlackNotifier struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
	Username   string `toml:"username"`
	Channel    string `toml:"channel"`
}

// PagerDutyNotifier configures PagerDuty Events API v2 delivery.
type PagerDutyNotifier struct {
	Enabled    bool   `toml:"enabled"`
	APIBase    string `toml:"api_base"`
	RoutingKey string `toml:"routing_key"`
	Source     string `toml:"source"`
}

// HTTPNotifier configures generic JSON webhook delivery.
// Params: endpoint URL, method, and static headers.
// Returns: webhook transport settings for webhook/email/sms gateways.
type HTTPNotifier struct {
	Enabled bool              `toml:"enabled"`
	URL     string            `toml:"url"`
	Method  string            `toml:"method"`
	Headers map[string]string `toml:"headers"`
}

// TelegramNotifier configures Telegram Bot API delivery.
type TelegramNotifier struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
	APIBase  string `toml:"api_base"`
}

// EventsConfig configures outbound alert event streams.
type EventsConfig struct {
	NATS NATSEventsConfig `toml:"nats"`
}

// NATSEventsConfig configures the JetStream audit stream of alert events.
// Params: connection (defaults to ingest.nats.url), subject prefix, stream, and publish timeout.
// Returns: event publisher settings.
type NATSEventsConfig struct {
	Enabled           bool     `toml:"enabled"`
	URL               []string `toml:"url"`
	Subject           string   `toml:"subject"`
	Stream            string   `toml:"stream"`
	PublishTimeoutSec int      `toml:"publish_timeout_sec"`
}

// RetryPresetConfig overrides fields of one named retry preset.
// Params: sparse fields; unset keys keep preset values.
// Returns: preset override block.
type RetryPresetConfig struct {
	MaxRetries         *int     `toml:"max_retries"`
	Strategy           string   `toml:"strategy"`
	InitialDelayMS     *int     `toml:"initial_delay_ms"`
	MaxDelayMS         *int     `toml:"max_delay_ms"`
	Jitter             *bool    `toml:"jitter"`
	JitterFactor       *float64 `toml:"jitter_factor"`
	Multiplier         *float64 `toml:"multiplier"`
	RetryableErrors    []string `toml:"retryable_errors"`
	NonRetryableErrors []string `toml:"non_retryable_errors"`
}

// LogConfig contains console/file logging sinks.
// Params: sink settings for each output target.
// Returns: logger setup options.
type LogConfig struct {
	Console LogSinkConfig `toml:"console"`
	File    LogSinkConfig `toml:"file"`
}

// LogSinkConfig defines one logging sink.
// Params: sink enable flag, level, format, and path.
// Returns: sink-specific behavior.
type LogSinkConfig struct {
	Enabled bool   `toml:"enabled"`
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Path    string `toml:"path"`
}

// RuleConfig describes one alert rule.
// Params: identity, severity, conditions, notification policies, and schedule.
// Returns: rule definition before conversion to domain.AlertRule.
type RuleConfig struct {
	ID              string               `toml:"-"`
	Name            string               `toml:"name"`
	Description     string               `toml:"description"`
	Severity        string               `toml:"severity"`
	Enabled         *bool                `toml:"enabled"`
	Tags            []string             `toml:"tags"`
	MessageTemplate string               `toml:"message_template"`
	CreatedBy       string               `toml:"created_by"`
	Condition       []ConditionConfig    `toml:"condition"`
	Notification    []NotificationConfig `toml:"notification"`
	Schedule        *ScheduleConfig      `toml:"schedule"`
}

// rawRuleConfig stores one rule body from `[rule.<id>]` table.
type rawRuleConfig struct {
	ID              string               `toml:"id"`
	Name            string               `toml:"name"`
	Description     string               `toml:"description"`
	Severity        string               `toml:"severity"`
	Enabled         *bool                `toml:"enabled"`
	Tags            []string             `toml:"tags"`
	MessageTemplate string               `toml:"message_template"`
	CreatedBy       string               `toml:"created_by"`
	Condition       []ConditionConfig    `toml:"condition"`
	Notification    []NotificationConfig `toml:"notification"`
	Schedule        *ScheduleConfig      `toml:"schedule"`
}

// ConditionConfig is one `[[rule.<id>.condition]]` entry.
type ConditionConfig struct {
	Metric              string            `toml:"metric"`
	Operator            string            `toml:"operator"`
	Threshold           float64           `toml:"threshold"`
	TimeWindowSec       int               `toml:"time_window_sec"`
	EvaluationPeriodSec int               `toml:"evaluation_period_sec"`
	Filters             map[string]string `toml:"filters"`
}

// NotificationConfig is one `[[rule.<id>.notification]]` entry.
// Params: channel, severity subset, channel overrides, cooldown, and escalation.
// Returns: notification policy definition.
type NotificationConfig struct {
	Channel     string            `toml:"channel"`
	Severities  []string          `toml:"severities"`
	Config      map[string]string `toml:"config"`
	CooldownSec int               `toml:"cooldown_sec"`
	Escalation  *EscalationConfig `toml:"escalation"`
}

// EscalationConfig sends to escalate_to channels after delay_min minutes unresolved.
type EscalationConfig struct {
	DelayMin   int      `toml:"delay_min"`
	EscalateTo []string `toml:"escalate_to"`
}

// ScheduleConfig is the `[rule.<id>.schedule]` table.
type ScheduleConfig struct {
	Timezone    string   `toml:"timezone"`
	ActiveDays  []int    `toml:"active_days"`
	ActiveHours []string `toml:"active_hours"`
}

// ConfigSource describes file or directory config source.
// Params: exactly one of file path or directory path.
// Returns: normalized source descriptor.
type ConfigSource struct {
	File string
	Dir  string
}

// FromCLI builds normalized source configuration from input paths.
// Params: optional file and directory arguments.
// Returns: source descriptor or validation error.
func FromCLI(filePath, dirPath string) (ConfigSource, error) {
	filePath = strings.TrimSpace(filePath)
	dirPath = strings.TrimSpace(dirPath)

	if filePath == "" && dirPath == "" {
		return ConfigSource{}, errors.New("either --config-file or --config-dir must be provided")
	}
	if filePath != "" && dirPath != "" {
		return ConfigSource{}, errors.New("config source must be either file or dir")
	}

	if filePath != "" {
		return ConfigSource{File: filePath}, nil
	}
	return ConfigSource{Dir: dirPath}, nil
}

// LoadSnapshot loads and validates configuration from one source.
// Params: source selects file or directory mode.
// Returns: validated config or load/validation error.
func LoadSnapshot(src ConfigSource) (Config, error) {
	var cfg Config
	var err error
	if src.File != "" {
		cfg, err = loadFile(src.File)
	} else {
		cfg, err = loadDir(src.Dir)
	}
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fragment is one decoded TOML source with its key tree.
// Params: normalized config and generic tree used for key-presence checks.
// Returns: merge input for directory mode.
type fragment struct {
	cfg  Config
	tree map[string]any
}

// normalizeRawConfig converts raw TOML model to runtime config.
// Params: decoded raw config from file fragment.
// Returns: normalized config snapshot with rules sorted by id.
func normalizeRawConfig(raw rawConfig) (Config, error) {
	cfg := Config{
		Service:  raw.Service,
		Log:      raw.Log,
		Ingest:   raw.Ingest,
		Alerting: raw.Alerting,
		Notify:   raw.Notify,
		Events:   raw.Events,
		Retry:    raw.Retry,
	}
	if len(raw.Rule) == 0 {
		return cfg, nil
	}

	ids := make([]string, 0, len(raw.Rule))
	for id := range raw.Rule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	cfg.Rule = make([]RuleConfig, 0, len(ids))
	for _, id := range ids {
		body := raw.Rule[id]
		if strings.TrimSpace(body.ID) != "" {
			return Config{}, fmt.Errorf("rule.%s.id is not supported; use [rule.%s] key as rule id", id, id)
		}
		cfg.Rule = append(cfg.Rule, RuleConfig{
			ID:              id,
			Name:            body.Name,
			Description:     body.Description,
			Severity:        body.Severity,
			Enabled:         body.Enabled,
			Tags:            body.Tags,
			MessageTemplate: body.MessageTemplate,
			CreatedBy:       body.CreatedBy,
			Condition:       body.Condition,
			Notification:    body.Notification,
			Schedule:        body.Schedule,
		})
	}
	return cfg, nil
}

// decodeFile reads one TOML file into config and key tree.
// Params: file path to config snapshot or fragment.
// Returns: decoded fragment or read/decode error.
func decodeFile(path string) (fragment, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return fragment{}, fmt.Errorf("read config file %q: %w", path, err)
	}
	if legacyRuleArrayPattern.Match(body) {
		return fragment{}, fmt.Errorf("decode config file %q: legacy [[rule]] format is not supported; use [rule.<rule_id>] tables", path)
	}
	var raw rawConfig
	if err := toml.Unmarshal(body, &raw); err != nil {
		return fragment{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	cfg, err := normalizeRawConfig(raw)
	if err != nil {
		return fragment{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	var tree map[string]any
	if err := toml.Unmarshal(body, &tree); err != nil {
		return fragment{}, fmt.Errorf("decode config file %q: %w", path, err)
	}
	return fragment{cfg: cfg, tree: tree}, nil
}

// loadFile reads one TOML configuration file.
// Params: file path to config snapshot.
// Returns: decoded config or read/decode error.
func loadFile(path string) (Config, error) {
	frag, err := decodeFile(path)
	if err != nil {
		return Config{}, err
	}
	return frag.cfg, nil
}

// loadDir reads and merges TOML files from one directory.
// Params: directory containing config fragments.
// Returns: merged config snapshot or load/decode error.
func loadDir(dir string) (Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Config{}, fmt.Errorf("read config dir %q: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.ToLower(filepath.Ext(name)) != ".toml" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	if len(files) == 0 {
		return Config{}, fmt.Errorf("no .toml files found in %q", dir)
	}
	sort.Strings(files)

	var merged Config
	owners := make(map[string]string)
	for _, file := range files {
		frag, err := decodeFile(file)
		if err != nil {
			return Config{}, err
		}
		for _, rule := range frag.cfg.Rule {
			if previous, ok := owners[rule.ID]; ok {
				return Config{}, fmt.Errorf("rule.%s is defined in both %q and %q", rule.ID, previous, file)
			}
			owners[rule.ID] = file
		}
		mergeConfig(&merged, frag)
	}
	sort.Slice(merged.Rule, func(i, j int) bool { return merged.Rule[i].ID < merged.Rule[j].ID })
	return merged, nil
}

// mergeConfig overlays one fragment onto destination.
// Params: destination config and next fragment; a table present in the fragment replaces the earlier one.
// Returns: merged configuration side-effect in dst.
func mergeConfig(dst *Config, frag fragment) {
	src := frag.cfg
	if hasKey(frag.tree, "service") {
		dst.Service = src.Service
	}
	if hasKey(frag.tree, "log", "console") {
		dst.Log.Console = src.Log.Console
	}
	if hasKey(frag.tree, "log", "file") {
		dst.Log.File = src.Log.File
	}
	if hasKey(frag.tree, "ingest", "http") {
		dst.Ingest.HTTP = src.Ingest.HTTP
	}
	if hasKey(frag.tree, "ingest", "nats") {
		dst.Ingest.NATS = src.Ingest.NATS
	}
	if hasKey(frag.tree, "alerting") {
		dst.Alerting = src.Alerting
	}
	if hasKey(frag.tree, "events", "nats") {
		dst.Events.NATS = src.Events.NATS
	}
	mergeNotifyConfig(&dst.Notify, src.Notify, frag.tree)
	for name, preset := range src.Retry {
		if dst.Retry == nil {
			dst.Retry = make(map[string]RetryPresetConfig)
		}
		dst.Retry[name] = preset
	}
	dst.Rule = append(dst.Rule, src.Rule...)
}

// mergeNotifyConfig overlays notify scalars and channel tables present in fragment.
// Params: destination notify config, fragment values, and fragment key tree.
// Returns: merged notify config side-effect in dst.
func mergeNotifyConfig(dst *NotifyConfig, src NotifyConfig, tree map[string]any) {
	if !hasKey(tree, "notify") {
		return
	}
	if hasKey(tree, "notify", "drain_interval_sec") {
		dst.DrainIntervalSec = src.DrainIntervalSec
	}
	if hasKey(tree, "notify", "max_retries") {
		dst.MaxRetries = src.MaxRetries
	}
	if hasKey(tree, "notify", "base_backoff_sec") {
		dst.BaseBackoffSec = src.BaseBackoffSec
	}
	if hasKey(tree, "notify", "attempt_timeout_sec") {
		dst.AttemptTimeoutSec = src.AttemptTimeoutSec
	}
	if hasKey(tree, "notify", "retention_sec") {
		dst.RetentionSec = src.RetentionSec
	}
	if hasKey(tree, "notify", "retry_preset") {
		dst.RetryPreset = src.RetryPreset
	}
	if hasKey(tree, "notify", "slack") {
		dst.Slack = src.Slack
	}
	if hasKey(tree, "notify", "pagerduty") {
		dst.PagerDuty = src.PagerDuty
	}
	if hasKey(tree, "notify", "webhook") {
		dst.Webhook = src.Webhook
	}
	if hasKey(tree, "notify", "email") {
		dst.Email = src.Email
	}
	if hasKey(tree, "notify", "sms") {
		dst.SMS = src.SMS
	}
	if hasKey(tree, "notify", "telegram") {
		dst.Telegram = src.Telegram
	}
}

// hasKey reports whether nested key path exists in decoded TOML tree.
func hasKey(tree map[string]any, path ...string) bool {
	current := tree
	for i, key := range path {
		value, ok := current[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			return true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	return len(path) == 0
}
