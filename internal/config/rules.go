package config

import (
	"fmt"
	"strings"
	"time"

	"alertcore/internal/domain"
	"alertcore/internal/retry"
	"alertcore/internal/rules"
)

// AlertRules converts configured rules to domain rules.
// Params: loaded config snapshot.
// Returns: rules in id order or the first conversion/validation error.
func AlertRules(cfg Config) ([]domain.AlertRule, error) {
	out := make([]domain.AlertRule, 0, len(cfg.Rule))
	for _, ruleCfg := range cfg.Rule {
		rule, err := ruleCfg.AlertRule()
		if err != nil {
			return nil, err
		}
		if err := rules.Validate(rule); err != nil {
			return nil, fmt.Errorf("rule.%s: %w", ruleCfg.ID, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// AlertRule converts one rule table to domain model.
// Params: none.
// Returns: domain rule with parsed severity/operator/channel values or an error naming the key path.
func (r RuleConfig) AlertRule() (domain.AlertRule, error) {
	path := "rule." + r.ID
	severity, err := domain.ParseSeverity(r.Severity)
	if err != nil {
		return domain.AlertRule{}, fmt.Errorf("%s.severity: %w", path, err)
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	rule := domain.AlertRule{
		ID:              r.ID,
		Name:            strings.TrimSpace(r.Name),
		Description:     r.Description,
		Severity:        severity,
		Enabled:         enabled,
		Tags:            append([]string(nil), r.Tags...),
		MessageTemplate: r.MessageTemplate,
		Metadata:        domain.RuleMetadata{CreatedBy: r.CreatedBy},
	}
	if rule.Name == "" {
		rule.Name = r.ID
	}

	for index, condCfg := range r.Condition {
		condPath := fmt.Sprintf("%s.condition[%d]", path, index)
		operator, err := domain.ParseOperator(condCfg.Operator)
		if err != nil {
			return domain.AlertRule{}, fmt.Errorf("%s.operator: %w", condPath, err)
		}
		if condCfg.TimeWindowSec < 0 || condCfg.EvaluationPeriodSec < 0 {
			return domain.AlertRule{}, fmt.Errorf("%s: time_window_sec and evaluation_period_sec must be >=0", condPath)
		}
		rule.Conditions = append(rule.Conditions, domain.AlertCondition{
			Metric:           strings.TrimSpace(condCfg.Metric),
			Operator:         operator,
			Threshold:        condCfg.Threshold,
			TimeWindow:       time.Duration(condCfg.TimeWindowSec) * time.Second,
			EvaluationPeriod: time.Duration(condCfg.EvaluationPeriodSec) * time.Second,
			Filters:          domain.CloneLabels(condCfg.Filters),
		})
	}

	for index, notifyCfg := range r.Notification {
		policy, err := notifyCfg.policy(fmt.Sprintf("%s.notification[%d]", path, index), severity)
		if err != nil {
			return domain.AlertRule{}, err
		}
		rule.Notifications = append(rule.Notifications, policy)
	}

	if r.Schedule != nil {
		rule.Schedule = &domain.Schedule{
			Timezone:    strings.TrimSpace(r.Schedule.Timezone),
			ActiveDays:  append([]int(nil), r.Schedule.ActiveDays...),
			ActiveHours: append([]string(nil), r.Schedule.ActiveHours...),
		}
	}
	return rule, nil
}

// policy converts one notification table.
// Params: key path for errors and rule severity used when severities is omitted.
// Returns: notification policy.
func (n NotificationConfig) policy(path string, ruleSeverity domain.Severity) (domain.AlertNotification, error) {
	channel, err := domain.ParseChannel(n.Channel)
	if err != nil {
		return domain.AlertNotification{}, fmt.Errorf("%s.channel: %w", path, err)
	}
	if n.CooldownSec < 0 {
		return domain.AlertNotification{}, fmt.Errorf("%s.cooldown_sec must be >=0", path)
	}
	policy := domain.AlertNotification{
		Channel:  channel,
		Config:   domain.CloneLabels(n.Config),
		Cooldown: time.Duration(n.CooldownSec) * time.Second,
	}
	if len(n.Severities) == 0 {
		policy.Severities = []domain.Severity{ruleSeverity}
	}
	for _, raw := range n.Severities {
		severity, err := domain.ParseSeverity(raw)
		if err != nil {
			return domain.AlertNotification{}, fmt.Errorf("%s.severities: %w", path, err)
		}
		policy.Severities = append(policy.Severities, severity)
	}
	if n.Escalation != nil {
		if n.Escalation.DelayMin <= 0 {
			return domain.AlertNotification{}, fmt.Errorf("%s.escalation.delay_min must be >0", path)
		}
		escalation := &domain.Escalation{Delay: time.Duration(n.Escalation.DelayMin) * time.Minute}
		for _, raw := range n.Escalation.EscalateTo {
			target, err := domain.ParseChannel(raw)
			if err != nil {
				return domain.AlertNotification{}, fmt.Errorf("%s.escalation.escalate_to: %w", path, err)
			}
			escalation.EscalateTo = append(escalation.EscalateTo, target)
		}
		policy.Escalation = escalation
	}
	return policy, nil
}

// RetryOverrides converts `[retry.<preset>]` tables to executor overrides.
// Params: loaded config snapshot.
// Returns: overrides keyed by preset name.
func RetryOverrides(cfg Config) map[string]retry.Overrides {
	if len(cfg.Retry) == 0 {
		return nil
	}
	out := make(map[string]retry.Overrides, len(cfg.Retry))
	for name, preset := range cfg.Retry {
		override := retry.Overrides{
			MaxRetries:         preset.MaxRetries,
			Strategy:           preset.Strategy,
			Jitter:             preset.Jitter,
			JitterFactor:       preset.JitterFactor,
			Multiplier:         preset.Multiplier,
			RetryableErrors:    preset.RetryableErrors,
			NonRetryableErrors: preset.NonRetryableErrors,
		}
		if preset.InitialDelayMS != nil {
			delay := time.Duration(*preset.InitialDelayMS) * time.Millisecond
			override.InitialDelay = &delay
		}
		if preset.MaxDelayMS != nil {
			delay := time.Duration(*preset.MaxDelayMS) * time.Millisecond
			override.MaxDelay = &delay
		}
		out[name] = override
	}
	return out
}

// ChannelEnabled reports whether channel transport is enabled in notify config.
// Params: notify config and channel.
// Returns: enabled flag; unknown channels are disabled.
func ChannelEnabled(cfg NotifyConfig, channel domain.Channel) bool {
	switch channel {
	case domain.ChannelSlack:
		return cfg.Slack.Enabled
	case domain.ChannelPagerDuty:
		return cfg.PagerDuty.Enabled
	case domain.ChannelWebhook:
		return cfg.Webhook.Enabled
	case domain.ChannelEmail:
		return cfg.Email.Enabled
	case domain.ChannelSMS:
		return cfg.SMS.Enabled
	case domain.ChannelTelegram:
		return cfg.Telegram.Enabled
	default:
		return false
	}
}

// Durations exposes second-based settings as time.Duration values.
type Durations struct {
	Reload           time.Duration
	SuppressionSweep time.Duration
	StatsExport      time.Duration
	EscalationPoll   time.Duration
	SeriesIdle       time.Duration
	Drain            time.Duration
	BaseBackoff      time.Duration
	AttemptTimeout   time.Duration
	Retention        time.Duration
	NATSAckWait      time.Duration
	NATSNackDelay    time.Duration
	PublishTimeout   time.Duration
}

// DurationsOf converts second/millisecond fields of cfg.
func DurationsOf(cfg Config) Durations {
	return Durations{
		Reload:           seconds(cfg.Service.ReloadIntervalSec),
		SuppressionSweep: seconds(cfg.Alerting.SuppressionSweepSec),
		StatsExport:      seconds(cfg.Alerting.StatsExportSec),
		EscalationPoll:   seconds(cfg.Alerting.EscalationPollSec),
		SeriesIdle:       seconds(cfg.Alerting.SeriesIdleSec),
		Drain:            seconds(cfg.Notify.DrainIntervalSec),
		BaseBackoff:      seconds(cfg.Notify.BaseBackoffSec),
		AttemptTimeout:   seconds(cfg.Notify.AttemptTimeoutSec),
		Retention:        seconds(cfg.Notify.RetentionSec),
		NATSAckWait:      seconds(cfg.Ingest.NATS.AckWaitSec),
		NATSNackDelay:    time.Duration(cfg.Ingest.NATS.NackDelayMS) * time.Millisecond,
		PublishTimeout:   seconds(cfg.Events.NATS.PublishTimeoutSec),
	}
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}
