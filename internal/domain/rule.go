package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks alert urgency.
// Params: LOW/MEDIUM/HIGH/CRITICAL constants.
// Returns: severity used for routing and statistics.
type Severity string

const (
	// SeverityLow marks informational alerts.
	SeverityLow Severity = "LOW"
	// SeverityMedium marks alerts that need attention during business hours.
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh marks alerts that need prompt attention.
	SeverityHigh Severity = "HIGH"
	// SeverityCritical marks alerts that page on-call.
	SeverityCritical Severity = "CRITICAL"
)

// Severities returns all severities ordered from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// ParseSeverity normalizes textual severity.
// Params: raw severity name in any case.
// Returns: severity constant or error for unknown values.
func ParseSeverity(raw string) (Severity, error) {
	switch Severity(strings.ToUpper(strings.TrimSpace(raw))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unsupported severity %q", raw)
	}
}

// Rank orders severities for comparisons.
// Params: none.
// Returns: 1..4 for known severities, 0 otherwise.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Operator is a numeric comparison applied against a threshold.
type Operator string

const (
	OperatorGT  Operator = "gt"
	OperatorGTE Operator = "gte"
	OperatorLT  Operator = "lt"
	OperatorLTE Operator = "lte"
	OperatorEQ  Operator = "eq"
	OperatorNE  Operator = "ne"
)

// ParseOperator accepts operator names and their symbolic forms.
// Params: raw operator ("gte" or ">=").
// Returns: operator constant or error.
func ParseOperator(raw string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gt", ">":
		return OperatorGT, nil
	case "gte", ">=":
		return OperatorGTE, nil
	case "lt", "<":
		return OperatorLT, nil
	case "lte", "<=":
		return OperatorLTE, nil
	case "eq", "==", "=":
		return OperatorEQ, nil
	case "ne", "!=":
		return OperatorNE, nil
	default:
		return "", fmt.Errorf("unsupported operator %q", raw)
	}
}

// Compare applies operator to value and threshold.
// Params: observed value and configured threshold.
// Returns: true when the comparison holds; unknown operators never hold.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OperatorGT:
		return value > threshold
	case OperatorGTE:
		return value >= threshold
	case OperatorLT:
		return value < threshold
	case OperatorLTE:
		return value <= threshold
	case OperatorEQ:
		return value == threshold
	case OperatorNE:
		return value != threshold
	default:
		return false
	}
}

// Symbol renders operator in comparison form for messages.
func (o Operator) Symbol() string {
	switch o {
	case OperatorGT:
		return ">"
	case OperatorGTE:
		return ">="
	case OperatorLT:
		return "<"
	case OperatorLTE:
		return "<="
	case OperatorEQ:
		return "=="
	case OperatorNE:
		return "!="
	default:
		return string(o)
	}
}

// AlertCondition is one threshold comparison against a named metric.
// Params: metric key, operator, threshold, windows, and label filters.
// Returns: immutable condition attached to a rule.
type AlertCondition struct {
	Metric           string            `json:"metric"`
	Operator         Operator          `json:"operator"`
	Threshold        float64           `json:"threshold"`
	TimeWindow       time.Duration     `json:"time_window,omitempty"`
	EvaluationPeriod time.Duration     `json:"evaluation_period,omitempty"`
	Filters          map[string]string `json:"filters,omitempty"`
}

// Escalation describes follow-up channels for an unresolved alert.
type Escalation struct {
	Delay      time.Duration `json:"delay"`
	EscalateTo []Channel     `json:"escalate_to"`
}

// AlertNotification binds one channel to a severity subset.
// Params: channel, severities, channel config, cooldown, and optional escalation.
// Returns: notification policy of a rule.
type AlertNotification struct {
	Channel    Channel           `json:"channel"`
	Severities []Severity        `json:"severities"`
	Config     map[string]string `json:"config,omitempty"`
	Cooldown   time.Duration     `json:"cooldown,omitempty"`
	Escalation *Escalation       `json:"escalation,omitempty"`
}

// AppliesTo reports whether policy covers severity.
// Params: alert severity.
// Returns: true when severity is listed.
func (n AlertNotification) AppliesTo(severity Severity) bool {
	for _, candidate := range n.Severities {
		if candidate == severity {
			return true
		}
	}
	return false
}

// Schedule restricts when a rule may fire.
// Params: IANA timezone, active days (1=Mon..7=Sun, 0=Sun), and HH:MM-HH:MM windows.
// Returns: schedule gate for condition evaluation.
type Schedule struct {
	Timezone    string   `json:"timezone,omitempty"`
	ActiveDays  []int    `json:"active_days,omitempty"`
	ActiveHours []string `json:"active_hours,omitempty"`

	// Window is the parsed form, set when the rule is stored in a registry.
	Window ActiveWindow `json:"-"`
}

// ActiveWindow answers schedule membership for an instant.
type ActiveWindow interface {
	ActiveAt(t time.Time) bool
}

// RuleMetadata is the audit trail kept on a rule.
type RuleMetadata struct {
	CreatedAt       time.Time  `json:"created_at"`
	CreatedBy       string     `json:"created_by,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	TriggerCount    int64      `json:"trigger_count"`
}

// AlertRule is a declarative alert definition.
// Params: identity, severity, conditions, notification policies, tags, schedule, and metadata.
// Returns: rule held by the registry.
type AlertRule struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	Severity        Severity            `json:"severity"`
	Enabled         bool                `json:"enabled"`
	Conditions      []AlertCondition    `json:"conditions"`
	Notifications   []AlertNotification `json:"notifications"`
	Tags            []string            `json:"tags,omitempty"`
	Schedule        *Schedule           `json:"schedule,omitempty"`
	MessageTemplate string              `json:"message_template,omitempty"`
	Metadata        RuleMetadata        `json:"metadata"`
}

// CanFire reports whether rule is able to produce alerts at all.
// Params: none.
// Returns: false for disabled rules and rules without conditions.
func (r AlertRule) CanFire() bool {
	return r.Enabled && len(r.Conditions) > 0
}

// NotificationsFor returns policies covering severity.
// Params: alert severity.
// Returns: matching policies in declaration order.
func (r AlertRule) NotificationsFor(severity Severity) []AlertNotification {
	out := make([]AlertNotification, 0, len(r.Notifications))
	for _, policy := range r.Notifications {
		if policy.AppliesTo(severity) {
			out = append(out, policy)
		}
	}
	return out
}

// ConditionsFor returns conditions bound to metric.
// Params: metric name.
// Returns: matching conditions.
func (r AlertRule) ConditionsFor(metric string) []AlertCondition {
	var out []AlertCondition
	for _, condition := range r.Conditions {
		if condition.Metric == metric {
			out = append(out, condition)
		}
	}
	return out
}
