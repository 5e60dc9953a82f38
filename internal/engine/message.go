package engine

import (
	"log/slog"
	"strings"
	"text/template"

	"alertcore/internal/domain"
	"alertcore/internal/templatefmt"
)

// MessageData is the template context of a rule message_template.
type MessageData struct {
	RuleID    string
	RuleName  string
	Severity  domain.Severity
	Metric    string
	Operator  string
	Threshold float64
	Value     float64
	Labels    map[string]string
}

// DefaultMessage renders "<rule name>: <metric> <op> <threshold> (value <v>)".
// Params: rule, condition that fired, and observed value.
// Returns: plain-text alert message.
func DefaultMessage(rule domain.AlertRule, condition domain.AlertCondition, value float64) string {
	name := rule.Name
	if strings.TrimSpace(name) == "" {
		name = rule.ID
	}
	var builder strings.Builder
	builder.WriteString(name)
	builder.WriteString(": ")
	builder.WriteString(condition.Metric)
	builder.WriteByte(' ')
	builder.WriteString(condition.Operator.Symbol())
	builder.WriteByte(' ')
	builder.WriteString(formatThreshold(condition.Threshold))
	builder.WriteString(" (value ")
	builder.WriteString(formatThreshold(value))
	builder.WriteByte(')')
	return builder.String()
}

// RenderMessage renders rule message_template or falls back to DefaultMessage.
// Params: rule, condition, observed value, and labels.
// Returns: rendered message or template error.
func RenderMessage(rule domain.AlertRule, condition domain.AlertCondition, value float64, labels map[string]string) (string, error) {
	if strings.TrimSpace(rule.MessageTemplate) == "" {
		return DefaultMessage(rule, condition, value), nil
	}
	tmpl, err := templatefmt.ParseMessageTemplate(rule.ID, rule.MessageTemplate)
	if err != nil {
		return "", err
	}
	return templatefmt.Render(tmpl, messageData(rule, condition, value, labels))
}

func messageData(rule domain.AlertRule, condition domain.AlertCondition, value float64, labels map[string]string) MessageData {
	return MessageData{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Severity:  rule.Severity,
		Metric:    condition.Metric,
		Operator:  condition.Operator.Symbol(),
		Threshold: condition.Threshold,
		Value:     value,
		Labels:    labels,
	}
}

// messageCache keeps compiled templates keyed by rule id and body.
// Guarded by the Evaluator mutex.
type messageCache struct {
	compiled map[string]*template.Template
}

func newMessageCache() *messageCache {
	return &messageCache{compiled: make(map[string]*template.Template)}
}

func (c *messageCache) render(logger *slog.Logger, rule domain.AlertRule, condition domain.AlertCondition, decision Decision) string {
	body := strings.TrimSpace(rule.MessageTemplate)
	if body == "" {
		return DefaultMessage(rule, condition, decision.Value)
	}
	key := rule.ID + "\x00" + body
	tmpl, ok := c.compiled[key]
	if !ok {
		parsed, err := templatefmt.ParseMessageTemplate(rule.ID, rule.MessageTemplate)
		if err != nil {
			logger.Warn("rule message template is invalid", "rule_id", rule.ID, "error", err.Error())
			return DefaultMessage(rule, condition, decision.Value)
		}
		c.compiled[key] = parsed
		tmpl = parsed
	}
	rendered, err := templatefmt.Render(tmpl, messageData(rule, condition, decision.Value, decision.Labels))
	if err != nil {
		logger.Warn("rule message template render failed", "rule_id", rule.ID, "error", err.Error())
		return DefaultMessage(rule, condition, decision.Value)
	}
	return rendered
}
