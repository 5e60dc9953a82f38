package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"alertcore/internal/domain"
	"alertcore/internal/templatefmt"
)

// Subject renders one-line alert headline.
// Params: alert snapshot.
// Returns: "[SEVERITY] name" with escalation marker when escalated.
func Subject(alert domain.ActiveAlert) string {
	name := alert.RuleName
	if strings.TrimSpace(name) == "" {
		name = alert.RuleID
	}
	subject := fmt.Sprintf("[%s] %s", alert.Severity, name)
	if alert.EscalationLevel > 0 {
		subject += fmt.Sprintf(" (escalation level %d)", alert.EscalationLevel)
	}
	return subject
}

// PlainText renders subject, message, value, and labels as plain text.
func PlainText(alert domain.ActiveAlert) string {
	var builder strings.Builder
	builder.WriteString(Subject(alert))
	if alert.Message != "" {
		builder.WriteString("\n")
		builder.WriteString(alert.Message)
	}
	if alert.Value != nil {
		builder.WriteString("\nvalue: ")
		builder.WriteString(templatefmt.FormatValue(*alert.Value))
	}
	for _, key := range sortedKeys(alert.Labels) {
		builder.WriteString("\n")
		builder.WriteString(key)
		builder.WriteString(": ")
		builder.WriteString(alert.Labels[key])
	}
	return builder.String()
}

// telegramHTML renders alert for Telegram HTML parse mode.
func telegramHTML(alert domain.ActiveAlert) string {
	var builder strings.Builder
	builder.WriteString("<b>")
	builder.WriteString(html.EscapeString(Subject(alert)))
	builder.WriteString("</b>")
	if alert.Message != "" {
		builder.WriteString("\n")
		builder.WriteString(html.EscapeString(alert.Message))
	}
	for _, key := range sortedKeys(alert.Labels) {
		builder.WriteString("\n<code>")
		builder.WriteString(html.EscapeString(key + "=" + alert.Labels[key]))
		builder.WriteString("</code>")
	}
	return builder.String()
}

func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
