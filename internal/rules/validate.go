package rules

import (
	"errors"
	"fmt"
	"strings"

	"alertcore/internal/domain"
	"alertcore/internal/templatefmt"
)

// ErrInvalidRule is returned for rules rejected by Validate.
var ErrInvalidRule = errors.New("invalid alert rule")

// Validate checks one rule definition.
// Params: rule candidate.
// Returns: error wrapping ErrInvalidRule with the offending field path.
func Validate(rule domain.AlertRule) error {
	if err := validateRule(rule); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidRule, rule.ID, err)
	}
	return nil
}

func validateRule(rule domain.AlertRule) error {
	if strings.TrimSpace(rule.ID) == "" {
		return errors.New("id is required")
	}
	if _, err := domain.ParseSeverity(string(rule.Severity)); err != nil {
		return fmt.Errorf("severity: %w", err)
	}
	for index, condition := range rule.Conditions {
		if strings.TrimSpace(condition.Metric) == "" {
			return fmt.Errorf("conditions[%d].metric is required", index)
		}
		if _, err := domain.ParseOperator(string(condition.Operator)); err != nil {
			return fmt.Errorf("conditions[%d].operator: %w", index, err)
		}
		if condition.TimeWindow < 0 || condition.EvaluationPeriod < 0 {
			return fmt.Errorf("conditions[%d]: windows must be >=0", index)
		}
	}
	for index, policy := range rule.Notifications {
		if _, err := domain.ParseChannel(string(policy.Channel)); err != nil {
			return fmt.Errorf("notifications[%d].channel: %w", index, err)
		}
		if len(policy.Severities) == 0 {
			return fmt.Errorf("notifications[%d].severities must be non-empty", index)
		}
		for _, severity := range policy.Severities {
			if _, err := domain.ParseSeverity(string(severity)); err != nil {
				return fmt.Errorf("notifications[%d].severities: %w", index, err)
			}
		}
		if policy.Cooldown < 0 {
			return fmt.Errorf("notifications[%d].cooldown must be >=0", index)
		}
		if policy.Escalation != nil {
			if policy.Escalation.Delay <= 0 {
				return fmt.Errorf("notifications[%d].escalation.delay must be >0", index)
			}
			if len(policy.Escalation.EscalateTo) == 0 {
				return fmt.Errorf("notifications[%d].escalation.escalate_to must be non-empty", index)
			}
			for _, channel := range policy.Escalation.EscalateTo {
				if _, err := domain.ParseChannel(string(channel)); err != nil {
					return fmt.Errorf("notifications[%d].escalation.escalate_to: %w", index, err)
				}
			}
		}
	}
	if err := ValidateSchedule(rule.Schedule); err != nil {
		return err
	}
	if strings.TrimSpace(rule.MessageTemplate) != "" {
		if _, err := templatefmt.ParseMessageTemplate(rule.ID, rule.MessageTemplate); err != nil {
			return fmt.Errorf("message_template: %w", err)
		}
	}
	return nil
}
