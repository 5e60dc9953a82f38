package engine

import "alertcore/internal/domain"

// MatchFilters checks label equality filters of one condition.
// Params: condition filters and sample labels.
// Returns: true when every filter key is present with the same value.
func MatchFilters(filters map[string]string, labels map[string]string) bool {
	for key, expected := range filters {
		actual, ok := labels[key]
		if !ok || actual != expected {
			return false
		}
	}
	return true
}

// applicableConditions selects rule conditions bound to the sample metric whose filters match.
// Params: rule and sample.
// Returns: condition indexes in declaration order.
func applicableConditions(rule domain.AlertRule, sample domain.Sample) []int {
	var out []int
	for index, condition := range rule.Conditions {
		if condition.Metric != sample.Metric {
			continue
		}
		if !MatchFilters(condition.Filters, sample.Labels) {
			continue
		}
		out = append(out, index)
	}
	return out
}
