package app

import (
	"sort"
	"strings"
	"time"

	"alertcore/internal/domain"
)

// suppressionMatches reports whether pattern covers alert.
// Params: free-text pattern and alert.
// Returns: true on case-insensitive substring of rule id, rule name, or a label value, or an exact fingerprint.
func suppressionMatches(pattern string, alert *domain.ActiveAlert) bool {
	needle := strings.ToLower(strings.TrimSpace(pattern))
	if needle == "" {
		return false
	}
	if needle == alert.Fingerprint {
		return true
	}
	if strings.Contains(strings.ToLower(alert.RuleID), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(alert.RuleName), needle) {
		return true
	}
	for _, value := range alert.Labels {
		if strings.Contains(strings.ToLower(value), needle) {
			return true
		}
	}
	return false
}

// matchSuppressionLocked returns the live suppression covering alert with the latest expiry.
func (m *Manager) matchSuppressionLocked(alert *domain.ActiveAlert, now time.Time) (domain.Suppression, bool) {
	var (
		best  domain.Suppression
		found bool
	)
	for _, suppression := range m.suppressions {
		if !suppression.Active(now) || !suppressionMatches(suppression.Pattern, alert) {
			continue
		}
		if !found || suppression.ExpiresAt.After(best.ExpiresAt) {
			best = suppression
			found = true
		}
	}
	return best, found
}

func sortedSuppressions(source map[string]domain.Suppression) []domain.Suppression {
	out := make([]domain.Suppression, 0, len(source))
	for _, suppression := range source {
		out = append(out, suppression)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
