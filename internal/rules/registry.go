package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"alertcore/internal/clock"
	"alertcore/internal/domain"
)

// ErrRuleNotFound is returned for unknown rule ids.
var ErrRuleNotFound = errors.New("alert rule not found")

// Registry is an in-memory rule store indexed by id and condition metric.
// Params: clock for metadata stamps.
// Returns: concurrency-safe rule lookup.
type Registry struct {
	mu       sync.RWMutex
	clock    clock.Clock
	rules    map[string]domain.AlertRule
	byMetric map[string][]string
}

// NewRegistry creates empty registry.
// Params: clock used for created/updated/triggered timestamps.
// Returns: registry instance.
func NewRegistry(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Registry{
		clock:    clk,
		rules:    make(map[string]domain.AlertRule),
		byMetric: make(map[string][]string),
	}
}

// Put validates and stores rule, replacing an existing rule with the same id.
// Params: rule definition.
// Returns: validation error.
func (r *Registry) Put(rule domain.AlertRule) error {
	if err := Validate(rule); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(normalizeRule(rule), r.clock.Now())
	r.reindexLocked()
	return nil
}

// Replace swaps the full rule set, keeping trigger metadata of surviving rules.
// Params: complete new rule list.
// Returns: validation error; registry is unchanged on error.
func (r *Registry) Replace(rules []domain.AlertRule) error {
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		if err := Validate(rule); err != nil {
			return err
		}
		if _, ok := seen[rule.ID]; ok {
			return fmt.Errorf("%w %q: duplicate id", ErrInvalidRule, rule.ID)
		}
		seen[rule.ID] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	previous := r.rules
	r.rules = make(map[string]domain.AlertRule, len(rules))
	for _, rule := range rules {
		if old, ok := previous[rule.ID]; ok {
			rule.Metadata.LastTriggeredAt = old.Metadata.LastTriggeredAt
			rule.Metadata.TriggerCount = old.Metadata.TriggerCount
			if rule.Metadata.CreatedAt.IsZero() {
				rule.Metadata.CreatedAt = old.Metadata.CreatedAt
			}
		}
		r.putLocked(normalizeRule(rule), now)
	}
	r.reindexLocked()
	return nil
}

// Remove deletes rule by id.
// Params: rule id.
// Returns: ErrRuleNotFound when id is unknown.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(r.rules, id)
	r.reindexLocked()
	return nil
}

// Get returns rule by id.
// Params: rule id.
// Returns: rule copy and presence flag.
func (r *Registry) Get(id string) (domain.AlertRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	return rule, ok
}

// All returns every rule sorted by id.
func (r *Registry) All() []domain.AlertRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AlertRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForMetric returns rules having at least one condition bound to metric.
// Params: metric name.
// Returns: rules sorted by id.
func (r *Registry) ForMetric(metric string) []domain.AlertRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byMetric[metric]
	out := make([]domain.AlertRule, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.rules[id])
	}
	return out
}

// MarkTriggered updates the rule audit trail after an alert was created.
// Params: rule id and trigger time.
// Returns: none; unknown ids are ignored.
func (r *Registry) MarkTriggered(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return
	}
	triggered := at
	rule.Metadata.LastTriggeredAt = &triggered
	rule.Metadata.TriggerCount++
	r.rules[id] = rule
}

// Len returns number of stored rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

func (r *Registry) putLocked(rule domain.AlertRule, now time.Time) {
	if old, ok := r.rules[rule.ID]; ok {
		rule.Metadata.CreatedAt = old.Metadata.CreatedAt
		if rule.Metadata.CreatedBy == "" {
			rule.Metadata.CreatedBy = old.Metadata.CreatedBy
		}
		if rule.Metadata.LastTriggeredAt == nil {
			rule.Metadata.LastTriggeredAt = old.Metadata.LastTriggeredAt
			rule.Metadata.TriggerCount = old.Metadata.TriggerCount
		}
	}
	if rule.Metadata.CreatedAt.IsZero() {
		rule.Metadata.CreatedAt = now
	}
	rule.Metadata.UpdatedAt = now
	r.rules[rule.ID] = rule
}

func (r *Registry) reindexLocked() {
	index := make(map[string][]string)
	for id, rule := range r.rules {
		seen := make(map[string]struct{}, len(rule.Conditions))
		for _, condition := range rule.Conditions {
			if _, ok := seen[condition.Metric]; ok {
				continue
			}
			seen[condition.Metric] = struct{}{}
			index[condition.Metric] = append(index[condition.Metric], id)
		}
	}
	for metric := range index {
		sort.Strings(index[metric])
	}
	r.byMetric = index
}

// normalizeRule canonicalizes textual enums and compiles the schedule after validation.
func normalizeRule(rule domain.AlertRule) domain.AlertRule {
	rule.Severity, _ = domain.ParseSeverity(string(rule.Severity))
	conditions := make([]domain.AlertCondition, len(rule.Conditions))
	for index, condition := range rule.Conditions {
		condition.Operator, _ = domain.ParseOperator(string(condition.Operator))
		conditions[index] = condition
	}
	rule.Conditions = conditions
	notifications := make([]domain.AlertNotification, len(rule.Notifications))
	for index, policy := range rule.Notifications {
		policy.Channel, _ = domain.ParseChannel(string(policy.Channel))
		severities := make([]domain.Severity, len(policy.Severities))
		for i, severity := range policy.Severities {
			severities[i], _ = domain.ParseSeverity(string(severity))
		}
		policy.Severities = severities
		notifications[index] = policy
	}
	rule.Notifications = notifications
	if rule.Schedule != nil {
		schedule := *rule.Schedule
		schedule.ActiveDays = append([]int(nil), schedule.ActiveDays...)
		schedule.ActiveHours = append([]string(nil), schedule.ActiveHours...)
		schedule.Window, _ = CompileSchedule(&schedule)
		rule.Schedule = &schedule
	}
	return rule
}
