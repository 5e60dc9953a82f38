package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"alertcore/internal/clock"
	"alertcore/internal/domain"
	"alertcore/internal/engine"
	"alertcore/internal/metrics"
	"alertcore/internal/notify"
	"alertcore/internal/rules"

	"github.com/google/uuid"
)

// Lifecycle errors, shared with the admin API through domain.
var (
	ErrUnknownRule        = domain.ErrUnknownRule
	ErrAlertNotFound      = domain.ErrAlertNotFound
	ErrInvalidTransition  = domain.ErrInvalidTransition
	ErrInvalidSuppression = domain.ErrInvalidSuppression
)

const (
	reasonMetricNormal      = "metric returned to normal"
	reasonOutsideSchedule   = "rule outside schedule"
	reasonSuppressionExpiry = "suppression expired"

	notifyReasonTrigger    = "trigger"
	notifyReasonRefire     = "refire"
	notifyReasonEscalation = "escalation"
	notifyReasonResume     = "resume"

	defaultHistorySize = 1000
)

// Notifier is the notification queue used by the manager.
// Enqueue must not perform I/O.
type Notifier interface {
	Enqueue(alert domain.ActiveAlert, targets []notify.Target, reason string) []domain.NotificationDelivery
	Cancel(alertID, reason string) int
}

// EventPublisher receives recorded lifecycle events.
// Publish is called under the manager lock and must not block.
type EventPublisher interface {
	Publish(event domain.AlertEvent)
}

// Options tunes manager behaviour.
// Params: history capacity, suppression-expiry resume switch, clock, metrics, and event publisher.
// Returns: manager settings.
type Options struct {
	HistorySize               int
	ResumeOnSuppressionExpiry bool
	Clock                     clock.Clock
	Metrics                   *metrics.Metrics
	Publisher                 EventPublisher
}

// Manager owns the active-alert set and drives the alert lifecycle.
// Params: rule registry, evaluator, notifier, options, and logger.
// Returns: serialized lifecycle state machine.
type Manager struct {
	mu sync.Mutex

	rules     *rules.Registry
	evaluator *engine.Evaluator
	notifier  Notifier
	opts      Options
	logger    *slog.Logger

	alerts       map[string]*domain.ActiveAlert
	suppressions map[string]domain.Suppression
	escalations  *escalationQueue
	history      *history
}

// NewManager creates lifecycle manager.
// Params: rule registry, evaluator, notifier, options, and logger.
// Returns: manager with empty alert set.
func NewManager(registry *rules.Registry, evaluator *engine.Evaluator, notifier Notifier, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = defaultHistorySize
	}
	if evaluator == nil {
		evaluator = engine.NewEvaluator(logger)
	}
	return &Manager{
		rules:        registry,
		evaluator:    evaluator,
		notifier:     notifier,
		opts:         opts,
		logger:       logger,
		alerts:       make(map[string]*domain.ActiveAlert),
		suppressions: make(map[string]domain.Suppression),
		escalations:  newEscalationQueue(),
		history:      newHistory(opts.HistorySize),
	}
}

// EvaluateMetric evaluates one metric sample; invalid samples are logged and dropped.
// Params: context, metric name, value, and labels.
// Returns: none.
func (m *Manager) EvaluateMetric(ctx context.Context, metric string, value float64, labels map[string]string) {
	sample := domain.Sample{Metric: metric, Value: value, Labels: labels}
	if err := m.EvaluateSample(ctx, sample); err != nil {
		m.logger.Warn("metric sample rejected", "metric", metric, "error", err.Error())
	}
}

// EvaluateSample runs every rule bound to sample metric and applies decisions.
// Params: context and sample.
// Returns: validation error only; notification problems never surface here.
func (m *Manager) EvaluateSample(ctx context.Context, sample domain.Sample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	now := m.opts.Clock.Now()
	candidates := m.rules.ForMetric(sample.Metric)
	if len(candidates) == 0 {
		return nil
	}
	byID := make(map[string]domain.AlertRule, len(candidates))
	for _, rule := range candidates {
		byID[rule.ID] = rule
	}

	// Series state and the alert lifecycle change under one lock.
	m.mu.Lock()
	defer m.mu.Unlock()
	decisions := m.evaluator.Evaluate(candidates, sample, sample.Time(now))
	for _, decision := range decisions {
		m.applyDecisionLocked(byID[decision.RuleID], decision, now)
	}
	return nil
}

// EvaluateSamples evaluates a batch in order.
// Params: context and validated samples.
// Returns: first validation error.
func (m *Manager) EvaluateSamples(ctx context.Context, samples []domain.Sample) error {
	for i, sample := range samples {
		if err := m.EvaluateSample(ctx, sample); err != nil {
			return fmt.Errorf("sample[%d]: %w", i, err)
		}
	}
	return nil
}

func (m *Manager) applyDecisionLocked(rule domain.AlertRule, decision engine.Decision, now time.Time) {
	if decision.Pending {
		return
	}
	if decision.OutsideSchedule {
		m.resolveRuleOutsideScheduleLocked(rule.ID, now)
		return
	}
	existing := m.alerts[decision.AlertID]

	if !decision.Holds {
		if existing == nil || existing.Status != domain.AlertStatusFiring {
			return
		}
		m.resolveLocked(existing, "", reasonMetricNormal, now)
		return
	}

	value := decision.Value
	if existing == nil {
		m.createLocked(rule, decision.AlertID, decision.Fingerprint, decision.Message, decision.Labels, nil, &value, now)
		return
	}
	existing.Value = &value
	if decision.Message != "" {
		existing.Message = decision.Message
	}
	m.retriggerLocked(rule, existing, now)
}

// resolveRuleOutsideScheduleLocked resolves every firing alert of rule, whatever its labels.
func (m *Manager) resolveRuleOutsideScheduleLocked(ruleID string, now time.Time) {
	for _, alert := range m.sortedAlertsLocked() {
		if alert.RuleID != ruleID || alert.Status != domain.AlertStatusFiring {
			continue
		}
		m.resolveLocked(alert, "", reasonOutsideSchedule, now)
		m.evaluator.Forget(alert.ID)
	}
}

// TriggerAlert raises alert for rule bypassing condition evaluation.
// Params: context, rule id, message, labels, and free-form context.
// Returns: alert id or ErrUnknownRule.
func (m *Manager) TriggerAlert(ctx context.Context, ruleID, message string, labels, alertContext map[string]string) (string, error) {
	rule, ok := m.rules.Get(ruleID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRule, ruleID)
	}
	now := m.opts.Clock.Now()
	alertID := engine.BuildAlertID(rule.ID, labels)
	if strings.TrimSpace(message) == "" {
		message = rule.Name
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.alerts[alertID]; ok {
		existing.Message = message
		if len(alertContext) > 0 {
			existing.Context = domain.CloneLabels(alertContext)
		}
		m.retriggerLocked(rule, existing, now)
		return alertID, nil
	}
	m.createLocked(rule, alertID, engine.Fingerprint(rule.ID, labels), message, labels, alertContext, nil, now)
	return alertID, nil
}

// createLocked inserts a new alert, entering SUPPRESSED directly when a live suppression matches.
func (m *Manager) createLocked(rule domain.AlertRule, alertID, fingerprint, message string, labels, alertContext map[string]string, value *float64, now time.Time) {
	alert := &domain.ActiveAlert{
		ID:           alertID,
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		Severity:     rule.Severity,
		Status:       domain.AlertStatusFiring,
		Message:      message,
		Labels:       domain.CloneLabels(labels),
		Context:      domain.CloneLabels(alertContext),
		Value:        value,
		StartsAt:     now,
		TriggerCount: 1,
		Fingerprint:  fingerprint,
	}
	m.alerts[alertID] = alert
	m.rules.MarkTriggered(rule.ID, now)

	suppression, suppressed := m.matchSuppressionLocked(alert, now)
	if suppressed {
		alert.Status = domain.AlertStatusSuppressed
		until := suppression.ExpiresAt
		alert.SuppressedUntil = &until
	}
	m.recordLocked(alert, domain.EventTrigger, "", "", nil, now)
	if suppressed {
		m.recordLocked(alert, domain.EventSuppress, suppression.CreatedBy, suppression.Reason, map[string]string{"suppression_id": suppression.ID}, now)
		m.logger.Info("alert created suppressed", "alert_id", alertID, "rule_id", rule.ID, "suppression_id", suppression.ID)
		return
	}

	m.notifyLocked(rule, alert, allPolicies, notifyReasonTrigger, now)
	m.armEscalationLocked(rule, alert, now)
	m.logger.Warn("alert firing", "alert_id", alertID, "rule_id", rule.ID, "severity", string(alert.Severity))
}

// retriggerLocked handles a holding condition for an existing alert.
func (m *Manager) retriggerLocked(rule domain.AlertRule, alert *domain.ActiveAlert, now time.Time) {
	alert.TriggerCount++
	m.rules.MarkTriggered(rule.ID, now)

	switch alert.Status {
	case domain.AlertStatusFiring:
		m.notifyLocked(rule, alert, cooldownElapsed, notifyReasonRefire, now)
	case domain.AlertStatusSuppressed:
		if m.opts.ResumeOnSuppressionExpiry && m.suppressionExpiredLocked(alert, now) {
			m.resumeLocked(rule, alert, now)
		}
	}
}

// policyFilter selects notification policies for a notify pass.
type policyFilter func(policy domain.AlertNotification, alert *domain.ActiveAlert, now time.Time) bool

func allPolicies(domain.AlertNotification, *domain.ActiveAlert, time.Time) bool {
	return true
}

// cooldownElapsed admits policies with a cooldown whose last notification is older than it.
// Policies without cooldown notify once per firing episode.
func cooldownElapsed(policy domain.AlertNotification, alert *domain.ActiveAlert, now time.Time) bool {
	if policy.Cooldown <= 0 {
		return false
	}
	last, ok := alert.LastNotificationSent[policy.Channel]
	if !ok {
		return true
	}
	if now.Sub(last) < policy.Cooldown {
		return false
	}
	delete(alert.LastNotificationSent, policy.Channel)
	return true
}

// notifyLocked queues deliveries for rule policies covering alert severity.
func (m *Manager) notifyLocked(rule domain.AlertRule, alert *domain.ActiveAlert, filter policyFilter, reason string, now time.Time) int {
	if m.notifier == nil {
		return 0
	}
	var targets []notify.Target
	for _, policy := range rule.NotificationsFor(alert.Severity) {
		if !filter(policy, alert, now) {
			continue
		}
		targets = append(targets, notify.Target{Channel: policy.Channel, Config: policy.Config})
		if alert.LastNotificationSent == nil {
			alert.LastNotificationSent = make(map[domain.Channel]time.Time)
		}
		alert.LastNotificationSent[policy.Channel] = now
	}
	if len(targets) == 0 {
		return 0
	}
	return len(m.notifier.Enqueue(alert.Clone(), targets, reason))
}

// armEscalationLocked arms one timer at the earliest escalation delay of applicable policies.
func (m *Manager) armEscalationLocked(rule domain.AlertRule, alert *domain.ActiveAlert, now time.Time) {
	var delay time.Duration
	for _, policy := range rule.NotificationsFor(alert.Severity) {
		if policy.Escalation == nil || len(policy.Escalation.EscalateTo) == 0 {
			continue
		}
		if delay == 0 || policy.Escalation.Delay < delay {
			delay = policy.Escalation.Delay
		}
	}
	if delay <= 0 {
		return
	}
	m.escalations.arm(alert.ID, now.Add(delay))
}

// FireDueEscalations escalates still-firing alerts whose timer is due.
// Params: context and evaluation time.
// Returns: number of escalated alerts.
func (m *Manager) FireDueEscalations(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	escalated := 0
	for _, alertID := range m.escalations.popDue(now) {
		alert, ok := m.alerts[alertID]
		if !ok || alert.Status != domain.AlertStatusFiring {
			continue
		}
		rule, ok := m.rules.Get(alert.RuleID)
		if !ok {
			m.logger.Warn("escalation skipped for removed rule", "alert_id", alertID, "rule_id", alert.RuleID)
			continue
		}
		alert.EscalationLevel++
		m.recordLocked(alert, domain.EventEscalate, "", "", map[string]string{"level": strconv.Itoa(alert.EscalationLevel)}, now)

		targets := escalationTargets(rule, alert.Severity)
		if m.notifier != nil && len(targets) > 0 {
			m.notifier.Enqueue(alert.Clone(), targets, notifyReasonEscalation)
		}
		m.logger.Warn("alert escalated", "alert_id", alertID, "level", alert.EscalationLevel, "channels", len(targets))
		escalated++
	}
	return escalated
}

// escalationTargets returns the union of escalateTo channels of policies covering severity.
// Channel config is borrowed from a policy of the same channel when the rule has one.
func escalationTargets(rule domain.AlertRule, severity domain.Severity) []notify.Target {
	policies := rule.NotificationsFor(severity)
	configs := make(map[domain.Channel]map[string]string, len(policies))
	for _, policy := range policies {
		if _, ok := configs[policy.Channel]; !ok {
			configs[policy.Channel] = policy.Config
		}
	}
	seen := make(map[domain.Channel]struct{})
	var targets []notify.Target
	for _, policy := range policies {
		if policy.Escalation == nil {
			continue
		}
		for _, channel := range policy.Escalation.EscalateTo {
			if _, ok := seen[channel]; ok {
				continue
			}
			seen[channel] = struct{}{}
			targets = append(targets, notify.Target{Channel: channel, Config: configs[channel]})
		}
	}
	return targets
}

// ResolveAlert closes an active alert.
// Params: context, alert id, optional user and reason.
// Returns: ErrAlertNotFound for unknown ids.
func (m *Manager) ResolveAlert(ctx context.Context, alertID, user, reason string) error {
	now := m.opts.Clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "resolved manually"
	}
	m.resolveLocked(alert, user, reason, now)
	m.evaluator.Forget(alertID)
	return nil
}

func (m *Manager) resolveLocked(alert *domain.ActiveAlert, user, reason string, now time.Time) {
	alert.Status = domain.AlertStatusResolved
	ended := now
	alert.EndsAt = &ended
	m.escalations.cancel(alert.ID)
	delete(m.alerts, alert.ID)

	openFor := now.Sub(alert.StartsAt)
	if openFor < 0 {
		openFor = 0
	}
	m.recordLocked(alert, domain.EventResolve, user, reason, map[string]string{metaOpenForMS: strconv.FormatInt(openFor.Milliseconds(), 10)}, now)
	m.logger.Info("alert resolved", "alert_id", alert.ID, "rule_id", alert.RuleID, "reason", reason)
}

// AcknowledgeAlert records human ownership of a firing alert.
// Params: context, alert id, user, and optional reason.
// Returns: ErrAlertNotFound or ErrInvalidTransition.
func (m *Manager) AcknowledgeAlert(ctx context.Context, alertID, user, reason string) error {
	now := m.opts.Clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	if !domain.CanTransition(alert.Status, domain.AlertStatusAcknowledged) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, domain.AlertStatusAcknowledged)
	}
	alert.Status = domain.AlertStatusAcknowledged
	acknowledged := now
	alert.AcknowledgedAt = &acknowledged
	alert.AcknowledgedBy = user
	m.escalations.cancel(alertID)
	m.recordLocked(alert, domain.EventAcknowledge, user, reason, nil, now)
	m.logger.Info("alert acknowledged", "alert_id", alertID, "user", user)
	return nil
}

// SuppressAlerts installs a suppression window and suppresses matching firing alerts.
// Params: context, pattern, duration in minutes, reason, and user.
// Returns: number of alerts moved to SUPPRESSED or ErrInvalidSuppression.
func (m *Manager) SuppressAlerts(ctx context.Context, pattern string, durationMinutes int, reason, user string) (int, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return 0, fmt.Errorf("%w: pattern is required", ErrInvalidSuppression)
	}
	if durationMinutes <= 0 {
		return 0, fmt.Errorf("%w: duration must be >0 minutes", ErrInvalidSuppression)
	}
	now := m.opts.Clock.Now()
	suppression := domain.Suppression{
		ID:        uuid.NewString(),
		Pattern:   pattern,
		Reason:    reason,
		CreatedBy: user,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(durationMinutes) * time.Minute),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressions[suppression.ID] = suppression

	count := 0
	for _, alert := range m.sortedAlertsLocked() {
		if !suppressionMatches(pattern, alert) {
			continue
		}
		switch alert.Status {
		case domain.AlertStatusFiring:
			alert.Status = domain.AlertStatusSuppressed
			until := suppression.ExpiresAt
			alert.SuppressedUntil = &until
			m.escalations.cancel(alert.ID)
			if m.notifier != nil {
				m.notifier.Cancel(alert.ID, "alert suppressed")
			}
			m.recordLocked(alert, domain.EventSuppress, user, reason, map[string]string{"suppression_id": suppression.ID}, now)
			count++
		case domain.AlertStatusSuppressed:
			if alert.SuppressedUntil == nil || suppression.ExpiresAt.After(*alert.SuppressedUntil) {
				until := suppression.ExpiresAt
				alert.SuppressedUntil = &until
			}
		}
	}
	m.logger.Info("suppression installed", "suppression_id", suppression.ID, "pattern", pattern, "minutes", durationMinutes, "suppressed", count)
	return count, nil
}

// ListSuppressions returns live suppressions ordered by creation time.
func (m *Manager) ListSuppressions() []domain.Suppression {
	now := m.opts.Clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	live := make(map[string]domain.Suppression, len(m.suppressions))
	for id, suppression := range m.suppressions {
		if suppression.Active(now) {
			live[id] = suppression
		}
	}
	return sortedSuppressions(live)
}

// SweepSuppressions evicts expired suppressions.
// Params: sweep time.
// Returns: evicted count; with resume enabled, expired suppressed alerts return to FIRING.
func (m *Manager) SweepSuppressions(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, suppression := range m.suppressions {
		if suppression.Active(now) {
			continue
		}
		delete(m.suppressions, id)
		evicted++
	}
	if evicted > 0 {
		m.logger.Info("expired suppressions evicted", "count", evicted)
	}
	if !m.opts.ResumeOnSuppressionExpiry {
		return evicted
	}
	for _, alert := range m.sortedAlertsLocked() {
		if alert.Status != domain.AlertStatusSuppressed || !m.suppressionExpiredLocked(alert, now) {
			continue
		}
		rule, ok := m.rules.Get(alert.RuleID)
		if !ok {
			continue
		}
		m.resumeLocked(rule, alert, now)
	}
	return evicted
}

// suppressionExpiredLocked reports whether alert suppression window is over and no live suppression covers it.
func (m *Manager) suppressionExpiredLocked(alert *domain.ActiveAlert, now time.Time) bool {
	if alert.SuppressedUntil != nil && now.Before(*alert.SuppressedUntil) {
		return false
	}
	if suppression, ok := m.matchSuppressionLocked(alert, now); ok {
		until := suppression.ExpiresAt
		alert.SuppressedUntil = &until
		return false
	}
	return true
}

// resumeLocked returns an expired suppressed alert to FIRING and notifies again.
func (m *Manager) resumeLocked(rule domain.AlertRule, alert *domain.ActiveAlert, now time.Time) {
	if !domain.CanTransition(alert.Status, domain.AlertStatusFiring) {
		return
	}
	alert.Status = domain.AlertStatusFiring
	alert.SuppressedUntil = nil
	alert.LastNotificationSent = nil
	m.recordLocked(alert, domain.EventTrigger, "", reasonSuppressionExpiry, nil, now)
	m.notifyLocked(rule, alert, allPolicies, notifyReasonResume, now)
	m.armEscalationLocked(rule, alert, now)
	m.logger.Warn("alert resumed after suppression", "alert_id", alert.ID, "rule_id", alert.RuleID)
}

// GetActiveAlerts returns copies of non-resolved alerts ordered by start time.
func (m *Manager) GetActiveAlerts() []domain.ActiveAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := m.sortedAlertsLocked()
	out := make([]domain.ActiveAlert, 0, len(sorted))
	for _, alert := range sorted {
		out = append(out, alert.Clone())
	}
	return out
}

// GetAlert returns one active alert copy.
func (m *Manager) GetAlert(alertID string) (domain.ActiveAlert, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.alerts[alertID]
	if !ok {
		return domain.ActiveAlert{}, false
	}
	return alert.Clone(), true
}

// EscalationDue returns the pending escalation time of alert, if armed.
func (m *Manager) EscalationDue(alertID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escalations.pending(alertID)
}

// GetAlertStatistics aggregates the active set and retained resolution history.
func (m *Manager) GetAlertStatistics() domain.Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats, _ := m.statisticsLocked()
	return stats
}

func (m *Manager) statisticsLocked() (domain.Statistics, map[domain.AlertStatus]map[domain.Severity]int) {
	stats := domain.Statistics{
		Total:      len(m.alerts),
		BySeverity: make(map[domain.Severity]int),
		ByStatus:   make(map[domain.AlertStatus]int),
		ByRule:     make(map[string]int),
	}
	byStatusSeverity := make(map[domain.AlertStatus]map[domain.Severity]int)
	for _, alert := range m.alerts {
		stats.BySeverity[alert.Severity]++
		stats.ByStatus[alert.Status]++
		stats.ByRule[alert.RuleID]++
		if byStatusSeverity[alert.Status] == nil {
			byStatusSeverity[alert.Status] = make(map[domain.Severity]int)
		}
		byStatusSeverity[alert.Status][alert.Severity]++
	}
	stats.AvgResolutionTime = m.history.meanTimeToResolve()
	return stats, byStatusSeverity
}

// ExportStatistics publishes alert gauges.
// Params: none.
// Returns: exported statistics snapshot.
func (m *Manager) ExportStatistics() domain.Statistics {
	now := m.opts.Clock.Now()
	m.mu.Lock()
	stats, byStatusSeverity := m.statisticsLocked()
	live := 0
	for _, suppression := range m.suppressions {
		if suppression.Active(now) {
			live++
		}
	}
	m.mu.Unlock()

	m.opts.Metrics.ExportStatistics(stats, byStatusSeverity, live)
	m.logger.Debug("alert statistics exported", "total", stats.Total, "suppressions", live, "avg_resolution", stats.AvgResolutionTime.String())
	return stats
}

// History returns up to limit newest lifecycle events in chronological order.
func (m *Manager) History(limit int) []domain.AlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.last(limit)
}

// PruneSeries drops evaluator window state idle since before cutoff.
func (m *Manager) PruneSeries(cutoff time.Time) int {
	return m.evaluator.Prune(cutoff)
}

func (m *Manager) recordLocked(alert *domain.ActiveAlert, eventType domain.EventType, user, reason string, metadata map[string]string, now time.Time) {
	event := domain.AlertEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		AlertID:   alert.ID,
		RuleID:    alert.RuleID,
		Severity:  alert.Severity,
		Timestamp: now,
		User:      user,
		Reason:    reason,
		Metadata:  metadata,
	}
	m.history.add(event)
	m.opts.Metrics.AlertEvent(event)
	if m.opts.Publisher != nil {
		m.opts.Publisher.Publish(event)
	}
}

func (m *Manager) sortedAlertsLocked() []*domain.ActiveAlert {
	out := make([]*domain.ActiveAlert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out
}
