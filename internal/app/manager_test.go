package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"alertcore/internal/domain"
	"alertcore/internal/engine"
	"alertcore/internal/notify"
	"alertcore/internal/rules"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.AlertEvent
}

func (p *capturePublisher) Publish(event domain.AlertEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// friday noon UTC
var friday = time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	manager    *Manager
	dispatcher *notify.Dispatcher
	registry   *rules.Registry
	clock      *manualClock
}

func newTestEnv(t *testing.T, opts Options, alertRules ...domain.AlertRule) testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := &manualClock{now: friday}
	registry := rules.NewRegistry(clk)
	if err := registry.Replace(alertRules); err != nil {
		t.Fatalf("register rules: %v", err)
	}
	dispatcher := notify.NewDispatcher(nil, nil, notify.Options{Clock: clk}, logger)
	opts.Clock = clk
	manager := NewManager(registry, engine.NewEvaluator(logger), dispatcher, opts, logger)
	return testEnv{manager: manager, dispatcher: dispatcher, registry: registry, clock: clk}
}

func paymentFailuresRule() domain.AlertRule {
	return domain.AlertRule{
		ID:       "payment-failures-critical",
		Name:     "Payment failures",
		Severity: domain.SeverityCritical,
		Enabled:  true,
		Conditions: []domain.AlertCondition{
			{Metric: "payment_failures", Operator: domain.OperatorGTE, Threshold: 1},
		},
		Notifications: []domain.AlertNotification{
			{
				Channel:    domain.ChannelPagerDuty,
				Severities: []domain.Severity{domain.SeverityCritical},
				Escalation: &domain.Escalation{Delay: 15 * time.Minute, EscalateTo: []domain.Channel{domain.ChannelSlack}},
			},
			{
				Channel:    domain.ChannelSlack,
				Severities: []domain.Severity{domain.SeverityCritical, domain.SeverityHigh},
				Config:     map[string]string{"channel": "#payments"},
				Cooldown:   10 * time.Minute,
			},
		},
	}
}

func eventTypes(events []domain.AlertEvent) []domain.EventType {
	out := make([]domain.EventType, 0, len(events))
	for _, event := range events {
		out = append(out, event.Type)
	}
	return out
}

func countByChannel(deliveries []domain.NotificationDelivery) map[domain.Channel]int {
	out := make(map[domain.Channel]int)
	for _, delivery := range deliveries {
		out[delivery.Channel]++
	}
	return out
}

func TestEvaluateMetricCreatesCriticalAlertWithDeliveries(t *testing.T) {
	t.Parallel()

	publisher := &capturePublisher{}
	env := newTestEnv(t, Options{Publisher: publisher}, paymentFailuresRule())
	env.manager.EvaluateMetric(context.Background(), "payment_failures", 1, map[string]string{"tenant": "acme"})

	alerts := env.manager.GetActiveAlerts()
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Severity != domain.SeverityCritical || alert.Status != domain.AlertStatusFiring || alert.TriggerCount != 1 {
		t.Fatalf("unexpected alert %+v", alert)
	}
	if alert.ID != engine.BuildAlertID("payment-failures-critical", map[string]string{"tenant": "acme"}) {
		t.Fatalf("unexpected alert id %q", alert.ID)
	}

	deliveries := env.dispatcher.Deliveries(alert.ID)
	channels := countByChannel(deliveries)
	if len(deliveries) != 2 || channels[domain.ChannelPagerDuty] != 1 || channels[domain.ChannelSlack] != 1 {
		t.Fatalf("expected pagerduty and slack deliveries, got %+v", deliveries)
	}
	for _, delivery := range deliveries {
		if delivery.Status != domain.DeliveryPending || delivery.Reason != notifyReasonTrigger {
			t.Fatalf("unexpected delivery %+v", delivery)
		}
	}

	due, armed := env.manager.EscalationDue(alert.ID)
	if !armed || !due.Equal(friday.Add(15*time.Minute)) {
		t.Fatalf("expected escalation at +15m, got %v armed=%v", due, armed)
	}
	if publisher.count() != 1 {
		t.Fatalf("expected trigger event published, got %d", publisher.count())
	}
	rule, _ := env.registry.Get("payment-failures-critical")
	if rule.Metadata.TriggerCount != 1 || rule.Metadata.LastTriggeredAt == nil {
		t.Fatalf("rule audit trail not updated: %+v", rule.Metadata)
	}
}

func TestRefireKeepsSingleAlertAndHonoursCooldown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	labels := map[string]string{"tenant": "acme"}

	env.manager.EvaluateMetric(ctx, "payment_failures", 1, labels)
	env.clock.Advance(time.Minute)
	env.manager.EvaluateMetric(ctx, "payment_failures", 4, labels)

	alerts := env.manager.GetActiveAlerts()
	if len(alerts) != 1 || alerts[0].TriggerCount != 2 {
		t.Fatalf("expected one alert with trigger count 2, got %+v", alerts)
	}
	if alerts[0].Value == nil || *alerts[0].Value != 4 {
		t.Fatalf("expected latest value, got %+v", alerts[0].Value)
	}
	if got := len(env.dispatcher.Deliveries(alerts[0].ID)); got != 2 {
		t.Fatalf("refire inside cooldown must not notify, deliveries=%d", got)
	}

	env.clock.Advance(10 * time.Minute)
	env.manager.EvaluateMetric(ctx, "payment_failures", 2, labels)
	deliveries := env.dispatcher.Deliveries(alerts[0].ID)
	if len(deliveries) != 3 {
		t.Fatalf("expected slack re-notification after cooldown, got %d deliveries", len(deliveries))
	}
	last := deliveries[len(deliveries)-1]
	if last.Channel != domain.ChannelSlack || last.Reason != notifyReasonRefire {
		t.Fatalf("unexpected refire delivery %+v", last)
	}

	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "globex"})
	if got := len(env.manager.GetActiveAlerts()); got != 2 {
		t.Fatalf("different label set must create independent alert, got %d", got)
	}
}

func TestConditionClearResolvesFiringAlert(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 3, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID

	env.clock.Advance(5 * time.Minute)
	env.manager.EvaluateMetric(ctx, "payment_failures", 0, nil)

	if _, ok := env.manager.GetAlert(alertID); ok {
		t.Fatalf("resolved alert must leave the active set")
	}
	events := env.manager.History(0)
	resolve := events[len(events)-1]
	if resolve.Type != domain.EventResolve || resolve.Reason != "metric returned to normal" {
		t.Fatalf("unexpected resolve event %+v", resolve)
	}
	if _, armed := env.manager.EscalationDue(alertID); armed {
		t.Fatalf("resolution must cancel escalation")
	}
	if stats := env.manager.GetAlertStatistics(); stats.AvgResolutionTime != 5*time.Minute {
		t.Fatalf("expected mttr 5m, got %s", stats.AvgResolutionTime)
	}
}

func TestAcknowledgedAlertIsNotAutoResolved(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 3, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID

	if err := env.manager.AcknowledgeAlert(ctx, alertID, "alice", "looking"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	env.manager.EvaluateMetric(ctx, "payment_failures", 0, nil)

	alert, ok := env.manager.GetAlert(alertID)
	if !ok || alert.Status != domain.AlertStatusAcknowledged || alert.AcknowledgedBy != "alice" {
		t.Fatalf("acknowledged alert must survive condition clear, got %+v ok=%v", alert, ok)
	}
	if err := env.manager.AcknowledgeAlert(ctx, alertID, "bob", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := env.manager.ResolveAlert(ctx, alertID, "alice", "fixed"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := env.manager.ResolveAlert(ctx, alertID, "alice", ""); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("expected not found after resolution, got %v", err)
	}
}

func TestAcknowledgeCancelsPendingEscalation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID

	env.clock.Advance(5 * time.Minute)
	if err := env.manager.AcknowledgeAlert(ctx, alertID, "alice", ""); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	now := env.clock.Advance(20 * time.Minute)
	if escalated := env.manager.FireDueEscalations(ctx, now); escalated != 0 {
		t.Fatalf("expected no escalation, got %d", escalated)
	}
	for _, event := range env.manager.History(0) {
		if event.Type == domain.EventEscalate {
			t.Fatalf("escalate event recorded after acknowledgement: %+v", event)
		}
	}
}

func TestEscalationNotifiesEscalateToChannels(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID

	if escalated := env.manager.FireDueEscalations(ctx, env.clock.Advance(14*time.Minute)); escalated != 0 {
		t.Fatalf("escalation fired early")
	}
	if escalated := env.manager.FireDueEscalations(ctx, env.clock.Advance(time.Minute)); escalated != 1 {
		t.Fatalf("expected one escalation, got %d", escalated)
	}

	alert, _ := env.manager.GetAlert(alertID)
	if alert.EscalationLevel != 1 {
		t.Fatalf("expected escalation level 1, got %d", alert.EscalationLevel)
	}
	deliveries := env.dispatcher.Deliveries(alertID)
	last := deliveries[len(deliveries)-1]
	if last.Channel != domain.ChannelSlack || last.Reason != notifyReasonEscalation || last.ChannelConfig["channel"] != "#payments" {
		t.Fatalf("unexpected escalation delivery %+v", last)
	}
	if last.Alert.EscalationLevel != 1 {
		t.Fatalf("delivery snapshot must carry escalation level")
	}
	types := eventTypes(env.manager.History(0))
	if types[len(types)-1] != domain.EventEscalate {
		t.Fatalf("expected escalate event, got %v", types)
	}
	if escalated := env.manager.FireDueEscalations(ctx, env.clock.Advance(time.Hour)); escalated != 0 {
		t.Fatalf("single escalation level per timer, got %d", escalated)
	}
}

func TestSuppressionMovesFiringAlertsAndBlocksNotifications(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "acme"})
	alertID := env.manager.GetActiveAlerts()[0].ID

	count, err := env.manager.SuppressAlerts(ctx, "payment", 30, "maintenance", "alice")
	if err != nil || count != 1 {
		t.Fatalf("suppress count=%d err=%v", count, err)
	}
	alert, _ := env.manager.GetAlert(alertID)
	if alert.Status != domain.AlertStatusSuppressed || alert.SuppressedUntil == nil || !alert.SuppressedUntil.Equal(friday.Add(30*time.Minute)) {
		t.Fatalf("unexpected suppressed alert %+v", alert)
	}
	if _, armed := env.manager.EscalationDue(alertID); armed {
		t.Fatalf("suppression must cancel escalation")
	}
	for _, delivery := range env.dispatcher.Deliveries(alertID) {
		if delivery.Status == domain.DeliveryPending {
			t.Fatalf("pending delivery survived suppression: %+v", delivery)
		}
	}

	before := len(env.dispatcher.Deliveries(alertID))
	env.clock.Advance(20 * time.Minute)
	env.manager.EvaluateMetric(ctx, "payment_failures", 5, map[string]string{"tenant": "acme"})
	if got := len(env.dispatcher.Deliveries(alertID)); got != before {
		t.Fatalf("suppressed alert must not queue deliveries, before=%d after=%d", before, got)
	}
	env.manager.EvaluateMetric(ctx, "payment_failures", 0, map[string]string{"tenant": "acme"})
	if alert, ok := env.manager.GetAlert(alertID); !ok || alert.Status != domain.AlertStatusSuppressed {
		t.Fatalf("suppressed alert must not auto-resolve")
	}

	env.manager.EvaluateMetric(ctx, "payment_failures", 2, map[string]string{"tenant": "globex"})
	newID := engine.BuildAlertID("payment-failures-critical", map[string]string{"tenant": "globex"})
	created, ok := env.manager.GetAlert(newID)
	if !ok || created.Status != domain.AlertStatusSuppressed {
		t.Fatalf("new matching alert must enter suppressed, got %+v", created)
	}
	if got := len(env.dispatcher.Deliveries(newID)); got != 0 {
		t.Fatalf("suppressed new alert queued %d deliveries", got)
	}
	if len(env.manager.ListSuppressions()) != 1 {
		t.Fatalf("expected one live suppression")
	}
}

func TestSuppressAlertsValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	if _, err := env.manager.SuppressAlerts(ctx, "  ", 10, "", "alice"); !errors.Is(err, ErrInvalidSuppression) {
		t.Fatalf("expected invalid suppression for empty pattern, got %v", err)
	}
	if _, err := env.manager.SuppressAlerts(ctx, "payment", 0, "", "alice"); !errors.Is(err, ErrInvalidSuppression) {
		t.Fatalf("expected invalid suppression for zero duration, got %v", err)
	}
}

func TestSuppressionMatchesLabelValueAndFingerprint(t *testing.T) {
	t.Parallel()

	alert := &domain.ActiveAlert{RuleID: "disk-usage", RuleName: "Disk usage", Labels: map[string]string{"host": "DB-Primary"}, Fingerprint: "abc123"}
	tests := []struct {
		pattern string
		want    bool
	}{
		{"disk", true},
		{"USAGE", true},
		{"db-primary", true},
		{"abc123", true},
		{"abc", false},
		{"payment", false},
	}
	for _, tc := range tests {
		if got := suppressionMatches(tc.pattern, alert); got != tc.want {
			t.Fatalf("pattern %q: got %v want %v", tc.pattern, got, tc.want)
		}
	}
}

func TestSweepSuppressionsKeepsAlertSuppressedByDefault(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID
	if _, err := env.manager.SuppressAlerts(ctx, "payment", 10, "deploy", "alice"); err != nil {
		t.Fatalf("suppress: %v", err)
	}

	now := env.clock.Advance(11 * time.Minute)
	if evicted := env.manager.SweepSuppressions(ctx, now); evicted != 1 {
		t.Fatalf("expected one evicted suppression, got %d", evicted)
	}
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, nil)
	alert, _ := env.manager.GetAlert(alertID)
	if alert.Status != domain.AlertStatusSuppressed {
		t.Fatalf("expected alert to stay suppressed, got %s", alert.Status)
	}
}

func TestSweepSuppressionsResumesWhenEnabled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{ResumeOnSuppressionExpiry: true}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID
	if _, err := env.manager.SuppressAlerts(ctx, "payment", 10, "deploy", "alice"); err != nil {
		t.Fatalf("suppress: %v", err)
	}
	before := len(env.dispatcher.Deliveries(alertID))

	env.manager.SweepSuppressions(ctx, env.clock.Advance(5*time.Minute))
	if alert, _ := env.manager.GetAlert(alertID); alert.Status != domain.AlertStatusSuppressed {
		t.Fatalf("alert resumed before expiry")
	}

	env.manager.SweepSuppressions(ctx, env.clock.Advance(6*time.Minute))
	alert, _ := env.manager.GetAlert(alertID)
	if alert.Status != domain.AlertStatusFiring || alert.SuppressedUntil != nil {
		t.Fatalf("expected alert back to firing, got %+v", alert)
	}
	deliveries := env.dispatcher.Deliveries(alertID)
	if len(deliveries) != before+2 || deliveries[len(deliveries)-1].Reason != notifyReasonResume {
		t.Fatalf("expected resume deliveries, got %+v", deliveries)
	}
	if _, armed := env.manager.EscalationDue(alertID); !armed {
		t.Fatalf("resume must re-arm escalation")
	}
}

func TestScheduleGateClearsAlertsOutsideActiveDays(t *testing.T) {
	t.Parallel()

	rule := paymentFailuresRule()
	rule.Schedule = &domain.Schedule{Timezone: "UTC", ActiveDays: []int{1, 2, 3, 4, 5}}
	env := newTestEnv(t, Options{}, rule)
	ctx := context.Background()

	env.manager.EvaluateMetric(ctx, "payment_failures", 1, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID

	env.clock.Advance(24 * time.Hour)
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, nil)
	if _, ok := env.manager.GetAlert(alertID); ok {
		t.Fatalf("alert must be resolved on saturday")
	}
	events := env.manager.History(0)
	if last := events[len(events)-1]; last.Type != domain.EventResolve || last.Reason != reasonOutsideSchedule {
		t.Fatalf("unexpected last event %+v", last)
	}

	env.manager.EvaluateMetric(ctx, "payment_failures", 10, nil)
	if got := len(env.manager.GetActiveAlerts()); got != 0 {
		t.Fatalf("rule outside schedule must not fire, got %d alerts", got)
	}
}

func TestScheduleGateClearsEveryLabelSetOfRule(t *testing.T) {
	t.Parallel()

	rule := paymentFailuresRule()
	rule.Schedule = &domain.Schedule{Timezone: "UTC", ActiveDays: []int{1, 2, 3, 4, 5}}
	env := newTestEnv(t, Options{}, rule)
	ctx := context.Background()

	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "a"})
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "b"})
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "c"})
	acked := engine.BuildAlertID(rule.ID, map[string]string{"tenant": "c"})
	if err := env.manager.AcknowledgeAlert(ctx, acked, "alice", ""); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	env.clock.Advance(24 * time.Hour)
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "a"})

	active := env.manager.GetActiveAlerts()
	if len(active) != 1 || active[0].ID != acked {
		t.Fatalf("only the acknowledged alert may survive outside schedule, got %+v", active)
	}
	resolved := 0
	for _, event := range env.manager.History(0) {
		if event.Type == domain.EventResolve {
			if event.Reason != reasonOutsideSchedule {
				t.Fatalf("unexpected resolve reason %q", event.Reason)
			}
			resolved++
		}
	}
	if resolved != 2 {
		t.Fatalf("expected tenants a and b resolved, got %d resolve events", resolved)
	}
}

func TestConcurrentSamplesForOneSeriesStayConsistent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	labels := map[string]string{"tenant": "a"}

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				env.manager.EvaluateMetric(ctx, "payment_failures", float64((worker+i)%2), labels)
			}
		}(worker)
	}
	wg.Wait()

	env.manager.EvaluateMetric(ctx, "payment_failures", 0, labels)
	if got := len(env.manager.GetActiveAlerts()); got != 0 {
		t.Fatalf("last clearing sample must leave no firing alert, got %d", got)
	}

	// Serialized lifecycle: triggers and resolves of one alert id strictly alternate.
	var previous domain.EventType
	for _, event := range env.manager.History(0) {
		if event.Type != domain.EventTrigger && event.Type != domain.EventResolve {
			continue
		}
		if event.Type == previous {
			t.Fatalf("lifecycle events out of order: two %s in a row", event.Type)
		}
		previous = event.Type
	}
	if previous != domain.EventResolve {
		t.Fatalf("history must end with a resolve, got %q", previous)
	}
}

func TestRefireCountsWhileAcknowledged(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()
	env.manager.EvaluateMetric(ctx, "payment_failures", 2, nil)
	alertID := env.manager.GetActiveAlerts()[0].ID
	if err := env.manager.AcknowledgeAlert(ctx, alertID, "alice", ""); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	queued := len(env.dispatcher.Deliveries(alertID))

	env.clock.Advance(time.Hour)
	env.manager.EvaluateMetric(ctx, "payment_failures", 2, nil)

	alert, _ := env.manager.GetAlert(alertID)
	if alert.TriggerCount != 2 || alert.Status != domain.AlertStatusAcknowledged {
		t.Fatalf("re-fire while acknowledged must count without changing status, got %+v", alert)
	}
	if got := len(env.dispatcher.Deliveries(alertID)); got != queued {
		t.Fatalf("acknowledged alert must not renotify, deliveries %d -> %d", queued, got)
	}
}

func TestTriggerAlertManual(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	ctx := context.Background()

	if _, err := env.manager.TriggerAlert(ctx, "missing", "boom", nil, nil); !errors.Is(err, ErrUnknownRule) {
		t.Fatalf("expected unknown rule, got %v", err)
	}
	alertID, err := env.manager.TriggerAlert(ctx, "payment-failures-critical", "gateway down", map[string]string{"psp": "stripe"}, map[string]string{"ticket": "OPS-1"})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	alert, ok := env.manager.GetAlert(alertID)
	if !ok || alert.Message != "gateway down" || alert.Context["ticket"] != "OPS-1" || alert.Value != nil {
		t.Fatalf("unexpected manual alert %+v", alert)
	}
	again, err := env.manager.TriggerAlert(ctx, "payment-failures-critical", "", map[string]string{"psp": "stripe"}, nil)
	if err != nil || again != alertID {
		t.Fatalf("expected same alert id, got %q err=%v", again, err)
	}
	if alert, _ := env.manager.GetAlert(alertID); alert.TriggerCount != 2 || alert.Message != "Payment failures" {
		t.Fatalf("unexpected re-triggered alert %+v", alert)
	}
}

func TestStatisticsAggregateActiveSet(t *testing.T) {
	t.Parallel()

	lowRule := domain.AlertRule{
		ID:         "queue-depth",
		Name:       "Queue depth",
		Severity:   domain.SeverityLow,
		Enabled:    true,
		Conditions: []domain.AlertCondition{{Metric: "queue_depth", Operator: domain.OperatorGT, Threshold: 100}},
	}
	env := newTestEnv(t, Options{}, paymentFailuresRule(), lowRule)
	ctx := context.Background()

	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "a"})
	env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": "b"})
	env.manager.EvaluateMetric(ctx, "queue_depth", 500, nil)
	firstID := engine.BuildAlertID("payment-failures-critical", map[string]string{"tenant": "a"})
	if err := env.manager.AcknowledgeAlert(ctx, firstID, "alice", ""); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	env.clock.Advance(10 * time.Minute)
	env.manager.EvaluateMetric(ctx, "queue_depth", 1, nil)

	stats := env.manager.GetAlertStatistics()
	if stats.Total != 2 || stats.BySeverity[domain.SeverityCritical] != 2 || stats.BySeverity[domain.SeverityLow] != 0 {
		t.Fatalf("unexpected severity breakdown %+v", stats)
	}
	if stats.ByStatus[domain.AlertStatusAcknowledged] != 1 || stats.ByStatus[domain.AlertStatusFiring] != 1 {
		t.Fatalf("unexpected status breakdown %+v", stats.ByStatus)
	}
	if stats.ByRule["payment-failures-critical"] != 2 || stats.AvgResolutionTime != 10*time.Minute {
		t.Fatalf("unexpected rule breakdown or mttr %+v", stats)
	}
	exported := env.manager.ExportStatistics()
	if exported.Total != stats.Total {
		t.Fatalf("export returned different snapshot")
	}
}

func TestConditionlessRuleNeverFires(t *testing.T) {
	t.Parallel()

	rule := domain.AlertRule{ID: "empty", Name: "Empty", Severity: domain.SeverityHigh, Enabled: true}
	env := newTestEnv(t, Options{}, rule, paymentFailuresRule())
	env.manager.EvaluateMetric(context.Background(), "payment_failures", 0, nil)
	if got := len(env.manager.GetActiveAlerts()); got != 0 {
		t.Fatalf("expected no alerts, got %d", got)
	}
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{HistorySize: 3}, paymentFailuresRule())
	ctx := context.Background()
	for _, tenant := range []string{"a", "b", "c", "d"} {
		env.manager.EvaluateMetric(ctx, "payment_failures", 1, map[string]string{"tenant": tenant})
	}
	events := env.manager.History(0)
	if len(events) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(events))
	}
	wantFirst := engine.BuildAlertID("payment-failures-critical", map[string]string{"tenant": "b"})
	if events[0].AlertID != wantFirst {
		t.Fatalf("expected oldest retained event for tenant b, got %s", events[0].AlertID)
	}
	if latest := env.manager.History(1); len(latest) != 1 || latest[0].AlertID != engine.BuildAlertID("payment-failures-critical", map[string]string{"tenant": "d"}) {
		t.Fatalf("unexpected latest event %+v", latest)
	}
}

func TestEvaluateSampleRejectsInvalidSample(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, Options{}, paymentFailuresRule())
	if err := env.manager.EvaluateSample(context.Background(), domain.Sample{Value: 1}); err == nil {
		t.Fatalf("expected validation error")
	}
}
