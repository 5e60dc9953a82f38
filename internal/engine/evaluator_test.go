package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"alertcore/internal/domain"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func thresholdRule(id string, operator domain.Operator, threshold float64) domain.AlertRule {
	return domain.AlertRule{
		ID:       id,
		Name:     "Rule " + id,
		Severity: domain.SeverityHigh,
		Enabled:  true,
		Conditions: []domain.AlertCondition{
			{Metric: "latency_ms", Operator: operator, Threshold: threshold},
		},
	}
}

var monday = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestEvaluateOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		operator domain.Operator
		value    float64
		want     bool
	}{
		{domain.OperatorGT, 101, true},
		{domain.OperatorGT, 100, false},
		{domain.OperatorGTE, 100, true},
		{domain.OperatorLT, 99, true},
		{domain.OperatorLTE, 101, false},
		{domain.OperatorEQ, 100, true},
		{domain.OperatorNE, 100, false},
	}
	for _, tc := range tests {
		evaluator := testEvaluator()
		rule := thresholdRule("r", tc.operator, 100)
		decisions := evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: tc.value}, monday)
		if len(decisions) != 1 {
			t.Fatalf("expected one decision, got %d", len(decisions))
		}
		if decisions[0].Holds != tc.want {
			t.Fatalf("%s %v: expected holds=%v", tc.operator, tc.value, tc.want)
		}
	}
}

func TestEvaluateSkipsDisabledAndConditionlessRules(t *testing.T) {
	t.Parallel()

	disabled := thresholdRule("disabled", domain.OperatorGT, 0)
	disabled.Enabled = false
	empty := thresholdRule("empty", domain.OperatorGT, 0)
	empty.Conditions = nil

	decisions := testEvaluator().Evaluate([]domain.AlertRule{disabled, empty}, domain.Sample{Metric: "latency_ms", Value: 10}, monday)
	if len(decisions) != 0 {
		t.Fatalf("expected no decisions, got %+v", decisions)
	}
}

func TestEvaluateFiltersMustMatch(t *testing.T) {
	t.Parallel()

	rule := thresholdRule("filtered", domain.OperatorGT, 0)
	rule.Conditions[0].Filters = map[string]string{"tenant": "acme"}
	evaluator := testEvaluator()

	other := domain.Sample{Metric: "latency_ms", Value: 10, Labels: map[string]string{"tenant": "globex"}}
	if decisions := evaluator.Evaluate([]domain.AlertRule{rule}, other, monday); len(decisions) != 0 {
		t.Fatalf("filter mismatch must not apply, got %+v", decisions)
	}
	match := domain.Sample{Metric: "latency_ms", Value: 10, Labels: map[string]string{"tenant": "acme"}}
	decisions := evaluator.Evaluate([]domain.AlertRule{rule}, match, monday)
	if len(decisions) != 1 || !decisions[0].Holds {
		t.Fatalf("expected holding decision, got %+v", decisions)
	}
	if decisions[0].AlertID != BuildAlertID("filtered", match.Labels) {
		t.Fatalf("unexpected alert id %q", decisions[0].AlertID)
	}
}

func TestEvaluateScheduleGate(t *testing.T) {
	t.Parallel()

	rule := thresholdRule("weekdays", domain.OperatorGT, 0)
	rule.Schedule = &domain.Schedule{ActiveDays: []int{1, 2, 3, 4, 5}}
	saturday := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)

	decisions := testEvaluator().Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 10}, saturday)
	if len(decisions) != 1 {
		t.Fatalf("expected one decision, got %d", len(decisions))
	}
	if decisions[0].Holds || !decisions[0].OutsideSchedule {
		t.Fatalf("expected outside-schedule non-firing decision, got %+v", decisions[0])
	}
}

func TestEvaluateConditionsOnOtherMetricsDoNotBlock(t *testing.T) {
	t.Parallel()

	rule := thresholdRule("multi", domain.OperatorGT, 100)
	rule.Conditions = append(rule.Conditions,
		domain.AlertCondition{Metric: "latency_ms", Operator: domain.OperatorLT, Threshold: 500},
		domain.AlertCondition{Metric: "error_rate", Operator: domain.OperatorGT, Threshold: 0.5},
	)
	evaluator := testEvaluator()

	decisions := evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 200}, monday)
	if len(decisions) != 1 || !decisions[0].Holds {
		t.Fatalf("expected AND of latency conditions to hold, got %+v", decisions)
	}
	decisions = evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 700}, monday)
	if len(decisions) != 1 || decisions[0].Holds {
		t.Fatalf("expected upper bound condition to fail, got %+v", decisions)
	}
}

func TestEvaluateEvaluationPeriodPending(t *testing.T) {
	t.Parallel()

	rule := thresholdRule("sustained", domain.OperatorGT, 100)
	rule.Conditions[0].EvaluationPeriod = 2 * time.Minute
	evaluator := testEvaluator()
	sample := domain.Sample{Metric: "latency_ms", Value: 150}

	first := evaluator.Evaluate([]domain.AlertRule{rule}, sample, monday)[0]
	if first.Holds || !first.Pending {
		t.Fatalf("expected pending decision, got %+v", first)
	}
	second := evaluator.Evaluate([]domain.AlertRule{rule}, sample, monday.Add(2*time.Minute))[0]
	if !second.Holds {
		t.Fatalf("expected holding decision after evaluation period, got %+v", second)
	}
	cleared := evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 10}, monday.Add(3*time.Minute))[0]
	if cleared.Holds || cleared.Pending {
		t.Fatalf("expected clear decision, got %+v", cleared)
	}
	again := evaluator.Evaluate([]domain.AlertRule{rule}, sample, monday.Add(4*time.Minute))[0]
	if !again.Pending {
		t.Fatalf("pending marker must reset after clear, got %+v", again)
	}
}

func TestEvaluateTimeWindowAverages(t *testing.T) {
	t.Parallel()

	rule := thresholdRule("window", domain.OperatorGT, 100)
	rule.Conditions[0].TimeWindow = 5 * time.Minute
	evaluator := testEvaluator()

	evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 50}, monday)
	decision := evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 140}, monday.Add(time.Minute))[0]
	if decision.Holds || decision.Value != 95 {
		t.Fatalf("expected window average 95 not holding, got %+v", decision)
	}
	decision = evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 160}, monday.Add(5*time.Minute+30*time.Second))[0]
	if !decision.Holds || decision.Value != 150 {
		t.Fatalf("expected expired point dropped and average 150, got %+v", decision)
	}
}

func TestEvaluateMessageTemplateAndDefault(t *testing.T) {
	t.Parallel()

	plain := thresholdRule("plain", domain.OperatorGTE, 1)
	templated := thresholdRule("templated", domain.OperatorGTE, 1)
	templated.MessageTemplate = `{{ .RuleID }} {{ index .Labels "tenant" }} {{ fmtValue .Value }}`
	sample := domain.Sample{Metric: "latency_ms", Value: 2.5, Labels: map[string]string{"tenant": "acme"}}

	decisions := testEvaluator().Evaluate([]domain.AlertRule{plain, templated}, sample, monday)
	if len(decisions) != 2 {
		t.Fatalf("expected two decisions, got %d", len(decisions))
	}
	if decisions[0].Message != "Rule plain: latency_ms >= 1 (value 2.5)" {
		t.Fatalf("unexpected default message %q", decisions[0].Message)
	}
	if decisions[1].Message != "templated acme 2.5" {
		t.Fatalf("unexpected templated message %q", decisions[1].Message)
	}
}

func TestPruneDropsIdleSeries(t *testing.T) {
	t.Parallel()

	evaluator := testEvaluator()
	rule := thresholdRule("r", domain.OperatorGT, 0)
	evaluator.Evaluate([]domain.AlertRule{rule}, domain.Sample{Metric: "latency_ms", Value: 1}, monday)
	if evaluator.SeriesCount() != 1 {
		t.Fatalf("expected tracked series")
	}
	if removed := evaluator.Prune(monday.Add(time.Hour)); removed != 1 || evaluator.SeriesCount() != 0 {
		t.Fatalf("expected series pruned, removed=%d", removed)
	}
}
