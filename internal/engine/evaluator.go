package engine

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"alertcore/internal/domain"
	"alertcore/internal/rules"
)

// Decision is the evaluator verdict for one rule and one sample.
// Params: alert identity, hold/pending flags, schedule gate, observed value, labels, and message.
// Returns: input for the lifecycle manager.
type Decision struct {
	RuleID          string
	AlertID         string
	Fingerprint     string
	Holds           bool
	Pending         bool
	OutsideSchedule bool
	Value           float64
	Labels          map[string]string
	Message         string
}

// windowPoint stores one sample contribution inside a condition time window.
type windowPoint struct {
	at    time.Time
	value float64
}

// seriesState stores per-alert mutable evaluation state.
// Params: window samples per condition index and pending marker.
// Returns: state reused across samples of the same label set.
type seriesState struct {
	windows      map[int][]windowPoint
	pendingSince *time.Time
	lastSeen     time.Time
}

// Evaluator decides trigger/clear per rule for incoming samples.
// Params: logger; keeps time-window and evaluation-period state per alert id.
// Returns: concurrency-safe evaluator.
type Evaluator struct {
	mu       sync.Mutex
	logger   *slog.Logger
	series   map[string]*seriesState
	messages *messageCache
}

// NewEvaluator creates evaluator.
// Params: logger.
// Returns: evaluator with empty state.
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger:   logger,
		series:   make(map[string]*seriesState),
		messages: newMessageCache(),
	}
}

// Evaluate checks every rule bound to sample metric.
// Params: candidate rules (usually Registry.ForMetric), sample, and evaluation time.
// Returns: one decision per enabled rule with at least one applicable condition.
func (e *Evaluator) Evaluate(candidates []domain.AlertRule, sample domain.Sample, now time.Time) []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	decisions := make([]Decision, 0, len(candidates))
	for _, rule := range candidates {
		if !rule.CanFire() {
			continue
		}
		indexes := applicableConditions(rule, sample)
		if len(indexes) == 0 {
			continue
		}
		decisions = append(decisions, e.evaluateRuleLocked(rule, indexes, sample, now))
	}
	return decisions
}

func (e *Evaluator) evaluateRuleLocked(rule domain.AlertRule, indexes []int, sample domain.Sample, now time.Time) Decision {
	alertID := BuildAlertID(rule.ID, sample.Labels)
	decision := Decision{
		RuleID:      rule.ID,
		AlertID:     alertID,
		Fingerprint: Fingerprint(rule.ID, sample.Labels),
		Labels:      domain.CloneLabels(sample.Labels),
		Value:       sample.Value,
	}

	state := e.seriesLocked(alertID)
	state.lastSeen = now

	active, err := rules.ScheduleActiveAt(rule.Schedule, now)
	if err != nil {
		e.logger.Warn("rule schedule evaluation failed; treating rule as active", "rule_id", rule.ID, "error", err.Error())
		active = true
	}
	if !active {
		decision.OutsideSchedule = true
		state.pendingSince = nil
		return decision
	}

	holds := true
	for position, index := range indexes {
		condition := rule.Conditions[index]
		observed := e.observeLocked(state, index, condition, sample.Value, now)
		if position == 0 {
			decision.Value = observed
		}
		if !condition.Operator.Compare(observed, condition.Threshold) {
			holds = false
		}
	}
	if !holds {
		state.pendingSince = nil
		return decision
	}

	period := evaluationPeriod(rule, indexes)
	if period > 0 {
		if state.pendingSince == nil {
			since := now
			state.pendingSince = &since
		}
		if now.Sub(*state.pendingSince) < period {
			decision.Pending = true
			return decision
		}
	}

	decision.Holds = true
	decision.Message = e.messages.render(e.logger, rule, rule.Conditions[indexes[0]], decision)
	return decision
}

// observeLocked returns the value compared against the threshold.
// Params: series state, condition index, condition, raw sample value, and time.
// Returns: raw value or window average when the condition declares a time window.
func (e *Evaluator) observeLocked(state *seriesState, index int, condition domain.AlertCondition, value float64, now time.Time) float64 {
	if condition.TimeWindow <= 0 {
		return value
	}
	cutoff := now.Add(-condition.TimeWindow)
	points := append(state.windows[index], windowPoint{at: now, value: value})
	start := 0
	for start < len(points) && !points[start].at.After(cutoff) {
		start++
	}
	points = points[start:]
	state.windows[index] = points

	sum := 0.0
	for _, point := range points {
		sum += point.value
	}
	return sum / float64(len(points))
}

func (e *Evaluator) seriesLocked(alertID string) *seriesState {
	state, ok := e.series[alertID]
	if !ok {
		state = &seriesState{windows: make(map[int][]windowPoint)}
		e.series[alertID] = state
	}
	return state
}

// Forget drops evaluation state of one alert id.
// Params: alert id, usually after manual resolution.
// Returns: none.
func (e *Evaluator) Forget(alertID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.series, alertID)
}

// Prune drops series idle since before cutoff.
// Params: cutoff time.
// Returns: removed series count.
func (e *Evaluator) Prune(cutoff time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for alertID, state := range e.series {
		if state.lastSeen.Before(cutoff) {
			delete(e.series, alertID)
			removed++
		}
	}
	return removed
}

// SeriesCount returns number of tracked series.
func (e *Evaluator) SeriesCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.series)
}

// evaluationPeriod returns the longest evaluation period of applicable conditions.
func evaluationPeriod(rule domain.AlertRule, indexes []int) time.Duration {
	var longest time.Duration
	for _, index := range indexes {
		if period := rule.Conditions[index].EvaluationPeriod; period > longest {
			longest = period
		}
	}
	return longest
}

func formatThreshold(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
