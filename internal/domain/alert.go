package domain

import "time"

// AlertStatus is runtime alert lifecycle state.
// Params: firing/acknowledged/suppressed/resolved state constants.
// Returns: state machine position of an active alert.
type AlertStatus string

const (
	// AlertStatusFiring indicates condition holds and alert notifies.
	AlertStatusFiring AlertStatus = "FIRING"
	// AlertStatusAcknowledged indicates a human took ownership.
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	// AlertStatusSuppressed indicates a suppression window covers the alert.
	AlertStatusSuppressed AlertStatus = "SUPPRESSED"
	// AlertStatusResolved indicates alert was closed; terminal.
	AlertStatusResolved AlertStatus = "RESOLVED"
)

// Statuses returns all statuses in lifecycle order.
func Statuses() []AlertStatus {
	return []AlertStatus{AlertStatusFiring, AlertStatusAcknowledged, AlertStatusSuppressed, AlertStatusResolved}
}

// CanTransition reports whether the state machine allows from -> to.
// Params: current and target status.
// Returns: true for permitted transitions.
func CanTransition(from, to AlertStatus) bool {
	switch from {
	case AlertStatusFiring:
		return to == AlertStatusResolved || to == AlertStatusAcknowledged || to == AlertStatusSuppressed
	case AlertStatusAcknowledged:
		return to == AlertStatusResolved
	case AlertStatusSuppressed:
		return to == AlertStatusResolved || to == AlertStatusFiring
	default:
		return false
	}
}

// ActiveAlert is the mutable runtime instance of a satisfied rule.
// Params: identity, lifecycle timestamps, counters, and labels.
// Returns: alert owned by the lifecycle manager.
type ActiveAlert struct {
	ID                   string                `json:"id"`
	RuleID               string                `json:"rule_id"`
	RuleName             string                `json:"rule_name"`
	Severity             Severity              `json:"severity"`
	Status               AlertStatus           `json:"status"`
	Message              string                `json:"message"`
	Labels               map[string]string     `json:"labels,omitempty"`
	Context              map[string]string     `json:"context,omitempty"`
	Value                *float64              `json:"value,omitempty"`
	StartsAt             time.Time             `json:"starts_at"`
	EndsAt               *time.Time            `json:"ends_at,omitempty"`
	AcknowledgedAt       *time.Time            `json:"acknowledged_at,omitempty"`
	AcknowledgedBy       string                `json:"acknowledged_by,omitempty"`
	SuppressedUntil      *time.Time            `json:"suppressed_until,omitempty"`
	TriggerCount         int                   `json:"trigger_count"`
	EscalationLevel      int                   `json:"escalation_level"`
	Fingerprint          string                `json:"fingerprint"`
	LastNotificationSent map[Channel]time.Time `json:"last_notification_sent,omitempty"`
}

// Clone returns a detached copy safe to hand to callers.
// Params: none.
// Returns: deep copy of maps and pointer fields.
func (a ActiveAlert) Clone() ActiveAlert {
	out := a
	out.Labels = cloneStringMap(a.Labels)
	out.Context = cloneStringMap(a.Context)
	out.Value = cloneFloat(a.Value)
	out.EndsAt = cloneTime(a.EndsAt)
	out.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	out.SuppressedUntil = cloneTime(a.SuppressedUntil)
	if len(a.LastNotificationSent) > 0 {
		out.LastNotificationSent = make(map[Channel]time.Time, len(a.LastNotificationSent))
		for channel, at := range a.LastNotificationSent {
			out.LastNotificationSent[channel] = at
		}
	} else {
		out.LastNotificationSent = nil
	}
	return out
}

// EventType identifies one history record kind.
type EventType string

const (
	EventTrigger     EventType = "trigger"
	EventResolve     EventType = "resolve"
	EventAcknowledge EventType = "acknowledge"
	EventSuppress    EventType = "suppress"
	EventEscalate    EventType = "escalate"
)

// AlertEvent is one append-only history record.
// Params: event kind, alert identity, timestamp, and optional actor/reason/metadata.
// Returns: audit entry kept in bounded history.
type AlertEvent struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	AlertID   string            `json:"alert_id"`
	RuleID    string            `json:"rule_id"`
	Severity  Severity          `json:"severity"`
	Timestamp time.Time         `json:"timestamp"`
	User      string            `json:"user,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Statistics summarizes the active alert set and resolution history.
type Statistics struct {
	Total             int                 `json:"total"`
	BySeverity        map[Severity]int    `json:"by_severity"`
	ByStatus          map[AlertStatus]int `json:"by_status"`
	ByRule            map[string]int      `json:"by_rule"`
	AvgResolutionTime time.Duration       `json:"avg_resolution_time"`
}

// Suppression is a time-bounded pattern that silences matching alerts.
type Suppression struct {
	ID        string    `json:"id"`
	Pattern   string    `json:"pattern"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether suppression still applies at now.
func (s Suppression) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

func cloneStringMap(source map[string]string) map[string]string {
	if len(source) == 0 {
		return nil
	}
	out := make(map[string]string, len(source))
	for key, value := range source {
		out[key] = value
	}
	return out
}

func cloneTime(source *time.Time) *time.Time {
	if source == nil {
		return nil
	}
	value := *source
	return &value
}

func cloneFloat(source *float64) *float64 {
	if source == nil {
		return nil
	}
	value := *source
	return &value
}

// CloneLabels duplicates a label map.
// Params: source labels.
// Returns: copied map or nil for empty input.
func CloneLabels(source map[string]string) map[string]string {
	return cloneStringMap(source)
}
