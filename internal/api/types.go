package api

import (
	"time"

	"alertcore/internal/domain"
)

// triggerRequest is the POST /alerts/trigger body.
type triggerRequest struct {
	RuleID  string            `json:"rule_id"`
	Message string            `json:"message"`
	Labels  map[string]string `json:"labels"`
	Context map[string]string `json:"context"`
}

// actionRequest is the body of acknowledge and resolve calls.
type actionRequest struct {
	User   string `json:"user"`
	Reason string `json:"reason"`
}

// suppressRequest is the POST /suppressions body.
type suppressRequest struct {
	Pattern         string `json:"pattern"`
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
	User            string `json:"user"`
}

// confirmRequest is the POST /deliveries/{id}/confirm body.
type confirmRequest struct {
	ExternalRef string `json:"external_ref"`
}

type triggerResponse struct {
	AlertID string `json:"alert_id"`
}

type suppressResponse struct {
	Suppressed int `json:"suppressed"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// statsResponse renders domain.Statistics with the mean resolution time in seconds.
type statsResponse struct {
	Total                int                        `json:"total"`
	BySeverity           map[domain.Severity]int    `json:"by_severity"`
	ByStatus             map[domain.AlertStatus]int `json:"by_status"`
	ByRule               map[string]int             `json:"by_rule"`
	AvgResolutionSeconds float64                    `json:"avg_resolution_seconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toStatsResponse(stats domain.Statistics) statsResponse {
	return statsResponse{
		Total:                stats.Total,
		BySeverity:           stats.BySeverity,
		ByStatus:             stats.ByStatus,
		ByRule:               stats.ByRule,
		AvgResolutionSeconds: stats.AvgResolutionTime.Round(time.Millisecond).Seconds(),
	}
}
