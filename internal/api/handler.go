// Package api serves the JSON admin surface of the alert manager.
//
//	GET  /alerts                    active alerts, oldest first
//	GET  /alerts/{id}               one active alert; 404 when unknown
//	POST /alerts/trigger            manual trigger bypassing conditions
//	POST /alerts/{id}/ack           FIRING -> ACKNOWLEDGED; 409 otherwise
//	POST /alerts/{id}/resolve       close an active alert
//	GET  /alerts/{id}/deliveries    notification rows of one alert
//	POST /deliveries/{id}/confirm   provider confirmation of a sent delivery
//	GET  /suppressions              installed suppression windows
//	POST /suppressions              install a suppression window
//	GET  /stats                     aggregate statistics
//	GET  /events?limit=N            newest lifecycle events
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"alertcore/internal/domain"
)

const (
	maxRequestBytes   = 1 << 20
	defaultEventLimit = 100
)

// AlertManager is the lifecycle surface exposed over HTTP.
type AlertManager interface {
	GetActiveAlerts() []domain.ActiveAlert
	GetAlert(alertID string) (domain.ActiveAlert, bool)
	TriggerAlert(ctx context.Context, ruleID, message string, labels, alertContext map[string]string) (string, error)
	AcknowledgeAlert(ctx context.Context, alertID, user, reason string) error
	ResolveAlert(ctx context.Context, alertID, user, reason string) error
	SuppressAlerts(ctx context.Context, pattern string, durationMinutes int, reason, user string) (int, error)
	ListSuppressions() []domain.Suppression
	GetAlertStatistics() domain.Statistics
	History(limit int) []domain.AlertEvent
}

// DeliveryLog exposes the notification queue rows.
type DeliveryLog interface {
	Deliveries(alertID string) []domain.NotificationDelivery
	Confirm(deliveryID, externalRef string) bool
}

// Handler routes admin requests to the manager and delivery log.
type Handler struct {
	manager    AlertManager
	deliveries DeliveryLog
	logger     *slog.Logger
	mux        *http.ServeMux
}

// New creates admin handler with all routes registered.
// Params: alert manager, delivery log, and logger.
// Returns: http.Handler serving JSON responses.
func New(manager AlertManager, deliveries DeliveryLog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{manager: manager, deliveries: deliveries, logger: logger, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /alerts", h.listAlerts)
	h.mux.HandleFunc("POST /alerts/trigger", h.triggerAlert)
	h.mux.HandleFunc("GET /alerts/{id}", h.getAlert)
	h.mux.HandleFunc("POST /alerts/{id}/ack", h.acknowledgeAlert)
	h.mux.HandleFunc("POST /alerts/{id}/resolve", h.resolveAlert)
	h.mux.HandleFunc("GET /alerts/{id}/deliveries", h.alertDeliveries)
	h.mux.HandleFunc("POST /deliveries/{id}/confirm", h.confirmDelivery)
	h.mux.HandleFunc("GET /suppressions", h.listSuppressions)
	h.mux.HandleFunc("POST /suppressions", h.suppress)
	h.mux.HandleFunc("GET /stats", h.stats)
	h.mux.HandleFunc("GET /events", h.events)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) listAlerts(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.manager.GetActiveAlerts())
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request) {
	alert, ok := h.manager.GetAlert(r.PathValue("id"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}
	jsonResp(w, http.StatusOK, alert)
}

func (h *Handler) triggerAlert(w http.ResponseWriter, r *http.Request) {
	var request triggerRequest
	if err := decodeBody(r, &request); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if request.RuleID == "" {
		jsonErr(w, http.StatusBadRequest, "rule_id is required")
		return
	}
	alertID, err := h.manager.TriggerAlert(r.Context(), request.RuleID, request.Message, request.Labels, request.Context)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, triggerResponse{AlertID: alertID})
}

func (h *Handler) acknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var request actionRequest
	if err := decodeOptionalBody(r, &request); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.manager.AcknowledgeAlert(r.Context(), r.PathValue("id"), request.User, request.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, statusResponse{Status: string(domain.AlertStatusAcknowledged)})
}

func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	var request actionRequest
	if err := decodeOptionalBody(r, &request); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.manager.ResolveAlert(r.Context(), r.PathValue("id"), request.User, request.Reason); err != nil {
		h.writeError(w, err)
		return
	}
	jsonResp(w, http.StatusOK, statusResponse{Status: string(domain.AlertStatusResolved)})
}

func (h *Handler) alertDeliveries(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.deliveries.Deliveries(r.PathValue("id")))
}

func (h *Handler) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	var request confirmRequest
	if err := decodeOptionalBody(r, &request); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.deliveries.Confirm(r.PathValue("id"), request.ExternalRef) {
		jsonErr(w, http.StatusConflict, "delivery is unknown or not in sent state")
		return
	}
	jsonResp(w, http.StatusOK, statusResponse{Status: string(domain.DeliveryDelivered)})
}

func (h *Handler) listSuppressions(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, h.manager.ListSuppressions())
}

func (h *Handler) suppress(w http.ResponseWriter, r *http.Request) {
	var request suppressRequest
	if err := decodeBody(r, &request); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := h.manager.SuppressAlerts(r.Context(), request.Pattern, request.DurationMinutes, request.Reason, request.User)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonResp(w, http.StatusCreated, suppressResponse{Suppressed: count})
}

func (h *Handler) stats(w http.ResponseWriter, _ *http.Request) {
	jsonResp(w, http.StatusOK, toStatsResponse(h.manager.GetAlertStatistics()))
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	jsonResp(w, http.StatusOK, h.manager.History(limit))
}

// writeError maps lifecycle errors to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlertNotFound), errors.Is(err, domain.ErrUnknownRule):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		jsonErr(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidSuppression):
		jsonErr(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("admin request failed", "error", err.Error())
		jsonErr(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

// decodeOptionalBody accepts an empty body as the zero request.
func decodeOptionalBody(r *http.Request, target any) error {
	err := decodeBody(r, target)
	if err != nil && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
