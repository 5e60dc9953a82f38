package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"alertcore/internal/clock"
	"alertcore/internal/domain"
	"alertcore/internal/retry"

	"github.com/google/uuid"
)

// Delivery attempt results reported to the recorder.
const (
	ResultDelivered = "delivered"
	ResultSent      = "sent"
	ResultRetry     = "retry"
	ResultFailed    = "failed"
)

// ErrNoTransport fails deliveries of a dispatcher built without a transport.
var ErrNoTransport = errors.New("notification transport is not configured")

// Recorder observes delivery attempts for metrics export.
type Recorder interface {
	NotificationAttempt(channel domain.Channel, severity domain.Severity, result string)
}

// Target is one channel a delivery is queued for.
type Target struct {
	Channel domain.Channel
	Config  map[string]string
}

// Options tunes dispatcher queue policy.
// Params: delivery retry ceiling, backoff base, per-attempt timeout, in-attempt retry policy, clock, and recorder.
// Returns: dispatcher settings.
type Options struct {
	MaxRetries     int
	BaseBackoff    time.Duration
	AttemptTimeout time.Duration
	Retry          retry.Config
	Clock          clock.Clock
	Recorder       Recorder
}

// DrainStats summarizes one Drain pass.
type DrainStats struct {
	Attempted int
	Delivered int
	Sent      int
	Retrying  int
	Failed    int
}

// Dispatcher owns the notification queue and drains it through a transport.
// Params: transport, retry executor, options, and logger.
// Returns: queue whose Enqueue never performs I/O.
type Dispatcher struct {
	mu      sync.Mutex
	drainMu sync.Mutex

	transport Transport
	executor  *retry.Executor
	opts      Options
	logger    *slog.Logger

	deliveries map[string]*domain.NotificationDelivery
	order      []string
	byAlert    map[string][]string
}

// NewDispatcher creates dispatcher.
// Params: transport, retry executor, options, and logger.
// Returns: dispatcher with defaults (60s base backoff, 10s attempt timeout); a nil transport fails every drained row.
func NewDispatcher(transport Transport, executor *retry.Executor, opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = retry.New(logger, nil)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = time.Minute
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Dispatcher{
		transport:  transport,
		executor:   executor,
		opts:       opts,
		logger:     logger,
		deliveries: make(map[string]*domain.NotificationDelivery),
		byAlert:    make(map[string][]string),
	}
}

// Enqueue writes one pending delivery per target.
// Params: alert snapshot, targets, and reason (trigger/refire/escalation).
// Returns: created delivery rows.
func (d *Dispatcher) Enqueue(alert domain.ActiveAlert, targets []Target, reason string) []domain.NotificationDelivery {
	if len(targets) == 0 {
		return nil
	}
	now := d.opts.Clock.Now()
	snapshot := alert.Clone()

	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.NotificationDelivery, 0, len(targets))
	for _, target := range targets {
		delivery := &domain.NotificationDelivery{
			ID:            uuid.NewString(),
			AlertID:       alert.ID,
			RuleID:        alert.RuleID,
			Channel:       target.Channel,
			Severity:      alert.Severity,
			Reason:        reason,
			Status:        domain.DeliveryPending,
			CreatedAt:     now,
			UpdatedAt:     now,
			ChannelConfig: domain.CloneLabels(target.Config),
			Alert:         snapshot,
		}
		d.deliveries[delivery.ID] = delivery
		d.order = append(d.order, delivery.ID)
		d.byAlert[alert.ID] = append(d.byAlert[alert.ID], delivery.ID)
		out = append(out, copyDelivery(delivery))
	}
	d.logger.Debug("notifications queued", "alert_id", alert.ID, "reason", reason, "count", len(out))
	return out
}

// Drain attempts every pending delivery whose retry time is due.
// Params: context bounding the pass.
// Returns: pass statistics; delivery errors never propagate.
func (d *Dispatcher) Drain(ctx context.Context) DrainStats {
	d.drainMu.Lock()
	defer d.drainMu.Unlock()

	var stats DrainStats
	for _, due := range d.dueDeliveries(d.opts.Clock.Now()) {
		if ctx.Err() != nil {
			break
		}
		stats.Attempted++
		receipt, err := d.attempt(ctx, due)
		if err != nil && ctx.Err() != nil {
			// Cancelled pass leaves the row pending.
			break
		}
		switch d.settle(due.ID, receipt, err) {
		case ResultDelivered:
			stats.Delivered++
		case ResultSent:
			stats.Sent++
		case ResultRetry:
			stats.Retrying++
		case ResultFailed:
			stats.Failed++
		}
	}
	if stats.Attempted > 0 {
		d.logger.Info("notification drain finished",
			"attempted", stats.Attempted,
			"delivered", stats.Delivered,
			"sent", stats.Sent,
			"retrying", stats.Retrying,
			"failed", stats.Failed,
		)
	}
	return stats
}

func (d *Dispatcher) dueDeliveries(now time.Time) []domain.NotificationDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	var due []domain.NotificationDelivery
	for _, id := range d.order {
		delivery := d.deliveries[id]
		if delivery == nil || delivery.Status != domain.DeliveryPending {
			continue
		}
		if delivery.NextRetry != nil && delivery.NextRetry.After(now) {
			continue
		}
		due = append(due, copyDelivery(delivery))
	}
	return due
}

// attempt runs transport under the in-attempt retry policy with a per-call timeout.
func (d *Dispatcher) attempt(ctx context.Context, delivery domain.NotificationDelivery) (Receipt, error) {
	if d.transport == nil {
		return Receipt{}, retry.Permanent(ErrNoTransport)
	}
	op := func(ctx context.Context) (Receipt, error) {
		callCtx, cancel := context.WithTimeout(ctx, d.opts.AttemptTimeout)
		defer cancel()
		return d.transport.Deliver(callCtx, delivery.Channel, delivery.Alert, delivery.ChannelConfig)
	}
	return retry.Value(ctx, d.executor, "notify."+string(delivery.Channel), op, d.opts.Retry)
}

// settle applies attempt outcome to stored delivery.
// Params: delivery id, receipt, and attempt error.
// Returns: recorder result label, or empty when the row changed meanwhile.
func (d *Dispatcher) settle(id string, receipt Receipt, err error) string {
	now := d.opts.Clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	delivery := d.deliveries[id]
	if delivery == nil || delivery.Status != domain.DeliveryPending {
		return ""
	}
	delivery.UpdatedAt = now

	var result string
	switch {
	case err == nil && receipt.Confirmed:
		delivery.ExternalRef = receipt.ExternalRef
		delivery.Status = domain.DeliveryDelivered
		delivery.NextRetry = nil
		delivery.LastError = ""
		result = ResultDelivered
	case err == nil:
		delivery.ExternalRef = receipt.ExternalRef
		delivery.Status = domain.DeliverySent
		delivery.NextRetry = nil
		delivery.LastError = ""
		result = ResultSent
	case !retry.Classify(d.opts.Retry, err) || delivery.RetryCount >= d.opts.MaxRetries:
		delivery.Status = domain.DeliveryFailed
		delivery.NextRetry = nil
		delivery.LastError = err.Error()
		result = ResultFailed
		d.logger.Warn("notification delivery failed",
			"delivery_id", delivery.ID,
			"alert_id", delivery.AlertID,
			"channel", delivery.Channel,
			"retry_count", delivery.RetryCount,
			"error", err.Error(),
		)
	default:
		next := now.Add(d.backoff(delivery.RetryCount))
		delivery.RetryCount++
		delivery.NextRetry = &next
		delivery.LastError = err.Error()
		result = ResultRetry
		d.logger.Info("notification delivery scheduled for retry",
			"delivery_id", delivery.ID,
			"alert_id", delivery.AlertID,
			"channel", delivery.Channel,
			"retry_count", delivery.RetryCount,
			"next_retry", next,
			"error", err.Error(),
		)
	}
	if d.opts.Recorder != nil {
		d.opts.Recorder.NotificationAttempt(delivery.Channel, delivery.Severity, result)
	}
	return result
}

// backoff returns base*2^retryCount.
func (d *Dispatcher) backoff(retryCount int) time.Duration {
	delay := d.opts.BaseBackoff
	for i := 0; i < retryCount; i++ {
		delay *= 2
	}
	return delay
}

// Confirm marks a sent delivery as delivered once the provider confirms receipt.
// Params: delivery id and optional provider reference.
// Returns: false when delivery is unknown or not in sent state.
func (d *Dispatcher) Confirm(deliveryID, externalRef string) bool {
	now := d.opts.Clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	delivery := d.deliveries[deliveryID]
	if delivery == nil || delivery.Status != domain.DeliverySent {
		return false
	}
	delivery.Status = domain.DeliveryDelivered
	delivery.UpdatedAt = now
	if externalRef != "" {
		delivery.ExternalRef = externalRef
	}
	return true
}

// Cancel fails pending deliveries of alert.
// Params: alert id and reason stored as last error.
// Returns: number of cancelled deliveries.
func (d *Dispatcher) Cancel(alertID, reason string) int {
	now := d.opts.Clock.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	cancelled := 0
	for _, id := range d.byAlert[alertID] {
		delivery := d.deliveries[id]
		if delivery == nil || delivery.Status != domain.DeliveryPending {
			continue
		}
		delivery.Status = domain.DeliveryFailed
		delivery.NextRetry = nil
		delivery.LastError = "cancelled: " + reason
		delivery.UpdatedAt = now
		cancelled++
	}
	return cancelled
}

// Deliveries returns deliveries of one alert in creation order.
func (d *Dispatcher) Deliveries(alertID string) []domain.NotificationDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := d.byAlert[alertID]
	out := make([]domain.NotificationDelivery, 0, len(ids))
	for _, id := range ids {
		if delivery := d.deliveries[id]; delivery != nil {
			out = append(out, copyDelivery(delivery))
		}
	}
	return out
}

// Pending returns pending deliveries in creation order.
func (d *Dispatcher) Pending() []domain.NotificationDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.NotificationDelivery
	for _, id := range d.order {
		if delivery := d.deliveries[id]; delivery != nil && delivery.Status == domain.DeliveryPending {
			out = append(out, copyDelivery(delivery))
		}
	}
	return out
}

// Counts returns number of stored deliveries per status.
func (d *Dispatcher) Counts() map[domain.DeliveryStatus]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[domain.DeliveryStatus]int, 4)
	for _, delivery := range d.deliveries {
		out[delivery.Status]++
	}
	return out
}

// Prune drops terminal deliveries last updated before cutoff.
// Params: cutoff time.
// Returns: removed row count.
func (d *Dispatcher) Prune(before time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	kept := d.order[:0]
	for _, id := range d.order {
		delivery := d.deliveries[id]
		if delivery.Status == domain.DeliveryPending || !delivery.UpdatedAt.Before(before) {
			kept = append(kept, id)
			continue
		}
		delete(d.deliveries, id)
		removed++
	}
	d.order = kept
	if removed == 0 {
		return 0
	}
	for alertID, ids := range d.byAlert {
		live := ids[:0]
		for _, id := range ids {
			if _, ok := d.deliveries[id]; ok {
				live = append(live, id)
			}
		}
		if len(live) == 0 {
			delete(d.byAlert, alertID)
			continue
		}
		d.byAlert[alertID] = live
	}
	return removed
}

func copyDelivery(source *domain.NotificationDelivery) domain.NotificationDelivery {
	out := *source
	if source.NextRetry != nil {
		next := *source.NextRetry
		out.NextRetry = &next
	}
	out.ChannelConfig = domain.CloneLabels(source.ChannelConfig)
	out.Alert = source.Alert.Clone()
	return out
}
