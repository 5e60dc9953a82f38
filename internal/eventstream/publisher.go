package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"alertcore/internal/config"
	"alertcore/internal/domain"
	"alertcore/internal/natsutil"

	"github.com/nats-io/nats.go"
)

const (
	eventStreamMaxAge = 7 * 24 * time.Hour
	eventBufferSize   = 1024
)

// Publisher streams alert lifecycle events into JetStream.
// Params: NATS connection, subject prefix, and bounded in-memory buffer.
// Returns: non-blocking event sink; events are published in record order.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	timeout time.Duration
	logger  *slog.Logger

	events    chan domain.AlertEvent
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
}

// NewPublisher connects to NATS, ensures the event stream, and starts the publish loop.
// Params: events NATS config and logger.
// Returns: running publisher or setup error.
func NewPublisher(cfg config.NATSEventsConfig, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, js, err := natsutil.Connect(cfg.URL, "alertcore-events")
	if err != nil {
		return nil, err
	}
	err = natsutil.EnsureStream(js, natsutil.StreamSpec{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    eventStreamMaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, err
	}

	publisher := newPublisher(cfg.Subject, time.Duration(cfg.PublishTimeoutSec)*time.Second, logger, eventBufferSize)
	publisher.nc = nc
	publisher.js = js
	go publisher.loop()
	return publisher, nil
}

func newPublisher(subject string, timeout time.Duration, logger *slog.Logger, buffer int) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		subject: subject,
		timeout: timeout,
		logger:  logger,
		events:  make(chan domain.AlertEvent, buffer),
		done:    make(chan struct{}),
	}
}

// Publish buffers one event; a full buffer drops the event.
// Params: recorded alert event.
// Returns: none.
func (p *Publisher) Publish(event domain.AlertEvent) {
	select {
	case p.events <- event:
	default:
		dropped := p.dropped.Add(1)
		p.logger.Warn("alert event dropped; stream buffer full", "event_id", event.ID, "alert_id", event.AlertID, "dropped_total", dropped)
	}
}

// Dropped returns number of events dropped on buffer overflow.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) loop() {
	defer close(p.done)
	for event := range p.events {
		if err := p.publish(event); err != nil {
			p.logger.Error("alert event publish failed", "event_id", event.ID, "alert_id", event.AlertID, "error", err.Error())
		}
	}
}

func (p *Publisher) publish(event domain.AlertEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	msg := nats.NewMsg(Subject(p.subject, event.Type))
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	msg.Header.Set("Alert-Id", event.AlertID)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if _, err := p.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish alert event: %w", err)
	}
	return nil
}

// Close flushes buffered events and closes the NATS connection.
// Params: none.
// Returns: nil; publish failures during flush are logged.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		close(p.events)
		if p.nc != nil {
			<-p.done
			p.nc.Close()
		}
	})
	return nil
}

// Subject returns the per-type subject of an event.
// Params: subject prefix and event type.
// Returns: "<prefix>.<type>".
func Subject(prefix string, eventType domain.EventType) string {
	return prefix + "." + string(eventType)
}
