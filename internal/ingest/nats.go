package ingest

import (
	"context"
	"log/slog"
	"time"

	"alertcore/internal/config"
	"alertcore/internal/natsutil"

	"github.com/nats-io/nats.go"
)

const sampleStreamMaxAge = 24 * time.Hour

// NATSSubscriber consumes samples via JetStream queue consumer and forwards to sink.
// Params: NATS connection, JetStream queue subscription, and sample sink.
// Returns: NATS ingest lifecycle handle.
type NATSSubscriber struct {
	nc       *nats.Conn
	sub      *nats.Subscription
	sink     SampleSink
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration
	delay    time.Duration
}

// NewNATSSubscriber creates JetStream queue consumer for sample ingestion.
// Params: ingest NATS config, sink, optional recorder, and logger.
// Returns: started subscriber or initialization error.
func NewNATSSubscriber(cfg config.NATSIngestConfig, sink SampleSink, recorder Recorder, logger *slog.Logger) (*NATSSubscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, js, err := natsutil.Connect(cfg.URL, "alertcore-ingest")
	if err != nil {
		return nil, err
	}
	err = natsutil.EnsureStream(js, natsutil.StreamSpec{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    sampleStreamMaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, err
	}

	ackWait := time.Duration(cfg.AckWaitSec) * time.Second
	subscriber := &NATSSubscriber{
		nc:       nc,
		sink:     sink,
		recorder: recorder,
		logger:   logger,
		timeout:  ackWait,
		delay:    time.Duration(cfg.NackDelayMS) * time.Millisecond,
	}
	subOpts := []nats.SubOpt{
		nats.BindStream(cfg.Stream),
		nats.Durable(cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(cfg.MaxDeliver),
		nats.MaxAckPending(cfg.MaxAckPending),
		nats.DeliverAll(),
	}
	sub, err := js.QueueSubscribe(cfg.Subject, cfg.DeliverGroup, subscriber.handle, subOpts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	subscriber.sub = sub
	logger.Info("nats ingest started", "subject", cfg.Subject, "stream", cfg.Stream, "group", cfg.DeliverGroup)
	return subscriber, nil
}

// handle decodes one message; malformed payloads are acked and dropped, sink failures are redelivered.
func (s *NATSSubscriber) handle(message *nats.Msg) {
	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)

	samples, err := decodeSamplePayloadInto(message.Data, scratch)
	if err != nil {
		record(s.recorder, "nats", resultRejected, 1)
		s.logger.Warn("nats ingest decode failed", "subject", message.Subject, "error", err.Error())
		s.ackMessage(message, "decode")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := pushSamples(ctx, s.sink, samples); err != nil {
		record(s.recorder, "nats", resultFailed, len(samples))
		s.logger.Error("nats ingest push failed", "subject", message.Subject, "error", err.Error())
		if nakErr := natsutil.NakMessage(message, s.delay); nakErr != nil {
			s.logger.Warn("nats ingest nack failed", "subject", message.Subject, "error", nakErr.Error())
		}
		return
	}
	record(s.recorder, "nats", resultAccepted, len(samples))
	s.ackMessage(message, "processed")
}

// ackMessage acknowledges processed/invalid message and logs ack failures.
func (s *NATSSubscriber) ackMessage(message *nats.Msg, reason string) {
	if err := message.Ack(); err != nil {
		s.logger.Warn("nats ingest ack failed", "subject", message.Subject, "reason", reason, "error", err.Error())
	}
}

// Close stops NATS subscription and closes connection.
// Params: none.
// Returns: close error from subscription drain.
func (s *NATSSubscriber) Close() error {
	if s.sub != nil {
		if err := s.sub.Drain(); err != nil {
			s.nc.Close()
			return err
		}
	}
	s.nc.Close()
	return nil
}
