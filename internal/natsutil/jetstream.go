package natsutil

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect opens a named NATS connection to a server list with JetStream context.
// Params: server URLs, client name used in server monitoring.
// Returns: connection, JetStream context, or setup error.
func Connect(urls []string, name string) (*nats.Conn, nats.JetStreamContext, error) {
	if len(urls) == 0 {
		return nil, nil, errors.New("nats url list is empty")
	}
	nc, err := nats.Connect(strings.Join(urls, ","), nats.Name(name), nats.MaxReconnects(-1))
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats %s: %w", name, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream init for %s: %w", name, err)
	}
	return nc, js, nil
}

// StreamSpec describes one stream provisioned on startup.
type StreamSpec struct {
	Name      string
	Subjects  []string
	Retention nats.RetentionPolicy
	MaxAge    time.Duration
}

// EnsureStream creates the stream when it does not exist yet.
// Params: JetStream context and stream settings.
// Returns: stream create/lookup error.
func EnsureStream(js nats.JetStreamContext, spec StreamSpec) error {
	if _, err := js.StreamInfo(spec.Name); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) && !strings.Contains(strings.ToLower(err.Error()), "stream not found") {
		return fmt.Errorf("stream info %q: %w", spec.Name, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      spec.Name,
		Subjects:  spec.Subjects,
		Retention: spec.Retention,
		Storage:   nats.FileStorage,
		MaxAge:    spec.MaxAge,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", spec.Name, err)
	}
	return nil
}

// NakMessage asks JetStream to redeliver message after optional delay.
func NakMessage(message *nats.Msg, delay time.Duration) error {
	if message == nil {
		return nil
	}
	if delay > 0 {
		return message.NakWithDelay(delay)
	}
	return message.Nak()
}
