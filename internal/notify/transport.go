package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"alertcore/internal/domain"
	"alertcore/internal/retry"
)

// ErrUnknownChannel is returned for channels without a registered sender.
var ErrUnknownChannel = errors.New("no sender registered for channel")

// Receipt is the transport acknowledgement of one delivery.
// Params: Confirmed is true when the provider confirmed receipt; ExternalRef is a provider id.
// Returns: delivery outcome metadata.
type Receipt struct {
	Confirmed   bool
	ExternalRef string
}

// Transport is the uniform delivery boundary used by the dispatcher.
// Params: context, target channel, alert snapshot, and channel-specific config.
// Returns: receipt or delivery error; errors carrying retry.Permanent are never retried.
type Transport interface {
	Deliver(ctx context.Context, channel domain.Channel, alert domain.ActiveAlert, channelConfig map[string]string) (Receipt, error)
}

// Sender delivers notifications to one channel.
type Sender interface {
	Channel() domain.Channel
	Send(ctx context.Context, alert domain.ActiveAlert, channelConfig map[string]string) (Receipt, error)
}

// Router dispatches deliveries to per-channel senders.
type Router struct {
	senders map[domain.Channel]Sender
}

// NewRouter creates router from senders.
// Params: senders; later senders replace earlier ones for the same channel.
// Returns: transport implementation.
func NewRouter(senders ...Sender) *Router {
	router := &Router{senders: make(map[domain.Channel]Sender, len(senders))}
	for _, sender := range senders {
		router.Register(sender)
	}
	return router
}

// Register adds or replaces channel sender.
func (r *Router) Register(sender Sender) {
	if sender == nil {
		return
	}
	r.senders[sender.Channel()] = sender
}

// Deliver sends alert through channel sender.
// Params: context, channel, alert snapshot, and channel config.
// Returns: sender receipt or permanent ErrUnknownChannel.
func (r *Router) Deliver(ctx context.Context, channel domain.Channel, alert domain.ActiveAlert, channelConfig map[string]string) (Receipt, error) {
	sender, ok := r.senders[channel]
	if !ok {
		return Receipt{}, retry.Permanent(fmt.Errorf("%w %q", ErrUnknownChannel, channel))
	}
	return sender.Send(ctx, alert, channelConfig)
}

// Channels returns registered channels in sorted order.
func (r *Router) Channels() []domain.Channel {
	out := make([]domain.Channel, 0, len(r.senders))
	for channel := range r.senders {
		out = append(out, channel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HTTPError is a non-2xx provider response.
// Params: sender label, status code, and trimmed response body.
// Returns: error classified as transient for 408/429/5xx by retry.IsTransient.
type HTTPError struct {
	Sender string
	Status int
	Body   string
}

// Error formats status with optional body.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s status=%d", e.Sender, e.Status)
	}
	return fmt.Sprintf("%s status=%d body=%s", e.Sender, e.Status, e.Body)
}

// StatusCode exposes HTTP status for retry classification.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// unexpectedHTTPStatusError converts non-2xx HTTP response to error.
// Params: sender prefix label and HTTP response pointer.
// Returns: HTTPError; client errors other than 408/429 are marked permanent.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return &HTTPError{Sender: prefix}
	}
	statusErr := &HTTPError{Sender: prefix, Status: response.StatusCode}
	rawBody, readErr := io.ReadAll(io.LimitReader(response.Body, 4<<10))
	if readErr == nil {
		statusErr.Body = strings.TrimSpace(string(rawBody))
	}
	switch {
	case response.StatusCode == http.StatusRequestTimeout, response.StatusCode == http.StatusTooManyRequests:
		return statusErr
	case response.StatusCode >= 400 && response.StatusCode < 500:
		return retry.Permanent(statusErr)
	default:
		return statusErr
	}
}

// configValue returns channel override or fallback.
func configValue(channelConfig map[string]string, key, fallback string) string {
	if value := strings.TrimSpace(channelConfig[key]); value != "" {
		return value
	}
	return strings.TrimSpace(fallback)
}
