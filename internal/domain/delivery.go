package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel identifies one notification transport.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSlack     Channel = "slack"
	ChannelPagerDuty Channel = "pagerduty"
	ChannelSMS       Channel = "sms"
	ChannelWebhook   Channel = "webhook"
	ChannelTelegram  Channel = "telegram"
)

// Channels returns supported channels in deterministic order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSlack, ChannelPagerDuty, ChannelSMS, ChannelWebhook, ChannelTelegram}
}

// ParseChannel normalizes channel name.
// Params: raw channel string.
// Returns: channel constant or error.
func ParseChannel(raw string) (Channel, error) {
	normalized := Channel(strings.ToLower(strings.TrimSpace(raw)))
	for _, channel := range Channels() {
		if channel == normalized {
			return channel, nil
		}
	}
	return "", fmt.Errorf("unsupported channel %q", raw)
}

// DeliveryStatus is notification delivery progress.
type DeliveryStatus string

const (
	// DeliveryPending waits for the next drain pass.
	DeliveryPending DeliveryStatus = "pending"
	// DeliverySent was accepted by the transport without confirmation.
	DeliverySent DeliveryStatus = "sent"
	// DeliveryFailed exhausted retries or hit a non-retryable error.
	DeliveryFailed DeliveryStatus = "failed"
	// DeliveryDelivered was confirmed by the transport.
	DeliveryDelivered DeliveryStatus = "delivered"
)

// Terminal reports whether status will not change anymore.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryFailed || s == DeliveryDelivered
}

// NotificationDelivery tracks one (alert, policy) notification.
// Params: identity, channel, status, retry counters, and snapshot of the alert.
// Returns: dispatcher queue row.
type NotificationDelivery struct {
	ID            string            `json:"id"`
	AlertID       string            `json:"alert_id"`
	RuleID        string            `json:"rule_id"`
	Channel       Channel           `json:"channel"`
	Severity      Severity          `json:"severity"`
	Reason        string            `json:"reason"`
	Status        DeliveryStatus    `json:"status"`
	RetryCount    int               `json:"retry_count"`
	NextRetry     *time.Time        `json:"next_retry,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	LastError     string            `json:"last_error,omitempty"`
	ExternalRef   string            `json:"external_ref,omitempty"`
	ChannelConfig map[string]string `json:"-"`
	Alert         ActiveAlert       `json:"-"`
}
