package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"alertcore/internal/config"
	"alertcore/internal/domain"
	"alertcore/internal/retry"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// NewRouterFromConfig builds senders for enabled channels.
// Params: notify config and HTTP client shared by HTTP senders.
// Returns: router with enabled channel senders.
func NewRouterFromConfig(cfg config.NotifyConfig, client *http.Client) *Router {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	router := NewRouter()
	if cfg.Slack.Enabled {
		router.Register(NewSlackSender(cfg.Slack, client))
	}
	if cfg.PagerDuty.Enabled {
		router.Register(NewPagerDutySender(cfg.PagerDuty, client))
	}
	if cfg.Webhook.Enabled {
		router.Register(NewWebhookSender(domain.ChannelWebhook, cfg.Webhook, client))
	}
	if cfg.Email.Enabled {
		router.Register(NewWebhookSender(domain.ChannelEmail, cfg.Email, client))
	}
	if cfg.SMS.Enabled {
		router.Register(NewWebhookSender(domain.ChannelSMS, cfg.SMS, client))
	}
	if cfg.Telegram.Enabled {
		router.Register(NewTelegramSender(cfg.Telegram))
	}
	return router
}

// postJSON sends JSON payload and returns response for 2xx statuses.
// Params: context, client, method, URL, headers, payload, and sender label.
// Returns: open response (caller closes) or transport/status error.
func postJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload any, label string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("encode %s payload: %w", label, err))
	}
	request, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build %s request: %w", label, err))
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s send: %w", label, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer response.Body.Close()
		return nil, unexpectedHTTPStatusError(label, response)
	}
	return response, nil
}

// SlackSender posts alerts to a Slack incoming webhook.
// Params: webhook URL, optional username/channel; per-rule config may override webhook_url/channel/username.
// Returns: slack channel sender.
type SlackSender struct {
	cfg    config.SlackNotifier
	client *http.Client
}

// NewSlackSender creates Slack sender.
func NewSlackSender(cfg config.SlackNotifier, client *http.Client) *SlackSender {
	return &SlackSender{cfg: cfg, client: client}
}

// Channel returns sender channel name.
func (s *SlackSender) Channel() domain.Channel {
	return domain.ChannelSlack
}

// Send posts one message; Slack answers "ok" synchronously so success is confirmed.
func (s *SlackSender) Send(ctx context.Context, alert domain.ActiveAlert, channelConfig map[string]string) (Receipt, error) {
	url := configValue(channelConfig, "webhook_url", s.cfg.WebhookURL)
	if url == "" {
		return Receipt{}, retry.Permanent(errors.New("slack webhook_url is required"))
	}
	payload := struct {
		Text     string `json:"text"`
		Channel  string `json:"channel,omitempty"`
		Username string `json:"username,omitempty"`
	}{
		Text:     PlainText(alert),
		Channel:  configValue(channelConfig, "channel", s.cfg.Channel),
		Username: configValue(channelConfig, "username", s.cfg.Username),
	}
	response, err := postJSON(ctx, s.client, http.MethodPost, url, nil, payload, "slack")
	if err != nil {
		return Receipt{}, err
	}
	defer response.Body.Close()
	return Receipt{Confirmed: true}, nil
}

// PagerDutySender enqueues trigger events to PagerDuty Events API v2.
type PagerDutySender struct {
	cfg    config.PagerDutyNotifier
	client *http.Client
}

// NewPagerDutySender creates PagerDuty sender.
func NewPagerDutySender(cfg config.PagerDutyNotifier, client *http.Client) *PagerDutySender {
	return &PagerDutySender{cfg: cfg, client: client}
}

// Channel returns sender channel name.
func (s *PagerDutySender) Channel() domain.Channel {
	return domain.ChannelPagerDuty
}

// Send enqueues one trigger event keyed by alert fingerprint.
// Params: context, alert snapshot, and config (routing_key, source overrides).
// Returns: unconfirmed receipt with dedup key; PagerDuty processes events asynchronously.
func (s *PagerDutySender) Send(ctx context.Context, alert domain.ActiveAlert, channelConfig map[string]string) (Receipt, error) {
	routingKey := configValue(channelConfig, "routing_key", s.cfg.RoutingKey)
	if routingKey == "" {
		return Receipt{}, retry.Permanent(errors.New("pagerduty routing_key is required"))
	}
	source := configValue(channelConfig, "source", s.cfg.Source)
	if source == "" {
		source = "alertcore"
	}

	type eventPayload struct {
		Summary       string            `json:"summary"`
		Source        string            `json:"source"`
		Severity      string            `json:"severity"`
		Timestamp     string            `json:"timestamp"`
		CustomDetails map[string]string `json:"custom_details,omitempty"`
	}
	event := struct {
		RoutingKey  string       `json:"routing_key"`
		EventAction string       `json:"event_action"`
		DedupKey    string       `json:"dedup_key"`
		Payload     eventPayload `json:"payload"`
	}{
		RoutingKey:  routingKey,
		EventAction: "trigger",
		DedupKey:    alert.Fingerprint,
		Payload: eventPayload{
			Summary:       Subject(alert) + ": " + alert.Message,
			Source:        source,
			Severity:      pagerDutySeverity(alert.Severity),
			Timestamp:     alert.StartsAt.UTC().Format(time.RFC3339),
			CustomDetails: alert.Labels,
		},
	}

	endpoint := strings.TrimRight(s.cfg.APIBase, "/") + "/v2/enqueue"
	response, err := postJSON(ctx, s.client, http.MethodPost, endpoint, nil, event, "pagerduty")
	if err != nil {
		return Receipt{}, err
	}
	defer response.Body.Close()

	var decoded struct {
		Status   string `json:"status"`
		DedupKey string `json:"dedup_key"`
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return Receipt{}, fmt.Errorf("decode pagerduty response: %w", err)
	}
	if decoded.Status != "success" {
		return Receipt{}, fmt.Errorf("pagerduty response status %q", decoded.Status)
	}
	return Receipt{ExternalRef: decoded.DedupKey}, nil
}

func pagerDutySeverity(severity domain.Severity) string {
	switch severity {
	case domain.SeverityCritical:
		return "critical"
	case domain.SeverityHigh:
		return "error"
	case domain.SeverityMedium:
		return "warning"
	default:
		return "info"
	}
}

// WebhookSender posts alert JSON to a generic endpoint.
// Params: channel label (webhook/email/sms) and HTTP settings; config "url" and "to" override per rule.
// Returns: webhook sender for gateways behind the uniform contract.
type WebhookSender struct {
	channel domain.Channel
	cfg     config.HTTPNotifier
	client  *http.Client
}

// NewWebhookSender creates generic webhook sender.
func NewWebhookSender(channel domain.Channel, cfg config.HTTPNotifier, client *http.Client) *WebhookSender {
	return &WebhookSender{channel: channel, cfg: cfg, client: client}
}

// Channel returns sender channel name.
func (s *WebhookSender) Channel() domain.Channel {
	return s.channel
}

// Send posts JSON document; 202 Accepted yields an unconfirmed receipt.
func (s *WebhookSender) Send(ctx context.Context, alert domain.ActiveAlert, channelConfig map[string]string) (Receipt, error) {
	url := configValue(channelConfig, "url", s.cfg.URL)
	if url == "" {
		return Receipt{}, retry.Permanent(fmt.Errorf("%s url is required", s.channel))
	}
	method := s.cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	payload := struct {
		Channel   domain.Channel     `json:"channel"`
		Recipient string             `json:"recipient,omitempty"`
		Subject   string             `json:"subject"`
		Text      string             `json:"text"`
		Alert     domain.ActiveAlert `json:"alert"`
	}{
		Channel:   s.channel,
		Recipient: configValue(channelConfig, "to", ""),
		Subject:   Subject(alert),
		Text:      PlainText(alert),
		Alert:     alert,
	}
	label := string(s.channel)
	response, err := postJSON(ctx, s.client, method, url, s.cfg.Headers, payload, label)
	if err != nil {
		return Receipt{}, err
	}
	defer response.Body.Close()
	return Receipt{
		Confirmed:   response.StatusCode != http.StatusAccepted,
		ExternalRef: response.Header.Get("X-Request-Id"),
	}, nil
}

// TelegramSender sends notifications to Telegram Bot API.
// Params: bot token, chat id, and base URL; config "chat_id" overrides per rule.
// Returns: Telegram channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  string
	initErr error
}

// NewTelegramSender creates Telegram sender.
// Params: Telegram notifier config.
// Returns: initialized sender; init errors surface as permanent send errors.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{chatID: strings.TrimSpace(cfg.ChatID)}
	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = errors.New("telegram bot token is required")
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = fmt.Errorf("init telegram bot: %w", err)
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
func (s *TelegramSender) Channel() domain.Channel {
	return domain.ChannelTelegram
}

// Send posts one HTML message to Telegram chat.
// Params: context, alert snapshot, and channel config.
// Returns: confirmed receipt with message id.
func (s *TelegramSender) Send(ctx context.Context, alert domain.ActiveAlert, channelConfig map[string]string) (Receipt, error) {
	if s.initErr != nil {
		return Receipt{}, retry.Permanent(s.initErr)
	}
	chatID := configValue(channelConfig, "chat_id", s.chatID)
	if chatID == "" {
		return Receipt{}, retry.Permanent(errors.New("telegram chat_id is required"))
	}

	sent, err := s.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    normalizeChatID(chatID),
		Text:      telegramHTML(alert),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return Receipt{}, classifyTelegramError(err)
	}
	if sent == nil || sent.ID <= 0 {
		return Receipt{}, errors.New("telegram send returned empty message id")
	}
	return Receipt{Confirmed: true, ExternalRef: strconv.Itoa(sent.ID)}, nil
}

// classifyTelegramError marks Bot API client errors as permanent.
func classifyTelegramError(err error) error {
	wrapped := fmt.Errorf("telegram send: %w", err)
	message := strings.ToLower(err.Error())
	for _, marker := range []string{"bad request", "unauthorized", "forbidden", "not found"} {
		if strings.Contains(message, marker) {
			return retry.Permanent(wrapped)
		}
	}
	return wrapped
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
