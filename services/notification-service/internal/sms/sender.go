// Package sms delivers text messages through a configurable provider.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/salonpanel/salonpanel/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Sender delivers one message and returns the provider's message id, if it issues one.
type Sender interface {
	Send(ctx context.Context, to string, body string) (string, error)
	ProviderID() string
}

type Config struct {
	Provider     string
	WebhookURL   string
	WebhookToken string
	TwilioSID    string
	TwilioToken  string
	TwilioFrom   string
}

// New picks the sender named by cfg.Provider: twilio, webhook or noop.
func New(cfg Config) (Sender, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "twilio":
		var missing []string
		for _, f := range [][2]string{{"account sid", cfg.TwilioSID}, {"auth token", cfg.TwilioToken}, {"from number", cfg.TwilioFrom}} {
			if strings.TrimSpace(f[1]) == "" {
				missing = append(missing, f[0])
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("twilio provider missing %s", strings.Join(missing, ", "))
		}
		return NewTwilioSender(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom), nil
	case "webhook":
		if strings.TrimSpace(cfg.WebhookURL) == "" {
			return nil, errors.New("webhook provider requires a url")
		}
		return NewWebhookSender(cfg.WebhookURL, cfg.WebhookToken), nil
	case "", "noop":
		return NoopSender{}, nil
	}
	return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
}

// ProviderError is a delivery the provider answered but refused.
type ProviderError struct {
	Provider string
	Status   int
	Detail   string
}

func (e *ProviderError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s returned %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Status, e.Detail)
}

// WebhookSender posts {"to","body"} as JSON to an SMS relay. The relay may answer with
// {"id": "..."} to report its message id.
type WebhookSender struct {
	url   string
	token string
	http  *http.Client
}

type webhookMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func NewWebhookSender(url string, token string) *WebhookSender {
	return &WebhookSender{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   5 * time.Second,
		},
	}
}

func (s *WebhookSender) ProviderID() string { return "sms-webhook" }

func (s *WebhookSender) Send(ctx context.Context, to string, body string) (string, error) {
	raw, err := json.Marshal(webhookMessage{To: to, Body: body})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	if id := runtime.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(runtime.RequestIDHeader, id)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms webhook: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			Provider: s.ProviderID(),
			Status:   resp.StatusCode,
			Detail:   strings.TrimSpace(string(payload)),
		}
	}
	var ack struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &ack)
	return ack.ID, nil
}

// NoopSender accepts every message and sends nothing.
type NoopSender struct{}

func (NoopSender) ProviderID() string { return "sms-noop" }

func (NoopSender) Send(context.Context, string, string) (string, error) { return "", nil }
