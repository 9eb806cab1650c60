// Package usersync receives identity-provider webhooks and turns them into
// typed user events. Signature verification follows the svix scheme: an
// HMAC-SHA256 over "{id}.{timestamp}.{body}" keyed with the endpoint
// secret, base64-encoded and carried in the svix-signature header.
package usersync

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flip-earn/internal/metrics"

	"log/slog"
)

// EventType names the identity-provider events the marketplace reacts to.
type EventType string

const (
	UserCreated EventType = "user.created"
	UserUpdated EventType = "user.updated"
	UserDeleted EventType = "user.deleted"
)

// Event is the normalized user event extracted from a webhook payload.
type Event struct {
	Type       EventType
	UserID     string
	Email      string
	Name       string
	Image      string
	ReceivedAt time.Time
}

// Processor defines the handler interface for user events.
type Processor interface {
	HandleUserEvent(ctx context.Context, event Event) error
}

// WebhookHandler verifies webhook signatures and forwards parsed events.
type WebhookHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	secret    []byte
	tolerance time.Duration
	processor Processor
}

// NewWebhookHandler creates a webhook handler. secret is the endpoint
// signing secret, optionally prefixed "whsec_" with the key base64-encoded.
func NewWebhookHandler(logger *slog.Logger, metricRegistry *metrics.Metrics, secret string, processor Processor) *WebhookHandler {
	key := []byte(secret)
	if trimmed, ok := strings.CutPrefix(secret, "whsec_"); ok {
		if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
			key = decoded
		}
	}
	return &WebhookHandler{
		logger:    logger.With("component", "user_webhook"),
		metrics:   metricRegistry,
		secret:    key,
		tolerance: 5 * time.Minute,
		processor: processor,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.countError("user_webhook")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.verify(r.Header, body); err != nil {
		h.countError("user_webhook_auth")
		h.logger.Warn("webhook signature rejected", "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	event, err := parseEvent(body)
	if err != nil {
		h.countError("user_webhook")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if h.processor != nil {
		if err := h.processor.HandleUserEvent(r.Context(), event); err != nil {
			h.logger.Error("failed processing webhook", "error", err, "event", event.Type)
			h.countError("user_webhook_process")
			http.Error(w, "failed to process", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *WebhookHandler) verify(header http.Header, body []byte) error {
	id := strings.TrimSpace(header.Get("svix-id"))
	timestamp := strings.TrimSpace(header.Get("svix-timestamp"))
	signatures := strings.TrimSpace(header.Get("svix-signature"))
	if id == "" || timestamp == "" || signatures == "" {
		return fmt.Errorf("missing signature headers")
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp: %w", err)
	}
	if skew := time.Since(time.Unix(unix, 0)); skew > h.tolerance || skew < -h.tolerance {
		return fmt.Errorf("timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, h.secret)
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// The header may carry several space-separated versioned signatures,
	// each of the form "v1,<base64>".
	for _, candidate := range strings.Fields(signatures) {
		_, sig, found := strings.Cut(candidate, ",")
		if !found {
			sig = candidate
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}

func parseEvent(body []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
		Data struct {
			ID             string `json:"id"`
			FirstName      string `json:"first_name"`
			LastName       string `json:"last_name"`
			ImageURL       string `json:"image_url"`
			EmailAddresses []struct {
				EmailAddress string `json:"email_address"`
			} `json:"email_addresses"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	if envelope.Data.ID == "" {
		return Event{}, fmt.Errorf("webhook payload missing user id")
	}

	event := Event{
		Type:       EventType(envelope.Type),
		UserID:     envelope.Data.ID,
		Name:       strings.TrimSpace(envelope.Data.FirstName + " " + envelope.Data.LastName),
		Image:      envelope.Data.ImageURL,
		ReceivedAt: time.Now(),
	}
	if len(envelope.Data.EmailAddresses) > 0 {
		event.Email = envelope.Data.EmailAddresses[0].EmailAddress
	}
	return event, nil
}

func (h *WebhookHandler) countError(label string) {
	if h.metrics != nil {
		h.metrics.Errors.WithLabelValues(label).Inc()
	}
}
