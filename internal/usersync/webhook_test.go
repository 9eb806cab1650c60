package usersync

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

const testSecret = "test-secret"

type recordingProcessor struct {
	events []Event
	err    error
}

func (p *recordingProcessor) HandleUserEvent(ctx context.Context, event Event) error {
	p.events = append(p.events, event)
	return p.err
}

func sign(t *testing.T, secret, id, timestamp string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s.%s", id, timestamp, body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signedRequest(t *testing.T, secret string, body []byte) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/webhook/clerk", bytes.NewReader(body))
	id := "msg_1"
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	r.Header.Set("svix-id", id)
	r.Header.Set("svix-timestamp", ts)
	r.Header.Set("svix-signature", sign(t, secret, id, ts, body))
	return r
}

func newTestHandler(processor Processor) *WebhookHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWebhookHandler(logger, nil, testSecret, processor)
}

func TestWebhookDeliversParsedEvent(t *testing.T) {
	processor := &recordingProcessor{}
	handler := newTestHandler(processor)

	body := []byte(`{
		"type": "user.created",
		"data": {
			"id": "user_123",
			"first_name": "Ada",
			"last_name": "Lovelace",
			"image_url": "https://img.test/ada.png",
			"email_addresses": [{"email_address": "ada@example.com"}]
		}
	}`)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, testSecret, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(processor.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(processor.events))
	}
	event := processor.events[0]
	if event.Type != UserCreated || event.UserID != "user_123" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.Email != "ada@example.com" || event.Name != "Ada Lovelace" {
		t.Fatalf("profile fields wrong: %+v", event)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	processor := &recordingProcessor{}
	handler := newTestHandler(processor)

	body := []byte(`{"type":"user.created","data":{"id":"user_123"}}`)
	r := signedRequest(t, "wrong-secret", body)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(processor.events) != 0 {
		t.Fatal("processor must not run on a bad signature")
	}
}

func TestWebhookRejectsMissingHeaders(t *testing.T) {
	handler := newTestHandler(&recordingProcessor{})

	r := httptest.NewRequest(http.MethodPost, "/webhook/clerk", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookRejectsStaleTimestamp(t *testing.T) {
	handler := newTestHandler(&recordingProcessor{})

	body := []byte(`{"type":"user.created","data":{"id":"user_123"}}`)
	r := httptest.NewRequest(http.MethodPost, "/webhook/clerk", bytes.NewReader(body))
	id := "msg_1"
	ts := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	r.Header.Set("svix-id", id)
	r.Header.Set("svix-timestamp", ts)
	r.Header.Set("svix-signature", sign(t, testSecret, id, ts, body))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stale timestamp, got %d", rec.Code)
	}
}

func TestWebhookRejectsPayloadWithoutUserID(t *testing.T) {
	handler := newTestHandler(&recordingProcessor{})

	body := []byte(`{"type":"user.created","data":{}}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, testSecret, body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookProcessorFailure(t *testing.T) {
	processor := &recordingProcessor{err: fmt.Errorf("db down")}
	handler := newTestHandler(processor)

	body := []byte(`{"type":"user.deleted","data":{"id":"user_123"}}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, testSecret, body))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
