package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// Telegram
// =============================================================================

func TestTelegramNotifier_Send(t *testing.T) {
	var received telegramRequest
	var path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc", ChatID: "-100", APIURL: srv.URL})
	if err := n.Send(context.Background(), "<b>val1</b> is DOWN"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if received.ChatID != "-100" || received.ParseMode != "HTML" {
		t.Errorf("unexpected request %+v", received)
	}
	if received.Text != "<b>val1</b> is DOWN" {
		t.Errorf("text = %q", received.Text)
	}
}

func TestTelegramNotifier_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok": false, "error_code": 429, "description": "Too Many Requests: retry after 7", "parameters": {"retry_after": 7}}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "t", ChatID: "c", APIURL: srv.URL})
	err := n.Send(context.Background(), "hi")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	retry, ok := RetryAfter(err)
	if !ok || retry != 7*time.Second {
		t.Errorf("retry after = %v (%v), want 7s", retry, ok)
	}
}

func TestTelegramNotifier_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "t", ChatID: "c", APIURL: srv.URL})
	err := n.Send(context.Background(), "hi")
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestTelegramNotifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "t", ChatID: "c", APIURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := n.Send(ctx, "hi")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// =============================================================================
// Webhook
// =============================================================================

func TestWebhookNotifier_HMACSignature(t *testing.T) {
	secret := "test-secret-key"
	var receivedSig, custom string
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSig = r.Header.Get("X-Signature")
		custom = r.Header.Get("X-Team")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{
		URL:     srv.URL,
		Secret:  secret,
		Headers: map[string]string{"X-Team": "ops"},
	})
	if err := n.Send(context.Background(), "val1 is STALLED"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(receivedBody)
	want := hex.EncodeToString(mac.Sum(nil))
	if receivedSig != want {
		t.Errorf("X-Signature = %q, want %q", receivedSig, want)
	}
	if custom != "ops" {
		t.Errorf("X-Team = %q, want ops", custom)
	}

	var payload webhookPayload
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.Text != "val1 is STALLED" {
		t.Errorf("text = %q", payload.Text)
	}
}

func TestWebhookNotifier_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusNotFound, ErrRejected},
		{http.StatusUnauthorized, ErrRejected},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		err := NewWebhookNotifier(WebhookConfig{URL: srv.URL}).Send(context.Background(), "x")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		srv.Close()
	}
}

func TestWebhookNotifier_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(WebhookConfig{URL: srv.URL}).Send(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrRateLimited) {
		t.Errorf("5xx should not classify as rejected or rate limited: %v", err)
	}
}

// =============================================================================
// Multi / Build
// =============================================================================

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Send(context.Context, string) error {
	s.calls++
	return s.err
}

func TestMulti_AttemptsAllMembers(t *testing.T) {
	a := &stubNotifier{err: ErrRejected}
	b := &stubNotifier{}

	err := Multi{a, b}.Send(context.Background(), "x")
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected joined ErrRejected, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", a.calls, b.calls)
	}
}

func TestMulti_ReportsOnlyFailedMembers(t *testing.T) {
	ok := &stubNotifier{}
	flaky := &stubNotifier{err: fmt.Errorf("%w: webhook slow", ErrTimeout)}

	err := Multi{ok, flaky}.Send(context.Background(), "x")

	var fe *FanoutError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FanoutError, got %v", err)
	}
	if len(fe.Failed) != 1 || fe.Failed[0] != flaky || fe.Total != 2 {
		t.Errorf("unexpected failed set %+v", fe)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected member error to unwrap, got %v", err)
	}
	if next := Pending(Multi{ok, flaky}, err); next != flaky {
		t.Errorf("expected retry to target the failed member only, got %T", next)
	}
	if next := Pending(ok, errors.New("boom")); next != ok {
		t.Errorf("expected plain error to keep the notifier, got %T", next)
	}
}

func TestMulti_AllSucceed(t *testing.T) {
	if err := (Multi{&stubNotifier{}, &stubNotifier{}}).Send(context.Background(), "x"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	fallback := NewLogNotifier(nil)

	if n := Build(TelegramConfig{}, WebhookConfig{}, fallback); n != fallback {
		t.Errorf("expected log fallback, got %T", n)
	}
	if _, ok := Build(TelegramConfig{BotToken: "t"}, WebhookConfig{}, fallback).(*TelegramNotifier); !ok {
		t.Error("expected telegram notifier")
	}
	if _, ok := Build(TelegramConfig{BotToken: "t"}, WebhookConfig{URL: "http://x"}, fallback).(Multi); !ok {
		t.Error("expected multi notifier")
	}
}
