package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"engage/internal/automation"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.BaseURL == "" {
		t.Error("expected BaseURL to be set")
	}
	if cfg.Timeout == 0 {
		t.Error("expected Timeout to be set")
	}
	if cfg.MaxRetries == 0 {
		t.Error("expected MaxRetries to be set")
	}
	if cfg.RetryDelay == 0 {
		t.Error("expected RetryDelay to be set")
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "with valid config", config: &Config{BaseURL: "http://localhost:9100", APIKey: "k", Timeout: 5 * time.Second, MaxRetries: 2}},
		{name: "with nil config", config: nil},
		{name: "with empty config", config: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.config, testLogger())
			if client == nil {
				t.Fatal("expected client")
			}
			if client.httpClient == nil {
				t.Error("expected httpClient to be initialized")
			}
			if client.logger == nil {
				t.Error("expected logger to be initialized")
			}
			if client.config == nil {
				t.Error("expected config to be initialized")
			}
		})
	}
}

func TestSendDirectMessage(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL, APIKey: "key-1", Timeout: 5 * time.Second, MaxRetries: 1, RetryDelay: time.Millisecond}, testLogger())

	err := client.SendDirectMessage(context.Background(), automation.ChannelMessage{
		Platform:  "instagram",
		Recipient: "u-1",
		Text:      "hello",
	})
	if err != nil {
		t.Fatalf("SendDirectMessage failed: %v", err)
	}

	if gotPath != "/api/v1/messages" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotAPIKey != "key-1" {
		t.Errorf("unexpected api key %s", gotAPIKey)
	}
	if gotBody.Recipient != "u-1" || gotBody.Text != "hello" {
		t.Errorf("unexpected body %+v", gotBody)
	}
}

func TestSendDirectMessage_RequiresRecipient(t *testing.T) {
	client := NewClient(nil, testLogger())
	err := client.SendDirectMessage(context.Background(), automation.ChannelMessage{Text: "hi"})
	if err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestSendPublicReply_RequiresCommentID(t *testing.T) {
	client := NewClient(nil, testLogger())
	err := client.SendPublicReply(context.Background(), automation.ChannelMessage{Text: "hi"})
	if err == nil {
		t.Fatal("expected error for missing comment id")
	}
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL, Timeout: 5 * time.Second, MaxRetries: 3, RetryDelay: time.Millisecond}, testLogger())

	err := client.SendDirectMessage(context.Background(), automation.ChannelMessage{Recipient: "u-1", Text: "hi"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestSend_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(sendMessageResponse{Error: "not allowed"})
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL, Timeout: 5 * time.Second, MaxRetries: 3, RetryDelay: time.Millisecond}, testLogger())

	err := client.SendDirectMessage(context.Background(), automation.ChannelMessage{Recipient: "u-1", Text: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("expected 1 attempt, got %d", got)
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Retryable() {
		t.Error("403 should not be retryable")
	}
	if apiErr.Message != "not allowed" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestAPIError_Retryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status, Message: "x"}
		if err.Retryable() != tt.retryable {
			t.Errorf("status %d: expected retryable=%v", tt.status, tt.retryable)
		}
	}
}
