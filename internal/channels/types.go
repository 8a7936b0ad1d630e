package channels

import (
	"fmt"
	"net/http"
	"time"
)

// Config configures the channel-send HTTP client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:9100",
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
	}
}

// sendMessageRequest is the wire form of one outbound send.
type sendMessageRequest struct {
	Platform  string `json:"platform"`
	Recipient string `json:"recipient,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
	PostID    string `json:"post_id,omitempty"`
	Text      string `json:"text"`
}

type sendMessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
}

// APIError is a non-2xx response from the channel platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("channel API error [%d]: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the platform's response indicates a
// condition worth retrying.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
