package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"engage/internal/automation"

	"github.com/sirupsen/logrus"
)

// Client delivers DMs and public replies through the channel platform
// gateway. It implements automation.ChannelSender.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
	config     *Config
}

func NewClient(config *Config, logger *logrus.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultConfig().RetryDelay
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
		config: config,
	}
}

// SendDirectMessage delivers a private reply to one recipient.
func (c *Client) SendDirectMessage(ctx context.Context, msg automation.ChannelMessage) error {
	if msg.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	return c.send(ctx, "/api/v1/messages", sendMessageRequest{
		Platform:  msg.Platform,
		Recipient: msg.Recipient,
		Text:      msg.Text,
	})
}

// SendPublicReply posts a reply under the triggering comment.
func (c *Client) SendPublicReply(ctx context.Context, msg automation.ChannelMessage) error {
	if msg.CommentID == "" {
		return fmt.Errorf("comment id is required")
	}
	return c.send(ctx, "/api/v1/replies", sendMessageRequest{
		Platform:  msg.Platform,
		CommentID: msg.CommentID,
		PostID:    msg.PostID,
		Text:      msg.Text,
	})
}

func (c *Client) send(ctx context.Context, endpoint string, body sendMessageRequest) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			c.logger.Warnf("channels: send retry attempt %d/%d", attempt, c.config.MaxRetries)
		}

		err := c.doSend(ctx, endpoint, body)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			break
		}
	}
	return lastErr
}

func (c *Client) doSend(ctx context.Context, endpoint string, body sendMessageRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("User-Agent", "Engage-Channels-Client/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debugf("channels: %s %s -> %d %s", req.Method, req.URL.String(), resp.StatusCode, string(respBody))

	if resp.StatusCode >= 400 {
		var sendResp sendMessageResponse
		if err := json.Unmarshal(respBody, &sendResp); err == nil && sendResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: sendResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return nil
}
