package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"engage/internal/models"

	"github.com/sirupsen/logrus"
)

// ChannelMessage is one outbound reply handed to the channel-send
// collaborator.
type ChannelMessage struct {
	Platform  string
	Recipient string
	CommentID string
	PostID    string
	Text      string
}

// ChannelSender delivers DMs and public replies through the connected
// platform. Implementations report retryable failures via a
// Retryable() bool method on the returned error.
type ChannelSender interface {
	SendDirectMessage(ctx context.Context, msg ChannelMessage) error
	SendPublicReply(ctx context.Context, msg ChannelMessage) error
}

// EmailQueue accepts rendered email jobs for asynchronous delivery.
type EmailQueue interface {
	Enqueue(ctx context.Context, job *models.EmailJob) error
}

// DispatcherConfig bounds outbound webhook delivery.
type DispatcherConfig struct {
	WebhookTimeout  time.Duration
	DefaultRetries  int // retries after the initial attempt
	BackoffBase     time.Duration
	SignatureHeader string
	MaxResponseLog  int
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WebhookTimeout:  10 * time.Second,
		DefaultRetries:  2,
		BackoffBase:     500 * time.Millisecond,
		SignatureHeader: "X-Engage-Signature",
		MaxResponseLog:  512,
	}
}

// Dispatcher executes the action of one matched, claimed rule. Every
// failure is captured and returned as a typed error so one rule can
// never abort evaluation of its siblings.
type Dispatcher struct {
	sender     ChannelSender
	emails     EmailQueue
	repo       Repository
	httpClient *http.Client
	config     DispatcherConfig
	logger     *logrus.Logger
}

func NewDispatcher(sender ChannelSender, emails EmailQueue, repo Repository, httpClient *http.Client, config DispatcherConfig, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if config.WebhookTimeout <= 0 {
		config.WebhookTimeout = DefaultDispatcherConfig().WebhookTimeout
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = DefaultDispatcherConfig().BackoffBase
	}
	if config.SignatureHeader == "" {
		config.SignatureHeader = DefaultDispatcherConfig().SignatureHeader
	}
	if config.MaxResponseLog <= 0 {
		config.MaxResponseLog = DefaultDispatcherConfig().MaxResponseLog
	}
	return &Dispatcher{
		sender:     sender,
		emails:     emails,
		repo:       repo,
		httpClient: httpClient,
		config:     config,
		logger:     logger,
	}
}

// Execute runs one action and returns a human-readable result summary.
// The returned error, if any, is a ValidationError, NotFoundError,
// TransientDeliveryError or PermanentDeliveryError.
func (d *Dispatcher) Execute(ctx context.Context, rule *models.AutomationRule, action ActionSpec, evt Event) (string, error) {
	vars := EventVars(evt)

	switch act := action.(type) {
	case SendDMAction:
		return d.sendDM(ctx, act, evt, vars)
	case SendPublicReplyAction:
		return d.sendPublicReply(ctx, act, evt, vars)
	case SendEmailAction:
		return d.sendEmail(ctx, rule, act, evt, vars)
	case SendWebhookAction:
		return d.sendWebhook(ctx, rule, act, vars)
	default:
		return "", &ValidationError{Field: "action_type", Reason: fmt.Sprintf("unhandled action %T", action)}
	}
}

func (d *Dispatcher) sendDM(ctx context.Context, act SendDMAction, evt Event, vars map[string]any) (string, error) {
	recipient := evt.Recipient
	if recipient == "" {
		recipient = evt.AuthorID
	}
	if recipient == "" {
		return "", &ValidationError{Field: "recipient", Reason: "event carries no recipient for send_dm"}
	}

	text := evt.MessageOverride
	if text == "" {
		text = RenderTemplate(act.Message, vars)
	}

	err := d.sender.SendDirectMessage(ctx, ChannelMessage{
		Platform:  evt.Platform,
		Recipient: recipient,
		Text:      text,
	})
	if err != nil {
		return "", classifyDeliveryError(err)
	}
	return fmt.Sprintf("dm sent to %s via %s", recipient, evt.Platform), nil
}

func (d *Dispatcher) sendPublicReply(ctx context.Context, act SendPublicReplyAction, evt Event, vars map[string]any) (string, error) {
	if evt.OccurrenceID == "" {
		return "", &ValidationError{Field: "occurrence_id", Reason: "event carries no comment to reply to"}
	}

	text := evt.MessageOverride
	if text == "" {
		text = RenderTemplate(act.Message, vars)
	}

	err := d.sender.SendPublicReply(ctx, ChannelMessage{
		Platform:  evt.Platform,
		CommentID: evt.OccurrenceID,
		PostID:    evt.PostID,
		Text:      text,
	})
	if err != nil {
		return "", classifyDeliveryError(err)
	}
	return fmt.Sprintf("public reply sent to comment %s", evt.OccurrenceID), nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, rule *models.AutomationRule, act SendEmailAction, evt Event, vars map[string]any) (string, error) {
	to := act.To
	if to == "" {
		to = evt.Recipient
	}
	if to == "" {
		return "", &ValidationError{Field: "action_config.to", Reason: "no recipient address for send_email"}
	}

	if len(act.Variables) > 0 {
		extra := make(map[string]any, len(act.Variables))
		for k, v := range act.Variables {
			extra[k] = v
		}
		vars["vars"] = extra
	}

	job := &models.EmailJob{
		WorkspaceID: rule.WorkspaceID,
		RuleID:      rule.ID,
		To:          to,
		Subject:     RenderTemplate(act.Subject, vars),
		Body:        RenderTemplate(act.Template, vars),
		FromName:    act.FromName,
		ReplyTo:     act.ReplyTo,
		Status:      "queued",
	}
	if err := d.emails.Enqueue(ctx, job); err != nil {
		return "", &TransientDeliveryError{Err: fmt.Errorf("enqueue email: %w", err)}
	}
	return fmt.Sprintf("email queued for %s", to), nil
}

// sendWebhook delivers the rendered payload with bounded exponential
// backoff. The body is serialized once so the signature always covers
// the exact bytes sent.
func (d *Dispatcher) sendWebhook(ctx context.Context, rule *models.AutomationRule, act SendWebhookAction, vars map[string]any) (string, error) {
	rendered := RenderPayload(act.PayloadTemplate, vars)
	body, err := json.Marshal(rendered)
	if err != nil {
		return "", &ValidationError{Field: "action_config.payload_template", Reason: err.Error()}
	}

	signature := ""
	if act.SignPayload {
		secret, err := d.repo.WorkspaceSecret(ctx, rule.WorkspaceID)
		if err != nil {
			return "", &NotFoundError{Kind: "workspace", ID: rule.WorkspaceID}
		}
		signature = SignPayload(secret, body)
	}

	retries := d.config.DefaultRetries
	if act.RetryCount != nil {
		retries = *act.RetryCount
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := d.config.BackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return "", &TransientDeliveryError{Err: ctx.Err()}
			case <-time.After(delay):
			}
			d.logger.Warnf("automation: webhook retry %d/%d for rule %d", attempt, retries, rule.ID)
		}

		status, err := d.webhookAttempt(ctx, rule, act, body, signature)
		if err == nil {
			return fmt.Sprintf("webhook delivered: %s %s -> %d", act.Method, act.URL, status), nil
		}
		lastErr = err
		if !IsTransient(err) {
			break
		}
	}
	return "", lastErr
}

func (d *Dispatcher) webhookAttempt(ctx context.Context, rule *models.AutomationRule, act SendWebhookAction, body []byte, signature string) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.config.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, act.Method, act.URL, bytes.NewReader(body))
	if err != nil {
		return 0, &PermanentDeliveryError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range act.Headers {
		req.Header.Set(k, v)
	}
	if signature != "" {
		req.Header.Set(d.config.SignatureHeader, signature)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warnf("automation: webhook attempt for rule %d failed: %v", rule.ID, err)
		return 0, &TransientDeliveryError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, int64(d.config.MaxResponseLog)))
	d.logger.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"url":     act.URL,
		"status":  resp.StatusCode,
		"body":    string(respBody),
	}).Info("automation: webhook attempt")

	switch {
	case resp.StatusCode < 400:
		return resp.StatusCode, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, &TransientDeliveryError{Err: fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)}
	default:
		return resp.StatusCode, &PermanentDeliveryError{Err: fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)}
	}
}

// classifyDeliveryError maps a channel-send failure onto the delivery
// taxonomy. Errors exposing Retryable() keep their own classification;
// anything else (network-level) counts as transient.
func classifyDeliveryError(err error) error {
	if re, ok := err.(interface{ Retryable() bool }); ok && !re.Retryable() {
		return &PermanentDeliveryError{Err: err}
	}
	return &TransientDeliveryError{Err: err}
}
