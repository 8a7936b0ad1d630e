package automation

import (
	"encoding/json"
	"strings"
	"time"

	"engage/internal/models"
)

// Closed trigger/action sets. Unknown kinds are rejected at evaluation
// time with a ValidationError, never silently skipped.
const (
	TriggerComment = "comment"
	TriggerKeyword = "keyword"
	TriggerTime    = "time"
	TriggerManual  = "manual"

	ActionSendDM          = "send_dm"
	ActionSendPublicReply = "send_public_reply"
	ActionSendEmail       = "send_email"
	ActionSendWebhook     = "send_webhook"
)

// TriggerSpec is the typed form of AutomationRule.TriggerConfig.
type TriggerSpec interface{ triggerSpec() }

// CommentTrigger fires on inbound comments, optionally restricted to
// one post/page and a keyword list.
type CommentTrigger struct {
	Keywords []string
	ScopeID  string
}

// KeywordTrigger fires on inbound comments or messages containing one
// of the configured keywords. No keywords means match-all.
type KeywordTrigger struct {
	Keywords []string
	ScopeID  string
}

// TimeTrigger fires on scheduler ticks, either once at ScheduledTime or
// repeatedly per CronPattern, interpreted in Location.
type TimeTrigger struct {
	ScheduledTime *time.Time
	CronPattern   string
	Location      *time.Location
}

// ManualTrigger fires only when the rule is explicitly targeted via the
// manual entry point.
type ManualTrigger struct{}

func (CommentTrigger) triggerSpec() {}
func (KeywordTrigger) triggerSpec() {}
func (TimeTrigger) triggerSpec()    {}
func (ManualTrigger) triggerSpec()  {}

type keywordTriggerConfig struct {
	Keywords []string `json:"keywords"`
	ScopeID  string   `json:"scope_id"`
}

type timeTriggerConfig struct {
	ScheduledTime string `json:"scheduled_time"`
	CronPattern   string `json:"cron_pattern"`
	Timezone      string `json:"timezone"`
}

// ParseTriggerSpec validates and decodes a rule's trigger config into
// its typed variant.
func ParseTriggerSpec(rule *models.AutomationRule) (TriggerSpec, error) {
	switch rule.TriggerType {
	case TriggerComment, TriggerKeyword:
		var cfg keywordTriggerConfig
		if err := decodeConfig(rule.TriggerConfig, &cfg); err != nil {
			return nil, &ValidationError{Field: "trigger_config", Reason: err.Error()}
		}
		keywords := make([]string, 0, len(cfg.Keywords))
		for _, kw := range cfg.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if rule.TriggerType == TriggerComment {
			return CommentTrigger{Keywords: keywords, ScopeID: cfg.ScopeID}, nil
		}
		return KeywordTrigger{Keywords: keywords, ScopeID: cfg.ScopeID}, nil

	case TriggerTime:
		var cfg timeTriggerConfig
		if err := decodeConfig(rule.TriggerConfig, &cfg); err != nil {
			return nil, &ValidationError{Field: "trigger_config", Reason: err.Error()}
		}
		spec := TimeTrigger{CronPattern: cfg.CronPattern, Location: time.UTC}
		if cfg.Timezone != "" {
			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return nil, &ValidationError{Field: "trigger_config.timezone", Reason: err.Error()}
			}
			spec.Location = loc
		}
		if cfg.ScheduledTime != "" {
			ts, err := time.Parse(time.RFC3339, cfg.ScheduledTime)
			if err != nil {
				return nil, &ValidationError{Field: "trigger_config.scheduled_time", Reason: err.Error()}
			}
			spec.ScheduledTime = &ts
		}
		if spec.ScheduledTime == nil && spec.CronPattern == "" {
			return nil, &ValidationError{Field: "trigger_config", Reason: "time trigger needs scheduled_time or cron_pattern"}
		}
		return spec, nil

	case TriggerManual:
		return ManualTrigger{}, nil

	default:
		return nil, &ValidationError{Field: "trigger_type", Reason: "unknown trigger type " + rule.TriggerType}
	}
}

// ActionSpec is the typed form of AutomationRule.ActionConfig.
type ActionSpec interface{ actionSpec() }

// SendDMAction replies privately to the event's author via the channel
// collaborator.
type SendDMAction struct {
	Message string `json:"message"`
}

// SendPublicReplyAction replies publicly under the triggering comment.
type SendPublicReplyAction struct {
	Message string `json:"message"`
}

// SendEmailAction renders a template and appends a job to the email
// delivery queue.
type SendEmailAction struct {
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	FromName  string            `json:"from_name"`
	ReplyTo   string            `json:"reply_to"`
	Variables map[string]string `json:"variables"`
}

// SendWebhookAction calls an external HTTP endpoint with a rendered,
// optionally HMAC-signed JSON payload.
type SendWebhookAction struct {
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	PayloadTemplate map[string]any    `json:"payload_template"`
	SignPayload     bool              `json:"sign_payload"`
	RetryCount      *int              `json:"retry_count"`
}

func (SendDMAction) actionSpec()          {}
func (SendPublicReplyAction) actionSpec() {}
func (SendEmailAction) actionSpec()       {}
func (SendWebhookAction) actionSpec()     {}

// ParseActionSpec validates and decodes a rule's action config into its
// typed variant.
func ParseActionSpec(rule *models.AutomationRule) (ActionSpec, error) {
	switch rule.ActionType {
	case ActionSendDM:
		var cfg SendDMAction
		if err := decodeConfig(rule.ActionConfig, &cfg); err != nil {
			return nil, &ValidationError{Field: "action_config", Reason: err.Error()}
		}
		return cfg, nil

	case ActionSendPublicReply:
		var cfg SendPublicReplyAction
		if err := decodeConfig(rule.ActionConfig, &cfg); err != nil {
			return nil, &ValidationError{Field: "action_config", Reason: err.Error()}
		}
		return cfg, nil

	case ActionSendEmail:
		var cfg SendEmailAction
		if err := decodeConfig(rule.ActionConfig, &cfg); err != nil {
			return nil, &ValidationError{Field: "action_config", Reason: err.Error()}
		}
		if cfg.Template == "" {
			return nil, &ValidationError{Field: "action_config.template", Reason: "template is required"}
		}
		return cfg, nil

	case ActionSendWebhook:
		var cfg SendWebhookAction
		if err := decodeConfig(rule.ActionConfig, &cfg); err != nil {
			return nil, &ValidationError{Field: "action_config", Reason: err.Error()}
		}
		if cfg.URL == "" {
			return nil, &ValidationError{Field: "action_config.url", Reason: "url is required"}
		}
		switch strings.ToUpper(cfg.Method) {
		case "":
			cfg.Method = "POST"
		case "GET", "POST", "PUT":
			cfg.Method = strings.ToUpper(cfg.Method)
		default:
			return nil, &ValidationError{Field: "action_config.method", Reason: "unsupported method " + cfg.Method}
		}
		if cfg.RetryCount != nil && *cfg.RetryCount < 0 {
			return nil, &ValidationError{Field: "action_config.retry_count", Reason: "retry_count must be >= 0"}
		}
		return cfg, nil

	default:
		return nil, &ValidationError{Field: "action_type", Reason: "unknown action type " + rule.ActionType}
	}
}

func decodeConfig(raw string, out any) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
