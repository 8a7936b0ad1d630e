package models

import "time"

// AutomationRule binds a trigger to an action for one workspace/agent.
// TriggerConfig and ActionConfig are JSON payloads whose shape is keyed
// by TriggerType/ActionType; the engine validates them at evaluation
// time rather than trusting storage.
type AutomationRule struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	WorkspaceID    uint       `gorm:"index" json:"workspace_id"`
	AgentID        uint       `gorm:"index" json:"agent_id"`
	Name           string     `gorm:"not null" json:"name"`
	TriggerType    string     `gorm:"not null" json:"trigger_type"` // comment, keyword, time, manual
	TriggerConfig  string     `gorm:"type:text" json:"trigger_config"`
	ActionType     string     `gorm:"not null" json:"action_type"` // send_dm, send_public_reply, send_email, send_webhook
	ActionConfig   string     `gorm:"type:text" json:"action_config"`
	Enabled        bool       `gorm:"default:true" json:"enabled"`
	LastExecutedAt *time.Time `json:"last_executed_at"` // set only by a successful time execution (minute bucket)
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ExecutionRecord is the append-only audit trail: one row per
// (rule, occurrence) evaluation attempt. Rows are never mutated.
type ExecutionRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	RuleID       uint           `gorm:"index:idx_exec_rule_occurrence" json:"rule_id"`
	WorkspaceID  uint           `gorm:"index" json:"workspace_id"`
	OccurrenceID string         `gorm:"index:idx_exec_rule_occurrence" json:"occurrence_id"`
	Outcome      string         `gorm:"index" json:"outcome"` // not_matched, matched_skipped_duplicate, matched_executed, matched_failed
	ActionResult string         `gorm:"type:text" json:"action_result"`
	ErrorDetail  string         `gorm:"type:text" json:"error_detail"`
	CreatedAt    time.Time      `json:"created_at"`
	Rule         AutomationRule `gorm:"foreignKey:RuleID" json:"rule,omitempty"`
}

// EmailJob is one rendered email waiting in the delivery queue. The
// engine only appends; a separate sender drains the queue.
type EmailJob struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"index" json:"workspace_id"`
	RuleID      uint      `gorm:"index" json:"rule_id"`
	To          string    `gorm:"not null" json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `gorm:"type:text" json:"body"`
	FromName    string    `json:"from_name"`
	ReplyTo     string    `json:"reply_to"`
	Status      string    `gorm:"default:'queued';index" json:"status"` // queued, sent, failed
	CreatedAt   time.Time `json:"created_at"`
}
