package models

import (
	"time"

	"gorm.io/gorm"
)

// Workspace is the tenant boundary. Every rule, inbound message and
// execution record belongs to exactly one workspace.
type Workspace struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Plan          string         `gorm:"default:'free'" json:"plan"` // free, pro, enterprise
	WebhookSecret string         `gorm:"not null" json:"-"`          // shared secret for outbound webhook signing
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// InboundMessage is one comment or direct message received from a
// connected channel, stored before rule evaluation runs.
type InboundMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	WorkspaceID uint      `gorm:"index" json:"workspace_id"`
	AgentID     uint      `gorm:"index" json:"agent_id"`
	Kind        string    `gorm:"not null" json:"kind"` // comment, message
	Platform    string    `json:"platform"`             // facebook, instagram, web
	ExternalID  string    `gorm:"index" json:"external_id"`
	PostID      string    `json:"post_id"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	Content     string    `gorm:"type:text" json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}
