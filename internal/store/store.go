package store

import (
	"context"
	"errors"
	"time"

	"engage/internal/automation"
	"engage/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Store is the gorm-backed implementation of the engine's repository
// contract plus the CRUD the handlers need.
type Store struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func New(db *gorm.DB, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{db: db, logger: logger}
}

// RulesInScope returns the workspace/agent's rules in creation order.
func (s *Store) RulesInScope(ctx context.Context, workspaceID, agentID uint, triggerTypes ...string) ([]models.AutomationRule, error) {
	query := s.db.WithContext(ctx).
		Where("workspace_id = ? AND agent_id = ?", workspaceID, agentID).
		Order("id ASC")
	if len(triggerTypes) > 0 {
		query = query.Where("trigger_type IN ?", triggerTypes)
	}
	var rules []models.AutomationRule
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) RuleByID(ctx context.Context, workspaceID, ruleID uint) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		First(&rule, ruleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &automation.NotFoundError{Kind: "rule", ID: ruleID}
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Store) HasExecuted(ctx context.Context, ruleID uint, occurrenceID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ExecutionRecord{}).
		Where("rule_id = ? AND occurrence_id = ? AND outcome = ?",
			ruleID, occurrenceID, string(automation.OutcomeExecuted)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ClaimMinute advances last_executed_at to bucket with a single
// conditional UPDATE. Zero rows affected means another invocation
// already owns the bucket.
func (s *Store) ClaimMinute(ctx context.Context, ruleID uint, bucket time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.AutomationRule{}).
		Where("id = ? AND (last_executed_at IS NULL OR last_executed_at < ?)", ruleID, bucket).
		Update("last_executed_at", bucket)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store) AppendRecord(ctx context.Context, record *models.ExecutionRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *Store) WorkspaceSecret(ctx context.Context, workspaceID uint) (string, error) {
	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, workspaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", &automation.NotFoundError{Kind: "workspace", ID: workspaceID}
	}
	if err != nil {
		return "", err
	}
	return workspace.WebhookSecret, nil
}

// Enqueue appends a rendered email job to the delivery queue.
func (s *Store) Enqueue(ctx context.Context, job *models.EmailJob) error {
	return s.db.WithContext(ctx).Create(job).Error
}

// SaveInboundMessage stores one received comment/message before rule
// evaluation runs.
func (s *Store) SaveInboundMessage(ctx context.Context, msg *models.InboundMessage) error {
	return s.db.WithContext(ctx).Create(msg).Error
}

// ListRules returns every rule for a workspace, newest first.
func (s *Store) ListRules(ctx context.Context, workspaceID uint) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("id DESC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *models.AutomationRule) error {
	return s.db.WithContext(ctx).Create(rule).Error
}

func (s *Store) DeleteRule(ctx context.Context, workspaceID, ruleID uint) error {
	result := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Delete(&models.AutomationRule{}, ruleID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &automation.NotFoundError{Kind: "rule", ID: ruleID}
	}
	return nil
}

// ListRecords returns the audit trail for one rule, newest first.
func (s *Store) ListRecords(ctx context.Context, workspaceID, ruleID uint, limit int) ([]models.ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []models.ExecutionRecord
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND rule_id = ?", workspaceID, ruleID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
