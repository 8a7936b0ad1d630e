package automation

import (
	"context"

	"engage/internal/models"

	"github.com/sirupsen/logrus"
)

// AuditLogger appends one ExecutionRecord per evaluation attempt. The
// trail is append-only; a failed append is logged but never fails the
// batch.
type AuditLogger struct {
	repo   Repository
	logger *logrus.Logger
}

func NewAuditLogger(repo Repository, logger *logrus.Logger) *AuditLogger {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuditLogger{repo: repo, logger: logger}
}

// Record persists the outcome of one (rule, occurrence) attempt.
func (a *AuditLogger) Record(ctx context.Context, rule *models.AutomationRule, occurrenceID string, outcome Outcome, actionResult, errDetail string) {
	record := &models.ExecutionRecord{
		RuleID:       rule.ID,
		WorkspaceID:  rule.WorkspaceID,
		OccurrenceID: occurrenceID,
		Outcome:      string(outcome),
		ActionResult: actionResult,
		ErrorDetail:  errDetail,
	}
	if err := a.repo.AppendRecord(ctx, record); err != nil {
		a.logger.Warnf("automation: record append for rule %d failed: %v", rule.ID, err)
		return
	}
	a.logger.WithFields(logrus.Fields{
		"rule_id":       rule.ID,
		"workspace_id":  rule.WorkspaceID,
		"occurrence_id": occurrenceID,
		"outcome":       outcome,
	}).Debug("automation: execution recorded")
}
