package automation

import (
	"context"
	"time"

	"engage/internal/models"
)

// Repository is the narrow storage contract the engine consumes. The
// rule store itself (schema, migrations, management API) is outside the
// engine's scope.
type Repository interface {
	// RulesInScope returns the workspace/agent's rules in creation
	// order, optionally filtered to the given trigger types.
	RulesInScope(ctx context.Context, workspaceID, agentID uint, triggerTypes ...string) ([]models.AutomationRule, error)

	// RuleByID fetches one rule scoped to its workspace.
	RuleByID(ctx context.Context, workspaceID, ruleID uint) (*models.AutomationRule, error)

	// HasExecuted reports whether a matched_executed record already
	// exists for (ruleID, occurrenceID).
	HasExecuted(ctx context.Context, ruleID uint, occurrenceID string) (bool, error)

	// ClaimMinute atomically advances the rule's last_executed_at to
	// bucket, succeeding only if the stored value is older. This is the
	// single conditional update backing time-trigger idempotency; it
	// must be a compare-and-swap at the storage layer, not
	// read-then-write.
	ClaimMinute(ctx context.Context, ruleID uint, bucket time.Time) (bool, error)

	// AppendRecord appends one immutable execution record.
	AppendRecord(ctx context.Context, record *models.ExecutionRecord) error

	// WorkspaceSecret returns the workspace's webhook signing secret.
	WorkspaceSecret(ctx context.Context, workspaceID uint) (string, error)
}
