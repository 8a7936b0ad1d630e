package automation

import (
	"context"
	"time"

	"engage/internal/models"

	"github.com/sirupsen/logrus"
)

// Guard enforces at-most-one successful execution per (rule,
// occurrence). Comment/keyword/manual occurrences are deduplicated
// against prior matched_executed records; time occurrences are claimed
// via the minute-bucket compare-and-swap on last_executed_at.
type Guard struct {
	repo   Repository
	logger *logrus.Logger
}

func NewGuard(repo Repository, logger *logrus.Logger) *Guard {
	if logger == nil {
		logger = logrus.New()
	}
	return &Guard{repo: repo, logger: logger}
}

// Claim attempts to claim the right to execute rule for this
// occurrence. A false return means a sibling invocation already owns
// (or owned) the occurrence; store conflicts count as duplicates, never
// as errors. The minute-bucket claim applies only to scheduler ticks;
// manual invocations of a time rule use their own occurrence key.
func (g *Guard) Claim(ctx context.Context, rule *models.AutomationRule, evt Event, now time.Time) bool {
	if evt.Kind == EventTimeTick {
		claimed, err := g.repo.ClaimMinute(ctx, rule.ID, MinuteBucket(now))
		if err != nil {
			g.logger.Warnf("automation: minute claim for rule %d failed, treating as duplicate: %v", rule.ID, err)
			return false
		}
		return claimed
	}

	executed, err := g.repo.HasExecuted(ctx, rule.ID, evt.OccurrenceID)
	if err != nil {
		g.logger.Warnf("automation: occurrence lookup for rule %d failed, treating as duplicate: %v", rule.ID, err)
		return false
	}
	return !executed
}
