package automation

import (
	"context"
	"fmt"
	"time"

	"engage/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Coordinator orchestrates one evaluation pass per entry point:
// evaluate -> claim -> dispatch -> record, rule by rule in creation
// order. Rules fail independently; only a failure to fetch the
// candidate set is fatal to a batch.
type Coordinator struct {
	repo       Repository
	evaluator  *Evaluator
	guard      *Guard
	dispatcher *Dispatcher
	audit      *AuditLogger
	logger     *logrus.Logger
	tracer     trace.Tracer
}

func NewCoordinator(repo Repository, evaluator *Evaluator, guard *Guard, dispatcher *Dispatcher, audit *AuditLogger, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Coordinator{
		repo:       repo,
		evaluator:  evaluator,
		guard:      guard,
		dispatcher: dispatcher,
		audit:      audit,
		logger:     logger,
		tracer:     otel.Tracer("engage.automation"),
	}
}

// HandleCommentEvent evaluates every rule in the event's
// workspace/agent scope against one inbound comment.
func (c *Coordinator) HandleCommentEvent(ctx context.Context, evt Event, now time.Time) (*BatchResult, error) {
	evt.Kind = EventComment
	return c.runEventBatch(ctx, "automation.comment_event", evt, now)
}

// HandleMessageEvent evaluates every rule in scope against one inbound
// direct message.
func (c *Coordinator) HandleMessageEvent(ctx context.Context, evt Event, now time.Time) (*BatchResult, error) {
	evt.Kind = EventMessage
	return c.runEventBatch(ctx, "automation.message_event", evt, now)
}

// RunScheduledRules evaluates all time rules for a workspace/agent at
// "now". It is safe under duplicate scheduler invocation: the minute
// bucket claim lets exactly one invocation execute per rule per minute.
func (c *Coordinator) RunScheduledRules(ctx context.Context, workspaceID, agentID uint, now time.Time) (*BatchResult, error) {
	ctx, span := c.tracer.Start(ctx, "automation.scheduled_tick")
	defer span.End()
	span.SetAttributes(attribute.Int("workspace.id", int(workspaceID)))

	bucket := MinuteBucket(now)
	evt := Event{
		Kind:         EventTimeTick,
		WorkspaceID:  workspaceID,
		AgentID:      agentID,
		OccurrenceID: BucketOccurrenceID(bucket),
	}

	rules, err := c.repo.RulesInScope(ctx, workspaceID, agentID, TriggerTime)
	if err != nil {
		return nil, fmt.Errorf("fetch time rules: %w", err)
	}
	return c.processRules(ctx, rules, evt, now), nil
}

// RunManualTrigger fires one explicitly targeted rule regardless of its
// trigger type: matching is bypassed, only the idempotency claim and
// action dispatch run. Each invocation is its own logical occurrence.
// Disabled rules still never fire.
func (c *Coordinator) RunManualTrigger(ctx context.Context, workspaceID, agentID, ruleID uint, recipient, messageOverride string, now time.Time) (*BatchResult, error) {
	ctx, span := c.tracer.Start(ctx, "automation.manual_trigger")
	defer span.End()
	span.SetAttributes(attribute.Int("rule.id", int(ruleID)))

	rule, err := c.repo.RuleByID(ctx, workspaceID, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.AgentID != agentID {
		return nil, &NotFoundError{Kind: "rule", ID: ruleID}
	}

	evt := Event{
		Kind:            EventManual,
		WorkspaceID:     workspaceID,
		AgentID:         agentID,
		OccurrenceID:    "manual:" + uuid.NewString(),
		Recipient:       recipient,
		MessageOverride: messageOverride,
	}

	ev := Evaluation{Rule: rule, Matched: rule.Enabled}
	if ev.Matched {
		ev.MatchedAt = now
	}
	result := &BatchResult{Processed: true, Outcomes: []RuleOutcome{c.processRule(ctx, ev, evt, now)}}
	return result, nil
}

func (c *Coordinator) runEventBatch(ctx context.Context, spanName string, evt Event, now time.Time) (*BatchResult, error) {
	ctx, span := c.tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.Int("workspace.id", int(evt.WorkspaceID)),
		attribute.String("event.occurrence_id", evt.OccurrenceID),
	)

	rules, err := c.repo.RulesInScope(ctx, evt.WorkspaceID, evt.AgentID)
	if err != nil {
		return nil, fmt.Errorf("fetch rules: %w", err)
	}
	return c.processRules(ctx, rules, evt, now), nil
}

// processRules runs the evaluate/claim/dispatch/record pipeline for
// each candidate rule sequentially so audit ordering stays
// deterministic.
func (c *Coordinator) processRules(ctx context.Context, rules []models.AutomationRule, evt Event, now time.Time) *BatchResult {
	result := &BatchResult{Processed: true, Outcomes: make([]RuleOutcome, 0, len(rules))}

	for _, ev := range c.evaluator.EvaluateAll(rules, evt, now) {
		result.Outcomes = append(result.Outcomes, c.processRule(ctx, ev, evt, now))
	}
	return result
}

func (c *Coordinator) processRule(ctx context.Context, ev Evaluation, evt Event, now time.Time) RuleOutcome {
	rule := ev.Rule
	outcome := RuleOutcome{RuleID: rule.ID}

	if !ev.Matched {
		outcome.Outcome = OutcomeNotMatched
		if ev.Warning != nil {
			outcome.Error = ev.Warning.Error()
		}
		c.audit.Record(ctx, rule, evt.OccurrenceID, OutcomeNotMatched, "", outcome.Error)
		return outcome
	}

	// Validate the action config before claiming the occurrence, so a
	// misconfigured rule does not burn its minute bucket.
	action, err := ParseActionSpec(rule)
	if err != nil {
		c.logger.Warnf("automation: rule %d has invalid action config: %v", rule.ID, err)
		outcome.Outcome = OutcomeNotMatched
		outcome.Error = err.Error()
		c.audit.Record(ctx, rule, evt.OccurrenceID, OutcomeNotMatched, "", outcome.Error)
		return outcome
	}

	if !c.guard.Claim(ctx, rule, evt, now) {
		outcome.Outcome = OutcomeSkippedDuplicate
		c.audit.Record(ctx, rule, evt.OccurrenceID, OutcomeSkippedDuplicate, "", "")
		return outcome
	}

	summary, err := c.dispatcher.Execute(ctx, rule, action, evt)
	if err != nil {
		c.logger.Warnf("automation: rule %d action %s failed: %v", rule.ID, rule.ActionType, err)
		outcome.Outcome = OutcomeFailed
		outcome.Error = err.Error()
		c.audit.Record(ctx, rule, evt.OccurrenceID, OutcomeFailed, "", outcome.Error)
		return outcome
	}

	c.logger.Infof("automation: rule %d (%s) executed for occurrence %s", rule.ID, rule.Name, evt.OccurrenceID)
	outcome.Outcome = OutcomeExecuted
	outcome.ActionResult = summary
	c.audit.Record(ctx, rule, evt.OccurrenceID, OutcomeExecuted, summary, "")
	return outcome
}
