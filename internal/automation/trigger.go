package automation

import (
	"strings"
	"time"

	"engage/internal/models"

	"github.com/sirupsen/logrus"
)

// Evaluation is the result of matching one rule against one event.
// Warning carries a ValidationError when the rule's config was
// malformed; such rules never match but never abort the batch.
type Evaluation struct {
	Rule      *models.AutomationRule
	Matched   bool
	MatchedAt time.Time
	Trigger   TriggerSpec
	Warning   error
}

// Evaluator decides which rules match an event. It is pure: "now" is
// always an explicit parameter, never read from an ambient clock.
type Evaluator struct {
	logger *logrus.Logger
}

func NewEvaluator(logger *logrus.Logger) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{logger: logger}
}

// EvaluateAll matches every candidate rule against evt, preserving the
// caller-supplied order (rule creation order). One result per rule.
func (e *Evaluator) EvaluateAll(rules []models.AutomationRule, evt Event, now time.Time) []Evaluation {
	evaluations := make([]Evaluation, 0, len(rules))
	for i := range rules {
		evaluations = append(evaluations, e.evaluate(&rules[i], evt, now))
	}
	return evaluations
}

func (e *Evaluator) evaluate(rule *models.AutomationRule, evt Event, now time.Time) Evaluation {
	ev := Evaluation{Rule: rule}
	if !rule.Enabled {
		return ev
	}

	spec, err := ParseTriggerSpec(rule)
	if err != nil {
		e.logger.Warnf("automation: rule %d has invalid trigger config: %v", rule.ID, err)
		ev.Warning = err
		return ev
	}
	ev.Trigger = spec

	switch trigger := spec.(type) {
	case CommentTrigger:
		ev.Matched = evt.Kind == EventComment &&
			inScope(trigger.ScopeID, evt.PostID) &&
			keywordsMatch(trigger.Keywords, evt.Content)

	case KeywordTrigger:
		ev.Matched = (evt.Kind == EventComment || evt.Kind == EventMessage) &&
			inScope(trigger.ScopeID, evt.PostID) &&
			keywordsMatch(trigger.Keywords, evt.Content)

	case TimeTrigger:
		if evt.Kind != EventTimeTick {
			return ev
		}
		matched, warn := e.timeMatches(rule, trigger, now)
		ev.Matched = matched
		ev.Warning = warn

	case ManualTrigger:
		ev.Matched = evt.Kind == EventManual
	}

	if ev.Matched {
		ev.MatchedAt = now
	}
	return ev
}

// timeMatches checks a time trigger against "now" converted to the
// rule's timezone. A malformed cron pattern never matches and is
// surfaced as a validation warning.
func (e *Evaluator) timeMatches(rule *models.AutomationRule, trigger TimeTrigger, now time.Time) (bool, error) {
	local := now.In(trigger.Location)

	if trigger.ScheduledTime != nil {
		return MinuteBucket(*trigger.ScheduledTime).Equal(MinuteBucket(now)), nil
	}

	schedule, err := parseCron(trigger.CronPattern)
	if err != nil {
		e.logger.Warnf("automation: rule %d has malformed cron pattern %q: %v", rule.ID, trigger.CronPattern, err)
		return false, &ValidationError{Field: "trigger_config.cron_pattern", Reason: err.Error()}
	}
	return schedule.matches(local), nil
}

func inScope(scopeID, postID string) bool {
	return scopeID == "" || scopeID == postID
}

// keywordsMatch is a case-insensitive substring check. An empty keyword
// list matches every event in scope.
func keywordsMatch(keywords []string, content string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
