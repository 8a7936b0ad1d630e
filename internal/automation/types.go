package automation

import "time"

// EventKind identifies which entry point produced an Event.
type EventKind string

const (
	EventComment  EventKind = "comment"
	EventMessage  EventKind = "message"
	EventTimeTick EventKind = "time_tick"
	EventManual   EventKind = "manual"
)

// Event is the ephemeral input to one evaluation pass. It is built
// fresh per invocation and discarded afterwards.
type Event struct {
	Kind        EventKind
	WorkspaceID uint
	AgentID     uint
	Platform    string

	// OccurrenceID is the stable identity of the triggering occurrence:
	// the external comment/message id, the UTC minute bucket for time
	// ticks, or a generated id for manual runs.
	OccurrenceID string

	// Comment/message fields.
	PostID     string
	AuthorID   string
	AuthorName string
	Content    string

	// Manual invocation metadata.
	Recipient       string
	MessageOverride string
}

// Outcome is the terminal state of one (rule, occurrence) attempt.
type Outcome string

const (
	OutcomeNotMatched       Outcome = "not_matched"
	OutcomeSkippedDuplicate Outcome = "matched_skipped_duplicate"
	OutcomeExecuted         Outcome = "matched_executed"
	OutcomeFailed           Outcome = "matched_failed"
)

// RuleOutcome reports how one rule resolved for one occurrence.
type RuleOutcome struct {
	RuleID       uint    `json:"rule_id"`
	Outcome      Outcome `json:"outcome"`
	ActionResult string  `json:"action_result,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// BatchResult aggregates every rule's outcome for one entry-point call.
type BatchResult struct {
	Processed bool          `json:"processed"`
	Outcomes  []RuleOutcome `json:"outcomes"`
}

// MinuteBucket is the calendar-minute occurrence identity used by time
// triggers. Buckets are always computed in UTC so compare-and-swap
// claims are total-ordered regardless of the rule's display timezone.
func MinuteBucket(now time.Time) time.Time {
	return now.UTC().Truncate(time.Minute)
}

// BucketOccurrenceID renders a minute bucket as an occurrence id.
func BucketOccurrenceID(bucket time.Time) string {
	return "minute:" + bucket.Format("2006-01-02T15:04Z07:00")
}
