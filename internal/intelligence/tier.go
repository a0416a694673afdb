// Package intelligence produces a reply for a chat turn by walking an ordered
// chain of tiers, from the multi-agent team down to the deterministic
// heuristic responder. Backend failures are absorbed; Generate always replies.
package intelligence

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/plan"
	"github.com/felixgeelhaar/pmteam/internal/responder"
)

// Status is the result category of one tier attempt.
type Status int

const (
	// Replied means the tier produced a non-blank reply.
	Replied Status = iota
	// Skipped means the tier's precondition was not met; it was never called.
	Skipped
	// Failed means the tier was called and errored, timed out or returned
	// a blank reply.
	Failed
	// Cancelled means the caller's context ended before the tier could
	// answer. It does not degrade the reply.
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Replied:
		return "replied"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is what a tier attempt returns.
type Outcome struct {
	Status Status
	Reply  string
	Err    error
}

func replied(text string) Outcome { return Outcome{Status: Replied, Reply: text} }
func skipped(reason string) Outcome { return Outcome{Status: Skipped, Err: skipReason(reason)} }
func failed(err error) Outcome { return Outcome{Status: Failed, Err: err} }
func cancelled(err error) Outcome { return Outcome{Status: Cancelled, Err: err} }

type skipReason string

func (s skipReason) Error() string { return string(s) }

// Tier is one backend in the chain.
type Tier interface {
	Name() string
	Attempt(ctx context.Context, p Prompt) Outcome
}

// Bounded is implemented by tiers that must finish within a deadline.
type Bounded interface {
	Timeout() time.Duration
}

// Prompt is the input shared by every tier.
type Prompt struct {
	Plan *plan.Plan
	// Recent is the transcript tail, oldest first
	Recent  conversation.Conversation
	Message string
}

// PlanContext renders the plan summary given to model-backed tiers.
func (p Prompt) PlanContext() string {
	return responder.Summarize(p.Plan).String()
}

// Composite folds the recent messages into the user query. Without recent
// messages the bare message is returned.
func (p Prompt) Composite() string {
	if len(p.Recent) == 0 {
		return p.Message
	}
	lines := make([]string, 0, len(p.Recent))
	for _, m := range p.Recent {
		lines = append(lines, "["+string(m.Sender)+"] "+m.Content)
	}
	return "RECENT_MESSAGES:\n" + strings.Join(lines, "\n") +
		"\n\nUSER_QUERY:\n" + p.Message + "\n\nRespond now."
}
