// Package responder answers plan questions from fixed templates. It is the
// last tier of the intelligence chain and never fails.
package responder

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/plan"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentStatus   Intent = "status"
	IntentRisk     Intent = "risk"
	IntentBlockers Intent = "blockers"
	IntentTasks    Intent = "tasks"
	IntentGeneral  Intent = "general"
)

var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentStatus, []string{"what is happening", "status", "summary", "progress", "update"}},
	{IntentRisk, []string{"risk"}},
	{IntentBlockers, []string{"blocker", "blocked"}},
	{IntentTasks, []string{"task", "plan"}},
}

const (
	contextMessages = 4
	contextChars    = 240
	echoChars       = 160
)

// Classify returns the first intent whose keywords occur in message.
func Classify(message string) Intent {
	lower := strings.ToLower(message)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.intent
			}
		}
	}
	return IntentGeneral
}

// Respond renders the template for the message's intent and appends a short
// tail of the transcript.
func Respond(p *plan.Plan, transcript conversation.Conversation, message string) string {
	s := Summarize(p)

	var reply string
	switch Classify(message) {
	case IntentStatus:
		reply = "Project status -> " + strings.Join(s.headline(), "; ")
	case IntentRisk:
		if len(s.HighRiskTasks) == 0 && s.AggregateRisk == 0 {
			reply = "Risk overview: No significant risks identified"
		} else {
			reply = fmt.Sprintf("Risk overview: HIGH_RISK_TASKS: %s; AGG_RISK: %.2f",
				orNone(strings.Join(s.HighRiskTasks, ", ")), s.AggregateRisk)
		}
	case IntentBlockers:
		if len(s.Blockers) == 0 {
			reply = "No blockers recorded in the current plan."
		} else {
			reply = "BLOCKERS: " + strings.Join(s.Blockers, "; ")
		}
	case IntentTasks:
		if len(s.TopTasks) == 0 {
			reply = "The plan has no tasks yet."
		} else {
			reply = "Planned tasks (priority order): " + strings.Join(s.TopTasks, ", ")
		}
	default:
		reply = "Answer (heuristic): I considered recent context and artifacts. Your request: " + clip(message, echoChars)
	}

	if tail := contextTail(transcript); tail != "" {
		reply += "\nContext: " + tail
	}
	return reply
}

func contextTail(c conversation.Conversation) string {
	recent := c.Tail(contextMessages)
	if len(recent) == 0 {
		return ""
	}
	parts := make([]string, len(recent))
	for i, m := range recent {
		parts[i] = fmt.Sprintf("[%s] %s", m.Sender, m.Content)
	}
	return clip(strings.Join(parts, "\n"), contextChars)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
