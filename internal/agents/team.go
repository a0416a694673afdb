package agents

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/provider"
)

const (
	plannerPrompt = "You are an expert agile / program planning assistant. Provide concise, actionable answers. " +
		"Reference task IDs where relevant. If the user asks for status, summarize task count, high risk tasks, " +
		"blockers, points and estimated sprints. Never invent tasks not in the plan. If clarification is needed, " +
		"ask a short follow-up question."

	criticPrompt = "You review a planning assistant's draft answer for accuracy against the plan. " +
		"Reply with APPROVED if the draft is correct and only references tasks in the plan. " +
		"Otherwise list the concrete corrections, one per line."

	approved = "APPROVED"
)

// Team is a planner that drafts answers and a critic that reviews them.
type Team struct {
	planner *Agent
	critic  *Agent
	rounds  int
	logger  *log.Logger
}

// Options configure a Team.
type Options struct {
	// Model overrides the client default for both agents
	Model string
	// Rounds is the maximum number of critic reviews; at least 1
	Rounds int
	Logger *log.Logger
}

// NewTeam builds the planner/critic pair over client.
func NewTeam(client provider.Client, opts Options) *Team {
	rounds := opts.Rounds
	if rounds < 1 {
		rounds = 1
	}
	return &Team{
		planner: NewAgent("planner", plannerPrompt, client, opts.Model),
		critic:  NewAgent("critic", criticPrompt, client, opts.Model),
		rounds:  rounds,
		logger:  log.OrDefault(opts.Logger),
	}
}

// RunOnce answers message using planContext. The planner drafts, the critic
// reviews, and the planner revises until the critic approves or the rounds
// run out. The last draft is returned either way.
func (t *Team) RunOnce(ctx context.Context, planContext, message string) (string, error) {
	draft, err := t.planner.Ask(ctx, planContext, message, nil)
	if err != nil {
		return "", err
	}

	for round := 1; round <= t.rounds; round++ {
		review, err := t.critic.Ask(ctx, planContext, "USER_QUERY:\n"+message+"\n\nDRAFT:\n"+draft, nil)
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(strings.ToUpper(review), approved) {
			t.logger.Debug("critic approved draft", "round", round)
			return draft, nil
		}

		t.logger.Debug("critic requested revision", "round", round)
		history := []provider.Message{
			{Role: "user", Content: message},
			{Role: "assistant", Content: draft},
		}
		draft, err = t.planner.Ask(ctx, planContext,
			"A reviewer raised these corrections:\n"+review+"\n\nRewrite your answer applying them.", history)
		if err != nil {
			return "", err
		}
	}
	return draft, nil
}
