package intelligence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/felixgeelhaar/pmteam/internal/provider"
	"github.com/felixgeelhaar/pmteam/internal/responder"
)

// Tier names as they appear in provenance, logs and metrics.
const (
	TierMultiAgent = "multi_agent"
	TierCompletion = "completion"
	TierHeuristic  = "heuristic"
)

var errBlankReply = errors.New("blank reply")

// TeamRunner is the multi-agent collaborator.
type TeamRunner interface {
	RunOnce(ctx context.Context, planContext, message string) (string, error)
}

// MultiAgentTier asks a planner/critic team. It runs only when enabled and a
// credential is configured.
type MultiAgentTier struct {
	Team          TeamRunner
	Enabled       bool
	HasCredential bool
	Deadline      time.Duration
}

func (t *MultiAgentTier) Name() string { return TierMultiAgent }
func (t *MultiAgentTier) Timeout() time.Duration { return t.Deadline }

func (t *MultiAgentTier) Attempt(ctx context.Context, p Prompt) Outcome {
	switch {
	case !t.Enabled:
		return skipped("multi-agent disabled")
	case !t.HasCredential || t.Team == nil:
		return skipped("no credential")
	}
	text, err := t.Team.RunOnce(ctx, p.PlanContext(), p.Composite())
	return fromText(text, err)
}

const completionPrompt = "You are an expert agile / program planning assistant. Provide concise, actionable answers. " +
	"Reference task IDs where relevant. Never invent tasks not in the plan."

// CompletionTier sends a single completion request.
type CompletionTier struct {
	Client   provider.Client
	Model    string
	Deadline time.Duration
}

func (t *CompletionTier) Name() string { return TierCompletion }
func (t *CompletionTier) Timeout() time.Duration { return t.Deadline }

func (t *CompletionTier) Attempt(ctx context.Context, p Prompt) Outcome {
	if t.Client == nil {
		return skipped("no credential")
	}
	resp, err := t.Client.Complete(ctx, &provider.Request{
		SystemPrompt: completionPrompt + "\n\nPLAN_CONTEXT:\n" + p.PlanContext(),
		Prompt:       p.Composite(),
		Model:        t.Model,
	})
	if err != nil {
		return failed(err)
	}
	return fromText(resp.Content, nil)
}

// HeuristicTier answers from the plan alone and never fails.
type HeuristicTier struct{}

func (HeuristicTier) Name() string { return TierHeuristic }

func (HeuristicTier) Attempt(_ context.Context, p Prompt) Outcome {
	return replied(responder.Respond(p.Plan, p.Recent, p.Message))
}

func fromText(text string, err error) Outcome {
	if err != nil {
		return failed(err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return failed(errBlankReply)
	}
	return replied(text)
}
