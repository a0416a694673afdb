package health

import (
	"context"

	"github.com/felixgeelhaar/pmteam/internal/provider"
)

// CompletionChecker probes the completion backend. Without a backend, or
// with one that fails, replies fall back to the heuristic tier, so the
// result is at worst degraded.
type CompletionChecker struct {
	client provider.Client
}

// NewCompletionChecker checks client; nil means offline mode.
func NewCompletionChecker(client provider.Client) *CompletionChecker {
	return &CompletionChecker{client: client}
}

func (c *CompletionChecker) Name() string {
	return "completion"
}

func (c *CompletionChecker) Check(ctx context.Context) *Result {
	if c.client == nil {
		return Degraded("offline mode, heuristic replies only").
			WithDetail("suggestion", "Set OPENAI_API_KEY or ANTHROPIC_API_KEY to enable model replies")
	}
	if err := c.client.Health(ctx); err != nil {
		return Degraded("completion backend unavailable").
			WithDetail("provider", c.client.Name()).
			WithDetail("error", err.Error())
	}
	return Healthy("completion backend reachable").
		WithDetail("provider", c.client.Name())
}
