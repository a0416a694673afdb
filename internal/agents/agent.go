// Package agents runs a planner/critic pair of role agents over a completion
// client. It backs the multi-agent tier of the intelligence chain.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/pmteam/internal/provider"
)

// Agent is a named role with its own system prompt.
type Agent struct {
	Name         string
	SystemPrompt string

	client provider.Client
	model  string
}

// NewAgent binds a role to a completion client. An empty model uses the
// client default.
func NewAgent(name, systemPrompt string, client provider.Client, model string) *Agent {
	return &Agent{Name: name, SystemPrompt: systemPrompt, client: client, model: model}
}

// Ask sends prompt with the given prior turns and returns the trimmed reply.
func (a *Agent) Ask(ctx context.Context, planContext, prompt string, history []provider.Message) (string, error) {
	system := a.SystemPrompt
	if planContext != "" {
		system += "\n\nPLAN_CONTEXT:\n" + planContext
	}

	resp, err := a.client.Complete(ctx, &provider.Request{
		SystemPrompt: system,
		Context:      history,
		Prompt:       prompt,
		Model:        a.model,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.Name, err)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("%s: empty response", a.Name)
	}
	return reply, nil
}
