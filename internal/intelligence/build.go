package intelligence

import (
	"github.com/felixgeelhaar/pmteam/internal/agents"
	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/provider"
)

// FromConfig assembles the standard three-tier chain. A nil client means no
// credential is configured; both model-backed tiers then skip.
func FromConfig(cfg config.LLMConfig, client provider.Client, opts ...Option) *Chain {
	c := NewChain(nil, opts...)
	model := provider.ModelFor(cfg)

	multi := &MultiAgentTier{
		Enabled:       cfg.MultiAgent.Enabled,
		HasCredential: client != nil,
		Deadline:      cfg.MultiAgent.Timeout,
	}
	completion := &CompletionTier{Model: model, Deadline: cfg.Timeout}

	if client != nil {
		multi.Team = agents.NewTeam(client, agents.Options{
			Model:  model,
			Rounds: cfg.MultiAgent.Rounds,
			Logger: c.logger.With("component", "agents"),
		})
		completion.Client = client
	}

	c.tiers = []Tier{multi, completion, HeuristicTier{}}
	return c
}
