package provider

import (
	"fmt"

	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/errors"
)

// New builds the configured completion client, rate limited per cfg. The
// model is resolved from the explicit override, then the secondary override,
// then the provider default.
func New(cfg config.LLMConfig) (Client, error) {
	opts := Options{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}

	var (
		client Client
		err    error
	)
	opts.Model = ModelFor(cfg)
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		client, err = NewOpenAIClient(opts)
	case config.ProviderAnthropic:
		client, err = NewAnthropicClient(opts)
	default:
		return nil, errors.New(errors.ErrCodeProviderConfig, fmt.Sprintf("unknown provider: %s", cfg.Provider))
	}
	if err != nil {
		return nil, err
	}

	if cfg.RateLimitRPS > 0 {
		return NewRateLimited(client, cfg.RateLimitRPS, cfg.Burst), nil
	}
	return client, nil
}

// ModelFor resolves the completion model for cfg. The secondary override
// names an OpenAI model and is ignored for other providers.
func ModelFor(cfg config.LLMConfig) string {
	secondary := cfg.SecondaryModel
	if cfg.Provider == config.ProviderAnthropic {
		secondary = ""
	}
	return ResolveModel(cfg.Model, secondary, DefaultModel(cfg.Provider))
}
