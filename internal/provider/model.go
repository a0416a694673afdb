package provider

import (
	"strings"

	"github.com/felixgeelhaar/pmteam/internal/config"
)

// Built-in default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// ResolveModel returns the first non-blank of the explicit override, the
// secondary override and the built-in default.
func ResolveModel(explicit, secondary, builtin string) string {
	for _, m := range []string{explicit, secondary, builtin} {
		if m = strings.TrimSpace(m); m != "" {
			return m
		}
	}
	return DefaultOpenAIModel
}

// DefaultModel returns the built-in model for a provider name.
func DefaultModel(provider string) string {
	if provider == config.ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}
