package telemetry

import "github.com/felixgeelhaar/pmteam/internal/config"

// Config holds configuration for the tracer
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used
	Enabled bool

	// Endpoint is the OTLP/HTTP collector endpoint.
	// If empty, spans are sampled but not exported
	Endpoint string

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns tracing disabled, suitable for the CLI.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "pmteam",
		ServiceVersion: "dev",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// FromConfig builds a tracer configuration from the application config.
func FromConfig(tc config.TelemetryConfig, version string) Config {
	cfg := DefaultConfig()
	cfg.Enabled = tc.Enabled
	cfg.Endpoint = tc.Endpoint
	if tc.SampleRate > 0 {
		cfg.SampleRate = tc.SampleRate
	}
	if tc.Environment != "" {
		cfg.Environment = tc.Environment
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}
