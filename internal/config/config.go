// Package config loads pmteam configuration from YAML or TOML files and
// applies environment overrides on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

// Storage drivers
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Completion providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the root configuration document.
type Config struct {
	Storage        StorageConfig      `yaml:"storage" toml:"storage" json:"storage"`
	Conversation   ConversationConfig `yaml:"conversation" toml:"conversation" json:"conversation"`
	LLM            LLMConfig          `yaml:"llm" toml:"llm" json:"llm"`
	Server         ServerConfig       `yaml:"server" toml:"server" json:"server"`
	Log            LogConfig          `yaml:"log" toml:"log" json:"log"`
	Telemetry      TelemetryConfig    `yaml:"telemetry" toml:"telemetry" json:"telemetry"`
	NonInteractive bool               `yaml:"non_interactive" toml:"non_interactive" json:"non_interactive"`
}

// StorageConfig selects the plan store backend.
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver" json:"driver"`
	Root   string `yaml:"root" toml:"root" json:"root"`
	// DSN is the SQLite database path; defaults to <root>/pmteam.db.
	DSN string `yaml:"dsn,omitempty" toml:"dsn" json:"dsn,omitempty"`
}

// ConversationConfig bounds transcripts and prompts.
type ConversationConfig struct {
	Retention       int `yaml:"retention" toml:"retention" json:"retention"`
	Tail            int `yaml:"tail" toml:"tail" json:"tail"`
	MaxMessageChars int `yaml:"max_message_chars" toml:"max_message_chars" json:"max_message_chars"`
}

// LLMConfig configures the completion and multi-agent tiers.
type LLMConfig struct {
	Provider       string           `yaml:"provider" toml:"provider" json:"provider"`
	APIKey         string           `yaml:"api_key,omitempty" toml:"api_key" json:"-"`
	BaseURL        string           `yaml:"base_url,omitempty" toml:"base_url" json:"base_url,omitempty"`
	Model          string           `yaml:"model,omitempty" toml:"model" json:"model,omitempty"`
	SecondaryModel string           `yaml:"secondary_model,omitempty" toml:"secondary_model" json:"secondary_model,omitempty"`
	Timeout        time.Duration    `yaml:"timeout" toml:"timeout" json:"timeout"`
	Temperature    float64          `yaml:"temperature" toml:"temperature" json:"temperature"`
	MaxTokens      int              `yaml:"max_tokens" toml:"max_tokens" json:"max_tokens"`
	RateLimitRPS   float64          `yaml:"rate_limit_rps" toml:"rate_limit_rps" json:"rate_limit_rps"`
	Burst          int              `yaml:"burst" toml:"burst" json:"burst"`
	MultiAgent     MultiAgentConfig `yaml:"multi_agent" toml:"multi_agent" json:"multi_agent"`
}

// MultiAgentConfig configures the planner/critic team.
type MultiAgentConfig struct {
	Enabled bool          `yaml:"enabled" toml:"enabled" json:"enabled"`
	Rounds  int           `yaml:"rounds" toml:"rounds" json:"rounds"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Address         string        `yaml:"address" toml:"address" json:"address"`
	Port            int           `yaml:"port" toml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled" json:"enabled"`
	Endpoint    string  `yaml:"endpoint,omitempty" toml:"endpoint" json:"endpoint,omitempty"`
	SampleRate  float64 `yaml:"sample_rate" toml:"sample_rate" json:"sample_rate"`
	Environment string  `yaml:"environment" toml:"environment" json:"environment"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: DriverFile,
			Root:   "outputs",
		},
		Conversation: ConversationConfig{
			Retention:       200,
			Tail:            10,
			MaxMessageChars: 4000,
		},
		LLM: LLMConfig{
			Provider:     ProviderOpenAI,
			Timeout:      60 * time.Second,
			Temperature:  0.3,
			MaxTokens:    1024,
			RateLimitRPS: 2,
			Burst:        4,
			MultiAgent: MultiAgentConfig{
				Rounds:  1,
				Timeout: 90 * time.Second,
			},
		},
		Server: ServerConfig{
			Address:         "127.0.0.1",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			SampleRate:  1.0,
			Environment: "development",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigRead, "read config file", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigRead, fmt.Sprintf("parse config file %s", path), err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
}

// ApplyEnv overlays environment variables onto cfg.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, apply func(string)) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			apply(strings.TrimSpace(v))
		}
	}

	set("PM_TEAM_OUTPUT_ROOT", func(v string) { c.Storage.Root = v })
	set("PM_TEAM_STORAGE_DRIVER", func(v string) { c.Storage.Driver = strings.ToLower(v) })
	set("PM_TEAM_LLM_PROVIDER", func(v string) { c.LLM.Provider = strings.ToLower(v) })

	switch c.LLM.Provider {
	case ProviderAnthropic:
		set("ANTHROPIC_API_KEY", func(v string) { c.LLM.APIKey = v })
	default:
		set("OPENAI_API_KEY", func(v string) { c.LLM.APIKey = v })
	}

	set("PM_TEAM_LLM_MODEL", func(v string) { c.LLM.Model = v })
	set("OPENAI_MODEL_NAME", func(v string) { c.LLM.SecondaryModel = v })
	set("PM_TEAM_MULTI_AGENT", func(v string) { c.LLM.MultiAgent.Enabled = truthy(v) })
	set("PM_TEAM_LOG_LEVEL", func(v string) { c.Log.Level = v })
	set("PM_TEAM_NONINTERACTIVE", func(v string) { c.NonInteractive = truthy(v) })
}

func truthy(v string) bool {
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("storage.driver must be %q or %q, got %q", DriverFile, DriverSQLite, c.Storage.Driver))
	}
	if strings.TrimSpace(c.Storage.Root) == "" {
		return errors.NewConfigInvalidError("storage.root is required")
	}
	if c.Conversation.Retention <= 0 {
		return errors.NewConfigInvalidError("conversation.retention must be positive")
	}
	if c.Conversation.Tail <= 0 {
		return errors.NewConfigInvalidError("conversation.tail must be positive")
	}
	if c.Conversation.MaxMessageChars <= 0 {
		return errors.NewConfigInvalidError("conversation.max_message_chars must be positive")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return errors.NewConfigInvalidError(fmt.Sprintf("llm.provider must be %q or %q, got %q", ProviderOpenAI, ProviderAnthropic, c.LLM.Provider))
	}
	if c.LLM.Timeout <= 0 || c.LLM.MultiAgent.Timeout <= 0 {
		return errors.NewConfigInvalidError("llm timeouts must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.NewConfigInvalidError("llm.temperature must be between 0 and 2")
	}
	if c.LLM.RateLimitRPS < 0 || c.LLM.Burst < 0 {
		return errors.NewConfigInvalidError("llm rate limits must be non-negative")
	}
	if c.LLM.MultiAgent.Rounds < 1 {
		return errors.NewConfigInvalidError("llm.multi_agent.rounds must be at least 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.NewConfigInvalidError("server.port out of range")
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return errors.NewConfigInvalidError("telemetry.sample_rate must be between 0 and 1")
	}
	return nil
}

// HasCredential reports whether a completion API key is configured.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// SQLitePath returns the database file for the sqlite driver.
func (c *Config) SQLitePath() string {
	if c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	return filepath.Join(c.Storage.Root, "pmteam.db")
}

// Save writes cfg to path in YAML or TOML depending on the extension.
func Save(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(cfg)
		data = []byte(b.String())
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
