package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// clearEnv blanks the variables Load reads; ApplyEnv ignores blank values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PM_TEAM_OUTPUT_ROOT", "PM_TEAM_STORAGE_DRIVER", "PM_TEAM_LLM_PROVIDER",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "PM_TEAM_LLM_MODEL",
		"OPENAI_MODEL_NAME", "PM_TEAM_MULTI_AGENT", "PM_TEAM_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200, cfg.Conversation.Retention)
	assert.Equal(t, 10, cfg.Conversation.Tail)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.False(t, cfg.HasCredential())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pmteam.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: sqlite
  root: /tmp/pm
conversation:
  retention: 50
llm:
  provider: anthropic
  timeout: 5s
  multi_agent:
    enabled: true
    rounds: 2
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/pm", cfg.Storage.Root)
	assert.Equal(t, 50, cfg.Conversation.Retention)
	assert.Equal(t, 10, cfg.Conversation.Tail, "unset fields keep defaults")
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.True(t, cfg.LLM.MultiAgent.Enabled)
	assert.Equal(t, 2, cfg.LLM.MultiAgent.Rounds)
	assert.Equal(t, "/tmp/pm/pmteam.db", cfg.SQLitePath())
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pmteam.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
root = "runs"

[llm]
model = "gpt-4o"
temperature = 0.5
timeout = "30s"

[server]
port = 9090
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "runs", cfg.Storage.Root)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.InDelta(t, 0.5, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigRead))

	bad := filepath.Join(dir, "bad.ini")
	require.NoError(t, os.WriteFile(bad, []byte("x=1"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigRead))

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("storage:\n  driver: postgres\n"), 0o600))
	_, err = Load(invalid)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(envFrom(map[string]string{
		"PM_TEAM_OUTPUT_ROOT":    "/data/outputs",
		"OPENAI_API_KEY":         "sk-test",
		"ANTHROPIC_API_KEY":      "ignored-for-openai",
		"PM_TEAM_LLM_MODEL":      "gpt-4.1",
		"OPENAI_MODEL_NAME":      "gpt-4o",
		"PM_TEAM_MULTI_AGENT":    "1",
		"PM_TEAM_LOG_LEVEL":      "debug",
		"PM_TEAM_NONINTERACTIVE": "yes",
	}))

	assert.Equal(t, "/data/outputs", cfg.Storage.Root)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, "gpt-4o", cfg.LLM.SecondaryModel)
	assert.True(t, cfg.LLM.MultiAgent.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.NonInteractive)
	assert.True(t, cfg.HasCredential())
}

func TestApplyEnvAnthropicKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(envFrom(map[string]string{
		"PM_TEAM_LLM_PROVIDER": "Anthropic",
		"OPENAI_API_KEY":       "sk-openai",
		"ANTHROPIC_API_KEY":    "sk-ant",
	}))

	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(envFrom(map[string]string{"PM_TEAM_OUTPUT_ROOT": "   "}))
	assert.Equal(t, "outputs", cfg.Storage.Root)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.Storage.Driver = "redis" }},
		{"empty root", func(c *Config) { c.Storage.Root = " " }},
		{"zero retention", func(c *Config) { c.Conversation.Retention = 0 }},
		{"zero tail", func(c *Config) { c.Conversation.Tail = 0 }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "cohere" }},
		{"zero timeout", func(c *Config) { c.LLM.Timeout = 0 }},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }},
		{"rounds", func(c *Config) { c.LLM.MultiAgent.Rounds = 0 }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "pmteam.yaml")
	cfg := DefaultConfig()
	cfg.Storage.Root = "elsewhere"
	cfg.LLM.Model = "gpt-4o"

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", loaded.Storage.Root)
	assert.Equal(t, "gpt-4o", loaded.LLM.Model)
	assert.Equal(t, cfg.LLM.Timeout, loaded.LLM.Timeout)
}
