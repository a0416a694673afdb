package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pmteam/internal/assistant"
	"github.com/felixgeelhaar/pmteam/internal/audit"
	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/diff"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/exitcode"
	"github.com/felixgeelhaar/pmteam/internal/mutation"
	"github.com/felixgeelhaar/pmteam/internal/store"
	"github.com/felixgeelhaar/pmteam/internal/version"
)

// isolate points the store at a temp dir and clears credentials so every
// reply comes from the heuristic tier.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("PM_TEAM_OUTPUT_ROOT", root)
	for _, key := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "PM_TEAM_STORAGE_DRIVER",
		"PM_TEAM_LLM_PROVIDER", "PM_TEAM_LOG_LEVEL", "PM_TEAM_MULTI_AGENT",
	} {
		t.Setenv(key, "")
	}
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--non-interactive"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func executeJSON[T any](t *testing.T, args ...string) T {
	t.Helper()
	out, err := execute(t, append(args, "-o", "json")...)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

const planJSON = `{
  "initiative": "Vendor onboarding",
  "tasks": [
    {"id": "T1", "title": "Contract review", "priority": 1, "estimate_points": 3, "status": "todo"},
    {"id": "T2", "title": "Integration", "priority": 2, "estimate_points": 5, "status": "todo"},
    {"id": "T3", "title": "Rollout", "priority": 3, "estimate_points": 2, "status": "todo"}
  ],
  "blockers": []
}`

func writePlan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(planJSON), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	isolate(t)

	info := executeJSON[version.Info](t, "version")
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pmteam")
}

func TestInvalidOutputFormat(t *testing.T) {
	isolate(t)

	_, err := execute(t, "version", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestProjectCommands(t *testing.T) {
	isolate(t)

	created := executeJSON[store.Project](t, "project", "create", "Alpha Team", "--description", "first")
	assert.Equal(t, "alpha_team", created.Slug)

	_, err := execute(t, "project", "create", "Alpha Team")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProjectExists))
	assert.Equal(t, exitcode.Conflict, exitcode.DetermineExitCode(err))

	projects := executeJSON[[]store.Project](t, "project", "list")
	require.Len(t, projects, 1)
	assert.Equal(t, "Alpha Team", projects[0].Name)

	out, err := execute(t, "project", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha_team")

	selected := executeJSON[store.Project](t, "project", "select")
	assert.Equal(t, "default", selected.Slug)
}

func TestRunImportAndChat(t *testing.T) {
	isolate(t)
	path := writePlan(t)

	run := executeJSON[store.Run](t, "run", "import", "alpha", path)
	assert.Equal(t, "alpha", run.Project)
	assert.Equal(t, "Vendor onboarding", run.Initiative)

	runs := executeJSON[[]store.Run](t, "run", "list", "alpha")
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	res := executeJSON[assistant.SendResult](t, "chat", "alpha", run.ID, "any", "blockers?",
		"--blocker", "vendor delay", "--mitigate")
	assert.Equal(t, conversation.SenderAgent, res.Reply.Sender)
	require.Len(t, res.SystemUpdates, 1)
	assert.Contains(t, res.SystemUpdates[0], "blocker added: vendor delay")
	assert.Equal(t, "heuristic", res.Provenance.Tier)

	conv := executeJSON[conversation.Conversation](t, "conversation", "alpha", run.ID)
	require.Len(t, conv, 3)
	assert.Equal(t, conversation.SenderSystem, conv[0].Sender)
	assert.Equal(t, conversation.SenderUser, conv[1].Sender)
	assert.Equal(t, "any blockers?", conv[1].Content)

	tail := executeJSON[conversation.Conversation](t, "conversation", "alpha", run.ID, "--tail", "1")
	require.Len(t, tail, 1)
	assert.Equal(t, conversation.SenderAgent, tail[0].Sender)

	events := executeJSON[[]audit.Event](t, "audit", "alpha")
	require.Len(t, events, 2)
	assert.Equal(t, audit.EventRunCreated, events[0].Type)
	assert.Equal(t, audit.EventBlockerAdded, events[1].Type)

	out, err := execute(t, "conversation", "alpha", run.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "any blockers?")
}

func TestChatErrors(t *testing.T) {
	isolate(t)
	run := executeJSON[store.Run](t, "run", "import", "alpha", writePlan(t))

	_, err := execute(t, "chat", "alpha", run.ID)
	assert.True(t, errors.HasCode(err, errors.ErrCodeEmptyRequest))

	_, err = execute(t, "chat", "alpha", "missing-run", "hello")
	assert.True(t, errors.HasCode(err, errors.ErrCodeRunNotFound))
	assert.Equal(t, exitcode.NotFound, exitcode.DetermineExitCode(err))

	_, err = execute(t, "chat", "alpha", run.ID, "--status", "T1")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidMutation))

	_, err = execute(t, "chat", "alpha", "..", "hello")
	assert.True(t, errors.HasCode(err, errors.ErrCodeRunInvalid))
}

func TestChatMutationFlags(t *testing.T) {
	tests := []struct {
		name    string
		opts    chatOptions
		want    mutation.Mutation
		errCode errors.ErrorCode
	}{
		{name: "none", opts: chatOptions{}},
		{
			name: "blocker",
			opts: chatOptions{blocker: "legal", mitigate: true},
			want: mutation.AddBlocker{Blocker: "legal", Mitigate: true},
		},
		{
			name: "order",
			opts: chatOptions{order: []string{"T3", "T1"}},
			want: mutation.Reprioritize{Order: []string{"T3", "T1"}},
		},
		{
			name: "status",
			opts: chatOptions{statuses: []string{"T1=done", " T2 =blocked"}},
			want: mutation.UpdateStatus{Statuses: map[string]string{"T1": "done", "T2": "blocked"}},
		},
		{name: "mitigate alone", opts: chatOptions{mitigate: true}, errCode: errors.ErrCodeBadRequest},
		{
			name:    "two kinds",
			opts:    chatOptions{blocker: "legal", order: []string{"T1"}},
			errCode: errors.ErrCodeBadRequest,
		},
		{
			name:    "malformed status",
			opts:    chatOptions{statuses: []string{"T1"}},
			errCode: errors.ErrCodeInvalidMutation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.mutation()
			if tt.errCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errCode, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunImportOptions(t *testing.T) {
	isolate(t)

	_, err := execute(t, "run", "import", "alpha")
	assert.True(t, errors.HasCode(err, errors.ErrCodeBadRequest))

	_, err = execute(t, "run", "import", "alpha", writePlan(t), "--starter", "--initiative", "x")
	assert.True(t, errors.HasCode(err, errors.ErrCodeBadRequest))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"tasks":[{"id":"T1"},{"id":"T1"}]}`), 0o600))
	_, err = execute(t, "run", "import", "alpha", bad)
	assert.True(t, errors.HasCode(err, errors.ErrCodePlanInvalid))

	run := executeJSON[store.Run](t, "run", "import", "alpha", "--starter", "--initiative", "Launch")
	assert.Equal(t, "Launch", run.Initiative)
}

func TestDiff(t *testing.T) {
	isolate(t)
	path := writePlan(t)

	first := executeJSON[store.Run](t, "run", "import", "alpha", path)
	second := executeJSON[store.Run](t, "run", "import", "alpha", path)
	executeJSON[assistant.SendResult](t, "chat", "alpha", second.ID, "--status", "T1=done")

	d := executeJSON[diff.PlanDiff](t, "diff", "alpha", first.ID, second.ID)
	require.Len(t, d.Modified, 1)
	assert.Equal(t, "T1", d.Modified[0].ID)
	assert.Contains(t, d.Modified[0].Changes, "status")

	out, err := execute(t, "diff", "alpha", first.ID, second.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "T1")
}

func TestConfigShowRedactsKey(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-secret")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "sk-secret")

	out, err = execute(t, "config", "show", "-o", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
}

func TestConfigInit(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "pmteam.toml")

	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DriverFile, cfg.Storage.Driver)

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err)

	_, err = execute(t, "config", "init", path, "--force")
	assert.NoError(t, err)
}
