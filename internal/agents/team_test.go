package agents

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/provider"
)

// scriptedClient replies from a queue and records each request.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*provider.Request
}

func (s *scriptedClient) Name() string { return "scripted" }

func (s *scriptedClient) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return &provider.Response{}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return &provider.Response{Content: r}, nil
}

func (s *scriptedClient) Health(ctx context.Context) error { return nil }

func TestRunOnceApprovedFirstDraft(t *testing.T) {
	client := &scriptedClient{replies: []string{"  Start with T1.  ", "approved, looks right"}}
	team := NewTeam(client, Options{Model: "gpt-4o", Logger: log.Discard()})

	reply, err := team.RunOnce(context.Background(), "TASK_COUNT: 2", "What first?")
	require.NoError(t, err)
	assert.Equal(t, "Start with T1.", reply)

	require.Len(t, client.requests, 2)
	planner, critic := client.requests[0], client.requests[1]
	assert.True(t, strings.HasPrefix(planner.SystemPrompt, "You are an expert agile"))
	assert.Contains(t, planner.SystemPrompt, "PLAN_CONTEXT:\nTASK_COUNT: 2")
	assert.Equal(t, "What first?", planner.Prompt)
	assert.Equal(t, "gpt-4o", planner.Model)
	assert.Contains(t, critic.Prompt, "DRAFT:\nStart with T1.")
}

func TestRunOnceRevises(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"Start with T9.",
		"T9 does not exist; use T1.",
		"Start with T1.",
		"APPROVED",
	}}
	team := NewTeam(client, Options{Rounds: 3, Logger: log.Discard()})

	reply, err := team.RunOnce(context.Background(), "ctx", "What first?")
	require.NoError(t, err)
	assert.Equal(t, "Start with T1.", reply)

	require.Len(t, client.requests, 4)
	revision := client.requests[2]
	assert.Contains(t, revision.Prompt, "T9 does not exist")
	assert.Equal(t, []provider.Message{
		{Role: "user", Content: "What first?"},
		{Role: "assistant", Content: "Start with T9."},
	}, revision.Context)
}

func TestRunOnceRoundsExhausted(t *testing.T) {
	client := &scriptedClient{replies: []string{"draft 1", "fix it", "draft 2", "still wrong", "draft 3"}}
	team := NewTeam(client, Options{Rounds: 2, Logger: log.Discard()})

	reply, err := team.RunOnce(context.Background(), "", "q")
	require.NoError(t, err)
	assert.Equal(t, "draft 3", reply, "last revision is returned without further review")
	assert.Len(t, client.requests, 5)
}

func TestRunOnceErrors(t *testing.T) {
	t.Run("client failure", func(t *testing.T) {
		client := &scriptedClient{err: errors.New("boom")}
		_, err := NewTeam(client, Options{Logger: log.Discard()}).RunOnce(context.Background(), "", "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "planner: boom")
	})

	t.Run("empty draft", func(t *testing.T) {
		client := &scriptedClient{replies: []string{"   "}}
		_, err := NewTeam(client, Options{Logger: log.Discard()}).RunOnce(context.Background(), "", "q")
		assert.ErrorContains(t, err, "planner: empty response")
	})

	t.Run("empty review", func(t *testing.T) {
		client := &scriptedClient{replies: []string{"draft"}}
		_, err := NewTeam(client, Options{Logger: log.Discard()}).RunOnce(context.Background(), "", "q")
		assert.ErrorContains(t, err, "critic: empty response")
	})
}
