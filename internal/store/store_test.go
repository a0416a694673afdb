package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/metrics"
	"github.com/felixgeelhaar/pmteam/internal/plan"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type backend struct {
	name    string
	open    func(t *testing.T, opts Options) Store
	corrupt func(t *testing.T, s Store, ref RunRef, artifact, raw string)
}

var backends = []backend{
	{
		name: "file",
		open: func(t *testing.T, opts Options) Store {
			s, err := NewFileStore(t.TempDir(), opts)
			require.NoError(t, err)
			return s
		},
		corrupt: func(t *testing.T, s Store, ref RunRef, artifact, raw string) {
			name := PlanFile
			if artifact == "conversation" {
				name = ConversationFile
			}
			path := filepath.Join(s.Root(), ref.Project, ref.Run, name)
			require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
		},
	},
	{
		name: "sqlite",
		open: func(t *testing.T, opts Options) Store {
			dir := t.TempDir()
			s, err := NewSQLiteStore(filepath.Join(dir, "pmteam.db"), dir, opts)
			require.NoError(t, err)
			return s
		},
		corrupt: func(t *testing.T, s Store, ref RunRef, artifact, raw string) {
			column := "plan"
			if artifact == "conversation" {
				column = "conversation"
			}
			_, err := s.(*SQLiteStore).db.Exec(
				`UPDATE runs SET `+column+` = ? WHERE project = ? AND id = ?`, raw, ref.Project, ref.Run)
			require.NoError(t, err)
		},
	},
}

func testOptions() Options {
	return Options{Logger: log.Discard(), Now: func() time.Time { return fixedNow }}
}

func eachBackend(t *testing.T, fn func(t *testing.T, b backend, s Store)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t, testOptions())
			t.Cleanup(func() { _ = s.Close() })
			fn(t, b, s)
		})
	}
}

func TestCreateRunAndLoadPlan(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()
		seed := plan.Starter("Checkout revamp", fixedNow)

		run, err := s.CreateRun(ctx, "Payments Team", "Checkout revamp", seed)
		require.NoError(t, err)
		assert.Equal(t, "20250314_092653_checkout_revamp", run.ID)
		assert.Equal(t, "payments_team", run.Project)

		loaded, err := s.LoadPlan(ctx, run.Ref())
		require.NoError(t, err)
		assert.Equal(t, seed, loaded)

		proj, err := s.GetProject(ctx, "payments_team")
		require.NoError(t, err)
		assert.Equal(t, "Payments Team", proj.Name)
		assert.Equal(t, 1, proj.Runs)

		runs, err := s.ListRuns(ctx, "payments_team")
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, run.ID, runs[0].ID)
		assert.Equal(t, "Checkout revamp", runs[0].Initiative)
	})
}

func TestCreateRunSameSecond(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()
		first, err := s.CreateRun(ctx, "alpha", "Launch", nil)
		require.NoError(t, err)
		second, err := s.CreateRun(ctx, "alpha", "Launch", nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID+"_2", second.ID)

		proj, err := s.GetProject(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, 2, proj.Runs)

		p, err := s.LoadPlan(ctx, second.Ref())
		require.NoError(t, err)
		assert.Empty(t, p.Tasks)
		assert.Equal(t, "2025-03-14T09:26:53Z", p.GeneratedAt)
	})
}

func TestCreateRunRecomputesAggregateRisk(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()
		seed, err := plan.Decode([]byte(`{
  "initiative": "Legacy",
  "tasks": [
    {"id": "T1", "risk_score": 12, "risk_exposure": 1.2},
    {"id": "T2", "risk_score": 15, "risk_exposure": 12.8}
  ],
  "aggregate_risk": 27
}`))
		require.NoError(t, err)

		run, err := s.CreateRun(ctx, "alpha", "Legacy", seed)
		require.NoError(t, err)

		loaded, err := s.LoadPlan(ctx, run.Ref())
		require.NoError(t, err)
		assert.InDelta(t, 14, loaded.AggregateRisk, 1e-9)
		assert.InDelta(t, 27, seed.AggregateRisk, 1e-9, "caller's plan is untouched")
	})
}

func TestFileCreateRunCleansUpOnWriteFailure(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), testOptions())
	require.NoError(t, err)

	orig := writeFile
	t.Cleanup(func() { writeFile = orig })
	writeFile = func(path string, data []byte, perm os.FileMode) error {
		if filepath.Base(path) == PlanFile {
			return os.ErrPermission
		}
		return orig(path, data, perm)
	}

	_, err = s.CreateRun(context.Background(), "alpha", "Launch", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreWrite, errors.CodeOf(err))

	_, err = os.Stat(filepath.Join(s.Root(), "alpha", RunID(fixedNow, "Launch")))
	assert.True(t, os.IsNotExist(err), "no half-created run directory")

	runs, err := s.ListRuns(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Empty(t, runs)

	writeFile = orig
	run, err := s.CreateRun(context.Background(), "alpha", "Launch", nil)
	require.NoError(t, err)
	assert.Equal(t, RunID(fixedNow, "Launch"), run.ID, "the freed id is reused")
}

func TestCreateRunRejectsInvalidPlan(t *testing.T) {
	tests := []struct {
		name string
		plan *plan.Plan
	}{
		{"duplicate ids", &plan.Plan{Tasks: []plan.Task{{ID: "T1"}, {ID: "T1"}}}},
		{"dangling dependency", &plan.Plan{Tasks: []plan.Task{{ID: "T1", DependsOn: []string{"T9"}}}}},
		{"cycle", &plan.Plan{Tasks: []plan.Task{
			{ID: "T1", DependsOn: []string{"T2"}},
			{ID: "T2", DependsOn: []string{"T1"}},
		}}},
	}

	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.CreateRun(context.Background(), "alpha", "bad", tt.plan)
				assert.True(t, errors.HasCode(err, errors.ErrCodePlanInvalid), "got %v", err)
			})
		}
	})
}

func TestMissingRun(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()
		_, err := s.EnsureProject(ctx, "alpha")
		require.NoError(t, err)
		ref := RunRef{Project: "alpha", Run: "20240101_000000_nope"}

		_, err = s.LoadPlan(ctx, ref)
		assert.True(t, errors.HasCode(err, errors.ErrCodeRunNotFound))

		_, err = s.LoadConversation(ctx, ref)
		assert.True(t, errors.HasCode(err, errors.ErrCodeRunNotFound))

		err = s.SavePlan(ctx, ref, plan.Starter("x", fixedNow))
		assert.True(t, errors.HasCode(err, errors.ErrCodeRunNotFound))

		err = s.SaveConversation(ctx, ref, conversation.Conversation{})
		assert.True(t, errors.HasCode(err, errors.ErrCodeRunNotFound))
	})
}

func TestInvalidRefs(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()

		_, err := s.LoadPlan(ctx, RunRef{Project: "alpha", Run: "../../etc"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeRunInvalid))

		_, err = s.LoadPlan(ctx, RunRef{Project: "..", Run: "run"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeProjectInvalid))

		_, err = s.ListRuns(ctx, "a/b")
		assert.True(t, errors.HasCode(err, errors.ErrCodeProjectInvalid))
	})
}

func TestConversationRoundTrip(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()
		run, err := s.CreateRun(ctx, "alpha", "Launch", nil)
		require.NoError(t, err)

		c, err := s.LoadConversation(ctx, run.Ref())
		require.NoError(t, err)
		assert.Empty(t, c)

		agent := conversation.NewMessage(conversation.SenderAgent, "hello", fixedNow)
		agent.Provenance = &conversation.Provenance{Tier: "heuristic", Degraded: true}
		want := conversation.Conversation{
			conversation.NewMessage(conversation.SenderUser, "hi", fixedNow),
			agent,
		}
		require.NoError(t, s.SaveConversation(ctx, run.Ref(), want))

		got, err := s.LoadConversation(ctx, run.Ref())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestSavePlanOverwrites(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()
		run, err := s.CreateRun(ctx, "alpha", "Launch", plan.Starter("Launch", fixedNow))
		require.NoError(t, err)

		p, err := s.LoadPlan(ctx, run.Ref())
		require.NoError(t, err)
		p.Blockers = append(p.Blockers, "vendor delay")
		require.NoError(t, s.SavePlan(ctx, run.Ref(), p))

		again, err := s.LoadPlan(ctx, run.Ref())
		require.NoError(t, err)
		assert.Equal(t, []string{"vendor delay"}, again.Blockers)
	})
}

func TestCorruptionRecovery(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			_, m := metrics.NewRegistry()
			opts := testOptions()
			opts.Metrics = m
			s := b.open(t, opts)
			t.Cleanup(func() { _ = s.Close() })

			run, err := s.CreateRun(ctx, "alpha", "Launch", plan.Starter("Launch", fixedNow))
			require.NoError(t, err)

			b.corrupt(t, s, run.Ref(), "plan", "{not json")
			b.corrupt(t, s, run.Ref(), "conversation", "[{")

			p, err := s.LoadPlan(ctx, run.Ref())
			require.NoError(t, err)
			assert.Empty(t, p.Tasks)
			assert.Empty(t, p.Blockers)
			assert.Zero(t, p.AggregateRisk)

			c, err := s.LoadConversation(ctx, run.Ref())
			require.NoError(t, err)
			assert.Empty(t, c)

			assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreRecoveries.WithLabelValues("plan")))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreRecoveries.WithLabelValues("conversation")))
		})
	}
}

func TestProjects(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ctx := context.Background()

		created, err := s.CreateProject(ctx, "Mobile App", "iOS and Android")
		require.NoError(t, err)
		assert.Equal(t, "mobile_app", created.Slug)
		assert.Equal(t, "iOS and Android", created.Description)
		assert.Equal(t, "2025-03-14T09:26:53Z", created.CreatedAt)

		_, err = s.CreateProject(ctx, "mobile app", "")
		assert.True(t, errors.HasCode(err, errors.ErrCodeProjectExists))

		ensured, err := s.EnsureProject(ctx, "Mobile App")
		require.NoError(t, err)
		assert.Equal(t, created, ensured)

		_, err = s.GetProject(ctx, "ghost")
		assert.True(t, errors.HasCode(err, errors.ErrCodeProjectNotFound))

		_, err = s.ListRuns(ctx, "ghost")
		assert.True(t, errors.HasCode(err, errors.ErrCodeProjectNotFound))

		_, err = s.EnsureProject(ctx, "")
		require.NoError(t, err)

		projects, err := s.ListProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		slugs := []string{projects[0].Slug, projects[1].Slug}
		assert.ElementsMatch(t, []string{"mobile_app", "default"}, slugs)
	})
}

func TestListProjectsOrderedByCreation(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			clock := fixedNow
			opts := testOptions()
			opts.Now = func() time.Time { clock = clock.Add(time.Second); return clock }
			s := b.open(t, opts)
			t.Cleanup(func() { _ = s.Close() })

			for _, name := range []string{"zeta", "alpha", "mid"} {
				_, err := s.EnsureProject(context.Background(), name)
				require.NoError(t, err)
			}

			projects, err := s.ListProjects(context.Background())
			require.NoError(t, err)
			require.Len(t, projects, 3)
			assert.Equal(t, "zeta", projects[0].Slug)
			assert.Equal(t, "alpha", projects[1].Slug)
			assert.Equal(t, "mid", projects[2].Slug)
		})
	}
}

func TestLockRun(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ref := RunRef{Project: "alpha", Run: "r1"}
		unlock, err := s.LockRun(context.Background(), ref)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = s.LockRun(ctx, ref)
		assert.True(t, errors.HasCode(err, errors.ErrCodeStoreLock))

		other, err := s.LockRun(context.Background(), RunRef{Project: "alpha", Run: "r2"})
		require.NoError(t, err, "locks are per run")
		other()

		unlock()
		unlock()

		again, err := s.LockRun(context.Background(), ref)
		require.NoError(t, err)
		again()
	})
}

func TestLockRunWaitsForRelease(t *testing.T) {
	eachBackend(t, func(t *testing.T, _ backend, s Store) {
		ref := RunRef{Project: "alpha", Run: "r1"}
		unlock, err := s.LockRun(context.Background(), ref)
		require.NoError(t, err)

		acquired := make(chan struct{})
		go func() {
			release, err := s.LockRun(context.Background(), ref)
			if err == nil {
				release()
			}
			close(acquired)
		}()

		select {
		case <-acquired:
			t.Fatal("second lock acquired while the first was held")
		case <-time.After(20 * time.Millisecond):
		}

		unlock()
		select {
		case <-acquired:
		case <-time.After(time.Second):
			t.Fatal("second lock never acquired")
		}
	})
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, project, run string
	}{
		{"Payments Platform", "payments_platform", "payments_platform"},
		{"  Q3: Growth/Retention!  ", "q3_growthretention", "q3_growthretention"},
		{"", "default", "run"},
		{"***", "default", "run"},
		{"already-ok_1", "already-ok_1", "already-ok_1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.project, Slug(tt.in))
			assert.Equal(t, tt.run, RunSlug(tt.in))
		})
	}

	long := RunSlug("a very long initiative name that keeps going well past the sixty character cap")
	assert.Len(t, long, 60)
}

func TestRunID(t *testing.T) {
	local := time.Date(2025, 3, 14, 10, 26, 53, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "20250314_092653_launch", RunID(local, "Launch"))
}

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.Root = t.TempDir()

	s, err := Open(cfg, testOptions())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)
	require.NoError(t, s.Close())

	cfg.Storage.Driver = config.DriverSQLite
	s, err = Open(cfg, testOptions())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(cfg.Storage.Root, "pmteam.db"))

	cfg.Storage.Driver = "redis"
	_, err = Open(cfg, testOptions())
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "plan.json")

	require.NoError(t, writeFileAtomic(path, []byte(`{"a":1}`), 0o644))
	require.NoError(t, writeFileAtomic(path, []byte(`{"a":2}`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
