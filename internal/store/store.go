// Package store persists projects, runs, plans and transcripts. Two
// backends share one contract: a directory tree of JSON files and a SQLite
// database.
package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/felixgeelhaar/pmteam/internal/config"
	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/log"
	"github.com/felixgeelhaar/pmteam/internal/metrics"
	"github.com/felixgeelhaar/pmteam/internal/plan"
)

// RunRef identifies one run of one project.
type RunRef struct {
	Project string `json:"project"`
	Run     string `json:"run"`
}

func (r RunRef) String() string { return r.Project + "/" + r.Run }

// Project is the catalog entry of a project.
type Project struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	Runs        int    `json:"runs"`
}

// Run is the manifest of an imported run.
type Run struct {
	ID         string   `json:"id"`
	Project    string   `json:"project"`
	Initiative string   `json:"initiative"`
	CreatedAt  string   `json:"created_at"`
	Files      []string `json:"files,omitempty"`
}

// Ref returns the run's reference.
func (r Run) Ref() RunRef { return RunRef{Project: r.Project, Run: r.ID} }

// Store is the persistence contract shared by all backends.
type Store interface {
	// LoadPlan returns the run's plan. A missing run is RunNotFound; a
	// corrupt plan is logged and replaced by an empty one.
	LoadPlan(ctx context.Context, ref RunRef) (*plan.Plan, error)
	SavePlan(ctx context.Context, ref RunRef, p *plan.Plan) error

	// LoadConversation returns the run's transcript, empty when absent or
	// corrupt. A missing run is RunNotFound.
	LoadConversation(ctx context.Context, ref RunRef) (conversation.Conversation, error)
	SaveConversation(ctx context.Context, ref RunRef, c conversation.Conversation) error

	// LockRun serializes turns against one run. The returned function
	// releases the lock and is safe to call more than once.
	LockRun(ctx context.Context, ref RunRef) (func(), error)

	EnsureProject(ctx context.Context, name string) (Project, error)
	CreateProject(ctx context.Context, name, description string) (Project, error)
	GetProject(ctx context.Context, slug string) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)

	// CreateRun imports p as a new run of project, creating the project
	// when needed.
	CreateRun(ctx context.Context, project, initiative string, p *plan.Plan) (Run, error)
	ListRuns(ctx context.Context, project string) ([]Run, error)

	// Root is where per-project side files such as the audit log live.
	Root() string
	Close() error
}

// Options carry the collaborators shared by every backend.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Now overrides the clock used for run ids and timestamps
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	o.Logger = log.OrDefault(o.Logger)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Open returns the backend selected by cfg.Storage.Driver.
func Open(cfg *config.Config, opts Options) (Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverFile, "":
		return NewFileStore(cfg.Storage.Root, opts)
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath(), cfg.Storage.Root, opts)
	default:
		return nil, errors.NewConfigInvalidError(fmt.Sprintf("unknown storage driver %q", cfg.Storage.Driver))
	}
}

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9_\-]+`)
	segmentRE   = regexp.MustCompile(`^[A-Za-z0-9_\-][A-Za-z0-9_.\-]*$`)
)

const runSlugMax = 60

// Slug converts a project name to its directory-safe form: lower case,
// spaces to underscores, anything outside [a-z0-9_-] dropped. An empty
// result becomes "default".
func Slug(name string) string {
	if s := slugify(name); s != "" {
		return s
	}
	return "default"
}

// RunSlug is Slug for initiatives: capped at 60 characters, "run" when empty.
func RunSlug(initiative string) string {
	s := slugify(initiative)
	if len(s) > runSlugMax {
		s = s[:runSlugMax]
	}
	if s == "" {
		return "run"
	}
	return s
}

func slugify(s string) string {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	return unsafeChars.ReplaceAllString(s, "")
}

// RunID formats the id of a run created at t.
func RunID(t time.Time, initiative string) string {
	return t.UTC().Format("20060102_150405") + "_" + RunSlug(initiative)
}

func validateRef(ref RunRef) error {
	if err := ValidateProject(ref.Project); err != nil {
		return err
	}
	if !segmentRE.MatchString(ref.Run) {
		return errors.New(errors.ErrCodeRunInvalid, fmt.Sprintf("invalid run id: %q", ref.Run))
	}
	return nil
}

// ValidateProject rejects a project slug that is not a single safe path
// segment.
func ValidateProject(slug string) error {
	if !segmentRE.MatchString(slug) {
		return errors.New(errors.ErrCodeProjectInvalid, fmt.Sprintf("invalid project: %q", slug))
	}
	return nil
}

func emptyPlan() *plan.Plan {
	return &plan.Plan{Tasks: []plan.Task{}, Blockers: []string{}}
}

func prepareImport(p *plan.Plan, now time.Time) (*plan.Plan, error) {
	if p == nil {
		p = emptyPlan()
	}
	p = p.Clone()
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodePlanInvalid, "plan rejected", err)
	}
	if err := p.CheckDependencies(); err != nil {
		return nil, errors.Wrap(errors.ErrCodePlanInvalid, "plan rejected", err)
	}
	if p.GeneratedAt == "" {
		p.GeneratedAt = now.UTC().Format(time.RFC3339)
	}
	p.RecomputeAggregateRisk()
	return p, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
