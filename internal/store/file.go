package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/plan"
)

// File names inside project and run directories.
const (
	ProjectFile      = "project.json"
	PlanFile         = "plan.json"
	ManifestFile     = "manifest.json"
	ConversationFile = "conversation.json"
)

// FileStore keeps one directory per project and one per run:
//
//	<root>/<project>/project.json
//	<root>/<project>/<YYYYMMDD_HHMMSS>_<slug>/{plan,manifest,conversation}.json
type FileStore struct {
	root  string
	opts  Options
	locks *runLocks

	// catalogMu guards project.json read-modify-write cycles
	catalogMu sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, opts Options) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreWrite, "create storage root", err)
	}
	return &FileStore{root: root, opts: opts.withDefaults(), locks: newRunLocks()}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) runDir(ref RunRef) string {
	return filepath.Join(s.root, ref.Project, ref.Run)
}

// requireRun validates ref and checks that its directory exists.
func (s *FileStore) requireRun(ref RunRef) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	info, err := os.Stat(s.runDir(ref))
	if err != nil || !info.IsDir() {
		return errors.NewRunNotFoundError(ref.Project, ref.Run)
	}
	return nil
}

func (s *FileStore) LoadPlan(_ context.Context, ref RunRef) (*plan.Plan, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.runDir(ref), PlanFile))
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.NewRunNotFoundError(ref.Project, ref.Run)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "read plan "+ref.String(), err)
	}

	p, err := plan.Decode(data)
	if err != nil {
		s.opts.Logger.WithRun(ref.Project, ref.Run).WithError(err).Warn("plan file corrupt, starting from an empty plan")
		s.opts.Metrics.RecordRecovery("plan")
		return emptyPlan(), nil
	}
	return p, nil
}

func (s *FileStore) SavePlan(_ context.Context, ref RunRef, p *plan.Plan) error {
	if err := s.requireRun(ref); err != nil {
		return err
	}
	data, err := plan.Encode(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode plan", err)
	}
	if err := writeFile(filepath.Join(s.runDir(ref), PlanFile), data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "write plan "+ref.String(), err)
	}
	return nil
}

func (s *FileStore) LoadConversation(_ context.Context, ref RunRef) (conversation.Conversation, error) {
	if err := s.requireRun(ref); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.runDir(ref), ConversationFile))
	if stderrors.Is(err, fs.ErrNotExist) {
		return conversation.Conversation{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "read conversation "+ref.String(), err)
	}

	c, err := conversation.Decode(data)
	if err != nil {
		s.opts.Logger.WithRun(ref.Project, ref.Run).WithError(err).Warn("conversation file corrupt, starting a new transcript")
		s.opts.Metrics.RecordRecovery("conversation")
		return conversation.Conversation{}, nil
	}
	return c, nil
}

func (s *FileStore) SaveConversation(_ context.Context, ref RunRef, c conversation.Conversation) error {
	if err := s.requireRun(ref); err != nil {
		return err
	}
	data, err := conversation.Encode(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode conversation", err)
	}
	if err := writeFile(filepath.Join(s.runDir(ref), ConversationFile), data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "write conversation "+ref.String(), err)
	}
	return nil
}

func (s *FileStore) LockRun(ctx context.Context, ref RunRef) (func(), error) {
	return s.locks.lock(ctx, ref)
}

func (s *FileStore) EnsureProject(_ context.Context, name string) (Project, error) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	slug := Slug(name)
	if p, err := s.readProject(slug); err == nil {
		return p, nil
	}
	return s.writeNewProject(name, slug, "")
}

func (s *FileStore) CreateProject(_ context.Context, name, description string) (Project, error) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	slug := Slug(name)
	if _, err := os.Stat(filepath.Join(s.root, slug, ProjectFile)); err == nil {
		return Project{}, errors.NewProjectExistsError(slug)
	}
	return s.writeNewProject(name, slug, description)
}

func (s *FileStore) GetProject(_ context.Context, slug string) (Project, error) {
	if err := ValidateProject(slug); err != nil {
		return Project{}, err
	}
	return s.readProject(slug)
}

func (s *FileStore) ListProjects(_ context.Context) ([]Project, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "list projects", err)
	}

	projects := []Project{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		p, err := s.readProject(entry.Name())
		if err != nil {
			continue
		}
		projects = append(projects, p)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt < projects[j].CreatedAt
	})
	return projects, nil
}

func (s *FileStore) CreateRun(ctx context.Context, project, initiative string, p *plan.Plan) (Run, error) {
	now := s.opts.Now()
	imported, err := prepareImport(p, now)
	if err != nil {
		return Run{}, err
	}
	proj, err := s.EnsureProject(ctx, project)
	if err != nil {
		return Run{}, err
	}

	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	base := RunID(now, initiative)
	id := base
	for n := 2; ; n++ {
		err := os.Mkdir(filepath.Join(s.root, proj.Slug, id), 0o755)
		if err == nil {
			break
		}
		if !stderrors.Is(err, fs.ErrExist) {
			return Run{}, errors.Wrap(errors.ErrCodeStoreWrite, "create run directory", err)
		}
		id = base + "_" + strconv.Itoa(n)
	}

	run := Run{
		ID:         id,
		Project:    proj.Slug,
		Initiative: initiative,
		CreatedAt:  timestamp(now),
		Files:      []string{ManifestFile, PlanFile},
	}
	dir := filepath.Join(s.root, proj.Slug, id)

	if err := populateRun(dir, imported, run); err != nil {
		_ = os.RemoveAll(dir)
		return Run{}, err
	}

	proj.Runs++
	if err := writeJSON(filepath.Join(s.root, proj.Slug, ProjectFile), proj); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *FileStore) ListRuns(_ context.Context, project string) ([]Run, error) {
	if err := ValidateProject(project); err != nil {
		return nil, err
	}
	if _, err := s.readProject(project); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, project))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "list runs", err)
	}

	runs := []Run{}
	for _, entry := range entries {
		if !entry.IsDir() || !segmentRE.MatchString(entry.Name()) {
			continue
		}
		run := Run{ID: entry.Name(), Project: project}
		if data, err := os.ReadFile(filepath.Join(s.root, project, entry.Name(), ManifestFile)); err == nil {
			_ = json.Unmarshal(data, &run)
			run.ID, run.Project = entry.Name(), project
		}
		runs = append(runs, run)
	}
	// Timestamp prefixes make name order chronological.
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs, nil
}

func (s *FileStore) readProject(slug string) (Project, error) {
	data, err := os.ReadFile(filepath.Join(s.root, slug, ProjectFile))
	if err != nil {
		return Project{}, errors.NewProjectNotFoundError(slug)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return Project{}, errors.Wrap(errors.ErrCodeStoreRead, "parse project "+slug, err)
	}
	if p.Slug == "" {
		p.Slug = slug
	}
	return p, nil
}

func (s *FileStore) writeNewProject(name, slug, description string) (Project, error) {
	p := Project{
		Name:        name,
		Slug:        slug,
		Description: description,
		CreatedAt:   timestamp(s.opts.Now()),
	}
	if err := writeJSON(filepath.Join(s.root, slug, ProjectFile), p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// populateRun writes the plan and manifest of a freshly created run
// directory.
func populateRun(dir string, p *plan.Plan, run Run) error {
	planData, err := plan.Encode(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode plan", err)
	}
	if err := writeFile(filepath.Join(dir, PlanFile), planData, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "write plan", err)
	}
	return writeJSON(filepath.Join(dir, ManifestFile), run)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode "+filepath.Base(path), err)
	}
	if err := writeFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, fmt.Sprintf("write %s", filepath.Base(path)), err)
	}
	return nil
}
