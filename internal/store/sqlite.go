package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/plan"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	slug        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	runs        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS runs (
	project      TEXT NOT NULL REFERENCES projects(slug),
	id           TEXT NOT NULL,
	initiative   TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	plan         TEXT NOT NULL,
	conversation TEXT,
	PRIMARY KEY (project, id)
);
`

// SQLiteStore keeps the catalog, plans and transcripts in one SQLite file.
// The pool holds a single connection, which serializes all writes.
type SQLiteStore struct {
	db    *sql.DB
	root  string
	opts  Options
	locks *runLocks
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path. root is
// still used for side files such as audit logs.
func NewSQLiteStore(path, root string, opts Options) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreWrite, "create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "open database", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(errors.ErrCodeStoreWrite, "configure database", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreWrite, "create schema", err)
	}

	return &SQLiteStore{db: db, root: root, opts: opts.withDefaults(), locks: newRunLocks()}, nil
}

func (s *SQLiteStore) Root() string { return s.root }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) LoadPlan(ctx context.Context, ref RunRef) (*plan.Plan, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT plan FROM runs WHERE project = ? AND id = ?`, ref.Project, ref.Run).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewRunNotFoundError(ref.Project, ref.Run)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "read plan "+ref.String(), err)
	}

	p, err := plan.Decode([]byte(raw))
	if err != nil {
		s.opts.Logger.WithRun(ref.Project, ref.Run).WithError(err).Warn("stored plan corrupt, starting from an empty plan")
		s.opts.Metrics.RecordRecovery("plan")
		return emptyPlan(), nil
	}
	return p, nil
}

func (s *SQLiteStore) SavePlan(ctx context.Context, ref RunRef, p *plan.Plan) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	data, err := plan.Encode(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode plan", err)
	}
	return s.updateRun(ctx, ref, `UPDATE runs SET plan = ? WHERE project = ? AND id = ?`, string(data))
}

func (s *SQLiteStore) LoadConversation(ctx context.Context, ref RunRef) (conversation.Conversation, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT conversation FROM runs WHERE project = ? AND id = ?`, ref.Project, ref.Run).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewRunNotFoundError(ref.Project, ref.Run)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "read conversation "+ref.String(), err)
	}
	if !raw.Valid || raw.String == "" {
		return conversation.Conversation{}, nil
	}

	c, err := conversation.Decode([]byte(raw.String))
	if err != nil {
		s.opts.Logger.WithRun(ref.Project, ref.Run).WithError(err).Warn("stored conversation corrupt, starting a new transcript")
		s.opts.Metrics.RecordRecovery("conversation")
		return conversation.Conversation{}, nil
	}
	return c, nil
}

func (s *SQLiteStore) SaveConversation(ctx context.Context, ref RunRef, c conversation.Conversation) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	data, err := conversation.Encode(c)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "encode conversation", err)
	}
	return s.updateRun(ctx, ref, `UPDATE runs SET conversation = ? WHERE project = ? AND id = ?`, string(data))
}

func (s *SQLiteStore) updateRun(ctx context.Context, ref RunRef, query, value string) error {
	res, err := s.db.ExecContext(ctx, query, value, ref.Project, ref.Run)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, "update run "+ref.String(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewRunNotFoundError(ref.Project, ref.Run)
	}
	return nil
}

func (s *SQLiteStore) LockRun(ctx context.Context, ref RunRef) (func(), error) {
	return s.locks.lock(ctx, ref)
}

func (s *SQLiteStore) EnsureProject(ctx context.Context, name string) (Project, error) {
	slug := Slug(name)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (slug, name, created_at) VALUES (?, ?, ?) ON CONFLICT(slug) DO NOTHING`,
		slug, name, timestamp(s.opts.Now()))
	if err != nil {
		return Project{}, errors.Wrap(errors.ErrCodeStoreWrite, "ensure project "+slug, err)
	}
	return s.GetProject(ctx, slug)
}

func (s *SQLiteStore) CreateProject(ctx context.Context, name, description string) (Project, error) {
	slug := Slug(name)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (slug, name, description, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(slug) DO NOTHING`,
		slug, name, description, timestamp(s.opts.Now()))
	if err != nil {
		return Project{}, errors.Wrap(errors.ErrCodeStoreWrite, "create project "+slug, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Project{}, errors.NewProjectExistsError(slug)
	}
	return s.GetProject(ctx, slug)
}

func (s *SQLiteStore) GetProject(ctx context.Context, slug string) (Project, error) {
	if err := ValidateProject(slug); err != nil {
		return Project{}, err
	}
	var p Project
	err := s.db.QueryRowContext(ctx,
		`SELECT slug, name, description, created_at, runs FROM projects WHERE slug = ?`, slug).
		Scan(&p.Slug, &p.Name, &p.Description, &p.CreatedAt, &p.Runs)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Project{}, errors.NewProjectNotFoundError(slug)
	}
	if err != nil {
		return Project{}, errors.Wrap(errors.ErrCodeStoreRead, "read project "+slug, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, name, description, created_at, runs FROM projects ORDER BY created_at, rowid`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "list projects", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Slug, &p.Name, &p.Description, &p.CreatedAt, &p.Runs); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreRead, "scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "list projects", err)
	}
	return projects, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, project, initiative string, p *plan.Plan) (Run, error) {
	now := s.opts.Now()
	imported, err := prepareImport(p, now)
	if err != nil {
		return Run{}, err
	}
	data, err := plan.Encode(imported)
	if err != nil {
		return Run{}, errors.Wrap(errors.ErrCodeStoreWrite, "encode plan", err)
	}
	proj, err := s.EnsureProject(ctx, project)
	if err != nil {
		return Run{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, errors.Wrap(errors.ErrCodeStoreWrite, "begin run import", err)
	}
	defer func() { _ = tx.Rollback() }()

	base := RunID(now, initiative)
	id := base
	for n := 2; ; n++ {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE project = ? AND id = ?`, proj.Slug, id).Scan(&exists)
		if err != nil {
			return Run{}, errors.Wrap(errors.ErrCodeStoreRead, "check run id", err)
		}
		if exists == 0 {
			break
		}
		id = base + "_" + strconv.Itoa(n)
	}

	run := Run{ID: id, Project: proj.Slug, Initiative: initiative, CreatedAt: timestamp(now)}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (project, id, initiative, created_at, plan) VALUES (?, ?, ?, ?, ?)`,
		run.Project, run.ID, run.Initiative, run.CreatedAt, string(data)); err != nil {
		return Run{}, errors.Wrap(errors.ErrCodeStoreWrite, "insert run", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET runs = runs + 1 WHERE slug = ?`, proj.Slug); err != nil {
		return Run{}, errors.Wrap(errors.ErrCodeStoreWrite, "increment run counter", err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, errors.Wrap(errors.ErrCodeStoreWrite, "commit run import", err)
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, project string) ([]Run, error) {
	if _, err := s.GetProject(ctx, project); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, initiative, created_at FROM runs WHERE project = ? ORDER BY id`, project)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "list runs", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run := Run{Project: project}
		if err := rows.Scan(&run.ID, &run.Initiative, &run.CreatedAt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreRead, "scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreRead, "list runs", err)
	}
	return runs, nil
}
