package audit

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/pmteam/internal/store"
)

// FileName is the audit trail inside each project directory.
const FileName = "audit_log.jsonl"

// Logger appends events to <root>/<project>/audit_log.jsonl. A nil *Logger
// discards events.
type Logger struct {
	root string
	mu   sync.Mutex
}

// NewLogger writes trails under root.
func NewLogger(root string) *Logger {
	return &Logger{root: root}
}

func (l *Logger) path(project string) (string, error) {
	if err := store.ValidateProject(project); err != nil {
		return "", err
	}
	return filepath.Join(l.root, project, FileName), nil
}

// Log appends e as one JSON line.
func (l *Logger) Log(e *Event) error {
	if l == nil || e == nil {
		return nil
	}
	path, err := l.path(e.Project)
	if err != nil {
		return err
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return f.Close()
}

// Events reads a project's trail, oldest first. Unparseable lines are
// skipped; a missing trail is empty.
func (l *Logger) Events(project string) ([]Event, error) {
	if l == nil {
		return nil, nil
	}
	path, err := l.path(project)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return []Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	events := []Event{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Event
		if json.Unmarshal(scanner.Bytes(), &e) == nil {
			events = append(events, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	return events, nil
}
