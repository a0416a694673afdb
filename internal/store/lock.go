package store

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

// runLocks is an in-process registry of per-run mutexes. Each lock is a
// one-slot channel so waiting can be abandoned when ctx ends.
type runLocks struct {
	mu   sync.Mutex
	sems map[RunRef]chan struct{}
}

func newRunLocks() *runLocks {
	return &runLocks{sems: make(map[RunRef]chan struct{})}
}

func (l *runLocks) lock(ctx context.Context, ref RunRef) (func(), error) {
	l.mu.Lock()
	sem, ok := l.sems[ref]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[ref] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-sem }) }, nil
	case <-ctx.Done():
		return nil, errors.Wrap(errors.ErrCodeStoreLock, "lock run "+ref.String(), ctx.Err())
	}
}
