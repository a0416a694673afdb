package health

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/pmteam/internal/store"
)

// StoreChecker lists projects to prove the plan store is readable.
type StoreChecker struct {
	store store.Store
}

func NewStoreChecker(s store.Store) *StoreChecker {
	return &StoreChecker{store: s}
}

func (c *StoreChecker) Name() string {
	return "plan-store"
}

func (c *StoreChecker) Check(ctx context.Context) *Result {
	if c.store == nil {
		return Unhealthy("no plan store configured")
	}
	projects, err := c.store.ListProjects(ctx)
	if err != nil {
		return Unhealthy("plan store unreadable").
			WithDetail("error", err.Error()).
			WithDetail("root", c.store.Root())
	}
	return Healthy(fmt.Sprintf("%d projects", len(projects))).
		WithDetail("root", c.store.Root())
}
