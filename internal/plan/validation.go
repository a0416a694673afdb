package plan

import (
	"fmt"
	"strings"
)

// Validate checks the structural invariants every stored plan must hold:
// non-empty task ids that are unique within the plan.
func (p *Plan) Validate() error {
	seen := make(map[string]bool, len(p.Tasks))
	for i, task := range p.Tasks {
		if strings.TrimSpace(task.ID) == "" {
			return fmt.Errorf("task at index %d has an empty id", i)
		}
		if seen[task.ID] {
			return fmt.Errorf("duplicate task ID %q at index %d", task.ID, i)
		}
		seen[task.ID] = true
	}
	return nil
}

// CheckDependencies reports dangling or circular depends_on references.
// Imported plans are checked with it; stored plans are not, since edits
// never touch dependencies.
func (p *Plan) CheckDependencies() error {
	graph := make(map[string][]string, len(p.Tasks))
	for _, task := range p.Tasks {
		graph[task.ID] = task.DependsOn
	}

	for _, task := range p.Tasks {
		for _, dep := range task.DependsOn {
			if _, ok := graph[dep]; !ok {
				return fmt.Errorf("task %s depends on unknown task %q", task.ID, dep)
			}
		}
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		for _, dep := range graph[id] {
			if onStack[dep] {
				return fmt.Errorf("circular dependency detected: %s -> %s", strings.Join(path, " -> "), dep)
			}
			if !visited[dep] {
				if err := visit(dep, path); err != nil {
					return err
				}
			}
		}

		onStack[id] = false
		return nil
	}

	for _, task := range p.Tasks {
		if !visited[task.ID] {
			if err := visit(task.ID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
