// Package mutation applies conversational edits to a plan. Every edit is
// pure: Apply returns a new plan and never modifies its input.
package mutation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/plan"
)

// Mode names a mutation kind on the wire.
type Mode string

const (
	ModeNone         Mode = "none"
	ModeAddBlocker   Mode = "add_blocker"
	ModeReprioritize Mode = "reprioritize"
	ModeUpdateStatus Mode = "update_status"
)

// ParseMode parses a mode name. The empty string means ModeNone.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeNone, nil
	case ModeNone, ModeAddBlocker, ModeReprioritize, ModeUpdateStatus:
		return m, nil
	default:
		return "", errors.NewUnknownModeError(s)
	}
}

// Mutation is one of AddBlocker, Reprioritize or UpdateStatus.
type Mutation interface {
	Mode() Mode
	// Summary is the system message recorded when the mutation is applied.
	Summary() string
	apply(p *plan.Plan) error
}

// Apply returns a copy of p with m applied. A nil mutation returns an
// unchanged copy.
func Apply(p *plan.Plan, m Mutation) (*plan.Plan, error) {
	out := p.Clone()
	if out == nil {
		out = &plan.Plan{Tasks: []plan.Task{}, Blockers: []string{}}
	}
	if m == nil {
		return out, nil
	}
	if err := m.apply(out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddBlocker records a blocker. With Mitigate set it also appends a
// mitigation task and recomputes aggregate risk.
type AddBlocker struct {
	Blocker  string
	Mitigate bool
}

func (AddBlocker) Mode() Mode { return ModeAddBlocker }

func (m AddBlocker) Summary() string {
	s := "blocker added: " + strings.TrimSpace(m.Blocker)
	if m.Mitigate {
		s += " (mitigation task added)"
	}
	return s
}

func (m AddBlocker) apply(p *plan.Plan) error {
	blocker := strings.TrimSpace(m.Blocker)
	if blocker == "" {
		return errors.NewInvalidMutationError(string(ModeAddBlocker), "blocker text is empty")
	}

	p.Blockers = append(p.Blockers, blocker)
	if m.Mitigate {
		p.Tasks = append(p.Tasks, mitigationTask(p, blocker))
	}
	if p.HasMitigation() {
		p.RecomputeAggregateRisk()
	}
	return nil
}

func mitigationTask(p *plan.Plan, blocker string) plan.Task {
	n := len(p.Tasks) + 1
	for p.IndexOf(fmt.Sprintf("M%d", n)) >= 0 {
		n++
	}

	title := blocker
	if r := []rune(title); len(r) > 40 {
		title = string(r[:40])
	}

	return plan.Task{
		ID:              fmt.Sprintf("M%d", n),
		Title:           "Mitigate blocker: " + title,
		Type:            plan.TaskTypeMitigation,
		Priority:        plan.Int(len(p.Tasks) + 1),
		EstimatePoints:  plan.Float(2),
		WSJFScore:       plan.Float(7.5),
		Risk:            "high",
		RiskScore:       plan.Float(12),
		RiskProbability: plan.Float(0.5),
		RiskImpact:      plan.Float(5),
		RiskExposure:    plan.Float(5),
		Status:          "todo",
		Acceptance:      "Mitigation effective",
	}
}

// Reprioritize moves the named tasks to the front in the given order. The
// remaining tasks keep their relative order. Priorities are renumbered 1..n.
type Reprioritize struct {
	Order []string
}

func (Reprioritize) Mode() Mode { return ModeReprioritize }

func (m Reprioritize) Summary() string {
	return "tasks reprioritized: " + strings.Join(m.ids(), ", ")
}

// ids returns the trimmed, non-blank ids of Order.
func (m Reprioritize) ids() []string {
	out := make([]string, 0, len(m.Order))
	for _, id := range m.Order {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (m Reprioritize) apply(p *plan.Plan) error {
	moved := make(map[string]bool, len(m.Order))
	reordered := make([]plan.Task, 0, len(p.Tasks))

	for _, id := range m.ids() {
		if moved[id] {
			continue
		}
		if i := p.IndexOf(id); i >= 0 {
			moved[id] = true
			reordered = append(reordered, p.Tasks[i])
		}
	}
	for _, t := range p.Tasks {
		if !moved[t.ID] {
			reordered = append(reordered, t)
		}
	}

	for i := range reordered {
		reordered[i].Priority = plan.Int(i + 1)
	}
	p.Tasks = reordered
	return nil
}

// UpdateStatus sets task statuses by id. Unknown ids are ignored.
type UpdateStatus struct {
	Statuses map[string]string
}

func (UpdateStatus) Mode() Mode { return ModeUpdateStatus }

func (m UpdateStatus) Summary() string {
	entries := m.normalized()
	if len(entries) == 0 {
		return "no valid status changes"
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+"="+entries[id])
	}
	return "status updated: " + strings.Join(parts, ", ")
}

func (m UpdateStatus) normalized() map[string]string {
	out := make(map[string]string, len(m.Statuses))
	for id, status := range m.Statuses {
		id, status = strings.TrimSpace(id), strings.TrimSpace(status)
		if id == "" || status == "" {
			continue
		}
		out[id] = status
	}
	return out
}

func (m UpdateStatus) apply(p *plan.Plan) error {
	entries := m.normalized()
	for i := range p.Tasks {
		if status, ok := entries[p.Tasks[i].ID]; ok {
			p.Tasks[i].Status = status
		}
	}
	return nil
}
