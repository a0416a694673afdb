// Package diff compares two plan snapshots by task id.
package diff

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/felixgeelhaar/pmteam/internal/plan"
)

// FieldChange is the old and new value of one monitored field. Absent
// values are nil.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// TaskChange lists the monitored fields that differ for one task.
type TaskChange struct {
	ID      string                 `json:"id"`
	Changes map[string]FieldChange `json:"changes"`
}

// PlanDiff is the structural difference between two plans.
type PlanDiff struct {
	Added              []plan.Task  `json:"added"`
	Removed            []plan.Task  `json:"removed"`
	Modified           []TaskChange `json:"modified"`
	AggregateRiskOld   float64      `json:"aggregate_risk_old"`
	AggregateRiskNew   float64      `json:"aggregate_risk_new"`
	AggregateRiskDelta float64      `json:"aggregate_risk_delta"`
	OldFingerprint     string       `json:"old_fingerprint,omitempty"`
	NewFingerprint     string       `json:"new_fingerprint,omitempty"`
}

type field struct {
	name  string
	value func(plan.Task) any
}

// monitored is the ordered set of task fields compared by Plans.
var monitored = []field{
	{"title", func(t plan.Task) any { return t.Title }},
	{"type", func(t plan.Task) any { return t.Type }},
	{"description", func(t plan.Task) any { return t.Description }},
	{"priority", func(t plan.Task) any { return deref(t.Priority) }},
	{"estimate_points", func(t plan.Task) any { return deref(t.EstimatePoints) }},
	{"wsjf_score", func(t plan.Task) any { return deref(t.WSJFScore) }},
	{"risk", func(t plan.Task) any { return t.Risk }},
	{"risk_score", func(t plan.Task) any { return deref(t.RiskScore) }},
	{"risk_probability", func(t plan.Task) any { return deref(t.RiskProbability) }},
	{"risk_impact", func(t plan.Task) any { return deref(t.RiskImpact) }},
	{"risk_exposure", func(t plan.Task) any { return deref(t.RiskExposure) }},
	{"status", func(t plan.Task) any { return t.Status }},
	{"depends_on", func(t plan.Task) any {
		if len(t.DependsOn) == 0 {
			return nil
		}
		return slices.Clone(t.DependsOn)
	}},
}

// MonitoredFields returns the compared field names in display order.
func MonitoredFields() []string {
	names := make([]string, len(monitored))
	for i, f := range monitored {
		names[i] = f.name
	}
	return names
}

func deref[T int | float64](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Plans computes the diff from one snapshot to another. Added and modified
// entries follow the order of to, removed entries the order of from. Task
// order on its own never produces a change.
func Plans(from, to *plan.Plan) PlanDiff {
	if from == nil {
		from = &plan.Plan{}
	}
	if to == nil {
		to = &plan.Plan{}
	}

	d := PlanDiff{
		Added:              []plan.Task{},
		Removed:            []plan.Task{},
		Modified:           []TaskChange{},
		AggregateRiskOld:   from.AggregateRisk,
		AggregateRiskNew:   to.AggregateRisk,
		AggregateRiskDelta: to.AggregateRisk - from.AggregateRisk,
		OldFingerprint:     from.Fingerprint(),
		NewFingerprint:     to.Fingerprint(),
	}

	oldByID := make(map[string]plan.Task, len(from.Tasks))
	for _, t := range from.Tasks {
		oldByID[t.ID] = t
	}
	newIDs := make(map[string]bool, len(to.Tasks))

	for _, nt := range to.Tasks {
		newIDs[nt.ID] = true
		ot, ok := oldByID[nt.ID]
		if !ok {
			d.Added = append(d.Added, nt.Clone())
			continue
		}
		if changes := compare(ot, nt); len(changes) > 0 {
			d.Modified = append(d.Modified, TaskChange{ID: nt.ID, Changes: changes})
		}
	}

	for _, ot := range from.Tasks {
		if !newIDs[ot.ID] {
			d.Removed = append(d.Removed, ot.Clone())
		}
	}

	return d
}

func compare(from, to plan.Task) map[string]FieldChange {
	var changes map[string]FieldChange
	for _, f := range monitored {
		ov, nv := f.value(from), f.value(to)
		if reflect.DeepEqual(ov, nv) {
			continue
		}
		if changes == nil {
			changes = make(map[string]FieldChange)
		}
		changes[f.name] = FieldChange{Old: ov, New: nv}
	}
	return changes
}

// IsEmpty reports whether the diff has no task changes and zero delta.
func (d PlanDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0 && d.AggregateRiskDelta == 0
}

// Summary renders a one-line count of changes.
func (d PlanDiff) Summary() string {
	return fmt.Sprintf("%d added, %d removed, %d modified, aggregate risk %s (%s -> %s)",
		len(d.Added), len(d.Removed), len(d.Modified),
		signed(d.AggregateRiskDelta), num(d.AggregateRiskOld), num(d.AggregateRiskNew))
}

func signed(v float64) string {
	if v > 0 {
		return "+" + num(v)
	}
	return num(v)
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
