package plan

import "slices"

// Plan is the sprint plan artifact of a single run.
type Plan struct {
	Initiative         string   `json:"initiative,omitempty"`
	SprintGoal         string   `json:"sprint_goal,omitempty"`
	VelocityAssumption *float64 `json:"velocity_assumption,omitempty"`
	GeneratedAt        string   `json:"generated_at,omitempty"`
	UpdatedAt          string   `json:"updated_at,omitempty"`
	Tasks              []Task   `json:"tasks"`
	Blockers           []string `json:"blockers"`
	AggregateRisk      float64  `json:"aggregate_risk"`
}

// Task is a unit of work. ID is its identity; every other field may change.
type Task struct {
	ID              string   `json:"id"`
	Title           string   `json:"title,omitempty"`
	Type            string   `json:"type,omitempty"`
	Description     string   `json:"description,omitempty"`
	Priority        *int     `json:"priority,omitempty"`
	EstimatePoints  *float64 `json:"estimate_points,omitempty"`
	WSJFScore       *float64 `json:"wsjf_score,omitempty"`
	Risk            string   `json:"risk,omitempty"`
	RiskScore       *float64 `json:"risk_score,omitempty"`
	RiskProbability *float64 `json:"risk_probability,omitempty"`
	RiskImpact      *float64 `json:"risk_impact,omitempty"`
	RiskExposure    *float64 `json:"risk_exposure,omitempty"`
	Status          string   `json:"status,omitempty"`
	DependsOn       []string `json:"depends_on,omitempty"`
	Acceptance      string   `json:"acceptance,omitempty"`
}

// TaskTypeMitigation marks tasks created in response to a blocker.
const TaskTypeMitigation = "mitigation"

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Value dereferences p, returning 0 for nil.
func Value[T int | float64](p *T) T {
	if p == nil {
		return 0
	}
	return *p
}

// Clone returns a deep copy of the plan. Mutating the copy never affects p.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := *p
	out.VelocityAssumption = clonePtr(p.VelocityAssumption)
	out.Blockers = slices.Clone(p.Blockers)
	if p.Tasks != nil {
		out.Tasks = make([]Task, len(p.Tasks))
		for i := range p.Tasks {
			out.Tasks[i] = p.Tasks[i].Clone()
		}
	}
	return &out
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	out.Priority = clonePtr(t.Priority)
	out.EstimatePoints = clonePtr(t.EstimatePoints)
	out.WSJFScore = clonePtr(t.WSJFScore)
	out.RiskScore = clonePtr(t.RiskScore)
	out.RiskProbability = clonePtr(t.RiskProbability)
	out.RiskImpact = clonePtr(t.RiskImpact)
	out.RiskExposure = clonePtr(t.RiskExposure)
	out.DependsOn = slices.Clone(t.DependsOn)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IndexOf returns the position of the task with id, or -1.
func (p *Plan) IndexOf(id string) int {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// TaskByID returns the task with id.
func (p *Plan) TaskByID(id string) (Task, bool) {
	if i := p.IndexOf(id); i >= 0 {
		return p.Tasks[i], true
	}
	return Task{}, false
}

// TotalPoints sums estimate points across all tasks.
func (p *Plan) TotalPoints() float64 {
	var total float64
	for _, t := range p.Tasks {
		total += Value(t.EstimatePoints)
	}
	return total
}

// HasMitigation reports whether any task is a blocker mitigation.
func (p *Plan) HasMitigation() bool {
	return slices.ContainsFunc(p.Tasks, func(t Task) bool { return t.Type == TaskTypeMitigation })
}

// RecomputeAggregateRisk sets AggregateRisk to the sum of task exposures.
func (p *Plan) RecomputeAggregateRisk() {
	var sum float64
	for _, t := range p.Tasks {
		sum += Value(t.RiskExposure)
	}
	p.AggregateRisk = sum
}
