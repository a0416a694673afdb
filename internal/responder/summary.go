package responder

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/felixgeelhaar/pmteam/internal/plan"
)

// HighRiskExposure is the exposure at or above which a task counts as high
// risk regardless of its risk label.
const HighRiskExposure = 5.0

const topTaskLimit = 6

// Summary is the digest of a plan shared by the heuristic templates and the
// prompt context of the upper tiers.
type Summary struct {
	Initiative    string
	TaskCount     int
	HighRiskTasks []string
	BlockerCount  int
	Blockers      []string
	TotalPoints   float64
	AggregateRisk float64
	TopTasks      []string
}

// Summarize digests a plan.
func Summarize(p *plan.Plan) Summary {
	if p == nil {
		p = &plan.Plan{}
	}

	s := Summary{
		Initiative:    p.Initiative,
		TaskCount:     len(p.Tasks),
		BlockerCount:  len(p.Blockers),
		Blockers:      slices.Clone(p.Blockers),
		TotalPoints:   p.TotalPoints(),
		AggregateRisk: p.AggregateRisk,
	}

	for _, t := range p.Tasks {
		if strings.EqualFold(t.Risk, "high") || plan.Value(t.RiskExposure) >= HighRiskExposure {
			s.HighRiskTasks = append(s.HighRiskTasks, t.ID)
		}
	}

	ordered := slices.Clone(p.Tasks)
	slices.SortStableFunc(ordered, func(a, b plan.Task) int {
		switch {
		case a.Priority == nil && b.Priority == nil:
			return 0
		case a.Priority == nil:
			return 1
		case b.Priority == nil:
			return -1
		}
		return cmp.Compare(*a.Priority, *b.Priority)
	})
	for _, t := range ordered[:min(topTaskLimit, len(ordered))] {
		s.TopTasks = append(s.TopTasks, describeTask(t))
	}
	return s
}

func describeTask(t plan.Task) string {
	var b strings.Builder
	b.WriteString(t.ID)
	if t.Title != "" {
		b.WriteString(" " + t.Title)
	}

	var attrs []string
	if t.Priority != nil {
		attrs = append(attrs, fmt.Sprintf("P%d", *t.Priority))
	}
	if t.Status != "" {
		attrs = append(attrs, t.Status)
	}
	if t.WSJFScore != nil {
		attrs = append(attrs, fmt.Sprintf("wsjf %g", *t.WSJFScore))
	}
	if len(attrs) > 0 {
		b.WriteString(" (" + strings.Join(attrs, ", ") + ")")
	}
	return b.String()
}

func (s Summary) headline() []string {
	return []string{
		"INITIATIVE: " + orNone(s.Initiative),
		fmt.Sprintf("TASK_COUNT: %d", s.TaskCount),
		"HIGH_RISK_TASKS: " + orNone(strings.Join(s.HighRiskTasks, ", ")),
		fmt.Sprintf("BLOCKER_COUNT: %d", s.BlockerCount),
		"BLOCKERS: " + orNone(strings.Join(s.Blockers, "; ")),
		fmt.Sprintf("TOTAL_POINTS: %g", s.TotalPoints),
		fmt.Sprintf("AGG_RISK: %.2f", s.AggregateRisk),
	}
}

// Lines renders the summary as the marker lines fed to completion tiers.
func (s Summary) Lines() []string {
	lines := append(s.headline(), "TOP_TASKS:")
	for _, t := range s.TopTasks {
		lines = append(lines, "  - "+t)
	}
	return lines
}

// String joins Lines with newlines.
func (s Summary) String() string {
	return strings.Join(s.Lines(), "\n")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
