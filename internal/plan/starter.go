package plan

import (
	"fmt"
	"math"
	"time"
)

type starterTask struct {
	title    string
	taskType string
	risk     string
}

var starterTasks = []starterTask{
	{"Requirements Clarification", "analysis", "low"},
	{"Architecture Draft", "design", "low"},
	{"Data Model Design", "design", "low"},
	{"Implementation", "feature", "medium"},
	{"Testing & QA", "quality", "medium"},
	{"Deployment Prep", "ops", "low"},
}

var riskWeight = map[string]float64{"low": 1, "medium": 3, "high": 6}

// Starter returns the fixed six-task baseline plan used to seed a new run
// when no plan document is imported.
func Starter(initiative string, now time.Time) *Plan {
	const (
		businessValue   = 8
		timeCriticality = 5
		riskReduction   = 3
	)

	tasks := make([]Task, 0, len(starterTasks))
	for i, st := range starterTasks {
		n := i + 1
		estimate := 3.0
		if st.taskType == "feature" {
			estimate = 8
		}
		prob, impact := 0.2, 2.0
		if st.risk == "medium" {
			prob, impact = 0.4, 4.0
		}

		task := Task{
			ID:              fmt.Sprintf("T%d", n),
			Title:           fmt.Sprintf("%s (%s)", st.title, truncate(initiative, 30)),
			Type:            st.taskType,
			Priority:        Int(n),
			EstimatePoints:  Float(estimate),
			WSJFScore:       Float(round2((businessValue + timeCriticality + riskReduction) / estimate)),
			Risk:            st.risk,
			RiskScore:       Float(riskWeight[st.risk] * estimate),
			RiskProbability: Float(prob),
			RiskImpact:      Float(impact),
			RiskExposure:    Float(round2(prob * impact * estimate)),
			Status:          "todo",
			Acceptance:      "TBD",
		}
		if n > 1 {
			task.DependsOn = []string{fmt.Sprintf("T%d", n-1)}
		}
		tasks = append(tasks, task)
	}

	p := &Plan{
		Initiative:         initiative,
		SprintGoal:         "Deliver foundation for: " + truncate(initiative, 60),
		VelocityAssumption: Float(30),
		GeneratedAt:        now.UTC().Format(time.RFC3339),
		Tasks:              tasks,
		Blockers:           []string{},
	}
	p.RecomputeAggregateRisk()
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
