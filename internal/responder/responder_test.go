package responder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pmteam/internal/conversation"
	"github.com/felixgeelhaar/pmteam/internal/plan"
)

func checkoutPlan() *plan.Plan {
	return &plan.Plan{
		Initiative: "Checkout",
		Tasks: []plan.Task{
			{ID: "T2", Title: "Build", Priority: plan.Int(2), EstimatePoints: plan.Float(8), RiskExposure: plan.Float(12.8), Status: "doing"},
			{ID: "T1", Title: "Design", Priority: plan.Int(1), EstimatePoints: plan.Float(3), RiskExposure: plan.Float(1.2), WSJFScore: plan.Float(5.33)},
			{ID: "M3", Title: "Mitigate", Risk: "high", EstimatePoints: plan.Float(2)},
		},
		Blockers:      []string{"vendor delay", "legal"},
		AggregateRisk: 14,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"What is happening?", IntentStatus},
		{"give me a summary of risk", IntentStatus},
		{"Any progress update", IntentStatus},
		{"what are the top risks", IntentRisk},
		{"is anything blocked", IntentBlockers},
		{"list blockers", IntentBlockers},
		{"show me the tasks", IntentTasks},
		{"walk me through the plan", IntentTasks},
		{"hello there", IntentGeneral},
		{"", IntentGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.message))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(checkoutPlan())

	assert.Equal(t, "Checkout", s.Initiative)
	assert.Equal(t, 3, s.TaskCount)
	assert.Equal(t, []string{"T2", "M3"}, s.HighRiskTasks)
	assert.Equal(t, 2, s.BlockerCount)
	assert.InDelta(t, 13, s.TotalPoints, 1e-9)
	assert.Equal(t, []string{
		"T1 Design (P1, wsjf 5.33)",
		"T2 Build (P2, doing)",
		"M3 Mitigate",
	}, s.TopTasks)
}

func TestSummarizeNilPlan(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.TaskCount)
	assert.Contains(t, s.String(), "INITIATIVE: none")
	assert.Contains(t, s.String(), "BLOCKER_COUNT: 0")
}

func TestSummaryLines(t *testing.T) {
	lines := Summarize(checkoutPlan()).Lines()
	assert.Equal(t, []string{
		"INITIATIVE: Checkout",
		"TASK_COUNT: 3",
		"HIGH_RISK_TASKS: T2, M3",
		"BLOCKER_COUNT: 2",
		"BLOCKERS: vendor delay; legal",
		"TOTAL_POINTS: 13",
		"AGG_RISK: 14.00",
		"TOP_TASKS:",
		"  - T1 Design (P1, wsjf 5.33)",
		"  - T2 Build (P2, doing)",
		"  - M3 Mitigate",
	}, lines)
}

func TestRespondTemplates(t *testing.T) {
	p := checkoutPlan()

	tests := []struct {
		message string
		prefix  string
		has     []string
	}{
		{"status please", "Project status -> ", []string{"TASK_COUNT: 3", "BLOCKER_COUNT: 2", "AGG_RISK: 14.00"}},
		{"risk?", "Risk overview: ", []string{"HIGH_RISK_TASKS: T2, M3", "AGG_RISK: 14.00"}},
		{"blockers?", "BLOCKERS: ", []string{"vendor delay; legal"}},
		{"tasks?", "Planned tasks (priority order): ", []string{"T1 Design"}},
		{"hello", "Answer (heuristic): ", []string{"Your request: hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := Respond(p, nil, tt.message)
			assert.True(t, strings.HasPrefix(got, tt.prefix), got)
			for _, h := range tt.has {
				assert.Contains(t, got, h)
			}
			assert.NotContains(t, got, "Context:")
		})
	}
}

func TestRespondEmptyPlan(t *testing.T) {
	p := &plan.Plan{Tasks: []plan.Task{}, Blockers: []string{}}

	assert.Equal(t, "Risk overview: No significant risks identified", Respond(p, nil, "risk"))
	assert.Equal(t, "No blockers recorded in the current plan.", Respond(p, nil, "blocked?"))
	assert.Equal(t, "The plan has no tasks yet.", Respond(p, nil, "tasks"))
}

func TestRespondTruncatesEcho(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := Respond(checkoutPlan(), nil, long)
	assert.Equal(t, "Answer (heuristic): I considered recent context and artifacts. Your request: "+strings.Repeat("x", 160), got)
}

func TestRespondContextTail(t *testing.T) {
	var c conversation.Conversation
	for _, content := range []string{"one", "two", "three", "four", "five"} {
		c = c.Append(conversation.Message{Sender: conversation.SenderUser, Content: content})
	}

	got := Respond(checkoutPlan(), c, "hello")
	parts := strings.SplitN(got, "\nContext: ", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "[user] two\n[user] three\n[user] four\n[user] five", parts[1])

	c = c.Append(conversation.Message{Sender: conversation.SenderAgent, Content: strings.Repeat("y", 400)})
	got = Respond(checkoutPlan(), c, "hello")
	tail := strings.SplitN(got, "\nContext: ", 2)[1]
	assert.Len(t, []rune(tail), 240)
}

func TestRespondIsDeterministic(t *testing.T) {
	p := checkoutPlan()
	assert.Equal(t, Respond(p, nil, "status"), Respond(p, nil, "status"))
}
