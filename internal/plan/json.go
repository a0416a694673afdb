package plan

import "encoding/json"

// UnmarshalJSON accepts the legacy "wsjf" key for WSJFScore.
func (t *Task) UnmarshalJSON(data []byte) error {
	type task Task
	aux := struct {
		*task
		LegacyWSJF *float64 `json:"wsjf"`
	}{task: (*task)(t)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if t.WSJFScore == nil && aux.LegacyWSJF != nil {
		t.WSJFScore = aux.LegacyWSJF
	}
	return nil
}

// UnmarshalJSON normalises missing collections to empty ones. A document
// without "aggregate_risk" gets the sum of its task exposures. The legacy
// "aggregate_risk_score" key summed risk scores, not exposures, and is
// ignored.
func (p *Plan) UnmarshalJSON(data []byte) error {
	type plan Plan
	aux := struct {
		*plan
		Aggregate *float64 `json:"aggregate_risk"`
	}{plan: (*plan)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if p.Tasks == nil {
		p.Tasks = []Task{}
	}
	if p.Blockers == nil {
		p.Blockers = []string{}
	}
	if aux.Aggregate != nil {
		p.AggregateRisk = *aux.Aggregate
	} else {
		p.RecomputeAggregateRisk()
	}
	return nil
}
