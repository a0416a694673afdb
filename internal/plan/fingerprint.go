package plan

import (
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint returns a blake3 digest of the plan's tasks, blockers and
// aggregate risk. Metadata such as timestamps does not contribute, so two
// plans with the same content share a fingerprint.
func (p *Plan) Fingerprint() string {
	canonical, err := json.Marshal(struct {
		Tasks         []Task   `json:"tasks"`
		Blockers      []string `json:"blockers"`
		AggregateRisk float64  `json:"aggregate_risk"`
	}{p.Tasks, p.Blockers, p.AggregateRisk})
	if err != nil {
		return ""
	}

	hasher := blake3.New()
	_, _ = hasher.Write(canonical)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// ShortFingerprint returns the first 12 hex characters of Fingerprint.
func (p *Plan) ShortFingerprint() string {
	fp := p.Fingerprint()
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
