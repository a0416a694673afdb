package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// MaxDocumentBytes caps the size of a plan document read by Read.
const MaxDocumentBytes = 8 << 20

// Decode parses a plan document and checks its structural invariants.
func Decode(data []byte) (*Plan, error) {
	p := new(Plan)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}
	return p, nil
}

// Encode renders p the way plan.json is stored on disk.
func Encode(p *Plan) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return data, nil
}

// Read decodes one plan document from r.
func Read(r io.Reader) (*Plan, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	if len(data) > MaxDocumentBytes {
		return nil, fmt.Errorf("plan document exceeds %d bytes", MaxDocumentBytes)
	}
	return Decode(data)
}

// LoadPlan reads a plan file. The path "-" reads standard input.
func LoadPlan(path string) (*Plan, error) {
	if path == "-" {
		return Read(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan file: %w", err)
	}
	defer f.Close()
	return Read(f)
}
