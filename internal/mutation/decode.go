package mutation

import (
	"bytes"
	"encoding/json"

	"github.com/felixgeelhaar/pmteam/internal/errors"
)

// Decode converts an untyped payload from a transport into a typed
// mutation. ModeNone yields a nil mutation.
//
// Accepted shapes:
//
//	add_blocker:   "text" | {"blocker": "text", "mitigate": true}
//	reprioritize:  ["T3", "T1"] | {"order": ["T3", "T1"]}
//	update_status: {"T1": "done"} | {"statuses": {"T1": "done"}}
func Decode(mode Mode, payload json.RawMessage) (Mutation, error) {
	if mode == ModeNone || mode == "" {
		return nil, nil
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.NewInvalidMutationError(string(mode), "payload is required")
	}

	switch mode {
	case ModeAddBlocker:
		return decodeAddBlocker(trimmed)
	case ModeReprioritize:
		return decodeReprioritize(trimmed)
	case ModeUpdateStatus:
		return decodeUpdateStatus(trimmed)
	default:
		return nil, errors.NewUnknownModeError(string(mode))
	}
}

func decodeAddBlocker(data []byte) (Mutation, error) {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return AddBlocker{Blocker: text}, nil
	}

	var obj struct {
		Blocker  *string `json:"blocker"`
		Mitigate bool    `json:"mitigate"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.Blocker == nil {
		return nil, errors.NewInvalidMutationError(string(ModeAddBlocker), "expected a string or {\"blocker\": string}")
	}
	return AddBlocker{Blocker: *obj.Blocker, Mitigate: obj.Mitigate}, nil
}

func decodeReprioritize(data []byte) (Mutation, error) {
	var order []string
	if err := json.Unmarshal(data, &order); err == nil {
		return Reprioritize{Order: order}, nil
	}

	var obj struct {
		Order *[]string `json:"order"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.Order == nil {
		return nil, errors.NewInvalidMutationError(string(ModeReprioritize), "order must be a list of task ids")
	}
	return Reprioritize{Order: *obj.Order}, nil
}

func decodeUpdateStatus(data []byte) (Mutation, error) {
	invalid := errors.NewInvalidMutationError(string(ModeUpdateStatus), "statuses must map task ids to strings")

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, invalid
	}
	if inner, ok := fields["statuses"]; ok {
		if t := bytes.TrimSpace(inner); len(t) == 0 || t[0] != '{' {
			return nil, invalid
		}
		data = inner
	}

	var statuses map[string]string
	if err := json.Unmarshal(data, &statuses); err != nil {
		return nil, invalid
	}
	return UpdateStatus{Statuses: statuses}, nil
}
