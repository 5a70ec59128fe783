package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/youmna-rabie/line-assistant/internal/types"
)

// PayloadKind tags how a model response was resolved.
type PayloadKind int

const (
	// Malformed means the response is not a usable action document.
	Malformed PayloadKind = iota
	// Single means the response was one action object.
	Single
	// Batch means the response was an array of action objects.
	Batch
)

func (k PayloadKind) String() string {
	switch k {
	case Single:
		return "single"
	case Batch:
		return "batch"
	default:
		return "malformed"
	}
}

// Payload is a decoded model response.
type Payload struct {
	Kind    PayloadKind
	Actions []types.Action
	// Err explains why a Malformed payload was rejected.
	Err error
	// Repaired is set when the JSON had to be repaired before decoding.
	Repaired bool
}

// Legacy expense documents use an "action" verb instead of a skill name.
var legacyActions = map[string]struct {
	skill string
	field string
}{
	"RECORD": {"add_expense", "data"},
	"QUERY":  {"query_expenses", "params"},
}

// StripFences removes Markdown code-fence markers and surrounding
// whitespace from a model response.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Decode resolves a raw model response into a Payload.
func Decode(raw string) Payload {
	text := StripFences(raw)
	if text == "" {
		return Payload{Kind: Malformed, Err: fmt.Errorf("empty response")}
	}

	var doc any
	repaired := false
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		fixed, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return Payload{Kind: Malformed, Err: fmt.Errorf("decoding response: %w", err)}
		}
		if err := json.Unmarshal([]byte(fixed), &doc); err != nil {
			return Payload{Kind: Malformed, Err: fmt.Errorf("decoding repaired response: %w", err)}
		}
		repaired = true
	}

	switch v := doc.(type) {
	case map[string]any:
		action, err := toAction(v)
		if err != nil {
			return Payload{Kind: Malformed, Err: err, Repaired: repaired}
		}
		return Payload{Kind: Single, Actions: []types.Action{action}, Repaired: repaired}

	case []any:
		actions := make([]types.Action, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return Payload{Kind: Malformed, Err: fmt.Errorf("element %d is %T, not an object", i, item), Repaired: repaired}
			}
			action, err := toAction(m)
			if err != nil {
				return Payload{Kind: Malformed, Err: fmt.Errorf("element %d: %w", i, err), Repaired: repaired}
			}
			actions = append(actions, action)
		}
		return Payload{Kind: Batch, Actions: actions, Repaired: repaired}

	default:
		return Payload{Kind: Malformed, Err: fmt.Errorf("top-level %T is neither object nor array", doc), Repaired: repaired}
	}
}

func toAction(m map[string]any) (types.Action, error) {
	if name, ok := m["skill"].(string); ok && name != "" {
		args, err := argsOf(m, "args")
		if err != nil {
			return types.Action{}, err
		}
		return types.Action{Skill: name, Args: args}, nil
	}

	if verb, ok := m["action"].(string); ok {
		legacy, ok := legacyActions[strings.ToUpper(strings.TrimSpace(verb))]
		if !ok {
			return types.Action{}, fmt.Errorf("unknown action %q", verb)
		}
		args, err := argsOf(m, legacy.field)
		if err != nil {
			return types.Action{}, err
		}
		return types.Action{Skill: legacy.skill, Args: args}, nil
	}

	return types.Action{}, fmt.Errorf("object has no skill")
}

func argsOf(m map[string]any, field string) (map[string]any, error) {
	v, ok := m[field]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	args, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s is %T, not an object", field, v)
	}
	return args, nil
}
