package types

// Action is one skill invocation requested by the language model.
type Action struct {
	Skill string         `json:"skill"`
	Args  map[string]any `json:"args"`
}
