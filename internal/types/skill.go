package types

// SkillInfo describes a skill registered with a domain agent.
type SkillInfo struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}
