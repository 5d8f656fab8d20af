package domain

// MinedPattern is the transient output of trace mining. It is never persisted
// directly; it exists only to build a playbook or a mining report, and is
// owned by the caller.
type MinedPattern struct {
	CaseType        string            `json:"case_type"`
	Scope           map[string]string `json:"scope,omitempty"`
	StatePattern    []string          `json:"state_pattern,omitempty"`
	ActionPattern   []string          `json:"action_pattern,omitempty"`
	EvidencePattern []string          `json:"evidence_pattern,omitempty"`
	TraceLength     int               `json:"trace_length"`
	ActionCount     int               `json:"action_count"`
}

// Empty reports whether mining found nothing reusable: no states, no
// completed actions, no evidence sources.
func (p *MinedPattern) Empty() bool {
	if p == nil {
		return true
	}
	return len(p.StatePattern) == 0 && len(p.ActionPattern) == 0 && len(p.EvidencePattern) == 0
}
