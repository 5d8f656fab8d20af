package domain

import (
	"time"

	"github.com/google/uuid"
)

// AgingDomain classifies a playbook for decay purposes. It is inferred once
// at creation and never recomputed; each domain carries a fixed half-life.
type AgingDomain string

const (
	DomainWeather     AgingDomain = "weather"
	DomainOperational AgingDomain = "operational"
	DomainCustoms     AgingDomain = "customs"
)

// ValidAgingDomain checks if the given string is a known aging domain.
func ValidAgingDomain(s string) bool {
	switch AgingDomain(s) {
	case DomainWeather, DomainOperational, DomainCustoms:
		return true
	default:
		return false
	}
}

// ActionKind is the closed set of action types this system understands.
// Action steps keep their recorded type string; Kind classifies it so call
// sites never branch on raw strings.
type ActionKind string

const (
	ActionSetPosture  ActionKind = "SET_POSTURE"
	ActionIssueNotice ActionKind = "ISSUE_NOTICE"
	ActionHoldFlights ActionKind = "HOLD_FLIGHTS"
	ActionReleaseHold ActionKind = "RELEASE_HOLD"
	ActionFileReport  ActionKind = "FILE_REPORT"
	ActionEscalate    ActionKind = "ESCALATE"

	// ActionOpaque covers action types recorded by other systems that this
	// one replays without interpreting.
	ActionOpaque ActionKind = "OPAQUE"
)

// ActionStep is one entry in a playbook's action sequence.
type ActionStep struct {
	Type string         `json:"type"`
	Args map[string]any `json:"args"`
}

// Kind maps the step's recorded type onto the known action set.
func (s ActionStep) Kind() ActionKind {
	switch ActionKind(s.Type) {
	case ActionSetPosture, ActionIssueNotice, ActionHoldFlights,
		ActionReleaseHold, ActionFileReport, ActionEscalate:
		return ActionKind(s.Type)
	default:
		return ActionOpaque
	}
}

// ActionTemplate holds the ordered actions a playbook recommends.
type ActionTemplate struct {
	ActionSequence []ActionStep `json:"action_sequence"`
}

// PlaybookPattern is the matching-criteria portion of a playbook.
// ScopeValues may be absent on legacy records; matching then falls back to
// key presence over ScopeKeys.
type PlaybookPattern struct {
	CaseType        string            `json:"case_type"`
	ScopeKeys       []string          `json:"scope_keys,omitempty"`
	ScopeValues     map[string]string `json:"scope_values,omitempty"`
	StatePattern    []string          `json:"state_pattern,omitempty"`
	EvidenceSources []string          `json:"evidence_sources,omitempty"`
}

// PlaybookStats tracks how often a playbook has been applied and how often
// that application succeeded. SuccessCount never exceeds UseCount.
type PlaybookStats struct {
	UseCount     int     `json:"use_count"`
	SuccessCount int     `json:"success_count"`
	SuccessRate  float64 `json:"success_rate"`
}

// Playbook is a reusable precedent mined from a resolved case. Pattern,
// ActionTemplate, Domain and PolicySnapshot are immutable after creation;
// only Stats and LastUsedAt change, via usage recording.
type Playbook struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Pattern        PlaybookPattern `json:"pattern"`
	ActionTemplate ActionTemplate  `json:"action_template"`
	Stats          PlaybookStats   `json:"stats"`
	Domain         AgingDomain     `json:"domain"`
	PolicySnapshot []string        `json:"policy_snapshot"`
	CreatedAt      time.Time       `json:"created_at"`
	LastUsedAt     *time.Time      `json:"last_used_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// RankedPlaybook pairs a playbook with the scores computed for one query.
// Scores are a function of "now" and must not be cached across queries.
type RankedPlaybook struct {
	Playbook
	MatchScore      float64 `json:"match_score"`
	DecayFactor     float64 `json:"decay_factor"`
	PolicyAlignment float64 `json:"policy_alignment"`
	AgedScore       float64 `json:"aged_score"`
	Score           float64 `json:"score"`
}
