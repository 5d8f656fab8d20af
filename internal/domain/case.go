package domain

import (
	"time"

	"github.com/google/uuid"
)

// CaseStatus is the workflow status of a case. Case lifecycle is owned by
// the workflow engine; this subsystem only reads it.
type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "OPEN"
	CaseStatusInProgress CaseStatus = "IN_PROGRESS"
	CaseStatusResolved   CaseStatus = "RESOLVED"
	CaseStatusClosed     CaseStatus = "CLOSED"
)

// CaseRecord is the metadata view of a workflow case.
type CaseRecord struct {
	ID        uuid.UUID         `json:"id"`
	CaseType  string            `json:"case_type"`
	Scope     map[string]string `json:"scope"`
	Status    CaseStatus        `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
}

// EventType tags entries in a case's audit trail.
type EventType string

const (
	EventStateEntered EventType = "STATE_ENTERED"
	EventToolResult   EventType = "TOOL_RESULT"
	EventActionTaken  EventType = "ACTION_TAKEN"
	EventNote         EventType = "NOTE"
)

// TraceEvent is one entry in a case's ordered audit trail.
type TraceEvent struct {
	ID        uuid.UUID      `json:"id"`
	CaseID    uuid.UUID      `json:"case_id"`
	Seq       int            `json:"seq"`
	EventType EventType      `json:"event_type"`
	RefType   string         `json:"ref_type,omitempty"`
	RefID     string         `json:"ref_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActionState is the terminal or in-flight state of a case action.
type ActionState string

const (
	ActionStateProposed  ActionState = "PROPOSED"
	ActionStatePending   ActionState = "PENDING"
	ActionStateExecuting ActionState = "EXECUTING"
	ActionStateCompleted ActionState = "COMPLETED"
	ActionStateFailed    ActionState = "FAILED"
)

// ActionRecord is one action taken (or proposed) during a case.
type ActionRecord struct {
	ID        uuid.UUID      `json:"id"`
	CaseID    uuid.UUID      `json:"case_id"`
	Type      string         `json:"type"`
	Args      map[string]any `json:"args,omitempty"`
	State     ActionState    `json:"state"`
	RiskLevel string         `json:"risk_level,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CaseContext is the query-side view of a case used when evaluating whether
// a playbook applies to it.
type CaseContext struct {
	CaseType         string            `json:"case_type"`
	Scope            map[string]string `json:"scope,omitempty"`
	AvailableSources []string          `json:"available_sources,omitempty"`
}
