package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlaybookStore persists playbooks and their case links.
type PlaybookStore interface {
	Create(ctx context.Context, p *Playbook) error
	// CreateWithCaseLink creates the playbook and links it to its source case
	// in a single transaction; partial creation is never observable.
	CreateWithCaseLink(ctx context.Context, p *Playbook, caseID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Playbook, error)
	// GetByCaseType returns all playbooks whose pattern case type matches
	// exactly, newest first.
	GetByCaseType(ctx context.Context, caseType string) ([]Playbook, error)
	// RecordUse links the case (idempotently) and applies the compound stat
	// update atomically: use_count, success_count, success_rate, and
	// last_used_at only on success.
	RecordUse(ctx context.Context, id uuid.UUID, caseID uuid.UUID, success bool) error
}

// CaseStore reads case metadata, audit trails, and action records. Cases are
// written by the workflow engine; this subsystem never mutates them.
type CaseStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*CaseRecord, error)
	// ListEvents returns the case's audit trail ordered by sequence number.
	ListEvents(ctx context.Context, caseID uuid.UUID) ([]TraceEvent, error)
	// ListActions returns the case's action records in creation order.
	ListActions(ctx context.Context, caseID uuid.UUID) ([]ActionRecord, error)
	// ListResolved returns resolved cases newest first, optionally filtered
	// by case type (empty string matches all), bounded by limit.
	ListResolved(ctx context.Context, caseType string, limit int) ([]CaseRecord, error)
}

// PolicyStore reads currently-active policies for snapshot building and
// operator review.
type PolicyStore interface {
	// ListActive returns all policies in effect at the given instant.
	ListActive(ctx context.Context, now time.Time) ([]Policy, error)
	// ListActiveDescriptions returns the descriptive texts of all policies
	// active at the given instant.
	ListActiveDescriptions(ctx context.Context, now time.Time) ([]string, error)
}
