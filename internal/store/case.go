package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseStore is a read-only view over the workflow engine's case tables.
type CaseStore struct {
	db *pgxpool.Pool
}

func NewCaseStore(db *pgxpool.Pool) *CaseStore {
	return &CaseStore{db: db}
}

func (s *CaseStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CaseRecord, error) {
	c := &domain.CaseRecord{}
	err := s.db.QueryRow(ctx,
		`SELECT id, case_type, scope, status, created_at
		 FROM cases WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.CaseType, &c.Scope, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *CaseStore) ListEvents(ctx context.Context, caseID uuid.UUID) ([]domain.TraceEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, case_id, seq, event_type, ref_type, ref_id, meta, created_at
		 FROM case_events WHERE case_id = $1
		 ORDER BY seq`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.TraceEvent
	for rows.Next() {
		var ev domain.TraceEvent
		if err := rows.Scan(&ev.ID, &ev.CaseID, &ev.Seq, &ev.EventType,
			&ev.RefType, &ev.RefID, &ev.Meta, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trace event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *CaseStore) ListActions(ctx context.Context, caseID uuid.UUID) ([]domain.ActionRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, case_id, action_type, args, state, risk_level, created_at
		 FROM case_actions WHERE case_id = $1
		 ORDER BY created_at, id`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []domain.ActionRecord
	for rows.Next() {
		var a domain.ActionRecord
		if err := rows.Scan(&a.ID, &a.CaseID, &a.Type, &a.Args,
			&a.State, &a.RiskLevel, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *CaseStore) ListResolved(ctx context.Context, caseType string, limit int) ([]domain.CaseRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, case_type, scope, status, created_at
		 FROM cases
		 WHERE status = $1 AND ($2 = '' OR case_type = $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		domain.CaseStatusResolved, caseType, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []domain.CaseRecord
	for rows.Next() {
		var c domain.CaseRecord
		if err := rows.Scan(&c.ID, &c.CaseType, &c.Scope, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan case row: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.CaseStore = (*CaseStore)(nil)
