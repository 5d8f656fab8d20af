package service

import (
	"context"
	"errors"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/flightdeck/precedent/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMineLimit = 20

// Trace event metadata keys.
const (
	metaKeyState  = "state"
	metaKeySource = "source"
)

// MinerService extracts reusable behavioral patterns from case audit trails.
type MinerService struct {
	caseStore domain.CaseStore
	logger    *zap.Logger
}

func NewMinerService(caseStore domain.CaseStore, logger *zap.Logger) *MinerService {
	return &MinerService{
		caseStore: caseStore,
		logger:    logger,
	}
}

// MineCase extracts the state, action, and evidence patterns from a case's
// audit trail. A case with no record yields (nil, nil) — nothing to mine is
// not an error. Mining is read-only and idempotent.
func (s *MinerService) MineCase(ctx context.Context, caseID uuid.UUID) (*domain.MinedPattern, error) {
	c, err := s.caseStore.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	events, err := s.caseStore.ListEvents(ctx, caseID)
	if err != nil {
		return nil, err
	}

	actions, err := s.caseStore.ListActions(ctx, caseID)
	if err != nil {
		return nil, err
	}

	pattern := &domain.MinedPattern{
		CaseType:    c.CaseType,
		Scope:       c.Scope,
		TraceLength: len(events),
		ActionCount: len(actions),
	}

	seenSources := make(map[string]bool)
	for _, ev := range events {
		switch ev.EventType {
		case domain.EventStateEntered:
			state, _ := ev.Meta[metaKeyState].(string)
			if state == "" {
				// Older events carried the state name in ref_id.
				state = ev.RefID
			}
			if state == "" {
				continue
			}
			pattern.StatePattern = append(pattern.StatePattern, state)

		case domain.EventToolResult:
			source, _ := ev.Meta[metaKeySource].(string)
			if source == "" || seenSources[source] {
				continue
			}
			seenSources[source] = true
			pattern.EvidencePattern = append(pattern.EvidencePattern, source)
		}
	}

	for _, a := range actions {
		if a.State == domain.ActionStateCompleted {
			pattern.ActionPattern = append(pattern.ActionPattern, a.Type)
		}
	}

	return pattern, nil
}

// MineSuccessfulCases mines every resolved case (optionally filtered by case
// type, newest first, bounded by limit) and drops the ones with nothing to
// mine. Individual mining failures are logged and skipped, not fatal.
func (s *MinerService) MineSuccessfulCases(ctx context.Context, caseType string, limit int) ([]domain.MinedPattern, error) {
	if limit <= 0 {
		limit = defaultMineLimit
	}

	cases, err := s.caseStore.ListResolved(ctx, caseType, limit)
	if err != nil {
		return nil, err
	}

	patterns := make([]domain.MinedPattern, 0, len(cases))
	for _, c := range cases {
		p, err := s.MineCase(ctx, c.ID)
		if err != nil {
			s.logger.Warn("failed to mine case",
				zap.String("case_id", c.ID.String()),
				zap.Error(err))
			continue
		}
		if p.Empty() {
			continue
		}
		patterns = append(patterns, *p)
	}

	return patterns, nil
}
