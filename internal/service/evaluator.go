package service

import (
	"context"
	"fmt"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ReplayGateCaseCount is the number of precedent-free cases of a type
	// after which the next case must attempt playbook reuse.
	ReplayGateCaseCount = 3

	// matchThreshold is the overall score above which a playbook is
	// considered a plausible match for a case.
	matchThreshold = 0.5
)

// EvaluatorService answers "should this playbook be trusted for this case"
// before application, and reconciles predicted vs actual actions afterwards.
type EvaluatorService struct {
	manager *PlaybookService
	logger  *zap.Logger
}

func NewEvaluatorService(manager *PlaybookService, logger *zap.Logger) *EvaluatorService {
	return &EvaluatorService{
		manager: manager,
		logger:  logger,
	}
}

// MatchResult reports whether a playbook plausibly applies to a case context,
// with the sub-scores and the playbook's raw stats for the caller's judgment.
type MatchResult struct {
	PlaybookID         uuid.UUID            `json:"playbook_id"`
	Match              bool                 `json:"match"`
	MismatchReason     string               `json:"mismatch_reason,omitempty"`
	ScopeScore         float64              `json:"scope_score"`
	EvidenceScore      float64              `json:"evidence_score"`
	OverallScore       float64              `json:"overall_score"`
	RecommendedActions []domain.ActionStep  `json:"recommended_actions"`
	Stats              domain.PlaybookStats `json:"stats"`
}

// EvaluateMatch checks whether a playbook plausibly applies to a case.
// Scope and evidence are scored by key/source presence only — this is a
// coarser check than FindMatching's value-level ranking on purpose: the
// evaluator asks "is it plausible", the manager asks "is it the best fit".
func (s *EvaluatorService) EvaluateMatch(ctx context.Context, playbookID uuid.UUID, caseCtx domain.CaseContext) (*MatchResult, error) {
	p, err := s.manager.GetPlaybook(ctx, playbookID)
	if err != nil {
		return nil, err
	}

	result := &MatchResult{
		PlaybookID:         p.ID,
		RecommendedActions: p.ActionTemplate.ActionSequence,
		Stats:              p.Stats,
	}
	if result.RecommendedActions == nil {
		result.RecommendedActions = []domain.ActionStep{}
	}

	if p.Pattern.CaseType != caseCtx.CaseType {
		result.MismatchReason = fmt.Sprintf("case type mismatch: playbook %q vs case %q",
			p.Pattern.CaseType, caseCtx.CaseType)
		return result, nil
	}

	if len(p.Pattern.ScopeKeys) == 0 {
		result.ScopeScore = 1.0
	} else {
		present := 0
		for _, k := range p.Pattern.ScopeKeys {
			if _, ok := caseCtx.Scope[k]; ok {
				present++
			}
		}
		result.ScopeScore = float64(present) / float64(len(p.Pattern.ScopeKeys))
	}

	result.EvidenceScore = presenceFraction(p.Pattern.EvidenceSources, caseCtx.AvailableSources)
	result.OverallScore = (result.ScopeScore + result.EvidenceScore) / 2
	result.Match = result.OverallScore > matchThreshold

	return result, nil
}

// presenceFraction scores how many declared entries appear in the available
// set. No declarations means no constraints: 1.0.
func presenceFraction(declared, available []string) float64 {
	if len(declared) == 0 {
		return 1.0
	}

	availableSet := make(map[string]bool, len(available))
	for _, a := range available {
		availableSet[a] = true
	}

	present := 0
	for _, d := range declared {
		if availableSet[d] {
			present++
		}
	}
	return float64(present) / float64(len(declared))
}

// ShouldUsePlaybook is the replay gate: after three precedent-free cases of a
// type, the next one must attempt reuse if any playbook exists for it.
func (s *EvaluatorService) ShouldUsePlaybook(ctx context.Context, caseType string, caseCount int) (bool, error) {
	if caseCount < ReplayGateCaseCount {
		return false, nil
	}

	matches, err := s.manager.FindMatching(ctx, caseType, map[string]string{}, 1)
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// OutcomeResult reconciles a playbook's predicted action sequence against
// what actually happened once the case resolved.
type OutcomeResult struct {
	PlaybookID      uuid.UUID `json:"playbook_id"`
	CaseID          uuid.UUID `json:"case_id"`
	ExpectedActions []string  `json:"expected_actions"`
	ActualActions   []string  `json:"actual_actions"`
	ActionOverlap   float64   `json:"action_overlap"`
	Success         bool      `json:"success"`
}

// EvaluateOutcome compares expected vs actual action types and records the
// usage outcome on the playbook. Evaluation and bookkeeping are coupled: an
// outcome cannot be evaluated without counting as a use.
func (s *EvaluatorService) EvaluateOutcome(ctx context.Context, playbookID, caseID uuid.UUID, actualActions []string, success bool) (*OutcomeResult, error) {
	p, err := s.manager.GetPlaybook(ctx, playbookID)
	if err != nil {
		return nil, err
	}

	expected := make([]string, len(p.ActionTemplate.ActionSequence))
	for i, step := range p.ActionTemplate.ActionSequence {
		expected[i] = step.Type
	}

	result := &OutcomeResult{
		PlaybookID:      playbookID,
		CaseID:          caseID,
		ExpectedActions: expected,
		ActualActions:   actualActions,
		ActionOverlap:   actionOverlap(expected, actualActions),
		Success:         success,
	}
	if result.ActualActions == nil {
		result.ActualActions = []string{}
	}

	if err := s.manager.RecordUsage(ctx, playbookID, caseID, success); err != nil {
		return nil, err
	}

	s.logger.Info("evaluated playbook outcome",
		zap.String("playbook_id", playbookID.String()),
		zap.String("case_id", caseID.String()),
		zap.Float64("action_overlap", result.ActionOverlap),
		zap.Bool("success", success))

	return result, nil
}

// actionOverlap scores expected vs actual action type sets. Both empty is a
// perfect match; nothing expected but actions taken is harmless (0.5);
// actions expected but none taken is a miss (0.0); otherwise Jaccard.
func actionOverlap(expected, actual []string) float64 {
	if len(expected) == 0 && len(actual) == 0 {
		return 1.0
	}
	if len(expected) == 0 {
		return 0.5
	}
	if len(actual) == 0 {
		return 0.0
	}

	expectedSet := make(map[string]bool, len(expected))
	for _, e := range expected {
		expectedSet[e] = true
	}

	union := len(expectedSet)
	intersection := 0
	seen := make(map[string]bool, len(actual))
	for _, a := range actual {
		if seen[a] {
			continue
		}
		seen[a] = true
		if expectedSet[a] {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}
