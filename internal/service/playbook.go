package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/flightdeck/precedent/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultMatchLimit bounds FindMatching when the caller passes none.
	DefaultMatchLimit = 10

	// statUpdateRetries bounds retry attempts on conflicting stat updates.
	statUpdateRetries = 3

	// matchScoreNoConstraints is the neutral match score for playbooks whose
	// pattern declares no scope at all: nothing to violate, nothing to confirm.
	matchScoreNoConstraints = 0.5
)

var (
	ErrPlaybookNotFound       = errors.New("playbook not found")
	ErrNothingToMine          = errors.New("case has no minable trace or action data")
	ErrPatternCaseTypeMissing = errors.New("pattern case_type is required")
	ErrActionStepTypeMissing  = errors.New("action step type is required")
	ErrDomainInvalid          = errors.New("unknown aging domain")
	ErrStatsInvalid           = errors.New("success_count cannot exceed use_count")
)

// PlaybookService creates, ranks, and records usage of playbooks.
type PlaybookService struct {
	playbookStore domain.PlaybookStore
	policyStore   domain.PolicyStore
	miner         *MinerService
	logger        *zap.Logger

	now func() time.Time
}

func NewPlaybookService(
	playbookStore domain.PlaybookStore,
	policyStore domain.PolicyStore,
	miner *MinerService,
	logger *zap.Logger,
) *PlaybookService {
	return &PlaybookService{
		playbookStore: playbookStore,
		policyStore:   policyStore,
		miner:         miner,
		logger:        logger,
		now:           time.Now,
	}
}

// CreatePlaybookInput carries the fields for a direct playbook creation.
// Domain, PolicySnapshot, and InitialStats are optional: domain is inferred,
// the snapshot captured from currently-active policies, and stats start zeroed.
type CreatePlaybookInput struct {
	Name           string
	Pattern        domain.PlaybookPattern
	ActionTemplate domain.ActionTemplate
	Domain         domain.AgingDomain
	PolicySnapshot []string
	InitialStats   *domain.PlaybookStats
}

func (s *PlaybookService) CreatePlaybook(ctx context.Context, input CreatePlaybookInput) (uuid.UUID, error) {
	if input.Pattern.CaseType == "" {
		return uuid.Nil, ErrPatternCaseTypeMissing
	}
	for i := range input.ActionTemplate.ActionSequence {
		step := &input.ActionTemplate.ActionSequence[i]
		if step.Type == "" {
			return uuid.Nil, ErrActionStepTypeMissing
		}
		if step.Args == nil {
			step.Args = map[string]any{}
		}
	}

	d := input.Domain
	if d == "" {
		d = InferDomain(input.Pattern)
	} else if !domain.ValidAgingDomain(string(d)) {
		return uuid.Nil, ErrDomainInvalid
	}

	snapshot := input.PolicySnapshot
	if snapshot == nil {
		var err error
		snapshot, err = s.GetCurrentPolicySnapshot(ctx)
		if err != nil {
			return uuid.Nil, err
		}
	}

	var stats domain.PlaybookStats
	if input.InitialStats != nil {
		stats = *input.InitialStats
		if stats.SuccessCount > stats.UseCount || stats.UseCount < 0 || stats.SuccessCount < 0 {
			return uuid.Nil, ErrStatsInvalid
		}
	}
	if stats.UseCount > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.UseCount)
	} else {
		stats.SuccessRate = 0
	}

	name := input.Name
	if name == "" {
		name = defaultPlaybookName(input.Pattern.CaseType, s.now())
	}

	p := &domain.Playbook{
		Name:           name,
		Pattern:        input.Pattern,
		ActionTemplate: input.ActionTemplate,
		Stats:          stats,
		Domain:         d,
		PolicySnapshot: snapshot,
	}

	if err := s.playbookStore.Create(ctx, p); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("created playbook",
		zap.String("playbook_id", p.ID.String()),
		zap.String("case_type", p.Pattern.CaseType),
		zap.String("domain", string(d)))

	return p.ID, nil
}

// CreateFromCase mines a case and mints a playbook from the result, linked to
// its source case in one transaction. A freshly mined playbook starts with one
// use and one success: it is, by construction, drawn from a single success.
func (s *PlaybookService) CreateFromCase(ctx context.Context, caseID uuid.UUID, name string) (uuid.UUID, error) {
	mined, err := s.miner.MineCase(ctx, caseID)
	if err != nil {
		return uuid.Nil, err
	}
	if mined.Empty() {
		return uuid.Nil, ErrNothingToMine
	}

	scopeKeys := make([]string, 0, len(mined.Scope))
	for k := range mined.Scope {
		scopeKeys = append(scopeKeys, k)
	}
	sort.Strings(scopeKeys)

	pattern := domain.PlaybookPattern{
		CaseType:        mined.CaseType,
		ScopeKeys:       scopeKeys,
		ScopeValues:     mined.Scope,
		StatePattern:    mined.StatePattern,
		EvidenceSources: mined.EvidencePattern,
	}

	steps := make([]domain.ActionStep, len(mined.ActionPattern))
	for i, actionType := range mined.ActionPattern {
		steps[i] = domain.ActionStep{Type: actionType, Args: map[string]any{}}
	}

	snapshot, err := s.GetCurrentPolicySnapshot(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	if name == "" {
		name = defaultPlaybookName(mined.CaseType, s.now())
	}

	p := &domain.Playbook{
		Name:           name,
		Pattern:        pattern,
		ActionTemplate: domain.ActionTemplate{ActionSequence: steps},
		Stats:          domain.PlaybookStats{UseCount: 1, SuccessCount: 1, SuccessRate: 1.0},
		Domain:         InferDomain(pattern),
		PolicySnapshot: snapshot,
	}

	if err := s.playbookStore.CreateWithCaseLink(ctx, p, caseID); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info("mined playbook from case",
		zap.String("playbook_id", p.ID.String()),
		zap.String("case_id", caseID.String()),
		zap.String("case_type", mined.CaseType),
		zap.Int("actions", len(steps)))

	return p.ID, nil
}

func defaultPlaybookName(caseType string, now time.Time) string {
	return fmt.Sprintf("%s_playbook_%d", caseType, now.Unix())
}

// FindMatching ranks stored playbooks against a new case. Candidates are
// fetched by exact case type, scored on scope match and aged relevance, and
// ranked by the product of the two. Candidates arrive newest-first from the
// store and the sort is stable, so equal scores resolve to the most recently
// created playbook.
func (s *PlaybookService) FindMatching(ctx context.Context, caseType string, scope map[string]string, limit int) ([]domain.RankedPlaybook, error) {
	if limit <= 0 {
		limit = DefaultMatchLimit
	}

	candidates, err := s.playbookStore.GetByCaseType(ctx, caseType)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []domain.RankedPlaybook{}, nil
	}

	current, err := s.GetCurrentPolicySnapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ranked := make([]domain.RankedPlaybook, 0, len(candidates))
	for i := range candidates {
		p := candidates[i]
		r := domain.RankedPlaybook{
			Playbook:        p,
			MatchScore:      scopeMatchScore(p.Pattern, scope),
			DecayFactor:     ComputeDecayFactor(p.CreatedAt, p.LastUsedAt, p.Domain, now),
			PolicyAlignment: ComputePolicyAlignment(p.PolicySnapshot, current),
		}
		r.AgedScore = ComputeAgedScore(p.Stats.SuccessRate, r.DecayFactor, r.PolicyAlignment, p.Stats.UseCount)
		r.Score = r.MatchScore * r.AgedScore
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// scopeMatchScore compares a pattern's scope against a query scope.
// Value-level matching when the pattern recorded values; key presence for
// legacy patterns that only recorded keys; neutral when unconstrained.
func scopeMatchScore(pattern domain.PlaybookPattern, scope map[string]string) float64 {
	if len(pattern.ScopeValues) > 0 {
		matched := 0
		for k, v := range pattern.ScopeValues {
			if scope[k] == v {
				matched++
			}
		}
		return float64(matched) / float64(len(pattern.ScopeValues))
	}

	if len(pattern.ScopeKeys) == 0 {
		return matchScoreNoConstraints
	}

	matched := 0
	for _, k := range pattern.ScopeKeys {
		if _, ok := scope[k]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(pattern.ScopeKeys))
}

func (s *PlaybookService) GetPlaybook(ctx context.Context, id uuid.UUID) (*domain.Playbook, error) {
	p, err := s.playbookStore.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPlaybookNotFound
		}
		return nil, err
	}
	return p, nil
}

// RecordUsage links the case to the playbook (idempotently) and applies the
// atomic stat update, retrying a bounded number of times when the persistence
// layer reports a concurrent-update conflict. last_used_at moves only on
// success: failed applications must not refresh a bad playbook's clock.
func (s *PlaybookService) RecordUsage(ctx context.Context, playbookID, caseID uuid.UUID, success bool) error {
	var err error
	for attempt := 1; attempt <= statUpdateRetries; attempt++ {
		err = s.playbookStore.RecordUse(ctx, playbookID, caseID, success)
		if !errors.Is(err, store.ErrConflict) {
			break
		}
		s.logger.Debug("stat update conflict, retrying",
			zap.String("playbook_id", playbookID.String()),
			zap.Int("attempt", attempt))
	}
	if errors.Is(err, store.ErrNotFound) {
		return ErrPlaybookNotFound
	}
	return err
}

// GetCurrentPolicySnapshot hashes all currently-active policy texts into the
// sorted snapshot used as the alignment baseline for ranking done "now".
func (s *PlaybookService) GetCurrentPolicySnapshot(ctx context.Context) ([]string, error) {
	texts, err := s.policyStore.ListActiveDescriptions(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return SnapshotPolicies(texts), nil
}
