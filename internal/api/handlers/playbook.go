package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/flightdeck/precedent/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type PlaybookHandler struct {
	svc *service.PlaybookService
}

func NewPlaybookHandler(svc *service.PlaybookService) *PlaybookHandler {
	return &PlaybookHandler{svc: svc}
}

type actionStepRequest struct {
	Type string         `json:"type" validate:"required"`
	Args map[string]any `json:"args"`
}

type createPlaybookRequest struct {
	Name            string              `json:"name"`
	CaseType        string              `json:"case_type" validate:"required"`
	ScopeKeys       []string            `json:"scope_keys"`
	ScopeValues     map[string]string   `json:"scope_values"`
	StatePattern    []string            `json:"state_pattern"`
	EvidenceSources []string            `json:"evidence_sources"`
	ActionSequence  []actionStepRequest `json:"action_sequence" validate:"dive"`
	Domain          string              `json:"domain" validate:"omitempty,oneof=weather operational customs"`
	PolicySnapshot  []string            `json:"policy_snapshot"`
	UseCount        *int                `json:"use_count" validate:"omitempty,min=0"`
	SuccessCount    *int                `json:"success_count" validate:"omitempty,min=0"`
}

// Create stores a playbook built by hand or by an external miner.
// POST /v1/playbooks
func (h *PlaybookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPlaybookRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	steps := make([]domain.ActionStep, len(req.ActionSequence))
	for i, s := range req.ActionSequence {
		steps[i] = domain.ActionStep{Type: s.Type, Args: s.Args}
	}

	input := service.CreatePlaybookInput{
		Name: req.Name,
		Pattern: domain.PlaybookPattern{
			CaseType:        req.CaseType,
			ScopeKeys:       req.ScopeKeys,
			ScopeValues:     req.ScopeValues,
			StatePattern:    req.StatePattern,
			EvidenceSources: req.EvidenceSources,
		},
		ActionTemplate: domain.ActionTemplate{ActionSequence: steps},
		Domain:         domain.AgingDomain(req.Domain),
		PolicySnapshot: req.PolicySnapshot,
	}

	if req.UseCount != nil || req.SuccessCount != nil {
		stats := domain.PlaybookStats{}
		if req.UseCount != nil {
			stats.UseCount = *req.UseCount
		}
		if req.SuccessCount != nil {
			stats.SuccessCount = *req.SuccessCount
		}
		input.InitialStats = &stats
	}

	id, err := h.svc.CreatePlaybook(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPatternCaseTypeMissing),
			errors.Is(err, service.ErrActionStepTypeMissing),
			errors.Is(err, service.ErrDomainInvalid),
			errors.Is(err, service.ErrStatsInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create playbook")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

type createFromCaseRequest struct {
	CaseID string `json:"case_id" validate:"required,uuid"`
	Name   string `json:"name"`
}

// CreateFromCase mines a resolved case into a new playbook.
// POST /v1/playbooks/from-case
func (h *PlaybookHandler) CreateFromCase(w http.ResponseWriter, r *http.Request) {
	var req createFromCaseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid case_id")
		return
	}

	id, err := h.svc.CreateFromCase(r.Context(), caseID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrNothingToMine) {
			writeError(w, http.StatusUnprocessableEntity, "case has nothing to mine")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create playbook from case")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

type matchPlaybooksRequest struct {
	CaseType string            `json:"case_type" validate:"required"`
	Scope    map[string]string `json:"scope"`
	Limit    int               `json:"limit" validate:"omitempty,min=1,max=100"`
}

type matchPlaybooksResponse struct {
	Playbooks []rankedPlaybookResponse `json:"playbooks"`
	Count     int                      `json:"count"`
}

type rankedPlaybookResponse struct {
	playbookResponse
	MatchScore      float64 `json:"match_score"`
	DecayFactor     float64 `json:"decay_factor"`
	PolicyAlignment float64 `json:"policy_alignment"`
	AgedScore       float64 `json:"aged_score"`
	Score           float64 `json:"score"`
}

// Match ranks stored playbooks against a new case.
// POST /v1/playbooks/match
func (h *PlaybookHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req matchPlaybooksRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ranked, err := h.svc.FindMatching(r.Context(), req.CaseType, req.Scope, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to match playbooks")
		return
	}

	response := matchPlaybooksResponse{
		Playbooks: make([]rankedPlaybookResponse, len(ranked)),
		Count:     len(ranked),
	}
	for i, rp := range ranked {
		response.Playbooks[i] = rankedPlaybookResponse{
			playbookResponse: toPlaybookResponse(&rp.Playbook),
			MatchScore:       rp.MatchScore,
			DecayFactor:      rp.DecayFactor,
			PolicyAlignment:  rp.PolicyAlignment,
			AgedScore:        rp.AgedScore,
			Score:            rp.Score,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// GetByID retrieves a specific playbook.
// GET /v1/playbooks/:id
func (h *PlaybookHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playbook id")
		return
	}

	p, err := h.svc.GetPlaybook(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPlaybookNotFound) {
			writeError(w, http.StatusNotFound, "playbook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get playbook")
		return
	}

	writeJSON(w, http.StatusOK, toPlaybookResponse(p))
}

type recordUsageRequest struct {
	CaseID  string `json:"case_id" validate:"required,uuid"`
	Success *bool  `json:"success" validate:"required"`
}

// RecordUsage records that a playbook was applied to a case.
// POST /v1/playbooks/:id/usage
func (h *PlaybookHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playbook id")
		return
	}

	var req recordUsageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid case_id")
		return
	}

	if err := h.svc.RecordUsage(r.Context(), id, caseID, *req.Success); err != nil {
		if errors.Is(err, service.ErrPlaybookNotFound) {
			writeError(w, http.StatusNotFound, "playbook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record usage")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// GetPolicySnapshot returns the current active-policy hash snapshot.
// GET /v1/policies/snapshot
func (h *PlaybookHandler) GetPolicySnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.GetCurrentPolicySnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute policy snapshot")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snapshot,
		"count":    len(snapshot),
	})
}

type actionStepResponse struct {
	Type string         `json:"type"`
	Kind string         `json:"kind"`
	Args map[string]any `json:"args"`
}

type playbookResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	CaseType        string               `json:"case_type"`
	ScopeKeys       []string             `json:"scope_keys"`
	ScopeValues     map[string]string    `json:"scope_values,omitempty"`
	StatePattern    []string             `json:"state_pattern"`
	EvidenceSources []string             `json:"evidence_sources"`
	ActionSequence  []actionStepResponse `json:"action_sequence"`
	UseCount        int                  `json:"use_count"`
	SuccessCount    int                  `json:"success_count"`
	SuccessRate     float64              `json:"success_rate"`
	Domain          string               `json:"domain"`
	PolicySnapshot  []string             `json:"policy_snapshot"`
	CreatedAt       string               `json:"created_at"`
	LastUsedAt      string               `json:"last_used_at,omitempty"`
	UpdatedAt       string               `json:"updated_at"`
}

// Helper to convert domain.Playbook to API response.
func toPlaybookResponse(p *domain.Playbook) playbookResponse {
	steps := make([]actionStepResponse, len(p.ActionTemplate.ActionSequence))
	for i, s := range p.ActionTemplate.ActionSequence {
		args := s.Args
		if args == nil {
			args = map[string]any{}
		}
		steps[i] = actionStepResponse{Type: s.Type, Kind: string(s.Kind()), Args: args}
	}

	resp := playbookResponse{
		ID:              p.ID.String(),
		Name:            p.Name,
		CaseType:        p.Pattern.CaseType,
		ScopeKeys:       p.Pattern.ScopeKeys,
		ScopeValues:     p.Pattern.ScopeValues,
		StatePattern:    p.Pattern.StatePattern,
		EvidenceSources: p.Pattern.EvidenceSources,
		ActionSequence:  steps,
		UseCount:        p.Stats.UseCount,
		SuccessCount:    p.Stats.SuccessCount,
		SuccessRate:     p.Stats.SuccessRate,
		Domain:          string(p.Domain),
		PolicySnapshot:  p.PolicySnapshot,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
	if p.LastUsedAt != nil {
		resp.LastUsedAt = p.LastUsedAt.Format(time.RFC3339)
	}

	// Ensure slices aren't nil for JSON
	if resp.ScopeKeys == nil {
		resp.ScopeKeys = []string{}
	}
	if resp.StatePattern == nil {
		resp.StatePattern = []string{}
	}
	if resp.EvidenceSources == nil {
		resp.EvidenceSources = []string{}
	}
	if resp.PolicySnapshot == nil {
		resp.PolicySnapshot = []string{}
	}

	return resp
}
