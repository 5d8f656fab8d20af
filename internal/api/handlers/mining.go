package handlers

import (
	"net/http"
	"strconv"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/flightdeck/precedent/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type MiningHandler struct {
	svc *service.MinerService
}

func NewMiningHandler(svc *service.MinerService) *MiningHandler {
	return &MiningHandler{svc: svc}
}

type minedPatternResponse struct {
	CaseType        string            `json:"case_type"`
	Scope           map[string]string `json:"scope"`
	StatePattern    []string          `json:"state_pattern"`
	ActionPattern   []string          `json:"action_pattern"`
	EvidencePattern []string          `json:"evidence_pattern"`
	TraceLength     int               `json:"trace_length"`
	ActionCount     int               `json:"action_count"`
}

// MineCase extracts the reusable pattern from a single case's audit trail.
// GET /v1/mining/cases/:id
func (h *MiningHandler) MineCase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid case id")
		return
	}

	pattern, err := h.svc.MineCase(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mine case")
		return
	}
	if pattern == nil {
		writeError(w, http.StatusNotFound, "case not found")
		return
	}

	writeJSON(w, http.StatusOK, toMinedPatternResponse(pattern))
}

// MineSuccessful mines the recent resolved cases, optionally filtered by
// case type, for offline pattern analysis.
// GET /v1/mining/successful?case_type=&limit=
func (h *MiningHandler) MineSuccessful(w http.ResponseWriter, r *http.Request) {
	caseType := r.URL.Query().Get("case_type")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	patterns, err := h.svc.MineSuccessfulCases(r.Context(), caseType, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mine cases")
		return
	}

	out := make([]minedPatternResponse, len(patterns))
	for i := range patterns {
		out[i] = toMinedPatternResponse(&patterns[i])
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patterns": out,
		"count":    len(out),
	})
}

func toMinedPatternResponse(p *domain.MinedPattern) minedPatternResponse {
	resp := minedPatternResponse{
		CaseType:        p.CaseType,
		Scope:           p.Scope,
		StatePattern:    p.StatePattern,
		ActionPattern:   p.ActionPattern,
		EvidencePattern: p.EvidencePattern,
		TraceLength:     p.TraceLength,
		ActionCount:     p.ActionCount,
	}

	if resp.Scope == nil {
		resp.Scope = map[string]string{}
	}
	if resp.StatePattern == nil {
		resp.StatePattern = []string{}
	}
	if resp.ActionPattern == nil {
		resp.ActionPattern = []string{}
	}
	if resp.EvidencePattern == nil {
		resp.EvidencePattern = []string{}
	}

	return resp
}
