package handlers

import (
	"errors"
	"net/http"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/flightdeck/precedent/internal/service"
	"github.com/google/uuid"
)

type EvaluatorHandler struct {
	svc *service.EvaluatorService
}

func NewEvaluatorHandler(svc *service.EvaluatorService) *EvaluatorHandler {
	return &EvaluatorHandler{svc: svc}
}

type evaluateMatchRequest struct {
	PlaybookID       string            `json:"playbook_id" validate:"required,uuid"`
	CaseType         string            `json:"case_type" validate:"required"`
	Scope            map[string]string `json:"scope"`
	AvailableSources []string          `json:"available_sources"`
}

// EvaluateMatch checks whether a playbook plausibly applies to a case.
// POST /v1/evaluation/match
func (h *EvaluatorHandler) EvaluateMatch(w http.ResponseWriter, r *http.Request) {
	var req evaluateMatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	playbookID, err := uuid.Parse(req.PlaybookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playbook_id")
		return
	}

	caseCtx := domain.CaseContext{
		CaseType:         req.CaseType,
		Scope:            req.Scope,
		AvailableSources: req.AvailableSources,
	}

	result, err := h.svc.EvaluateMatch(r.Context(), playbookID, caseCtx)
	if err != nil {
		if errors.Is(err, service.ErrPlaybookNotFound) {
			writeError(w, http.StatusNotFound, "playbook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to evaluate match")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type replayGateRequest struct {
	CaseType  string `json:"case_type" validate:"required"`
	CaseCount int    `json:"case_count" validate:"min=0"`
}

// ReplayGate answers whether the next case of a type must attempt reuse.
// POST /v1/evaluation/gate
func (h *EvaluatorHandler) ReplayGate(w http.ResponseWriter, r *http.Request) {
	var req replayGateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	use, err := h.svc.ShouldUsePlaybook(r.Context(), req.CaseType, req.CaseCount)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to evaluate replay gate")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"case_type":    req.CaseType,
		"use_playbook": use,
	})
}

type evaluateOutcomeRequest struct {
	PlaybookID    string   `json:"playbook_id" validate:"required,uuid"`
	CaseID        string   `json:"case_id" validate:"required,uuid"`
	ActualActions []string `json:"actual_actions"`
	Success       *bool    `json:"success" validate:"required"`
}

// EvaluateOutcome reconciles a playbook's prediction with what happened and
// records the usage outcome.
// POST /v1/evaluation/outcome
func (h *EvaluatorHandler) EvaluateOutcome(w http.ResponseWriter, r *http.Request) {
	var req evaluateOutcomeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	playbookID, err := uuid.Parse(req.PlaybookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid playbook_id")
		return
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid case_id")
		return
	}

	result, err := h.svc.EvaluateOutcome(r.Context(), playbookID, caseID, req.ActualActions, *req.Success)
	if err != nil {
		if errors.Is(err, service.ErrPlaybookNotFound) {
			writeError(w, http.StatusNotFound, "playbook not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to evaluate outcome")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
