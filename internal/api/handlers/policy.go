package handlers

import (
	"net/http"
	"time"

	"github.com/flightdeck/precedent/internal/domain"
)

// PolicyHandler exposes read-only views of the externally-owned policy table.
type PolicyHandler struct {
	policyStore domain.PolicyStore
}

func NewPolicyHandler(policyStore domain.PolicyStore) *PolicyHandler {
	return &PolicyHandler{policyStore: policyStore}
}

type policyResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ListActive returns the policies currently in effect.
// GET /v1/policies
func (h *PolicyHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policyStore.ListActive(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list policies")
		return
	}

	out := make([]policyResponse, len(policies))
	for i, p := range policies {
		out[i] = policyResponse{
			ID:            p.ID.String(),
			Name:          p.Name,
			Description:   p.Description,
			EffectiveFrom: p.EffectiveFrom.Format(time.RFC3339),
			CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		}
		if p.EffectiveTo != nil {
			out[i].EffectiveTo = p.EffectiveTo.Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"policies": out,
		"count":    len(out),
	})
}
