package handler

import (
	"net/http"

	"github.com/rekur/backend/internal/domain"
)

// PlanProducts are the provider product ids that purchase a tier.
type PlanProducts struct {
	StripePriceIDs  []string `json:"stripePriceIds,omitempty"`
	LemonVariantIDs []string `json:"lemonVariantIds,omitempty"`
}

type planView struct {
	domain.Plan
	PlanProducts
}

// PlansHandler serves the pricing table.
type PlansHandler struct {
	products map[domain.PlanTier]PlanProducts
}

// NewPlansHandler creates a new PlansHandler.
func NewPlansHandler(products map[domain.PlanTier]PlanProducts) *PlansHandler {
	return &PlansHandler{products: products}
}

// List handles GET /api/plans.
func (h *PlansHandler) List(w http.ResponseWriter, r *http.Request) {
	plans := domain.AvailablePlans()
	out := make([]planView, len(plans))
	for i, p := range plans {
		out[i] = planView{Plan: p, PlanProducts: h.products[p.ID]}
	}
	JSON(w, http.StatusOK, out)
}
