package handler

import (
	"net/http"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/service"
)

// AdminHandler serves the staff panel.
type AdminHandler struct {
	admin *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin *service.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// GetData handles GET /api/admin/data.
func (h *AdminHandler) GetData(w http.ResponseWriter, r *http.Request) {
	data, err := h.admin.Overview(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, data)
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, users)
}

// ChangePlan handles POST /api/admin/change-plan.
func (h *AdminHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePlanRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.admin.ChangePlan(r.Context(), req.UserID, req.Plan); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DisableUser handles POST /api/admin/disable-user.
func (h *AdminHandler) DisableUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserIDRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	if err := h.admin.DisableUser(r.Context(), req.UserID); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Refund handles POST /api/admin/refund-payment.
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req domain.RefundRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	id, err := h.admin.Refund(r.Context(), req.PaymentIntentID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "refundId": id})
}

// ResetPlans handles POST /api/admin/reset-plans.
func (h *AdminHandler) ResetPlans(w http.ResponseWriter, r *http.Request) {
	n, err := h.admin.ResetPlans(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": n})
}
