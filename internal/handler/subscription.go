package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/service"
)

// SubscriptionHandler serves the caller's tracked subscriptions, workspace and account.
type SubscriptionHandler struct {
	svc *service.SubscriptionService
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(svc *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc}
}

// List handles GET /api/subscriptions.
func (h *SubscriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	subs, err := h.svc.List(r.Context(), uid)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, subs)
}

// Create handles POST /api/subscriptions.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.SubscriptionRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	sub, err := h.svc.Create(r.Context(), uid, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, sub)
}

// Update handles PUT /api/subscriptions/{id}.
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.SubscriptionRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	sub, err := h.svc.Update(r.Context(), uid, chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, sub)
}

// Delete handles DELETE /api/subscriptions/{id}.
func (h *SubscriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListCategories handles GET /api/categories.
func (h *SubscriptionHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	cats, err := h.svc.ListCategories(r.Context(), uid)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, cats)
}

// CreateCategory handles POST /api/categories.
func (h *SubscriptionHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.CategoryRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	cat, err := h.svc.CreateCategory(r.Context(), uid, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, cat)
}

// DeleteCategory handles DELETE /api/categories/{id}.
func (h *SubscriptionHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListInvites handles GET /api/team/invites.
func (h *SubscriptionHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	invites, err := h.svc.ListInvites(r.Context(), uid)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, invites)
}

// Invite handles POST /api/team/invites.
func (h *SubscriptionHandler) Invite(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.InviteRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	inv, err := h.svc.Invite(r.Context(), uid, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, inv)
}

// RevokeInvite handles DELETE /api/team/invites/{id}.
func (h *SubscriptionHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RevokeInvite(r.Context(), uid, chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Account handles GET /api/account.
func (h *SubscriptionHandler) Account(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	acct, err := h.svc.Account(r.Context(), uid)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, acct)
}

// UpdateAccount handles PUT /api/account.
func (h *SubscriptionHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateAccountRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	acct, err := h.svc.UpdateAccount(r.Context(), uid, &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, acct)
}
