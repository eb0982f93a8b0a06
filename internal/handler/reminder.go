package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/service"
)

// ReminderHandler triggers reminder runs and reports on them. It serves both
// the cron routes and the admin panel.
type ReminderHandler struct {
	reminders *service.ReminderService
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(reminders *service.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders}
}

// Run handles GET|POST /api/cron/check-reminders and POST /api/admin/reminders/run.
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	// A client hanging up must not abort a half-dispatched batch.
	ctx := context.WithoutCancel(r.Context())

	summary, err := h.reminders.Run(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		JSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		Error(w, domain.ErrInternal("reminder run failed", err))
		return
	}
	JSON(w, http.StatusOK, summary)
}

// Status handles GET /api/cron/status and GET /api/admin/reminders/status.
func (h *ReminderHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.reminders.Status(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, st)
}

// Logs handles GET /api/admin/reminders/logs?limit=N.
func (h *ReminderHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Error(w, domain.ErrBadRequest("limit must be a positive integer"))
			return
		}
		limit = n
	}

	logs, err := h.reminders.RecentLogs(r.Context(), limit)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, logs)
}
