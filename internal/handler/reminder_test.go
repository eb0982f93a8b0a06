package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rekur/backend/internal/service"
	"github.com/stretchr/testify/assert"
)

type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, nil
}

func TestReminderRunConflictWhileLocked(t *testing.T) {
	svc := service.NewReminderService(nil, nil, nil, heldLock{}, nil, nil, nil, service.ReminderSettings{})
	h := NewReminderHandler(svc)

	rec := httptest.NewRecorder()
	h.Run(rec, httptest.NewRequest(http.MethodPost, "/api/cron/check-reminders", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReminderLogsRejectsBadLimit(t *testing.T) {
	h := NewReminderHandler(service.NewReminderService(nil, nil, nil, nil, nil, nil, nil, service.ReminderSettings{}))

	for _, q := range []string{"abc", "0", "-3"} {
		rec := httptest.NewRecorder()
		h.Logs(rec, httptest.NewRequest(http.MethodGet, "/api/admin/reminders/logs?limit="+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}
