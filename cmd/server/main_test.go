package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rekur/backend/internal/app"
	"github.com/rekur/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRequiresCronSecret(t *testing.T) {
	router := newRouter(&app.App{Config: &config.Config{CronSecret: "scrape-me"}})

	get := func(auth string) int {
		r := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if auth != "" {
			r.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, get(""))
	assert.Equal(t, http.StatusUnauthorized, get("Bearer wrong"))
	assert.Equal(t, http.StatusOK, get("Bearer scrape-me"))
}
