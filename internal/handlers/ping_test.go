package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthHandler_Ping(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		method string
		checks map[string]Check
		want   int
	}{
		{name: "no checks", method: http.MethodGet, want: http.StatusOK},
		{name: "all healthy", method: http.MethodGet, checks: map[string]Check{"postgres": ok, "redis": ok}, want: http.StatusOK},
		{name: "redis down", method: http.MethodGet, checks: map[string]Check{"postgres": ok, "redis": down}, want: http.StatusServiceUnavailable},
		{name: "wrong method", method: http.MethodPost, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, logger, time.Second)
			rec := httptest.NewRecorder()
			h.Ping(rec, httptest.NewRequest(tt.method, "/api/ping", nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHealthHandler_ReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return errors.New("timeout") },
	}, log.New(io.Discard, "", 0), time.Second)

	rec := httptest.NewRecorder()
	h.Ping(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Contains(t, rec.Body.String(), "postgres is unavailable")
}
