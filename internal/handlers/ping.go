package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/utils"
)

// Check проверяет доступность внешней зависимости.
type Check func(ctx context.Context) error

// HealthHandler отвечает на /api/ping и проверяет хранилища процесса.
type HealthHandler struct {
	Checks  map[string]Check
	Logger  *log.Logger
	Timeout time.Duration
}

// NewHealthHandler создаёт новый экземпляр HealthHandler.
func NewHealthHandler(checks map[string]Check, logger *log.Logger, timeout time.Duration) *HealthHandler {
	return &HealthHandler{Checks: checks, Logger: logger, Timeout: timeout}
}

// Ping обрабатывает GET запрос к /api/ping
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid method, only GET is allowed")
		return
	}

	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			h.Logger.Printf("health check %s failed: %v", name, err)
			utils.SendErrorResponse(w, http.StatusServiceUnavailable, name+" is unavailable")
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, "ok"); err != nil {
		h.Logger.Println(err)
	}
}
