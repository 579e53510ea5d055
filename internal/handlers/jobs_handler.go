package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/notify"
	"github.com/senyabanana/vendor-engagement/internal/scheduler"
	"github.com/senyabanana/vendor-engagement/internal/utils"
)

// JobsHandler позволяет внешнему cron запустить ежедневные задачи синхронно.
type JobsHandler struct {
	Scheduler *scheduler.Scheduler
	Notifier  notify.Notifier
	Logger    *log.Logger
	Timeout   time.Duration
	Now       clock
}

// NewJobsHandler создаёт новый экземпляр JobsHandler.
func NewJobsHandler(s *scheduler.Scheduler, notifier notify.Notifier, logger *log.Logger, timeout time.Duration) *JobsHandler {
	return &JobsHandler{
		Scheduler: s,
		Notifier:  notifier,
		Logger:    logger,
		Timeout:   timeout,
		Now:       systemClock,
	}
}

// RunDaily обрабатывает POST /api/jobs/daily. Параметр at (RFC3339) задаёт момент запуска.
func (h *JobsHandler) RunDaily(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.Timeout)
	defer cancel()

	now := h.Now()
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			utils.SendErrorResponse(w, http.StatusBadRequest, "invalid at parameter, must be RFC3339")
			return
		}
		now = parsed
	}

	report := h.Scheduler.RunDailyJobs(ctx, now)
	if failed := h.Scheduler.NotifyReminders(ctx, h.Notifier, report.Reminders); failed > 0 {
		h.Logger.Printf("daily jobs: %d reminders failed", failed)
	}
	utils.SendJSON(w, http.StatusOK, report)
}
