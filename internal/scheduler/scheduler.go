// Package scheduler содержит идемпотентные точки входа для периодического запуска:
// автозакрытие RFQ и поиск проектов для напоминаний.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/metrics"
	"github.com/senyabanana/vendor-engagement/internal/models"
	"github.com/senyabanana/vendor-engagement/internal/notify"
	"github.com/senyabanana/vendor-engagement/internal/repository"
	"github.com/senyabanana/vendor-engagement/internal/services"
)

// DefaultReminderOffsets - за сколько дней до мероприятия напоминать.
var DefaultReminderOffsets = []int{10, 3}

const dateLayout = "2006-01-02"

// ReminderCandidate - проект, о котором нужно напомнить владельцу.
type ReminderCandidate struct {
	ProjectID   string                    `json:"projectId"`
	ProjectName string                    `json:"projectName"`
	OwnerID     string                    `json:"ownerId"`
	EventDate   time.Time                 `json:"eventDate"`
	OffsetDays  int                       `json:"offsetDays"`
	Unconfirmed []models.VendorAssignment `json:"unconfirmed"`
}

// DedupeKey однозначно определяет напоминание для проекта, даты и смещения.
func (c ReminderCandidate) DedupeKey() string {
	return fmt.Sprintf("reminder:%s:%s:%d", c.ProjectID, c.EventDate.Format(dateLayout), c.OffsetDays)
}

// Event формирует уведомление для владельца проекта.
func (c ReminderCandidate) Event() notify.Event {
	return notify.Event{
		Kind:      notify.EventEventReminder,
		ProjectID: c.ProjectID,
		Message: fmt.Sprintf("%s starts in %d days on %s, %d vendors not confirmed",
			c.ProjectName, c.OffsetDays, c.EventDate.Format(dateLayout), len(c.Unconfirmed)),
		DedupeKey: c.DedupeKey(),
	}
}

// DailyReport - итог ежедневного запуска.
type DailyReport struct {
	RanAt      time.Time           `json:"ranAt"`
	ClosedRFQs []string            `json:"closedRfqs"`
	Reminders  []ReminderCandidate `json:"reminders"`
	Errors     []string            `json:"errors,omitempty"`
}

// Scheduler не хранит состояния: все решения принимаются по данным хранилища и now.
type Scheduler struct {
	RFQs        *services.RFQService
	Projects    repository.ProjectRepository
	Assignments repository.AssignmentRepository
	Offsets     []int
	Metrics     *metrics.Metrics
	Logger      *log.Logger
}

// New создаёт новый экземпляр Scheduler.
func New(
	rfqs *services.RFQService,
	projects repository.ProjectRepository,
	assignments repository.AssignmentRepository,
	offsets []int,
	m *metrics.Metrics,
	logger *log.Logger,
) *Scheduler {
	if len(offsets) == 0 {
		offsets = DefaultReminderOffsets
	}
	return &Scheduler{
		RFQs:        rfqs,
		Projects:    projects,
		Assignments: assignments,
		Offsets:     offsets,
		Metrics:     m,
		Logger:      logger,
	}
}

// RunAutoClose прогоняет через AutoClose все RFQ в работе с истёкшим сроком.
// Ошибка одного RFQ не прерывает обход остальных.
func (s *Scheduler) RunAutoClose(ctx context.Context, now time.Time) ([]string, []error) {
	defer s.Metrics.ObserveJob("auto_close", time.Now())

	due, err := s.RFQs.DueRFQs(ctx, now)
	if err != nil {
		return nil, []error{fmt.Errorf("list due rfqs: %w", err)}
	}

	closed := []string{}
	var errs []error
	for _, r := range due {
		_, ok, err := s.RFQs.AutoClose(ctx, r.ID, now)
		if err != nil {
			s.Logger.Printf("auto close failed rfq=%s err=%v", r.ID, err)
			errs = append(errs, fmt.Errorf("auto close rfq %s: %w", r.ID, err))
			continue
		}
		if ok {
			closed = append(closed, r.ID)
		}
	}
	return closed, errs
}

// RunReminderScan находит проекты, мероприятие которых наступает ровно через offset дней.
func (s *Scheduler) RunReminderScan(ctx context.Context, now time.Time, offsets []int) ([]ReminderCandidate, error) {
	defer s.Metrics.ObserveJob("reminder_scan", time.Now())

	if len(offsets) == 0 {
		offsets = s.Offsets
	}
	utc := now.UTC()
	today := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)

	candidates := []ReminderCandidate{}
	for _, offset := range offsets {
		if offset < 0 {
			return nil, models.NewValidationError("reminder offset must not be negative: %d", offset)
		}
		eventDate := today.AddDate(0, 0, offset)

		projects, err := s.Projects.ListProjectsByEventDate(ctx, eventDate)
		if err != nil {
			return nil, fmt.Errorf("list projects on %s: %w", eventDate.Format(dateLayout), err)
		}
		for _, p := range projects {
			assignments, err := s.Assignments.ListProjectAssignments(ctx, p.ID)
			if err != nil {
				return nil, fmt.Errorf("list assignments of project %s: %w", p.ID, err)
			}
			candidates = append(candidates, ReminderCandidate{
				ProjectID:   p.ID,
				ProjectName: p.Name,
				OwnerID:     p.OwnerID,
				EventDate:   eventDate,
				OffsetDays:  offset,
				Unconfirmed: unconfirmed(assignments),
			})
		}
	}
	return candidates, nil
}

func unconfirmed(assignments []models.VendorAssignment) []models.VendorAssignment {
	out := []models.VendorAssignment{}
	for _, a := range assignments {
		switch a.State {
		case models.AssignmentAccepted, models.AssignmentCompleted, models.AssignmentCancelled:
			continue
		}
		out = append(out, a)
	}
	return out
}

// NotifyReminders отправляет напоминания с ключом дедупликации и возвращает число неудачных отправок.
func (s *Scheduler) NotifyReminders(ctx context.Context, n notify.Notifier, candidates []ReminderCandidate) int {
	failed := 0
	for _, c := range candidates {
		if err := n.Notify(ctx, c.Event()); err != nil {
			failed++
			s.Metrics.NotificationFailed()
			s.Logger.Printf("reminder failed project=%s key=%s err=%v", c.ProjectID, c.DedupeKey(), err)
		}
	}
	return failed
}

// RunDailyJobs выполняет автозакрытие и поиск напоминаний.
func (s *Scheduler) RunDailyJobs(ctx context.Context, now time.Time) DailyReport {
	defer s.Metrics.ObserveJob("daily_jobs", time.Now())

	report := DailyReport{RanAt: now}

	closed, errs := s.RunAutoClose(ctx, now)
	report.ClosedRFQs = closed
	for _, err := range errs {
		report.Errors = append(report.Errors, err.Error())
	}

	reminders, err := s.RunReminderScan(ctx, now, nil)
	if err != nil {
		s.Logger.Printf("reminder scan failed err=%v", err)
		report.Errors = append(report.Errors, err.Error())
	}
	report.Reminders = reminders

	s.Logger.Printf("daily jobs done closed=%d reminders=%d errors=%d", len(report.ClosedRFQs), len(report.Reminders), len(report.Errors))
	return report
}
