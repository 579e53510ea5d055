// Package tasks связывает планировщик и уведомления с очередью asynq.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/notify"
	"github.com/senyabanana/vendor-engagement/internal/scheduler"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// TypeDailyJobs - периодическая задача автозакрытия RFQ и напоминаний.
const TypeDailyJobs = "vendor:daily_jobs"

// DailyJobsPayload - необязательный момент запуска. Пустое значение означает текущее время.
type DailyJobsPayload struct {
	Now *time.Time `json:"now,omitempty"`
}

// RedisOpt переносит параметры подключения go-redis в asynq.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// NewClient создаёт клиента для постановки задач.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(RedisOpt(rdb))
}

// TaskProcessor обрабатывает задачи очереди.
type TaskProcessor struct {
	scheduler *scheduler.Scheduler
	outbox    notify.Notifier // Очередь напоминаний, повтор отбрасывается по ключу
	sink      notify.Notifier // Конечная доставка событий vendor:notify
	logger    *log.Logger
}

// NewTaskProcessor создаёт новый экземпляр TaskProcessor.
func NewTaskProcessor(s *scheduler.Scheduler, outbox, sink notify.Notifier, logger *log.Logger) *TaskProcessor {
	return &TaskProcessor{scheduler: s, outbox: outbox, sink: sink, logger: logger}
}

// NewDailyJobsTask создаёт задачу ежедневного запуска.
func NewDailyJobsTask(now *time.Time) (*asynq.Task, error) {
	payload, err := json.Marshal(DailyJobsPayload{Now: now})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal daily jobs payload: %w", err)
	}
	return asynq.NewTask(TypeDailyJobs, payload), nil
}

// HandleDailyJobsTask выполняет автозакрытие и рассылает напоминания.
func (p *TaskProcessor) HandleDailyJobsTask(ctx context.Context, t *asynq.Task) error {
	var payload DailyJobsPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal daily jobs payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	now := time.Now().UTC()
	if payload.Now != nil {
		now = *payload.Now
	}

	report := p.scheduler.RunDailyJobs(ctx, now)
	failed := p.scheduler.NotifyReminders(ctx, p.outbox, report.Reminders)
	if failed > 0 {
		return fmt.Errorf("%d of %d reminders were not enqueued", failed, len(report.Reminders))
	}
	return nil
}

// HandleNotifyTask доставляет событие получателю.
func (p *TaskProcessor) HandleNotifyTask(ctx context.Context, t *asynq.Task) error {
	var event notify.Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("failed to unmarshal notify payload: %v: %w", err, asynq.SkipRetry)
	}
	if event.Kind == "" || event.ProjectID == "" {
		return fmt.Errorf("notify payload without kind or project: %w", asynq.SkipRetry)
	}
	return p.sink.Notify(ctx, event)
}

// NewServeMux регистрирует обработчики задач.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDailyJobs, p.HandleDailyJobsTask)
	mux.HandleFunc(notify.TypeNotify, p.HandleNotifyTask)
	return mux
}

// SetupServer настраивает сервер asynq. Запуск выполняет вызывающий код через Run.
func SetupServer(rdb *redis.Client, concurrency int, logger *log.Logger) *asynq.Server {
	return asynq.NewServer(
		RedisOpt(rdb),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Printf("task failed type=%s payload=%s err=%v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
}

// SetupScheduler регистрирует ежедневную задачу по cron-выражению.
func SetupScheduler(rdb *redis.Client, cronSpec string) (*asynq.Scheduler, error) {
	s := asynq.NewScheduler(RedisOpt(rdb), &asynq.SchedulerOpts{Location: time.UTC})

	task, err := NewDailyJobsTask(nil)
	if err != nil {
		return nil, err
	}
	if _, err = s.Register(cronSpec, task, asynq.Queue("critical"), asynq.Unique(time.Hour)); err != nil {
		return nil, fmt.Errorf("failed to register daily jobs with cron %q: %w", cronSpec, err)
	}
	return s, nil
}
