package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeNotify - тип задачи доставки уведомления.
const TypeNotify = "vendor:notify"

// dedupeRetention - сколько завершённая задача удерживает свой TaskID.
const dedupeRetention = 48 * time.Hour

// TaskEnqueuer - часть asynq.Client, нужная для постановки задач.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier ставит события в очередь asynq для фоновой доставки.
type AsynqNotifier struct {
	Client TaskEnqueuer
	Queue  string
}

// NewAsynqNotifier создаёт новый экземпляр AsynqNotifier.
func NewAsynqNotifier(client TaskEnqueuer) *AsynqNotifier {
	return &AsynqNotifier{Client: client, Queue: "default"}
}

// NewNotifyTask упаковывает событие в задачу.
func NewNotifyTask(event Event) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notify payload: %w", err)
	}
	return asynq.NewTask(TypeNotify, payload), nil
}

// Notify ставит событие в очередь. Событие с уже поставленным DedupeKey считается доставленным.
func (n *AsynqNotifier) Notify(ctx context.Context, event Event) error {
	task, err := NewNotifyTask(event)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.Queue(n.Queue), asynq.MaxRetry(5)}
	if event.DedupeKey != "" {
		opts = append(opts, asynq.TaskID(event.DedupeKey), asynq.Retention(dedupeRetention))
	}

	_, err = n.Client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue notification %s: %w", event.Kind, err)
	}
	return nil
}
