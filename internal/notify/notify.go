// Package notify доставляет владельцу проекта события о переходах и напоминания.
package notify

import (
	"context"
	"errors"
	"log"
)

// EventKind - тип события.
type EventKind string

const (
	EventAssignmentSent      EventKind = "assignment.sent"
	EventAssignmentAccepted  EventKind = "assignment.accepted"
	EventAssignmentDeclined  EventKind = "assignment.declined"
	EventAssignmentCancelled EventKind = "assignment.cancelled"
	EventAssignmentCompleted EventKind = "assignment.completed"
	EventRFQSent             EventKind = "rfq.sent"
	EventQuoteSubmitted      EventKind = "rfq.quote_submitted"
	EventRFQDone             EventKind = "rfq.done"
	EventRFQClosed           EventKind = "rfq.closed"
	EventEventReminder       EventKind = "project.reminder"
)

// Event - уведомление для владельца проекта.
type Event struct {
	Kind      EventKind `json:"kind"`
	ProjectID string    `json:"projectId"`
	EntityID  string    `json:"entityId,omitempty"`
	Message   string    `json:"message"`
	// DedupeKey позволяет очереди отбросить повторную постановку того же события.
	DedupeKey string `json:"dedupeKey,omitempty"`
}

// Notifier - получатель событий. Ошибка доставки не отменяет совершённый переход.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier пишет события в журнал.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier создаёт новый экземпляр LogNotifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{Logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.Logger.Printf("notify kind=%s project=%s entity=%s message=%q", event.Kind, event.ProjectID, event.EntityID, event.Message)
	return nil
}

// CompositeNotifier передаёт событие всем получателям и объединяет их ошибки.
type CompositeNotifier []Notifier

func (c CompositeNotifier) Notify(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range c {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop отбрасывает события.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
