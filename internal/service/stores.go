package service

import (
	"context"

	"reminder-bot/internal/model"
)

// TaskStore is the task storage the scheduler reads at delivery time.
type TaskStore interface {
	FindByID(ctx context.Context, taskID uint) (*model.Task, error)
	ListNonCompleted(ctx context.Context) ([]model.Task, error)
	Delete(ctx context.Context, taskID uint) error
}

// CompletionStore persists acknowledgements. Find returns nil, nil when absent.
type CompletionStore interface {
	Insert(ctx context.Context, c *model.Completion) (bool, error)
	Find(ctx context.Context, userID int64, taskID uint, token string) (*model.Completion, error)
	Delete(ctx context.Context, userID int64, taskID uint, token string) error
	DeleteAll(ctx context.Context) (int64, error)
}

// SnoozeStore persists snoozes. Find returns nil, nil when absent.
type SnoozeStore interface {
	Upsert(ctx context.Context, s *model.Snooze) error
	Find(ctx context.Context, userID int64, taskID uint, token string) (*model.Snooze, error)
	Delete(ctx context.Context, userID int64, taskID uint, token string) error
}

// Notifier delivers a reminder for task at the given HH:MM instance time.
type Notifier interface {
	Send(ctx context.Context, userID int64, task model.Task, instanceTime string) error
}
