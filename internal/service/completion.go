package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reminder-bot/internal/model"
)

// lateNightHour is the first reminder hour whose completions may race with
// the midnight reset.
const lateNightHour = 22

// CompletionTracker records acknowledgements and decides whether one still
// covers the current occurrence of an instance.
type CompletionTracker struct {
	store CompletionStore
	loc   *time.Location
	log   *zap.Logger
}

func NewCompletionTracker(store CompletionStore, loc *time.Location, log *zap.Logger) *CompletionTracker {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionTracker{store: store, loc: loc, log: log}
}

// MarkCompleted records the acknowledgement. It returns false if the instance
// was already completed.
func (c *CompletionTracker) MarkCompleted(ctx context.Context, userID int64, taskID uint, token model.Token, at time.Time) (bool, error) {
	return c.store.Insert(ctx, &model.Completion{
		UserID:      userID,
		TaskID:      taskID,
		Token:       string(token),
		CompletedAt: at,
	})
}

// IsCompleted reports whether a completion covers the instance at now,
// deleting records that belong to an earlier cycle.
func (c *CompletionTracker) IsCompleted(ctx context.Context, userID int64, taskID uint, token model.Token, now time.Time) (bool, error) {
	rec, err := c.store.Find(ctx, userID, taskID, string(token))
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	now = now.In(c.loc)
	completedAt := rec.CompletedAt.In(c.loc)

	switch compareDay(completedAt, now) {
	case -1, 1:
		// Older days are lazily expired, future days come from clock skew.
		return false, c.expire(ctx, userID, taskID, token)
	}

	hour, ok := token.Hour()
	if !ok || hour < lateNightHour {
		return true, nil
	}

	// Late-night slot completed today. Keep the three-way check on the
	// current hour, the reminder hour and the completion hour; combinations
	// outside the two stale cases keep the record.
	switch {
	case now.Hour() < hour && completedAt.Hour() < 6:
		return true, nil
	case now.Hour() >= hour && completedAt.Hour() < 6:
		return false, c.expire(ctx, userID, taskID, token)
	case completedAt.Hour() < hour && now.Hour() >= hour:
		return false, c.expire(ctx, userID, taskID, token)
	}
	return true, nil
}

func (c *CompletionTracker) expire(ctx context.Context, userID int64, taskID uint, token model.Token) error {
	if err := c.store.Delete(ctx, userID, taskID, string(token)); err != nil {
		return fmt.Errorf("expire completion %s: %w", token, err)
	}
	return nil
}

// ResetAll deletes every completion. It runs from the midnight job.
func (c *CompletionTracker) ResetAll(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	c.log.Info("daily completions reset", zap.Int64("deleted", n))
	return n, nil
}

// compareDay compares the calendar days of a and b, both in the same location.
func compareDay(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	switch {
	case da.Before(db):
		return -1
	case da.After(db):
		return 1
	default:
		return 0
	}
}
