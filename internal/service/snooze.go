package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reminder-bot/internal/model"
)

// SnoozeGate decides at delivery time whether a notification is suppressed.
// It never cancels jobs or repeat chains.
type SnoozeGate struct {
	store SnoozeStore
	log   *zap.Logger
}

func NewSnoozeGate(store SnoozeStore, log *zap.Logger) *SnoozeGate {
	if log == nil {
		log = zap.NewNop()
	}
	return &SnoozeGate{store: store, log: log}
}

// ShouldSuppress checks the instance snooze, then the user-global snooze.
// Expired records found along the way are cleared.
func (g *SnoozeGate) ShouldSuppress(ctx context.Context, userID int64, taskID uint, token model.Token, now time.Time) (bool, error) {
	instance, err := g.check(ctx, userID, taskID, string(token), now)
	if err != nil {
		return false, err
	}
	global, err := g.check(ctx, userID, model.GlobalSnoozeTaskID, model.GlobalSnoozeToken, now)
	if err != nil {
		return false, err
	}
	if instance || global {
		g.log.Info("reminder snoozed, skipping send",
			zap.Int64("user", userID),
			zap.String("token", string(token)),
			zap.Bool("global", global),
		)
	}
	return instance || global, nil
}

func (g *SnoozeGate) check(ctx context.Context, userID int64, taskID uint, token string, now time.Time) (bool, error) {
	rec, err := g.store.Find(ctx, userID, taskID, token)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	if now.Before(rec.SnoozedUntil) {
		return true, nil
	}
	if err := g.store.Delete(ctx, userID, taskID, token); err != nil {
		return false, fmt.Errorf("clear snooze %s: %w", token, err)
	}
	return false, nil
}

// Snooze suppresses one instance until until.
func (g *SnoozeGate) Snooze(ctx context.Context, userID int64, taskID uint, token model.Token, until time.Time) error {
	return g.store.Upsert(ctx, &model.Snooze{UserID: userID, TaskID: taskID, Token: string(token), SnoozedUntil: until})
}

// SnoozeAll suppresses every instance of userID until until.
func (g *SnoozeGate) SnoozeAll(ctx context.Context, userID int64, until time.Time) error {
	return g.store.Upsert(ctx, &model.Snooze{
		UserID:       userID,
		TaskID:       model.GlobalSnoozeTaskID,
		Token:        model.GlobalSnoozeToken,
		SnoozedUntil: until,
	})
}
