package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reminder-bot/internal/model"
)

// SnoozeRepository stores per-instance and per-user snoozes.
type SnoozeRepository struct {
	db *gorm.DB
}

func NewSnoozeRepository(db *gorm.DB) *SnoozeRepository {
	return &SnoozeRepository{db: db}
}

// Upsert creates the snooze or moves its expiry.
func (r *SnoozeRepository) Upsert(ctx context.Context, s *model.Snooze) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "task_id"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"snoozed_until"}),
	}).Create(s).Error
	if err != nil {
		return fmt.Errorf("upsert snooze: %w", err)
	}
	return nil
}

// Find returns nil when no snooze exists.
func (r *SnoozeRepository) Find(ctx context.Context, userID int64, taskID uint, token string) (*model.Snooze, error) {
	var s model.Snooze
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND token = ?", userID, taskID, token).
		First(&s).Error
	switch {
	case err == nil:
		return &s, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find snooze: %w", err)
	}
}

func (r *SnoozeRepository) Delete(ctx context.Context, userID int64, taskID uint, token string) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND token = ?", userID, taskID, token).
		Delete(&model.Snooze{}).Error; err != nil {
		return fmt.Errorf("clear snooze: %w", err)
	}
	return nil
}
