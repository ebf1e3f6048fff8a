package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reminder-bot/internal/model"
)

// CompletionRepository stores acknowledged reminder instances.
type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// Insert adds a completion. It reports false without error when a record
// with the same user, task and token already exists.
func (r *CompletionRepository) Insert(ctx context.Context, c *model.Completion) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return false, fmt.Errorf("insert completion: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Find returns nil when no completion exists.
func (r *CompletionRepository) Find(ctx context.Context, userID int64, taskID uint, token string) (*model.Completion, error) {
	var c model.Completion
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND token = ?", userID, taskID, token).
		First(&c).Error
	switch {
	case err == nil:
		return &c, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find completion: %w", err)
	}
}

func (r *CompletionRepository) Delete(ctx context.Context, userID int64, taskID uint, token string) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ? AND token = ?", userID, taskID, token).
		Delete(&model.Completion{}).Error; err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// DeleteAll removes every completion and returns how many were removed.
func (r *CompletionRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Completion{})
	if res.Error != nil {
		return 0, fmt.Errorf("reset completions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
