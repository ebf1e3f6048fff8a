package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"reminder-bot/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Save writes every column of an existing task.
func (r *TaskRepository) Save(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// FindByID returns model.ErrNotFound when the task does not exist.
func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, taskID).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("task %d: %w", taskID, model.ErrNotFound)
	default:
		return nil, fmt.Errorf("find task: %w", err)
	}
}

func (r *TaskRepository) ListNonCompleted(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("is_completed = ?", false).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID int64) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND is_completed = ?", userID, false).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list user tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes a task. Deleting a missing task is not an error.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Task{}, taskID).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
