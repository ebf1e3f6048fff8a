package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
)

// TaskInput represents data required to create or edit a task.
type TaskInput struct {
	Description     string
	Days            []int
	Times           []string
	IntervalMinutes int
	OneTime         bool
	OneTimeDate     string // YYYY-MM-DD or YYYY-MM-DD HH:MM
}

// TaskService validates task input, persists it and keeps the scheduler in sync.
type TaskService struct {
	taskRepo  *repository.TaskRepository
	reminders *ReminderService
	loc       *time.Location
}

func NewTaskService(taskRepo *repository.TaskRepository, reminders *ReminderService, loc *time.Location) *TaskService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{taskRepo: taskRepo, reminders: reminders, loc: loc}
}

func (s *TaskService) CreateTask(ctx context.Context, userID int64, input TaskInput) (*model.Task, error) {
	task := model.Task{UserID: userID}
	if err := s.apply(&task, input); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	if err := s.reminders.ScheduleTask(task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask replaces the definition of an existing task and re-plans its jobs.
func (s *TaskService) UpdateTask(ctx context.Context, userID int64, taskID uint, input TaskInput) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.apply(task, input); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	if err := s.reminders.RescheduleTask(*task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	return s.taskRepo.ListByUser(ctx, userID)
}

// GetTask returns model.ErrNotFound for tasks of other users.
func (s *TaskService) GetTask(ctx context.Context, userID int64, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, fmt.Errorf("task %d: %w", taskID, model.ErrNotFound)
	}
	return task, nil
}

// DeleteTask removes the task, then cancels its jobs. A failed delete leaves
// the jobs installed.
func (s *TaskService) DeleteTask(ctx context.Context, userID int64, taskID uint) (*model.Task, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return nil, err
	}
	s.reminders.CancelTask(taskID)
	return task, nil
}

// apply validates input and copies it onto task.
func (s *TaskService) apply(task *model.Task, input TaskInput) error {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return fmt.Errorf("%w: description is required", model.ErrInvalidSchedule)
	}
	if input.IntervalMinutes < 1 || input.IntervalMinutes > MaxIntervalMinutes {
		return fmt.Errorf("%w: interval must be 1-%d minutes", model.ErrInvalidSchedule, MaxIntervalMinutes)
	}

	clocks, err := model.ParseClocks(input.Times)
	if err != nil {
		return err
	}
	times := make([]string, 0, len(clocks))
	for _, c := range clocks {
		times = append(times, c.String())
	}

	candidate := *task
	candidate.Description = description
	candidate.Days = model.JoinDays(input.Days)
	candidate.Times = model.JoinTimes(times)
	candidate.IntervalMinutes = input.IntervalMinutes
	candidate.IsOneTime = input.OneTime
	candidate.OneTimeDate = ""
	if input.OneTime {
		candidate.OneTimeDate = strings.TrimSpace(input.OneTimeDate)
	}

	if _, err := candidate.Schedule(s.loc); err != nil {
		return err
	}
	*task = candidate
	return nil
}
