package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"reminder-bot/internal/model"
	"reminder-bot/internal/repository"
	"reminder-bot/internal/testutil"
)

func newTaskService(t *testing.T) (*TaskService, *ReminderService, *testutil.RecordingNotifier) {
	t.Helper()
	svc, reminders, notifier, _ := newTaskServiceDB(t)
	return svc, reminders, notifier
}

func newTaskServiceDB(t *testing.T) (*TaskService, *ReminderService, *testutil.RecordingNotifier, *gorm.DB) {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "tasks.db"), zap.NewNop())
	require.NoError(t, err)

	tasks := repository.NewTaskRepository(db)
	notifier := &testutil.RecordingNotifier{}
	now := at(16, 9, 30)
	reminders := NewReminderService(tasks,
		repository.NewCompletionRepository(db),
		repository.NewSnoozeRepository(db),
		notifier, time.UTC,
		WithClock(func() time.Time { return now }),
		WithIntervalUnit(10*time.Millisecond),
	)
	t.Cleanup(reminders.Stop)
	return NewTaskService(tasks, reminders, time.UTC), reminders, notifier, db
}

func TestTaskServiceCreate(t *testing.T) {
	svc, reminders, notifier := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, testUser, TaskInput{
		Description:     "  stand up  ",
		Days:            []int{0, 2},
		Times:           []string{"09:00"},
		IntervalMinutes: 3,
	})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, "stand up", task.Description)
	assert.Equal(t, "0,2", task.Days)
	assert.Len(t, reminders.jobs.Jobs(task.ID), 2)

	// 09:00 on Monday already passed.
	require.Eventually(t, func() bool { return notifier.Count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	tasks, err := svc.ListTasks(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
}

func TestTaskServiceValidation(t *testing.T) {
	svc, _, _ := newTaskService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input TaskInput
	}{
		{"empty description", TaskInput{Days: []int{0}, Times: []string{"09:00"}, IntervalMinutes: 5}},
		{"zero interval", TaskInput{Description: "x", Days: []int{0}, Times: []string{"09:00"}}},
		{"interval too long", TaskInput{Description: "x", Days: []int{0}, Times: []string{"09:00"}, IntervalMinutes: 1441}},
		{"bad time", TaskInput{Description: "x", Days: []int{0}, Times: []string{"9am"}, IntervalMinutes: 5}},
		{"bad day", TaskInput{Description: "x", Days: []int{7}, Times: []string{"09:00"}, IntervalMinutes: 5}},
		{"no days", TaskInput{Description: "x", Times: []string{"09:00"}, IntervalMinutes: 5}},
		{"bad date", TaskInput{Description: "x", OneTime: true, OneTimeDate: "25/12/2024", IntervalMinutes: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, testUser, tt.input)
			assert.ErrorIs(t, err, model.ErrInvalidSchedule)
		})
	}

	tasks, err := svc.ListTasks(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskServiceUpdate(t *testing.T) {
	svc, reminders, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, testUser, TaskInput{
		Description: "gym", Days: []int{1, 3}, Times: []string{"18:00"}, IntervalMinutes: 10,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, testUser, task.ID, TaskInput{
		Description: "gym", OneTime: true, OneTimeDate: "2024-12-20 07:00", IntervalMinutes: 10,
	})
	require.NoError(t, err)
	assert.True(t, updated.IsOneTime)

	jobs := reminders.jobs.Jobs(task.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, TriggerOnce, jobs[0].Kind)
	assert.Equal(t, "20241220", jobs[0].Instance.Slot)

	stored, err := svc.GetTask(ctx, testUser, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-20 07:00", stored.OneTimeDate)

	// Invalid edits leave the task alone.
	_, err = svc.UpdateTask(ctx, testUser, task.ID, TaskInput{Description: "gym", Days: []int{1}, Times: []string{"x"}, IntervalMinutes: 10})
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)
	stored, err = svc.GetTask(ctx, testUser, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsOneTime)
	assert.Len(t, reminders.jobs.Jobs(task.ID), 1)
}

func TestTaskServiceOwnership(t *testing.T) {
	svc, _, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, testUser, TaskInput{
		Description: "x", Days: []int{3}, Times: []string{"10:00"}, IntervalMinutes: 5,
	})
	require.NoError(t, err)

	_, err = svc.GetTask(ctx, testUser+1, task.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.DeleteTask(ctx, testUser+1, task.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	other, err := svc.ListTasks(ctx, testUser+1)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestTaskServiceDelete(t *testing.T) {
	svc, reminders, _ := newTaskService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, testUser, TaskInput{
		Description: "x", Days: []int{3}, Times: []string{"10:00", "11:00"}, IntervalMinutes: 5,
	})
	require.NoError(t, err)
	require.Len(t, reminders.jobs.Jobs(task.ID), 2)

	deleted, err := svc.DeleteTask(ctx, testUser, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, deleted.ID)
	assert.Empty(t, reminders.jobs.Jobs(task.ID))

	_, err = svc.GetTask(ctx, testUser, task.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTaskServiceDeleteFailureKeepsJobs(t *testing.T) {
	svc, reminders, _, db := newTaskServiceDB(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, testUser, TaskInput{
		Description: "x", Days: []int{3}, Times: []string{"10:00"}, IntervalMinutes: 5,
	})
	require.NoError(t, err)

	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("fail_delete", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk I/O error"))
	}))

	_, err = svc.DeleteTask(ctx, testUser, task.ID)
	assert.ErrorContains(t, err, "disk I/O error")
	assert.Len(t, reminders.jobs.Jobs(task.ID), 1)
	_, err = svc.GetTask(ctx, testUser, task.ID)
	assert.NoError(t, err)
}

func TestTaskServiceDropsRepeatedTimes(t *testing.T) {
	svc, reminders, _ := newTaskService(t)

	task, err := svc.CreateTask(context.Background(), testUser, TaskInput{
		Description: "x", Days: []int{3}, Times: []string{"10:00", "10:00", "9:30"}, IntervalMinutes: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "10:00,09:30", task.Times)
	assert.Len(t, reminders.jobs.Jobs(task.ID), 2)
}
