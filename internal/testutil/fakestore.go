// Package testutil provides in-memory stores and a recording notifier for testing.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reminder-bot/internal/model"
)

type recordKey struct {
	userID int64
	taskID uint
	token  string
}

// FakeTaskStore is an in-memory task store.
type FakeTaskStore struct {
	mu     sync.RWMutex
	tasks  map[uint]model.Task
	nextID uint

	// Error injection for testing
	FindErr   error
	ListErr   error
	DeleteErr error
}

// NewFakeTaskStore creates an empty FakeTaskStore.
func NewFakeTaskStore() *FakeTaskStore {
	return &FakeTaskStore{tasks: make(map[uint]model.Task)}
}

// Add stores task, assigning an ID if it has none, and returns the stored copy.
func (f *FakeTaskStore) Add(task model.Task) model.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	if task.ID == 0 {
		f.nextID++
		task.ID = f.nextID
	} else if task.ID > f.nextID {
		f.nextID = task.ID
	}
	f.tasks[task.ID] = task
	return task
}

// Has reports whether taskID is stored.
func (f *FakeTaskStore) Has(taskID uint) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.tasks[taskID]
	return ok
}

// FindByID implements service.TaskStore.
func (f *FakeTaskStore) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", taskID, model.ErrNotFound)
	}
	return &task, nil
}

// ListNonCompleted implements service.TaskStore.
func (f *FakeTaskStore) ListNonCompleted(ctx context.Context) ([]model.Task, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []model.Task
	for _, task := range f.tasks {
		if !task.IsCompleted {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete implements service.TaskStore.
func (f *FakeTaskStore) Delete(ctx context.Context, taskID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.tasks, taskID)
	return nil
}

// FakeCompletionStore is an in-memory completion store.
type FakeCompletionStore struct {
	mu      sync.RWMutex
	records map[recordKey]model.Completion
	deletes int

	// Error injection for testing
	InsertErr error
	FindErr   error
}

// NewFakeCompletionStore creates an empty FakeCompletionStore.
func NewFakeCompletionStore() *FakeCompletionStore {
	return &FakeCompletionStore{records: make(map[recordKey]model.Completion)}
}

// Put stores a completion regardless of existing records.
func (f *FakeCompletionStore) Put(c model.Completion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[recordKey{c.UserID, c.TaskID, c.Token}] = c
}

// Len returns the number of stored completions.
func (f *FakeCompletionStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.records)
}

// Deletes returns how many single records were deleted.
func (f *FakeCompletionStore) Deletes() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.deletes
}

// Insert implements service.CompletionStore.
func (f *FakeCompletionStore) Insert(ctx context.Context, c *model.Completion) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return false, f.InsertErr
	}
	key := recordKey{c.UserID, c.TaskID, c.Token}
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = *c
	return true, nil
}

// Find implements service.CompletionStore.
func (f *FakeCompletionStore) Find(ctx context.Context, userID int64, taskID uint, token string) (*model.Completion, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	c, ok := f.records[recordKey{userID, taskID, token}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Delete implements service.CompletionStore.
func (f *FakeCompletionStore) Delete(ctx context.Context, userID int64, taskID uint, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := recordKey{userID, taskID, token}
	if _, ok := f.records[key]; ok {
		delete(f.records, key)
		f.deletes++
	}
	return nil
}

// DeleteAll implements service.CompletionStore.
func (f *FakeCompletionStore) DeleteAll(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.records))
	f.records = make(map[recordKey]model.Completion)
	return n, nil
}

// FakeSnoozeStore is an in-memory snooze store.
type FakeSnoozeStore struct {
	mu      sync.RWMutex
	records map[recordKey]model.Snooze
	finds   int

	// Error injection for testing
	FindErr error
}

// NewFakeSnoozeStore creates an empty FakeSnoozeStore.
func NewFakeSnoozeStore() *FakeSnoozeStore {
	return &FakeSnoozeStore{records: make(map[recordKey]model.Snooze)}
}

// Len returns the number of stored snoozes.
func (f *FakeSnoozeStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.records)
}

// Finds returns how many lookups were made.
func (f *FakeSnoozeStore) Finds() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.finds
}

// Upsert implements service.SnoozeStore.
func (f *FakeSnoozeStore) Upsert(ctx context.Context, s *model.Snooze) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[recordKey{s.UserID, s.TaskID, s.Token}] = *s
	return nil
}

// Find implements service.SnoozeStore.
func (f *FakeSnoozeStore) Find(ctx context.Context, userID int64, taskID uint, token string) (*model.Snooze, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	s, ok := f.records[recordKey{userID, taskID, token}]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Delete implements service.SnoozeStore.
func (f *FakeSnoozeStore) Delete(ctx context.Context, userID int64, taskID uint, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, recordKey{userID, taskID, token})
	return nil
}

// Sent is one recorded notification.
type Sent struct {
	UserID int64
	TaskID uint
	Time   string
	At     time.Time
}

// RecordingNotifier records every Send call.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Sent

	// Error injection for testing
	SendErr error
}

// Send implements service.Notifier.
func (n *RecordingNotifier) Send(ctx context.Context, userID int64, task model.Task, instanceTime string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{UserID: userID, TaskID: task.ID, Time: instanceTime, At: time.Now()})
	return n.SendErr
}

// Sent returns a copy of the recorded notifications.
func (n *RecordingNotifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

// Count returns the number of recorded notifications.
func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
