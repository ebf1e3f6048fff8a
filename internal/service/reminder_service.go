package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"reminder-bot/internal/model"
)

// MaxIntervalMinutes bounds repeat intervals and snooze durations.
const MaxIntervalMinutes = 1440

// ReminderService plans jobs for tasks, evaluates deliveries when they fire
// and applies acknowledgements and snoozes. Storage is re-read on every
// delivery; no job state is persisted.
type ReminderService struct {
	tasks       TaskStore
	notifier    Notifier
	planner     *Planner
	jobs        *JobRegistry
	chains      *RepeatChains
	snoozes     *SnoozeGate
	completions *CompletionTracker
	log         *zap.Logger

	now          func() time.Time
	intervalUnit time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// Option configures a ReminderService.
type Option func(*ReminderService)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *ReminderService) { s.log = log }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *ReminderService) { s.now = now }
}

// WithIntervalUnit sets the duration of one interval minute. Tests shrink it.
func WithIntervalUnit(unit time.Duration) Option {
	return func(s *ReminderService) { s.intervalUnit = unit }
}

func NewReminderService(tasks TaskStore, completions CompletionStore, snoozes SnoozeStore, notifier Notifier, loc *time.Location, opts ...Option) *ReminderService {
	if loc == nil {
		loc = time.Local
	}
	s := &ReminderService{
		tasks:        tasks,
		notifier:     notifier,
		planner:      NewPlanner(loc),
		log:          zap.NewNop(),
		now:          time.Now,
		intervalUnit: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.jobs = NewJobRegistry(loc, s.onFire, s.log.Named("jobs"))
	s.jobs.now = s.now
	s.chains = NewRepeatChains(s.log.Named("repeat"))
	s.snoozes = NewSnoozeGate(snoozes, s.log.Named("snooze"))
	s.completions = NewCompletionTracker(completions, loc, s.log.Named("completion"))
	return s
}

// Start registers the midnight reset, begins dispatching timers and
// re-plans every non-completed task from storage. A failed recovery stops
// the service.
func (s *ReminderService) Start(ctx context.Context) error {
	if _, err := s.jobs.ScheduleDaily("00:00", s.resetCompletions); err != nil {
		return fmt.Errorf("schedule daily reset: %w", err)
	}
	s.jobs.Start()
	s.log.Info("scheduler started")
	if err := s.Recover(ctx); err != nil {
		s.Stop()
		return err
	}
	return nil
}

// Recover schedules every non-completed task. Tasks with an invalid
// schedule are logged and skipped.
func (s *ReminderService) Recover(ctx context.Context) error {
	tasks, err := s.tasks.ListNonCompleted(ctx)
	if err != nil {
		return fmt.Errorf("restore tasks: %w", err)
	}
	restored := 0
	for _, task := range tasks {
		if err := s.ScheduleTask(task); err != nil {
			continue
		}
		restored++
	}
	s.log.Info("restored tasks from database", zap.Int("restored", restored), zap.Int("total", len(tasks)))
	return nil
}

// Stop cancels every job, repeat chain and in-flight delivery.
func (s *ReminderService) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.jobs.Stop()
	s.chains.Stop()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// ScheduleTask plans task and installs its jobs. Slots that are already due
// are delivered right away.
func (s *ReminderService) ScheduleTask(task model.Task) error {
	triggers, err := s.planner.Plan(task, s.now())
	if err != nil {
		s.log.Warn("task not scheduled", zap.Uint("task", task.ID), zap.Error(err))
		return err
	}
	s.install(task.ID, triggers)
	s.log.Info("scheduled all reminders for task", zap.Uint("task", task.ID), zap.Int("triggers", len(triggers)))
	return nil
}

// RescheduleTask replaces every job and chain of an edited task. An invalid
// schedule leaves the current jobs untouched.
func (s *ReminderService) RescheduleTask(task model.Task) error {
	triggers, err := s.planner.Plan(task, s.now())
	if err != nil {
		s.log.Warn("task not rescheduled", zap.Uint("task", task.ID), zap.Error(err))
		return err
	}
	s.CancelTask(task.ID)
	s.install(task.ID, triggers)
	s.log.Info("rescheduled task", zap.Uint("task", task.ID), zap.Int("triggers", len(triggers)))
	return nil
}

func (s *ReminderService) install(taskID uint, triggers []Trigger) {
	var due []model.InstanceID
	for _, tr := range triggers {
		if tr.Kind == TriggerImmediate {
			s.log.Info("slot already due, triggering now",
				zap.Uint("task", taskID), zap.String("instance", tr.Instance.Key()))
			due = append(due, tr.Instance)
			continue
		}
		if err := s.jobs.Schedule(taskID, tr.Instance, tr.FireAt, tr.Kind); err != nil {
			s.log.Error("install job", zap.Uint("task", taskID), zap.String("instance", tr.Instance.Key()), zap.Error(err))
		}
	}
	for _, inst := range due {
		s.goDeliver(taskID, inst)
	}
}

// CancelTask removes every job and repeat chain of taskID.
func (s *ReminderService) CancelTask(taskID uint) {
	jobs := s.jobs.CancelAll(taskID)
	chains := s.chains.CancelAllForTask(taskID)
	s.log.Info("cancelled task", zap.Uint("task", taskID), zap.Int("jobs", jobs), zap.Int("chains", chains))
}

func (s *ReminderService) onFire(taskID uint, inst model.InstanceID) {
	if !s.track() {
		return
	}
	defer s.wg.Done()
	s.deliver(s.ctx, taskID, inst, false)
}

func (s *ReminderService) goDeliver(taskID uint, inst model.InstanceID) {
	if !s.track() {
		return
	}
	go func() {
		defer s.wg.Done()
		s.deliver(s.ctx, taskID, inst, false)
	}()
}

// track registers an in-flight delivery unless the service is stopping.
func (s *ReminderService) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// deliver evaluates one firing of an instance. It reports whether the
// instance is still pending. Calls from a repeat chain never arm a new chain.
func (s *ReminderService) deliver(ctx context.Context, taskID uint, inst model.InstanceID, fromChain bool) bool {
	if ctx.Err() != nil {
		return false
	}
	log := s.log.With(zap.Uint("task", taskID), zap.String("instance", inst.Key()))

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Debug("task gone, skipping delivery")
			return false
		}
		log.Error("load task for delivery", zap.Error(err))
		return fromChain
	}
	if task.IsCompleted {
		return false
	}

	token := inst.Token(task.ID)
	if s.isCompleted(ctx, log, task, token) {
		if !fromChain {
			s.chains.Cancel(token)
		}
		return false
	}

	suppress, err := s.snoozes.ShouldSuppress(ctx, task.UserID, task.ID, token, s.now())
	if err != nil {
		// Skip this round; the repeat chain tries again.
		log.Error("check snooze", zap.Error(err))
	}
	if err == nil && !suppress {
		if ctx.Err() != nil {
			return false
		}
		if err := s.notifier.Send(ctx, task.UserID, *task, inst.Time.String()); err != nil {
			log.Warn("reminder delivery failed", zap.Int64("user", task.UserID), zap.Error(err))
		}
	}

	if s.isCompleted(ctx, log, task, token) {
		return false
	}
	if fromChain {
		return true
	}

	if task.IntervalMinutes <= 0 || task.IntervalMinutes > MaxIntervalMinutes {
		log.Warn("invalid repeat interval, not repeating", zap.Int("interval", task.IntervalMinutes))
		return false
	}
	interval := time.Duration(task.IntervalMinutes) * s.intervalUnit
	s.chains.Arm(token, interval, func(ctx context.Context) bool {
		return s.deliver(ctx, taskID, inst, true)
	})
	return true
}

// isCompleted treats storage errors as not completed so the reminder keeps repeating.
func (s *ReminderService) isCompleted(ctx context.Context, log *zap.Logger, task *model.Task, token model.Token) bool {
	done, err := s.completions.IsCompleted(ctx, task.UserID, task.ID, token, s.now())
	if err != nil {
		log.Error("check completion", zap.Error(err))
		return false
	}
	return done
}

func (s *ReminderService) resetCompletions() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	if _, err := s.completions.ResetAll(ctx); err != nil {
		s.log.Error("daily completions reset failed", zap.Error(err))
	}
}

// AckResult describes an acknowledgement.
type AckResult struct {
	Task             model.Task
	AlreadyCompleted bool
	Deleted          bool
}

// Acknowledge marks the instance identified by the HHMM code as done. A
// one-time task is deleted together with its jobs and chains.
func (s *ReminderService) Acknowledge(ctx context.Context, userID int64, taskID uint, code string) (AckResult, error) {
	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return AckResult{}, err
	}

	token := model.NewToken(taskID, code)
	inserted, err := s.completions.MarkCompleted(ctx, userID, taskID, token, s.now())
	if err != nil {
		return AckResult{}, fmt.Errorf("mark completed: %w", err)
	}
	s.chains.Cancel(token)
	res := AckResult{Task: *task, AlreadyCompleted: !inserted}
	s.log.Info("reminder acknowledged",
		zap.Int64("user", userID), zap.String("token", string(token)), zap.Bool("duplicate", !inserted))

	if task.IsOneTime {
		// Jobs stay armed until the row is gone; deliveries abort on a missing task.
		if err := s.tasks.Delete(ctx, taskID); err != nil {
			return res, fmt.Errorf("delete one-time task: %w", err)
		}
		s.CancelTask(taskID)
		res.Deleted = true
	}
	return res, nil
}

// Snooze suppresses deliveries of one instance for minutes. Repeats keep
// running while suppressed.
func (s *ReminderService) Snooze(ctx context.Context, userID int64, taskID uint, code string, minutes int) (time.Time, error) {
	if err := validateSnooze(minutes); err != nil {
		return time.Time{}, err
	}
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return time.Time{}, err
	}
	until := s.now().Add(time.Duration(minutes) * time.Minute)
	if err := s.snoozes.Snooze(ctx, userID, taskID, model.NewToken(taskID, code), until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// SnoozeAll suppresses every reminder of userID for minutes.
func (s *ReminderService) SnoozeAll(ctx context.Context, userID int64, minutes int) (time.Time, error) {
	if err := validateSnooze(minutes); err != nil {
		return time.Time{}, err
	}
	until := s.now().Add(time.Duration(minutes) * time.Minute)
	if err := s.snoozes.SnoozeAll(ctx, userID, until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

func (s *ReminderService) ownedTask(ctx context.Context, userID int64, taskID uint) (*model.Task, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.UserID != userID {
		return nil, fmt.Errorf("task %d: %w", taskID, model.ErrNotFound)
	}
	return task, nil
}

func validateSnooze(minutes int) error {
	if minutes < 1 || minutes > MaxIntervalMinutes {
		return fmt.Errorf("%w: snooze must be 1-%d minutes", model.ErrInvalidSchedule, MaxIntervalMinutes)
	}
	return nil
}
