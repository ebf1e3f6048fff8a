package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"reminder-bot/internal/model"
)

var errRegistryStopped = errors.New("job registry stopped")

// FireFunc is invoked when a job for (taskID, inst) fires.
type FireFunc func(taskID uint, inst model.InstanceID)

type jobKey struct {
	taskID uint
	inst   model.InstanceID
}

type scheduledJob struct {
	kind    TriggerKind
	fireAt  time.Time
	entryID cron.EntryID
	timer   *time.Timer
	version uint64
}

// JobRegistry owns the live timers, at most one per (task, instance).
// Weekly jobs run on cron; one-shot jobs use time.AfterFunc.
type JobRegistry struct {
	cron   *cron.Cron
	loc    *time.Location
	onFire FireFunc
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	jobs    map[jobKey]*scheduledJob
	version uint64
	stopped bool
}

func NewJobRegistry(loc *time.Location, onFire FireFunc, log *zap.Logger) *JobRegistry {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	cronLog := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	return &JobRegistry{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		loc:    loc,
		onFire: onFire,
		log:    log,
		now:    time.Now,
		jobs:   make(map[jobKey]*scheduledJob),
	}
}

func (r *JobRegistry) Start() {
	r.cron.Start()
}

// Stop halts cron, waits for running cron jobs and drops every timer.
func (r *JobRegistry) Stop() {
	r.mu.Lock()
	r.stopped = true
	for key, job := range r.jobs {
		r.removeLocked(key, job)
	}
	r.mu.Unlock()

	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Schedule installs the job for (taskID, inst), replacing any existing one.
// Weekly jobs repeat at fireAt's weekday and time of day.
func (r *JobRegistry) Schedule(taskID uint, inst model.InstanceID, fireAt time.Time, kind TriggerKind) error {
	key := jobKey{taskID: taskID, inst: inst}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return errRegistryStopped
	}
	if old, ok := r.jobs[key]; ok {
		r.removeLocked(key, old)
	}

	r.version++
	job := &scheduledJob{kind: kind, fireAt: fireAt, version: r.version}

	switch kind {
	case TriggerWeekly:
		at := fireAt.In(r.loc)
		clock := model.Clock{Hour: at.Hour(), Minute: at.Minute()}
		spec := weeklySpec(model.WeekdayIndex(at), clock)
		id, err := r.cron.AddFunc(spec, func() { r.onFire(taskID, inst) })
		if err != nil {
			return fmt.Errorf("schedule %s: %w", spec, err)
		}
		job.entryID = id
	case TriggerOnce:
		version := job.version
		job.timer = time.AfterFunc(fireAt.Sub(r.now()), func() { r.fireOnce(key, version) })
	default:
		return fmt.Errorf("cannot register %s trigger", kind)
	}

	r.jobs[key] = job
	r.log.Debug("job scheduled",
		zap.Uint("task", taskID),
		zap.String("instance", inst.Key()),
		zap.Stringer("kind", kind),
		zap.Time("fire_at", fireAt),
	)
	return nil
}

// fireOnce ignores callbacks of timers that were replaced or cancelled.
func (r *JobRegistry) fireOnce(key jobKey, version uint64) {
	r.mu.Lock()
	job, ok := r.jobs[key]
	if !ok || job.version != version {
		r.mu.Unlock()
		return
	}
	delete(r.jobs, key)
	r.mu.Unlock()

	r.onFire(key.taskID, key.inst)
}

// CancelAll removes every job of taskID and returns how many were removed.
func (r *JobRegistry) CancelAll(taskID uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, job := range r.jobs {
		if key.taskID == taskID {
			r.removeLocked(key, job)
			removed++
		}
	}
	return removed
}

func (r *JobRegistry) CancelInstance(taskID uint, inst model.InstanceID) bool {
	key := jobKey{taskID: taskID, inst: inst}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	if ok {
		r.removeLocked(key, job)
	}
	return ok
}

// removeLocked unregisters job. Call with r.mu held.
func (r *JobRegistry) removeLocked(key jobKey, job *scheduledJob) {
	if job.timer != nil {
		job.timer.Stop()
	}
	if job.entryID != 0 {
		r.cron.Remove(job.entryID)
	}
	delete(r.jobs, key)
}

// JobInfo describes an installed job.
type JobInfo struct {
	Instance model.InstanceID
	Kind     TriggerKind
	FireAt   time.Time
}

// Jobs lists the installed jobs of taskID.
func (r *JobRegistry) Jobs(taskID uint) []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []JobInfo
	for key, job := range r.jobs {
		if key.taskID == taskID {
			out = append(out, JobInfo{Instance: key.inst, Kind: job.kind, FireAt: job.fireAt})
		}
	}
	return out
}

// ScheduleDaily registers a daily job at the given HH:MM time string,
// independent of any task.
func (r *JobRegistry) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return r.cron.AddFunc(spec, job)
}

func buildDailySpec(timeStr string) (string, error) {
	clock, err := model.ParseClock(timeStr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("0 %d %d * * *", clock.Minute, clock.Hour), nil
}
