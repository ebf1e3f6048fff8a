package service

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"reminder-bot/internal/model"
)

// TriggerKind says how a planned slot must be armed.
type TriggerKind int

const (
	// TriggerWeekly is a timer that fires every week at FireAt's weekday and time.
	TriggerWeekly TriggerKind = iota
	// TriggerOnce is a single timer at FireAt.
	TriggerOnce
	// TriggerImmediate means the slot is already due and must be delivered now.
	TriggerImmediate
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerWeekly:
		return "weekly"
	case TriggerOnce:
		return "once"
	case TriggerImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("TriggerKind(%d)", int(k))
	}
}

// Trigger is one planned firing of a task instance.
type Trigger struct {
	Instance model.InstanceID
	Kind     TriggerKind
	FireAt   time.Time
}

// Planner computes fire times for tasks. It has no side effects.
type Planner struct {
	loc *time.Location
}

func NewPlanner(loc *time.Location) *Planner {
	if loc == nil {
		loc = time.Local
	}
	return &Planner{loc: loc}
}

// Plan returns the triggers for task as seen at now.
//
// A recurring slot of the current weekday whose time already passed gets a
// weekly trigger for next week plus an immediate catch-up trigger.
func (p *Planner) Plan(task model.Task, now time.Time) ([]Trigger, error) {
	sched, err := task.Schedule(p.loc)
	if err != nil {
		return nil, err
	}
	now = now.In(p.loc)

	switch s := sched.(type) {
	case model.Recurring:
		return p.planRecurring(s, now)
	case model.OneTimeDate:
		return []Trigger{planInstant(s.At.In(p.loc), now)}, nil
	case model.OneTimeWeekday:
		daysUntil := (s.Day - model.WeekdayIndex(now) + 7) % 7
		at := s.Time.On(now.AddDate(0, 0, daysUntil))
		return []Trigger{planInstant(at, now)}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported schedule %T", model.ErrInvalidSchedule, sched)
	}
}

func (p *Planner) planRecurring(s model.Recurring, now time.Time) ([]Trigger, error) {
	today := model.WeekdayIndex(now)
	triggers := make([]Trigger, 0, len(s.Days)*len(s.Times))
	for _, day := range s.Days {
		for _, clock := range s.Times {
			next, err := nextWeekly(day, clock, now)
			if err != nil {
				return nil, err
			}
			inst := model.InstanceID{Slot: fmt.Sprint(day), Time: clock}
			triggers = append(triggers, Trigger{Instance: inst, Kind: TriggerWeekly, FireAt: next})

			if day == today {
				if slot := clock.On(now); !slot.After(now) {
					triggers = append(triggers, Trigger{Instance: inst, Kind: TriggerImmediate, FireAt: slot})
				}
			}
		}
	}
	return triggers, nil
}

// planInstant returns a one-shot trigger, or an immediate one if at is not in the future.
func planInstant(at, now time.Time) Trigger {
	inst := model.InstanceID{
		Slot: at.Format("20060102"),
		Time: model.Clock{Hour: at.Hour(), Minute: at.Minute()},
	}
	if !at.After(now) {
		return Trigger{Instance: inst, Kind: TriggerImmediate, FireAt: at}
	}
	return Trigger{Instance: inst, Kind: TriggerOnce, FireAt: at}
}

// weeklySpec builds a seconds-field cron spec for day (0 = Monday) at clock.
func weeklySpec(day int, clock model.Clock) string {
	return fmt.Sprintf("0 %d %d * * %d", clock.Minute, clock.Hour, model.CronWeekday(day))
}

var weeklyParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func nextWeekly(day int, clock model.Clock, now time.Time) (time.Time, error) {
	sched, err := weeklyParser.Parse(weeklySpec(day, clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", model.ErrInvalidSchedule, err)
	}
	return sched.Next(now), nil
}
