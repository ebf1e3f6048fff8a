package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is one of Recurring, OneTimeDate or OneTimeWeekday.
type Schedule interface {
	isSchedule()
}

// Recurring fires every week on each day × time pair.
type Recurring struct {
	Days  []int
	Times []Clock
}

// OneTimeDate fires once at an absolute instant.
type OneTimeDate struct {
	At time.Time
}

// OneTimeWeekday fires once at the next occurrence of Day at Time.
type OneTimeWeekday struct {
	Day  int
	Time Clock
}

func (Recurring) isSchedule()      {}
func (OneTimeDate) isSchedule()    {}
func (OneTimeWeekday) isSchedule() {}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("%w: invalid time %q, expected HH:MM", ErrInvalidSchedule, s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("%w: invalid hour in %q", ErrInvalidSchedule, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: invalid minute in %q", ErrInvalidSchedule, s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// ParseClocks parses HH:MM values in order, dropping repeated times.
func ParseClocks(raw []string) ([]Clock, error) {
	clocks := make([]Clock, 0, len(raw))
	seen := make(map[Clock]bool)
	for _, r := range raw {
		c, err := ParseClock(r)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			clocks = append(clocks, c)
		}
	}
	return clocks, nil
}

// String formats as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Code formats as HHMM, the form used in instance tokens and callback payloads.
func (c Clock) Code() string {
	return fmt.Sprintf("%02d%02d", c.Hour, c.Minute)
}

// On returns the instant of c on the calendar day of t, in t's location.
func (c Clock) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

// WeekdayIndex maps t to 0 = Monday … 6 = Sunday.
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// CronWeekday maps a 0 = Monday index to cron's 0 = Sunday numbering.
func CronWeekday(day int) int {
	return (day + 1) % 7
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// Schedule decodes the stored columns into a Schedule, interpreting dates in loc.
func (t Task) Schedule(loc *time.Location) (Schedule, error) {
	if loc == nil {
		loc = time.Local
	}
	times, err := ParseClocks(t.TimeList())
	if err != nil {
		return nil, err
	}
	var days []int
	seenDays := make(map[int]bool)
	for _, d := range t.DayList() {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidSchedule, d)
		}
		if !seenDays[d] {
			seenDays[d] = true
			days = append(days, d)
		}
	}

	if !t.IsOneTime {
		if len(days) == 0 || len(times) == 0 {
			return nil, fmt.Errorf("%w: recurring task needs days and times", ErrInvalidSchedule)
		}
		return Recurring{Days: days, Times: times}, nil
	}

	if date := strings.TrimSpace(t.OneTimeDate); date != "" {
		if len(date) == len(dateLayout) {
			if len(times) == 0 {
				return nil, fmt.Errorf("%w: one-time date %q has no time", ErrInvalidSchedule, date)
			}
			day, err := time.ParseInLocation(dateLayout, date, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
			}
			return OneTimeDate{At: times[0].On(day)}, nil
		}
		at, err := time.ParseInLocation(dateTimeLayout, date, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
		return OneTimeDate{At: at}, nil
	}

	if len(days) == 0 || len(times) == 0 {
		return nil, fmt.Errorf("%w: one-time task needs a date or a weekday and time", ErrInvalidSchedule)
	}
	return OneTimeWeekday{Day: days[0], Time: times[0]}, nil
}
