package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskSchedule(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name string
		task Task
		want Schedule
	}{
		{
			name: "recurring",
			task: Task{Days: "0,2", Times: "09:00,18:30"},
			want: Recurring{Days: []int{0, 2}, Times: []Clock{{9, 0}, {18, 30}}},
		},
		{
			name: "one-time date with separate time",
			task: Task{IsOneTime: true, OneTimeDate: "2024-12-25", Times: "16:00"},
			want: OneTimeDate{At: time.Date(2024, 12, 25, 16, 0, 0, 0, loc)},
		},
		{
			name: "one-time date with embedded time",
			task: Task{IsOneTime: true, OneTimeDate: "2024-12-25 07:15"},
			want: OneTimeDate{At: time.Date(2024, 12, 25, 7, 15, 0, 0, loc)},
		},
		{
			name: "one-time weekday",
			task: Task{IsOneTime: true, Days: "4", Times: "20:00"},
			want: OneTimeWeekday{Day: 4, Time: Clock{20, 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.task.Schedule(loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskScheduleInvalid(t *testing.T) {
	tasks := map[string]Task{
		"no days":        {Times: "09:00"},
		"bad time":       {Days: "1", Times: "9am"},
		"hour too large": {Days: "1", Times: "24:00"},
		"day too large":  {Days: "7", Times: "09:00"},
		"bad date":       {IsOneTime: true, OneTimeDate: "2024-13-45 10:00"},
		"date no time":   {IsOneTime: true, OneTimeDate: "2024-12-25"},
		"one-time empty": {IsOneTime: true},
	}
	for name, task := range tasks {
		t.Run(name, func(t *testing.T) {
			_, err := task.Schedule(time.UTC)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSchedule))
		})
	}
}

func TestTokenHour(t *testing.T) {
	hour, ok := NewToken(12, "2330").Hour()
	assert.True(t, ok)
	assert.Equal(t, 23, hour)

	_, ok = Token("12_date").Hour()
	assert.False(t, ok)
	_, ok = Token(GlobalSnoozeToken).Hour()
	assert.False(t, ok)
}

func TestInstanceID(t *testing.T) {
	inst := InstanceID{Slot: "0", Time: Clock{9, 5}}
	assert.Equal(t, "0_0905", inst.Key())
	assert.Equal(t, Token("7_0905"), inst.Token(7))
	assert.Equal(t, "7_", TaskPrefix(7))
}

func TestWeekdayIndex(t *testing.T) {
	monday := time.Date(2024, 12, 16, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 12, 22, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, WeekdayIndex(monday))
	assert.Equal(t, 6, WeekdayIndex(sunday))
	assert.Equal(t, 1, CronWeekday(0))
	assert.Equal(t, 0, CronWeekday(6))
}

func TestTaskScheduleDropsRepeats(t *testing.T) {
	task := Task{Days: "2,0,2", Times: "09:00,9:00,18:30,09:00"}
	sched, err := task.Schedule(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, Recurring{
		Days:  []int{2, 0},
		Times: []Clock{{Hour: 9}, {Hour: 18, Minute: 30}},
	}, sched)
}

func TestParseClocks(t *testing.T) {
	clocks, err := ParseClocks([]string{"07:05", " 7:05", "23:59"})
	require.NoError(t, err)
	assert.Equal(t, []Clock{{Hour: 7, Minute: 5}, {Hour: 23, Minute: 59}}, clocks)

	_, err = ParseClocks([]string{"07:05", "7pm"})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}
