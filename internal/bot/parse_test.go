package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reminder-bot/internal/model"
	"reminder-bot/internal/service"
)

func TestParseTaskLine(t *testing.T) {
	now := time.Date(2024, 12, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		args string
		want service.TaskInput
	}{
		{
			name: "weekdays with interval",
			args: "mon,wed,mon 9:00,18:30 15m Зарядка утром",
			want: service.TaskInput{Description: "Зарядка утром", Days: []int{0, 2}, Times: []string{"09:00", "18:30"}, IntervalMinutes: 15},
		},
		{
			name: "daily default interval",
			args: "daily 08:00 Таблетки",
			want: service.TaskInput{Description: "Таблетки", Days: []int{0, 1, 2, 3, 4, 5, 6}, Times: []string{"08:00"}, IntervalMinutes: defaultIntervalMinutes},
		},
		{
			name: "russian day names",
			args: "сб,вс 10:00 60мин Уборка",
			want: service.TaskInput{Description: "Уборка", Days: []int{5, 6}, Times: []string{"10:00"}, IntervalMinutes: 60},
		},
		{
			name: "absolute date",
			args: "2024-12-25 16:00 Подарки",
			want: service.TaskInput{Description: "Подарки", Times: []string{"16:00"}, IntervalMinutes: defaultIntervalMinutes, OneTime: true, OneTimeDate: "2024-12-25"},
		},
		{
			name: "tomorrow",
			args: "tomorrow 07:30 5m Позвонить",
			want: service.TaskInput{Description: "Позвонить", Times: []string{"07:30"}, IntervalMinutes: 5, OneTime: true, OneTimeDate: "2024-12-17"},
		},
		{
			name: "once on weekday",
			args: "once:fri 10:00 Отчёт",
			want: service.TaskInput{Description: "Отчёт", Days: []int{4}, Times: []string{"10:00"}, IntervalMinutes: defaultIntervalMinutes, OneTime: true},
		},
		{
			name: "number without suffix is description",
			args: "weekends 11:00 42 задачи",
			want: service.TaskInput{Description: "42 задачи", Days: []int{5, 6}, Times: []string{"11:00"}, IntervalMinutes: defaultIntervalMinutes},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTaskLine(tt.args, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTaskLineErrors(t *testing.T) {
	now := time.Date(2024, 12, 16, 12, 0, 0, 0, time.UTC)

	_, err := parseTaskLine("daily 09:00", now)
	assert.ErrorIs(t, err, errUsage)
	_, err = parseTaskLine("daily 09:00 15m", now)
	assert.ErrorIs(t, err, errUsage)
	_, err = parseTaskLine("someday 09:00 x", now)
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)
	_, err = parseTaskLine("daily 9am x", now)
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)
	_, err = parseTaskLine("today 09:00,10:00 x", now)
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)
	_, err = parseTaskLine("once:xyz 09:00 x", now)
	assert.ErrorIs(t, err, model.ErrInvalidSchedule)
}

func TestParseTaskLineDropsRepeatedTimes(t *testing.T) {
	now := time.Date(2024, 12, 16, 12, 0, 0, 0, time.UTC)

	got, err := parseTaskLine("mon,mon 09:00,9:00,18:30 x", now)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got.Days)
	assert.Equal(t, []string{"09:00", "18:30"}, got.Times)
}

func TestParseSnoozeArgs(t *testing.T) {
	taskID, code, minutes, err := parseSnoozeArgs("3 09:00 15")
	require.NoError(t, err)
	assert.Equal(t, uint(3), taskID)
	assert.Equal(t, "0900", code)
	assert.Equal(t, 15, minutes)

	taskID, code, minutes, err = parseSnoozeArgs(" 12 0930  20 ")
	require.NoError(t, err)
	assert.Equal(t, uint(12), taskID)
	assert.Equal(t, "0930", code)
	assert.Equal(t, 20, minutes)

	for _, bad := range []string{"", "3 09:00", "x 09:00 15", "3 25:00 15", "3 0961 15", "3 09:00 soon", "3 09:00 15 extra"} {
		_, _, _, err := parseSnoozeArgs(bad)
		assert.ErrorIs(t, err, errSnoozeUsage, bad)
	}
}

func TestParseInstanceData(t *testing.T) {
	taskID, code, extra, err := parseInstanceData("snoozeopt:12:0930:60", cbSnoozeOptPrefix)
	require.NoError(t, err)
	assert.Equal(t, uint(12), taskID)
	assert.Equal(t, "0930", code)
	assert.Equal(t, "60", extra)

	taskID, code, extra, err = parseInstanceData("done:3:2330", cbDonePrefix)
	require.NoError(t, err)
	assert.Equal(t, uint(3), taskID)
	assert.Equal(t, "2330", code)
	assert.Empty(t, extra)

	for _, bad := range []string{"done:", "done:x:0900", "done:1:9", "done:1"} {
		_, _, _, err := parseInstanceData(bad, cbDonePrefix)
		assert.Error(t, err, bad)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "09:30", codeToTime("0930"))
	assert.Equal(t, "Пн, Ср", formatDays([]int{0, 2}))
	assert.Equal(t, "каждый день", formatDays([]int{0, 1, 2, 3, 4, 5, 6}))
	assert.Equal(t, "abc…", shortTitle("abcdef", 4))

	task := model.Task{ID: 2, Description: "a<b", Days: "0,2", Times: "09:00", IntervalMinutes: 30}
	assert.Equal(t, "<b>#2</b> a&lt;b\n📅 Пн, Ср · ⏰ 09:00 · 🔁 каждые 30 мин", formatTask(task))
}
