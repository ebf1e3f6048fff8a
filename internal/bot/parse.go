package bot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"reminder-bot/internal/model"
	"reminder-bot/internal/service"
)

const defaultIntervalMinutes = 30

var (
	errUsage       = errors.New("usage")
	errSnoozeUsage = errors.New("snooze usage")
)

var dayNames = map[string]int{
	"mon": 0, "monday": 0, "пн": 0,
	"tue": 1, "tuesday": 1, "вт": 1,
	"wed": 2, "wednesday": 2, "ср": 2,
	"thu": 3, "thursday": 3, "чт": 3,
	"fri": 4, "friday": 4, "пт": 4,
	"sat": 5, "saturday": 5, "сб": 5,
	"sun": 6, "sunday": 6, "вс": 6,
}

var shortDayLabels = [7]string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

var (
	intervalPattern = regexp.MustCompile(`^(\d{1,4})(m|мин)$`)
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// parseTaskLine parses "<when> <times> [<N>m] <description>".
//
//	when:  daily | weekdays | weekends | mon,wed | YYYY-MM-DD | today | tomorrow | once:fri
//	times: 09:00,18:30 (one-time reminders take a single time)
func parseTaskLine(args string, now time.Time) (service.TaskInput, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return service.TaskInput{}, errUsage
	}

	input := service.TaskInput{IntervalMinutes: defaultIntervalMinutes}
	if err := parseWhen(strings.ToLower(fields[0]), now, &input); err != nil {
		return service.TaskInput{}, err
	}

	clocks, err := model.ParseClocks(strings.Split(fields[1], ","))
	if err != nil {
		return service.TaskInput{}, err
	}
	times := make([]string, 0, len(clocks))
	for _, c := range clocks {
		times = append(times, c.String())
	}
	if input.OneTime && len(times) > 1 {
		return service.TaskInput{}, fmt.Errorf("%w: one-time reminder takes a single time", model.ErrInvalidSchedule)
	}
	input.Times = times

	rest := fields[2:]
	if m := intervalPattern.FindStringSubmatch(strings.ToLower(rest[0])); m != nil {
		input.IntervalMinutes, _ = strconv.Atoi(m[1])
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return service.TaskInput{}, errUsage
	}
	input.Description = strings.Join(rest, " ")
	return input, nil
}

func parseWhen(when string, now time.Time, input *service.TaskInput) error {
	switch {
	case when == "daily":
		input.Days = []int{0, 1, 2, 3, 4, 5, 6}
	case when == "weekdays":
		input.Days = []int{0, 1, 2, 3, 4}
	case when == "weekends":
		input.Days = []int{5, 6}
	case when == "today":
		input.OneTime = true
		input.OneTimeDate = now.Format("2006-01-02")
	case when == "tomorrow":
		input.OneTime = true
		input.OneTimeDate = now.AddDate(0, 0, 1).Format("2006-01-02")
	case datePattern.MatchString(when):
		input.OneTime = true
		input.OneTimeDate = when
	case strings.HasPrefix(when, "once:"):
		day, ok := dayNames[strings.TrimPrefix(when, "once:")]
		if !ok {
			return fmt.Errorf("%w: unknown day %q", model.ErrInvalidSchedule, when)
		}
		input.OneTime = true
		input.Days = []int{day}
	default:
		days, err := parseDays(when)
		if err != nil {
			return err
		}
		input.Days = days
	}
	return nil
}

// parseDays parses a comma separated list of day names, dropping duplicates.
func parseDays(list string) ([]int, error) {
	seen := make(map[int]bool)
	var days []int
	for _, name := range strings.Split(list, ",") {
		day, ok := dayNames[strings.TrimSpace(name)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown day %q", model.ErrInvalidSchedule, name)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	return days, nil
}

// parseInstanceData splits "<prefix><task id>:<HHMM>[:<extra>]".
func parseInstanceData(data, prefix string) (uint, string, string, error) {
	parts := strings.SplitN(strings.TrimPrefix(data, prefix), ":", 3)
	if len(parts) < 2 {
		return 0, "", "", fmt.Errorf("malformed callback %q", data)
	}
	taskID, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, "", "", fmt.Errorf("malformed callback %q: %w", data, err)
	}
	code := parts[1]
	if _, ok := model.NewToken(uint(taskID), code).Hour(); !ok {
		return 0, "", "", fmt.Errorf("malformed callback %q", data)
	}
	extra := ""
	if len(parts) == 3 {
		extra = parts[2]
	}
	return uint(taskID), code, extra, nil
}

// parseSnoozeArgs parses "<task id> <HH:MM|HHMM> <minutes>" into a task id,
// an HHMM code and the snooze length.
func parseSnoozeArgs(args string) (uint, string, int, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return 0, "", 0, errSnoozeUsage
	}
	taskID, err := parseTaskID(fields[0])
	if err != nil {
		return 0, "", 0, errSnoozeUsage
	}
	raw := fields[1]
	if len(raw) == 4 && !strings.Contains(raw, ":") {
		raw = codeToTime(raw)
	}
	clock, err := model.ParseClock(raw)
	if err != nil {
		return 0, "", 0, fmt.Errorf("%w: %v", errSnoozeUsage, err)
	}
	minutes, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, "", 0, errSnoozeUsage
	}
	return taskID, clock.Code(), minutes, nil
}

func parseTaskID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// codeToTime turns an HHMM code into HH:MM.
func codeToTime(code string) string {
	if len(code) != 4 {
		return code
	}
	return code[:2] + ":" + code[2:]
}

func formatDays(days []int) string {
	if len(days) == 7 {
		return "каждый день"
	}
	labels := make([]string, 0, len(days))
	for _, d := range days {
		if d >= 0 && d < len(shortDayLabels) {
			labels = append(labels, shortDayLabels[d])
		}
	}
	return strings.Join(labels, ", ")
}
