package model

import (
	"strconv"
	"strings"
	"time"
)

// Task is a reminder definition owned by a Telegram user.
type Task struct {
	ID              uint  `gorm:"primaryKey"`
	UserID          int64 `gorm:"index"`
	Description     string
	Days            string // comma separated weekday indexes, 0 = Monday
	Times           string // comma separated HH:MM
	IntervalMinutes int
	IsOneTime       bool   `gorm:"default:false"`
	OneTimeDate     string // YYYY-MM-DD or YYYY-MM-DD HH:MM
	IsCompleted     bool   `gorm:"default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DayList returns the parsed weekday indexes. Malformed entries are skipped.
func (t Task) DayList() []int {
	var days []int
	for _, raw := range strings.Split(t.Days, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}

// TimeList returns the configured HH:MM times in stored order.
func (t Task) TimeList() []string {
	var times []string
	for _, raw := range strings.Split(t.Times, ",") {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			times = append(times, raw)
		}
	}
	return times
}

// JoinDays encodes weekday indexes for the Days column.
func JoinDays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// JoinTimes encodes HH:MM values for the Times column.
func JoinTimes(times []string) string {
	return strings.Join(times, ",")
}
