package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a task or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSchedule is returned for malformed days, times, dates or intervals.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Global snooze records use this reserved key.
const (
	GlobalSnoozeTaskID uint = 0
	GlobalSnoozeToken       = "*"
)

// InstanceID names one fireable slot of a task. Slot is the weekday index
// for recurring tasks and the YYYYMMDD date for one-time tasks.
type InstanceID struct {
	Slot string
	Time Clock
}

// Key is the job registry key within a task.
func (i InstanceID) Key() string {
	return i.Slot + "_" + i.Time.Code()
}

// Token returns the instance token shared by completions, snoozes and repeat chains.
func (i InstanceID) Token(taskID uint) Token {
	return NewToken(taskID, i.Time.Code())
}

// Token is "<task id>_<HHMM>".
type Token string

// NewToken builds a token from a task id and an HHMM code.
func NewToken(taskID uint, code string) Token {
	return Token(fmt.Sprintf("%d_%s", taskID, code))
}

// TaskPrefix is the prefix every token of taskID starts with.
func TaskPrefix(taskID uint) string {
	return strconv.FormatUint(uint64(taskID), 10) + "_"
}

// Hour extracts the hour from a trailing HHMM component.
func (t Token) Hour() (int, bool) {
	s := string(t)
	i := strings.LastIndex(s, "_")
	if i < 0 {
		return 0, false
	}
	code := s[i+1:]
	if len(code) != 4 {
		return 0, false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	hour, _ := strconv.Atoi(code[:2])
	return hour, true
}

// Completion records that a user acknowledged an instance.
type Completion struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      int64  `gorm:"uniqueIndex:idx_completion_key"`
	TaskID      uint   `gorm:"uniqueIndex:idx_completion_key"`
	Token       string `gorm:"uniqueIndex:idx_completion_key"`
	CompletedAt time.Time
}

// Snooze suppresses delivery for an instance, or for every instance of a
// user when TaskID and Token hold the global key.
type Snooze struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       int64  `gorm:"uniqueIndex:idx_snooze_key"`
	TaskID       uint   `gorm:"uniqueIndex:idx_snooze_key"`
	Token        string `gorm:"uniqueIndex:idx_snooze_key"`
	SnoozedUntil time.Time
}
