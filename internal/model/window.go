package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OperatingWindow is one contiguous open/close range for a business on one
// weekday. Seq orders multiple windows on the same weekday (e.g. split by a
// lunch break). Times are zero-padded "HH:MM" strings, so lexicographic
// comparison matches chronological order.
type OperatingWindow struct {
	ID         int64     `json:"id"`
	BusinessID int64     `json:"business_id"`
	DayOfWeek  int       `json:"day_of_week"` // 1 = Monday .. 7 = Sunday
	Seq        int       `json:"seq"`
	OpenTime   string    `json:"open_time"`  // "09:00"
	CloseTime  string    `json:"close_time"` // "18:00"
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the open < close invariant and time formats.
func (w *OperatingWindow) Validate() error {
	open, err := ParseClock(w.OpenTime)
	if err != nil {
		return fmt.Errorf("%w: open %q", ErrInvalidTimeRange, w.OpenTime)
	}
	close, err := ParseClock(w.CloseTime)
	if err != nil {
		return fmt.Errorf("%w: close %q", ErrInvalidTimeRange, w.CloseTime)
	}
	if open >= close {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidTimeRange, w.OpenTime, w.CloseTime)
	}
	if w.DayOfWeek < 1 || w.DayOfWeek > 7 {
		return fmt.Errorf("invalid day of week: %d", w.DayOfWeek)
	}
	return nil
}

// Contains reports whether [start, end) lies fully inside the window.
func (w *OperatingWindow) Contains(start, end string) bool {
	return start >= w.OpenTime && end <= w.CloseTime
}

// Weekday converts time.Weekday to the 1..7 convention (Sunday = 7).
func Weekday(t time.Time) int {
	d := int(t.Weekday())
	if d == 0 {
		return 7
	}
	return d
}

// ParseClock parses a "HH:MM" string into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ClockOnDate places a "HH:MM" string onto a calendar date.
func ClockOnDate(date time.Time, s string) (time.Time, error) {
	minutes, err := ParseClock(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, date.Location()), nil
}
