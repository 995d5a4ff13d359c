package model

import (
	"fmt"
	"time"
)

// Slot is one bookable (or blocked) interval for a business. Capacity 0 means
// unlimited; capacity >= 1 caps the number of active reservations. Identity is
// unique per (business, date, start) regardless of end time.
type Slot struct {
	ID         int64     `json:"id"`
	BusinessID int64     `json:"business_id"`
	ServiceID  int64     `json:"service_id"`
	Date       time.Time `json:"date"`       // midnight of the slot's day
	StartTime  string    `json:"start_time"` // "10:00"
	EndTime    string    `json:"end_time"`   // "10:30"
	Capacity   int       `json:"capacity"`
	Available  bool      `json:"available"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the start < end invariant and that capacity is not negative.
func (s *Slot) Validate() error {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start %q", ErrInvalidTimeRange, s.StartTime)
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end %q", ErrInvalidTimeRange, s.EndTime)
	}
	if start >= end {
		return fmt.Errorf("%w: %s >= %s", ErrInvalidTimeRange, s.StartTime, s.EndTime)
	}
	if s.Capacity < 0 {
		return fmt.Errorf("negative capacity: %d", s.Capacity)
	}
	return nil
}

// Unlimited reports whether the slot has no capacity ceiling.
func (s *Slot) Unlimited() bool {
	return s.Capacity == 0
}

// CanAccept is the capacity gate: given the count of active reservations
// against this slot, decides whether one more claim fits. Unlimited slots are
// gated only by the available flag.
func (s *Slot) CanAccept(activeCount int) bool {
	if !s.Available {
		return false
	}
	if s.Unlimited() {
		return true
	}
	return activeCount < s.Capacity
}

// StartsAt returns the slot's absolute start instant.
func (s *Slot) StartsAt() (time.Time, error) {
	return ClockOnDate(s.Date, s.StartTime)
}
