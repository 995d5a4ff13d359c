package model

import (
	"fmt"
	"time"
)

// OrderMode determines whether a service is booked against pre-generated
// slots or on demand without slots.
type OrderMode string

const (
	OrderModeScheduled OrderMode = "scheduled"
	OrderModeOnDemand  OrderMode = "on_demand"
)

// Service is an offering of a business (a menu item). A scheduled service
// requires slots and a positive duration; an on-demand service is bookable at
// any time with conceptually unlimited capacity, its duration informational.
type Service struct {
	ID          int64     `json:"id"`
	BusinessID  int64     `json:"business_id"`
	Name        string    `json:"name"`
	OrderMode   OrderMode `json:"order_mode"`
	DurationMin int       `json:"duration_min"`
	Capacity    int       `json:"capacity"` // per-slot capacity, 0 = unlimited
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Scheduled reports whether the service books against slots.
func (s *Service) Scheduled() bool {
	return s.OrderMode == OrderModeScheduled
}

// Validate checks mode-dependent invariants.
func (s *Service) Validate() error {
	switch s.OrderMode {
	case OrderModeScheduled:
		if s.DurationMin <= 0 {
			return fmt.Errorf("scheduled service requires positive duration, got %d", s.DurationMin)
		}
	case OrderModeOnDemand:
		// duration is informational only
	default:
		return fmt.Errorf("unknown order mode: %s", s.OrderMode)
	}
	if s.Capacity < 0 {
		return fmt.Errorf("negative capacity: %d", s.Capacity)
	}
	return nil
}
