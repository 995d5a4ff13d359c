package model

import (
	"fmt"
	"time"
)

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusRejected  ReservationStatus = "rejected"
	StatusCompleted ReservationStatus = "completed"
	StatusNoShow    ReservationStatus = "no_show"
)

// reservationTransitions lists the allowed status transitions. Completed,
// no-show, rejected and cancelled are terminal.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted, StatusNoShow},
	StatusCancelled: {},
	StatusRejected:  {},
	StatusCompleted: {},
	StatusNoShow:    {},
}

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	_, ok := reservationTransitions[s]
	return ok
}

// Reservation is a customer's claim against a slot (scheduled) or directly
// against a service+date+time (on-demand, SlotID nil). Reservations are never
// hard-deleted; cancellation is a status transition.
type Reservation struct {
	ID           int64             `json:"id"`
	Code         string            `json:"code"` // external reference, uuid
	CustomerID   int64             `json:"customer_id"`
	BusinessID   int64             `json:"business_id"`
	ServiceID    int64             `json:"service_id"`
	SlotID       *int64            `json:"slot_id,omitempty"`
	Date         time.Time         `json:"date"`
	StartTime    string            `json:"start_time"` // "10:00"
	DurationMin  int               `json:"duration_min"`
	Status       ReservationStatus `json:"status"`
	ClientName   string            `json:"client_name"`
	ClientPhone  string            `json:"client_phone"`
	Notes        string            `json:"notes,omitempty"`
	ReminderSent bool              `json:"reminder_sent"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// CanTransition reports whether moving to the given status is allowed.
func (r *Reservation) CanTransition(to ReservationStatus) bool {
	for _, s := range reservationTransitions[r.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves the reservation to the given status or fails with
// ErrIllegalStateTransition.
func (r *Reservation) Transition(to ReservationStatus) error {
	if !r.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalStateTransition, r.Status, to)
	}
	r.Status = to
	return nil
}

// Terminal reports whether no further transition is possible.
func (r *Reservation) Terminal() bool {
	return len(reservationTransitions[r.Status]) == 0
}

// Cancellable reports whether the reservation may still be cancelled. The
// same states permit edits to date/time, contact fields and notes.
func (r *Reservation) Cancellable() bool {
	return r.Status == StatusPending || r.Status == StatusConfirmed
}

// CountsAgainstCapacity reports whether the reservation occupies slot
// capacity. Cancelled and no-show reservations release their seat.
func (r *Reservation) CountsAgainstCapacity() bool {
	return r.Status != StatusCancelled && r.Status != StatusNoShow
}

// OnDemand reports whether the reservation has no slot reference.
func (r *Reservation) OnDemand() bool {
	return r.SlotID == nil
}

// StartsAt returns the reservation's absolute start instant.
func (r *Reservation) StartsAt() (time.Time, error) {
	return ClockOnDate(r.Date, r.StartTime)
}
