package model

import "errors"

// Domain errors shared by the store, engine and API layers.
// Callers match with errors.Is; the API layer maps them to status codes.
var (
	// ErrNotFound is returned when a slot, service, customer or reservation
	// id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a duplicate slot start time within a batch
	// or when a slot's capacity is exhausted.
	ErrConflict = errors.New("conflict")

	// ErrInvalidTimeRange is returned when start >= end or a time input is
	// malformed.
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrPastDate is returned when an operation targets an elapsed date/time.
	ErrPastDate = errors.New("cannot book in the past")

	// ErrOutOfOperatingHours is returned when a requested explicit range is
	// not contained in any operating window for that weekday.
	ErrOutOfOperatingHours = errors.New("outside operating hours")

	// ErrIllegalStateTransition is returned when a reservation mutation is
	// attempted from a status that does not permit it.
	ErrIllegalStateTransition = errors.New("illegal state transition")

	// ErrProtectedByActiveReservations is returned when changing a service's
	// duration or deactivating it while live future reservations exist.
	ErrProtectedByActiveReservations = errors.New("protected by active reservations")

	// ErrInvalidStep is returned when a slot generation step is not positive.
	ErrInvalidStep = errors.New("step must be positive")

	// ErrServiceInactive is returned when a reservation targets a
	// deactivated service.
	ErrServiceInactive = errors.New("service is inactive")

	// ErrRateLimited is returned when on-demand creation exceeds the
	// per-business limit.
	ErrRateLimited = errors.New("rate limited")
)
