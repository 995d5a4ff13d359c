// Package engine implements the reservation lifecycle. The engine is the
// sole writer of reservation state and the sole consumer of the capacity
// gate.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slotbook/internal/metrics"
	"slotbook/internal/model"
)

// Store is the persistence surface the engine mutates reservations through.
// CreateScheduledReservation must perform the capacity check and the insert
// atomically; see the store package for the locking contract.
type Store interface {
	GetCustomer(ctx context.Context, id int64) (*model.Customer, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
	GetSlot(ctx context.Context, id int64) (*model.Slot, error)
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	CreateScheduledReservation(ctx context.Context, r *model.Reservation) error
	CreateOnDemandReservation(ctx context.Context, r *model.Reservation) error
	TransitionReservation(ctx context.Context, id int64, from, to model.ReservationStatus) error
	UpdateReservationDetails(ctx context.Context, r *model.Reservation) error
}

// OnDemandLimit configures the per-business rate limit for on-demand
// reservation creation. Zero value disables limiting.
type OnDemandLimit struct {
	PerMinute int
	Burst     int
}

// Engine creates and transitions reservations.
type Engine struct {
	store  Store
	now    model.Clock
	logger *zerolog.Logger

	limitCfg OnDemandLimit
	limiters map[int64]*rate.Limiter
	mu       sync.Mutex
}

// New creates an engine. now may be nil, defaulting to time.Now.
func New(store Store, now model.Clock, limit OnDemandLimit, logger *zerolog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    store,
		now:      now,
		logger:   logger,
		limitCfg: limit,
		limiters: make(map[int64]*rate.Limiter),
	}
}

// CreateRequest carries the customer's claim. For a scheduled service SlotID
// is required and Date/StartTime are taken from the slot; for an on-demand
// service Date and StartTime are required and SlotID must be absent.
type CreateRequest struct {
	CustomerID  int64     `json:"customer_id"`
	ServiceID   int64     `json:"service_id"`
	SlotID      *int64    `json:"slot_id,omitempty"`
	Date        time.Time `json:"date"`
	StartTime   string    `json:"start_time"`
	ClientName  string    `json:"client_name"`
	ClientPhone string    `json:"client_phone"`
	Notes       string    `json:"notes,omitempty"`
}

// CreateReservation claims a slot (scheduled) or a service+date+time
// (on-demand). Scheduled claims start PENDING; on-demand claims start
// CONFIRMED since there is no approval contention.
func (e *Engine) CreateReservation(ctx context.Context, req CreateRequest) (*model.Reservation, error) {
	customer, err := e.store.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	service, err := e.store.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !service.Active {
		return nil, fmt.Errorf("%w: service %d", model.ErrServiceInactive, service.ID)
	}

	r := &model.Reservation{
		Code:        uuid.NewString(),
		CustomerID:  customer.ID,
		BusinessID:  service.BusinessID,
		ServiceID:   service.ID,
		DurationMin: service.DurationMin,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		Notes:       req.Notes,
	}
	if r.ClientName == "" {
		r.ClientName = customer.Name
	}
	if r.ClientPhone == "" {
		r.ClientPhone = customer.Phone
	}

	if service.Scheduled() {
		if req.SlotID == nil {
			return nil, fmt.Errorf("service %d requires a slot", service.ID)
		}
		slot, err := e.store.GetSlot(ctx, *req.SlotID)
		if err != nil {
			return nil, err
		}
		// A slot only satisfies claims for the service it was generated for;
		// accepting a foreign slot id would burn another service's capacity.
		if slot.ServiceID != service.ID {
			return nil, fmt.Errorf("%w: slot %d for service %d", model.ErrNotFound, slot.ID, service.ID)
		}
		if err := slot.Validate(); err != nil {
			return nil, err
		}
		if err := e.checkNotPast(slot.Date, slot.StartTime); err != nil {
			return nil, err
		}

		// Reservation time is the slot's time; the two may never diverge.
		r.SlotID = &slot.ID
		r.Date = slot.Date
		r.StartTime = slot.StartTime
		r.Status = model.StatusPending

		if err := e.store.CreateScheduledReservation(ctx, r); err != nil {
			if errors.Is(err, model.ErrConflict) {
				metrics.IncCapacityRejected()
			}
			return nil, err
		}
	} else {
		if req.SlotID != nil {
			return nil, fmt.Errorf("on-demand service %d takes no slot reference", service.ID)
		}
		if err := e.checkNotPast(req.Date, req.StartTime); err != nil {
			return nil, err
		}
		if !e.allowOnDemand(service.BusinessID) {
			return nil, fmt.Errorf("%w: business %d", model.ErrRateLimited, service.BusinessID)
		}

		r.Date = midnight(req.Date)
		r.StartTime = req.StartTime
		r.Status = model.StatusConfirmed

		if err := e.store.CreateOnDemandReservation(ctx, r); err != nil {
			return nil, err
		}
	}

	metrics.IncReservationCreated(string(r.Status))
	if e.logger != nil {
		e.logger.Info().
			Int64("reservation_id", r.ID).
			Str("code", r.Code).
			Str("status", string(r.Status)).
			Msg("reservation created")
	}
	return r, nil
}

// Approve confirms a pending reservation on behalf of the owning business.
func (e *Engine) Approve(ctx context.Context, reservationID, businessID int64) (*model.Reservation, error) {
	return e.transition(ctx, reservationID, businessID, model.StatusConfirmed, "approved")
}

// Reject declines a pending reservation.
func (e *Engine) Reject(ctx context.Context, reservationID, businessID int64) (*model.Reservation, error) {
	return e.transition(ctx, reservationID, businessID, model.StatusRejected, "rejected")
}

// Cancel cancels a pending or confirmed reservation. Cancellation is a
// status transition, never a delete; the slot seat is released because
// cancelled reservations stop counting against capacity.
func (e *Engine) Cancel(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	return e.transition(ctx, reservationID, 0, model.StatusCancelled, "cancelled")
}

// Complete marks a confirmed reservation as fulfilled.
func (e *Engine) Complete(ctx context.Context, reservationID, businessID int64) (*model.Reservation, error) {
	return e.transition(ctx, reservationID, businessID, model.StatusCompleted, "completed")
}

// MarkNoShow marks a confirmed reservation as a no-show, releasing its seat.
func (e *Engine) MarkNoShow(ctx context.Context, reservationID, businessID int64) (*model.Reservation, error) {
	return e.transition(ctx, reservationID, businessID, model.StatusNoShow, "no_show")
}

func (e *Engine) transition(ctx context.Context, reservationID, businessID int64, to model.ReservationStatus, action string) (*model.Reservation, error) {
	r, err := e.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if businessID != 0 && r.BusinessID != businessID {
		return nil, fmt.Errorf("%w: reservation %d", model.ErrNotFound, reservationID)
	}

	from := r.Status
	if err := r.Transition(to); err != nil {
		return nil, err
	}
	if err := e.store.TransitionReservation(ctx, reservationID, from, to); err != nil {
		return nil, err
	}

	metrics.IncReservationDecision(action)
	if e.logger != nil {
		e.logger.Info().
			Int64("reservation_id", reservationID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("reservation " + action)
	}
	return r, nil
}

// UpdateRequest carries editable reservation fields. Nil pointers leave the
// field unchanged.
type UpdateRequest struct {
	Date        *time.Time `json:"date,omitempty"`
	StartTime   *string    `json:"start_time,omitempty"`
	ClientName  *string    `json:"client_name,omitempty"`
	ClientPhone *string    `json:"client_phone,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

// Update edits a reservation still in a cancellable state. Date/time edits
// re-validate "not past" but never re-check capacity: the slot reference is
// kept, which for a scheduled reservation pins date and start time to the
// slot. Moving a scheduled reservation means cancelling and re-claiming.
func (e *Engine) Update(ctx context.Context, reservationID int64, upd UpdateRequest) (*model.Reservation, error) {
	r, err := e.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !r.Cancellable() {
		return nil, fmt.Errorf("%w: cannot edit reservation in status %s", model.ErrIllegalStateTransition, r.Status)
	}

	if upd.Date != nil || upd.StartTime != nil {
		newDate := r.Date
		newStart := r.StartTime
		if upd.Date != nil {
			newDate = midnight(*upd.Date)
		}
		if upd.StartTime != nil {
			newStart = *upd.StartTime
		}

		if !r.OnDemand() && (!newDate.Equal(r.Date) || newStart != r.StartTime) {
			return nil, fmt.Errorf("%w: scheduled reservation time is fixed to its slot", model.ErrInvalidTimeRange)
		}
		if err := e.checkNotPast(newDate, newStart); err != nil {
			return nil, err
		}
		r.Date = newDate
		r.StartTime = newStart
	}
	if upd.ClientName != nil {
		r.ClientName = *upd.ClientName
	}
	if upd.ClientPhone != nil {
		r.ClientPhone = *upd.ClientPhone
	}
	if upd.Notes != nil {
		r.Notes = *upd.Notes
	}

	if err := e.store.UpdateReservationDetails(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Engine) checkNotPast(date time.Time, start string) error {
	at, err := model.ClockOnDate(date, start)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidTimeRange, err)
	}
	if at.Before(e.now()) {
		return fmt.Errorf("%w: %s %s", model.ErrPastDate, date.Format("2006-01-02"), start)
	}
	return nil
}

// allowOnDemand applies the per-business limiter for on-demand creation.
// Always true when limiting is not configured.
func (e *Engine) allowOnDemand(businessID int64) bool {
	if e.limitCfg.PerMinute <= 0 {
		return true
	}
	e.mu.Lock()
	lim, ok := e.limiters[businessID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(e.limitCfg.PerMinute)/60.0), max(e.limitCfg.Burst, 1))
		e.limiters[businessID] = lim
	}
	e.mu.Unlock()
	return lim.Allow()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
