package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/model"
	"slotbook/internal/slots"
)

// AdminStore is the persistence surface for guarded service mutations. Both
// methods run their protected-reservation guard and their writes in a single
// transaction; see the store package.
type AdminStore interface {
	GetService(ctx context.Context, id int64) (*model.Service, error)
	RegenerateServiceSlots(ctx context.Context, serviceID int64, newDurationMin int, today time.Time, batch []model.Slot) error
	DeactivateService(ctx context.Context, serviceID int64, today time.Time) error
}

// ServiceAdmin performs service mutations that are guarded against live
// future reservations: duration changes (with slot regeneration) and
// deactivation.
type ServiceAdmin struct {
	store   AdminStore
	batches *slots.BatchCreator
	now     model.Clock
	logger  *zerolog.Logger
}

// NewServiceAdmin creates a service admin. now may be nil, defaulting to
// time.Now.
func NewServiceAdmin(store AdminStore, batches *slots.BatchCreator, now model.Clock, logger *zerolog.Logger) *ServiceAdmin {
	if now == nil {
		now = time.Now
	}
	return &ServiceAdmin{store: store, batches: batches, now: now, logger: logger}
}

// ChangeDuration changes a scheduled service's duration and regenerates its
// slot inventory for the requested days. The new candidate batch is computed
// first with the new duration; the guard check, the delete of the old slots,
// the duration update and the insert of the new batch then commit in one
// transaction. Fails with ErrProtectedByActiveReservations while any
// PENDING/CONFIRMED reservation dated today or later exists.
func (a *ServiceAdmin) ChangeDuration(ctx context.Context, serviceID int64, newDurationMin int, days []slots.DaySchedule, stepMin int) (*slots.BatchResult, error) {
	service, err := a.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	regenerated := *service
	regenerated.DurationMin = newDurationMin
	batch, err := a.batches.Candidates(ctx, &regenerated, days, stepMin)
	if err != nil {
		return nil, err
	}

	today := midnight(a.now())
	if err := a.store.RegenerateServiceSlots(ctx, serviceID, newDurationMin, today, batch); err != nil {
		return nil, err
	}

	if a.logger != nil {
		a.logger.Info().
			Int64("service_id", serviceID).
			Int("duration_min", newDurationMin).
			Int("slots", len(batch)).
			Msg("service duration changed, slots regenerated")
	}
	return &slots.BatchResult{Requested: len(batch), Created: len(batch), Slots: batch}, nil
}

// Deactivate disables a service, guarded against live future reservations.
func (a *ServiceAdmin) Deactivate(ctx context.Context, serviceID int64) error {
	if err := a.store.DeactivateService(ctx, serviceID, midnight(a.now())); err != nil {
		return err
	}
	if a.logger != nil {
		a.logger.Info().Int64("service_id", serviceID).Msg("service deactivated")
	}
	return nil
}
