package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"slotbook/internal/model"
)

// SlotStore is the persistence boundary the batch creator writes through.
type SlotStore interface {
	SlotExists(ctx context.Context, businessID int64, date time.Time, start string) (bool, error)
	CreateSlotBatch(ctx context.Context, batch []model.Slot) ([]model.Slot, error)
}

// WindowProvider resolves a business's operating windows for a weekday.
type WindowProvider interface {
	WindowsForWeekday(ctx context.Context, businessID int64, dayOfWeek int) ([]model.OperatingWindow, error)
}

// DaySchedule requests slot generation for one calendar day. Ranges, when
// set, restrict generation to explicit sub-ranges of the day's windows.
type DaySchedule struct {
	Date   time.Time  `json:"date"`
	Ranges []Interval `json:"ranges,omitempty"`
}

// BatchResult reports the outcome of an all-or-nothing slot batch.
// Requested always equals Created since partial success is disallowed.
type BatchResult struct {
	Requested int          `json:"requested"`
	Created   int          `json:"created"`
	Slots     []model.Slot `json:"slots"`
}

// BatchCreator turns day schedules into a committed slot batch. The whole
// batch is validated against existing slots before any write; a single
// collision aborts the operation with no partial writes.
type BatchCreator struct {
	store   SlotStore
	windows WindowProvider
	now     model.Clock
	logger  *zerolog.Logger
}

// NewBatchCreator creates a batch creator. now may be nil, defaulting to
// time.Now.
func NewBatchCreator(store SlotStore, windows WindowProvider, now model.Clock, logger *zerolog.Logger) *BatchCreator {
	if now == nil {
		now = time.Now
	}
	return &BatchCreator{store: store, windows: windows, now: now, logger: logger}
}

// Candidates resolves each day's windows and generates the in-memory slot
// batch without touching existing slots. Days on which the business has no
// operating windows contribute zero slots, not an error.
func (b *BatchCreator) Candidates(ctx context.Context, service *model.Service, days []DaySchedule, stepMin int) ([]model.Slot, error) {
	if stepMin <= 0 {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidStep, stepMin)
	}
	if err := service.Validate(); err != nil {
		return nil, err
	}
	if !service.Scheduled() {
		return nil, fmt.Errorf("service %d is on-demand and has no slots", service.ID)
	}

	var batch []model.Slot
	seen := make(map[string]struct{})

	for _, day := range days {
		windows, err := b.windows.WindowsForWeekday(ctx, service.BusinessID, model.Weekday(day.Date))
		if err != nil {
			return nil, fmt.Errorf("resolve windows: %w", err)
		}
		if len(windows) == 0 {
			// Closed that weekday: zero slots, not an error.
			continue
		}

		var intervals []Interval
		if len(day.Ranges) > 0 {
			intervals, err = GenerateWithin(windows, day.Ranges, service.DurationMin, stepMin)
			if err != nil {
				return nil, err
			}
		} else {
			intervals = Generate(windows, service.DurationMin, stepMin)
		}

		date := midnight(day.Date)
		for _, iv := range intervals {
			key := fmt.Sprintf("%s|%s", date.Format("2006-01-02"), iv.Start)
			if _, dup := seen[key]; dup {
				return nil, fmt.Errorf("%w: duplicate start %s on %s within batch",
					model.ErrConflict, iv.Start, date.Format("2006-01-02"))
			}
			seen[key] = struct{}{}

			batch = append(batch, model.Slot{
				BusinessID: service.BusinessID,
				ServiceID:  service.ID,
				Date:       date,
				StartTime:  iv.Start,
				EndTime:    iv.End,
				Capacity:   service.Capacity,
				Available:  true,
			})
		}
	}

	return batch, nil
}

// CreateSlots generates and commits slots for every requested day. Fails
// atomically with ErrConflict if any candidate collides with an existing
// slot on (business, date, start): no partial writes occur. Callers
// regenerating after a duration change must delete the old batch first so
// the new batch cannot self-collide.
func (b *BatchCreator) CreateSlots(ctx context.Context, service *model.Service, days []DaySchedule, stepMin int) (*BatchResult, error) {
	batch, err := b.Candidates(ctx, service, days, stepMin)
	if err != nil {
		return nil, err
	}

	// Whole-batch duplicate check before any write.
	for _, s := range batch {
		exists, err := b.store.SlotExists(ctx, s.BusinessID, s.Date, s.StartTime)
		if err != nil {
			return nil, fmt.Errorf("check existing slot: %w", err)
		}
		if exists {
			return nil, fmt.Errorf("%w: slot %s %s already exists",
				model.ErrConflict, s.Date.Format("2006-01-02"), s.StartTime)
		}
	}

	created, err := b.store.CreateSlotBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("commit slot batch: %w", err)
	}

	if b.logger != nil {
		b.logger.Info().
			Int64("business_id", service.BusinessID).
			Int64("service_id", service.ID).
			Int("created", len(created)).
			Msg("slot batch committed")
	}

	return &BatchResult{Requested: len(batch), Created: len(created), Slots: created}, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
