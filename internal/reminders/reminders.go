// Package reminders notifies customers about upcoming confirmed
// reservations. The scheduler sweeps on an interval, the sender applies rate
// limiting and retries, and sent reminders are flagged on the reservation so
// they never fire twice.
package reminders

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slotbook/internal/metrics"
	"slotbook/internal/model"
)

// Notifier delivers one reminder. Transports plug in here; the built-in
// LogNotifier just records the reminder.
type Notifier interface {
	SendReminder(ctx context.Context, r model.Reservation) error
}

// ReservationSource yields reservations due for a reminder and records
// delivery.
type ReservationSource interface {
	UpcomingConfirmedReservations(ctx context.Context, from time.Time, within time.Duration) ([]model.Reservation, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// Config tunes the reminder scheduler.
type Config struct {
	// Lead is how far before the reservation start a reminder fires.
	Lead time.Duration
	// CheckInterval is the sweep period.
	CheckInterval time.Duration
	// PerSecond and Burst bound the notifier send rate.
	PerSecond float64
	Burst     int
	// MaxRetries bounds transient-failure retries per reminder.
	MaxRetries int
	// RetryDelay is the pause between retries.
	RetryDelay time.Duration
}

// DefaultConfig returns the defaults: 24h lead, minutely sweeps, 20 sends
// per second.
func DefaultConfig() Config {
	return Config{
		Lead:          24 * time.Hour,
		CheckInterval: time.Minute,
		PerSecond:     20,
		Burst:         30,
		MaxRetries:    3,
		RetryDelay:    time.Second,
	}
}

// Scheduler sweeps for due reservations and sends reminders through the
// notifier.
type Scheduler struct {
	cfg      Config
	source   ReservationSource
	notifier Notifier
	limiter  *rate.Limiter
	now      model.Clock
	logger   *zerolog.Logger
}

// NewScheduler creates a reminder scheduler. now may be nil, defaulting to
// time.Now.
func NewScheduler(cfg Config, source ReservationSource, notifier Notifier, now model.Clock, logger *zerolog.Logger) *Scheduler {
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		cfg:      cfg,
		source:   source,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst),
		now:      now,
		logger:   logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.logger != nil {
		s.logger.Info().
			Dur("lead", s.cfg.Lead).
			Dur("interval", s.cfg.CheckInterval).
			Msg("reminder scheduler started")
	}

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info().Msg("reminder scheduler stopped")
			}
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep sends a reminder for every confirmed reservation starting within the
// lead window. Failures on one reservation do not block the rest.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.source.UpcomingConfirmedReservations(ctx, s.now(), s.cfg.Lead)
	if err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("fetch due reservations")
		}
		return
	}

	sent, failed := 0, 0
	for _, r := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.send(ctx, r); err != nil {
			failed++
			metrics.IncReminder("failed")
			if s.logger != nil {
				s.logger.Error().Err(err).
					Int64("reservation_id", r.ID).
					Msg("reminder failed")
			}
			continue
		}
		sent++
		metrics.IncReminder("sent")
	}

	if s.logger != nil && len(due) > 0 {
		s.logger.Info().
			Int("due", len(due)).
			Int("sent", sent).
			Int("failed", failed).
			Msg("reminder sweep finished")
	}
}

// send delivers one reminder with rate limiting and bounded retries, then
// flags the reservation.
func (s *Scheduler) send(ctx context.Context, r model.Reservation) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = s.notifier.SendReminder(ctx, r); lastErr == nil {
			return s.source.MarkReminderSent(ctx, r.ID)
		}
	}
	return lastErr
}

// LogNotifier records reminders in the log. It is the default sink when no
// delivery transport is configured.
type LogNotifier struct {
	Logger *zerolog.Logger
}

func (n LogNotifier) SendReminder(_ context.Context, r model.Reservation) error {
	if n.Logger != nil {
		n.Logger.Info().
			Int64("reservation_id", r.ID).
			Str("code", r.Code).
			Str("date", r.Date.Format("2006-01-02")).
			Str("start", r.StartTime).
			Str("client", r.ClientName).
			Msg("reservation reminder")
	}
	return nil
}
