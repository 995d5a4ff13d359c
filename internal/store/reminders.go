package store

import (
	"context"
	"fmt"
	"time"

	"slotbook/internal/model"
)

// UpcomingConfirmedReservations returns confirmed reservations starting
// within [from, from+within] whose reminder has not been sent yet. The day
// filter runs in SQL; the exact start instant is resolved from the clock
// string in Go.
func (db *DB) UpcomingConfirmedReservations(ctx context.Context, from time.Time, within time.Duration) ([]model.Reservation, error) {
	until := from.Add(within)
	rows, err := db.QueryContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'confirmed' AND reminder_sent = 0
		AND date(date) >= date(?) AND date(date) <= date(?)
		ORDER BY date, start_time`,
		from, until,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all, err := collectReservations(rows)
	if err != nil {
		return nil, err
	}

	out := all[:0]
	for _, r := range all {
		at, err := r.StartsAt()
		if err != nil {
			continue
		}
		if !at.Before(from) && !at.After(until) {
			out = append(out, r)
		}
	}
	return out, nil
}

// MarkReminderSent flags a reservation so it is not reminded twice.
func (db *DB) MarkReminderSent(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations SET reminder_sent = 1, updated_at = ? WHERE id = ?`,
		touch(), id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: reservation %d", model.ErrNotFound, id)
	}
	return nil
}
