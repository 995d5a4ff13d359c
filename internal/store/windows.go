package store

import (
	"context"
	"fmt"

	"slotbook/internal/model"
)

// WindowsForWeekday returns a business's operating windows for one weekday
// (1 = Monday .. 7 = Sunday), ordered by sequence. An empty result means the
// business is closed that weekday.
func (db *DB) WindowsForWeekday(ctx context.Context, businessID int64, dayOfWeek int) ([]model.OperatingWindow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, business_id, day_of_week, seq, open_time, close_time, created_at, updated_at
		FROM operating_windows
		WHERE business_id = ? AND day_of_week = ?
		ORDER BY seq`,
		businessID, dayOfWeek,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OperatingWindow
	for rows.Next() {
		var w model.OperatingWindow
		if err := rows.Scan(
			&w.ID, &w.BusinessID, &w.DayOfWeek, &w.Seq,
			&w.OpenTime, &w.CloseTime, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SetWindows replaces a business's windows for one weekday in a single
// transaction. Each window is validated before any write.
func (db *DB) SetWindows(ctx context.Context, businessID int64, dayOfWeek int, windows []model.OperatingWindow) error {
	for i := range windows {
		windows[i].BusinessID = businessID
		windows[i].DayOfWeek = dayOfWeek
		windows[i].Seq = i
		if err := windows[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := db.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM operating_windows WHERE business_id = ? AND day_of_week = ?`,
		businessID, dayOfWeek,
	); err != nil {
		return fmt.Errorf("clear windows: %w", err)
	}

	now := touch()
	for _, w := range windows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO operating_windows (business_id, day_of_week, seq, open_time, close_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.BusinessID, w.DayOfWeek, w.Seq, w.OpenTime, w.CloseTime, now, now,
		); err != nil {
			return fmt.Errorf("insert window: %w", err)
		}
	}

	return tx.Commit()
}
