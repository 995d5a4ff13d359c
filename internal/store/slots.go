package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"slotbook/internal/model"
)

const slotColumns = `id, business_id, service_id, date, start_time, end_time,
	       capacity, available, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(
		&s.ID, &s.BusinessID, &s.ServiceID, &s.Date, &s.StartTime, &s.EndTime,
		&s.Capacity, &s.Available, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SlotExists checks slot identity by (business, date, start).
func (db *DB) SlotExists(ctx context.Context, businessID int64, date time.Time, start string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM slots
		WHERE business_id = ? AND date(date) = date(?) AND start_time = ?`,
		businessID, date, start,
	).Scan(&count)
	return count > 0, err
}

// GetSlot returns a slot by id.
func (db *DB) GetSlot(ctx context.Context, id int64) (*model.Slot, error) {
	s, err := scanSlot(db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: slot %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateSlotBatch inserts the whole batch in one transaction: either all
// candidate slots exist afterward, or none do. A unique-index violation on
// (business, date, start) aborts the transaction with ErrConflict.
func (db *DB) CreateSlotBatch(ctx context.Context, batch []model.Slot) ([]model.Slot, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	tx, err := db.beginImmediate(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO slots (business_id, service_id, date, start_time, end_time,
			capacity, available, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := touch()
	created := make([]model.Slot, 0, len(batch))
	for _, s := range batch {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		result, err := stmt.ExecContext(ctx,
			s.BusinessID, s.ServiceID, s.Date, s.StartTime, s.EndTime,
			s.Capacity, s.Available, now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: slot %s %s already exists",
					model.ErrConflict, s.Date.Format("2006-01-02"), s.StartTime)
			}
			return nil, fmt.Errorf("insert slot: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("get last id: %w", err)
		}
		s.ID = id
		s.CreatedAt = now
		s.UpdatedAt = now
		created = append(created, s)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

// GetSlotsByDate returns a business's slots for one calendar day, ordered by
// start time.
func (db *DB) GetSlotsByDate(ctx context.Context, businessID int64, date time.Time) ([]model.Slot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE business_id = ? AND date(date) = date(?)
		ORDER BY start_time`,
		businessID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

// GetSlotsByRange returns a business's slots within [from, to] inclusive,
// ordered by date then start time.
func (db *DB) GetSlotsByRange(ctx context.Context, businessID int64, from, to time.Time) ([]model.Slot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+slotColumns+` FROM slots
		WHERE business_id = ? AND date(date) >= date(?) AND date(date) <= date(?)
		ORDER BY date, start_time`,
		businessID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSlots(rows)
}

// SetSlotAvailable toggles the soft availability flag.
func (db *DB) SetSlotAvailable(ctx context.Context, id int64, available bool) error {
	result, err := db.ExecContext(ctx, `
		UPDATE slots SET available = ?, updated_at = ? WHERE id = ?`,
		available, touch(), id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: slot %d", model.ErrNotFound, id)
	}
	return nil
}

// DeletePastSlots removes a business's slots dated strictly before the given
// day and returns the number removed.
func (db *DB) DeletePastSlots(ctx context.Context, businessID int64, before time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `
		DELETE FROM slots WHERE business_id = ? AND date(date) < date(?)`,
		businessID, before,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteServiceSlots removes every slot owned by (business, service). Used
// when the owning service is edited or removed.
func (db *DB) DeleteServiceSlots(ctx context.Context, businessID, serviceID int64) (int64, error) {
	result, err := db.ExecContext(ctx, `
		DELETE FROM slots WHERE business_id = ? AND service_id = ?`,
		businessID, serviceID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func collectSlots(rows *sql.Rows) ([]model.Slot, error) {
	var out []model.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
