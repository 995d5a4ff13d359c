package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/model"
)

const serviceColumns = `id, business_id, name, order_mode, duration_min, capacity, active, created_at, updated_at`

func scanService(row interface{ Scan(...any) error }) (*model.Service, error) {
	var s model.Service
	err := row.Scan(
		&s.ID, &s.BusinessID, &s.Name, &s.OrderMode, &s.DurationMin,
		&s.Capacity, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetService returns a service by id.
func (db *DB) GetService(ctx context.Context, id int64) (*model.Service, error) {
	s, err := scanService(db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: service %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateService inserts a service after validating its invariants.
func (db *DB) CreateService(ctx context.Context, s *model.Service) error {
	if err := s.Validate(); err != nil {
		return err
	}
	now := touch()
	result, err := db.ExecContext(ctx, `
		INSERT INTO services (business_id, name, order_mode, duration_min, capacity, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.BusinessID, s.Name, s.OrderMode, s.DurationMin, s.Capacity, s.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	s.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

// countProtectedReservations counts PENDING/CONFIRMED reservations for the
// service dated today or later, inside the given transaction.
func countProtectedReservations(ctx context.Context, tx *sql.Tx, serviceID int64, today time.Time) (int, error) {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE service_id = ?
		AND status IN ('pending', 'confirmed')
		AND date(date) >= date(?)`,
		serviceID, today,
	).Scan(&count)
	return count, err
}

// RegenerateServiceSlots changes a scheduled service's duration and replaces
// its slot inventory in one transaction: the protected-reservation guard, the
// delete of the old slots, the duration update and the insert of the new
// batch either all commit or none do. A reservation created between the guard
// and the delete is therefore impossible.
//
// The caller generates the new batch (with the new duration) beforehand; any
// collision with another service's slots surfaces as ErrConflict.
func (db *DB) RegenerateServiceSlots(ctx context.Context, serviceID int64, newDurationMin int, today time.Time, batch []model.Slot) error {
	if newDurationMin <= 0 {
		return fmt.Errorf("scheduled service requires positive duration, got %d", newDurationMin)
	}

	tx, err := db.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	svc, err := scanService(tx.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = ?`, serviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: service %d", model.ErrNotFound, serviceID)
	}
	if err != nil {
		return err
	}

	protected, err := countProtectedReservations(ctx, tx, serviceID, today)
	if err != nil {
		return fmt.Errorf("count protected reservations: %w", err)
	}
	if protected > 0 {
		return fmt.Errorf("%w: %d live reservations", model.ErrProtectedByActiveReservations, protected)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM slots WHERE business_id = ? AND service_id = ?`,
		svc.BusinessID, serviceID,
	); err != nil {
		return fmt.Errorf("delete old slots: %w", err)
	}

	now := touch()
	if _, err := tx.ExecContext(ctx,
		`UPDATE services SET duration_min = ?, updated_at = ? WHERE id = ?`,
		newDurationMin, now, serviceID,
	); err != nil {
		return fmt.Errorf("update duration: %w", err)
	}

	for _, s := range batch {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO slots (business_id, service_id, date, start_time, end_time,
				capacity, available, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.BusinessID, s.ServiceID, s.Date, s.StartTime, s.EndTime,
			s.Capacity, s.Available, now, now,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: slot %s %s already exists",
					model.ErrConflict, s.Date.Format("2006-01-02"), s.StartTime)
			}
			return fmt.Errorf("insert slot: %w", err)
		}
	}

	return tx.Commit()
}

// DeactivateService deactivates a service, guarded against live future
// reservations with the same transaction discipline as duration changes.
func (db *DB) DeactivateService(ctx context.Context, serviceID int64, today time.Time) error {
	tx, err := db.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	protected, err := countProtectedReservations(ctx, tx, serviceID, today)
	if err != nil {
		return fmt.Errorf("count protected reservations: %w", err)
	}
	if protected > 0 {
		return fmt.Errorf("%w: %d live reservations", model.ErrProtectedByActiveReservations, protected)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE services SET active = 0, updated_at = ? WHERE id = ?`,
		touch(), serviceID,
	)
	if err != nil {
		return fmt.Errorf("deactivate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: service %d", model.ErrNotFound, serviceID)
	}

	// A retired service's slots must stop showing as bookable.
	if _, err := tx.ExecContext(ctx,
		`UPDATE slots SET available = 0, updated_at = ? WHERE service_id = ?`,
		touch(), serviceID,
	); err != nil {
		return fmt.Errorf("disable slots: %w", err)
	}

	return tx.Commit()
}
