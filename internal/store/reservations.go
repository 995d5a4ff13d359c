package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/model"
)

const reservationColumns = `id, code, customer_id, business_id, service_id, slot_id,
	       date, start_time, duration_min, status, client_name, client_phone, notes,
	       reminder_sent, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var r model.Reservation
	var slotID sql.NullInt64
	err := row.Scan(
		&r.ID, &r.Code, &r.CustomerID, &r.BusinessID, &r.ServiceID, &slotID,
		&r.Date, &r.StartTime, &r.DurationMin, &r.Status, &r.ClientName,
		&r.ClientPhone, &r.Notes, &r.ReminderSent, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if slotID.Valid {
		r.SlotID = &slotID.Int64
	}
	return &r, nil
}

// GetReservation returns a reservation by id.
func (db *DB) GetReservation(ctx context.Context, id int64) (*model.Reservation, error) {
	r, err := scanReservation(db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// CountActiveOccupants returns the number of reservations against the slot
// whose status still occupies capacity (not cancelled, not no-show). Always
// derived on demand; never cached on the slot row.
func (db *DB) CountActiveOccupants(ctx context.Context, slotID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE slot_id = ? AND status NOT IN ('cancelled', 'no_show')`,
		slotID,
	).Scan(&count)
	return count, err
}

// CreateScheduledReservation inserts a reservation against a slot with the
// capacity check and the insert in one write-locked transaction. Two racing
// claims for the last seat serialize here; the loser observes a full slot and
// gets ErrConflict. This is the engine's capacity-race contract.
func (db *DB) CreateScheduledReservation(ctx context.Context, r *model.Reservation) error {
	if r.SlotID == nil {
		return fmt.Errorf("scheduled reservation requires a slot reference")
	}

	tx, err := db.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	slot, err := scanSlot(tx.QueryRowContext(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = ?`, *r.SlotID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: slot %d", model.ErrNotFound, *r.SlotID)
	}
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}

	var occupied int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE slot_id = ? AND status NOT IN ('cancelled', 'no_show')`,
		slot.ID,
	).Scan(&occupied)
	if err != nil {
		return fmt.Errorf("count occupants: %w", err)
	}

	if !slot.CanAccept(occupied) {
		return fmt.Errorf("%w: slot %d full (%d/%d)", model.ErrConflict, slot.ID, occupied, slot.Capacity)
	}

	if err := insertReservation(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateOnDemandReservation inserts a reservation with no slot reference.
// On-demand services have no slot-level contention, so a plain insert
// suffices.
func (db *DB) CreateOnDemandReservation(ctx context.Context, r *model.Reservation) error {
	tx, err := db.beginImmediate(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertReservation(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func insertReservation(ctx context.Context, tx *sql.Tx, r *model.Reservation) error {
	now := touch()
	var slotID any
	if r.SlotID != nil {
		slotID = *r.SlotID
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (code, customer_id, business_id, service_id, slot_id,
			date, start_time, duration_min, status, client_name, client_phone, notes,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Code, r.CustomerID, r.BusinessID, r.ServiceID, slotID,
		r.Date, r.StartTime, r.DurationMin, r.Status, r.ClientName,
		r.ClientPhone, r.Notes, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	r.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

// TransitionReservation persists a status change guarded by the expected
// current status. Zero rows affected means the reservation moved concurrently
// or does not exist; the caller re-reads to distinguish.
func (db *DB) TransitionReservation(ctx context.Context, id int64, from, to model.ReservationStatus) error {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, touch(), id, from,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, err := db.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s -> %s", model.ErrIllegalStateTransition, current.Status, to)
	}
	return nil
}

// UpdateReservationDetails persists edits to date/time, contact fields and
// notes. The cancellable-state guard is enforced in the WHERE clause so a
// concurrent terminal transition cannot be overwritten.
func (db *DB) UpdateReservationDetails(ctx context.Context, r *model.Reservation) error {
	result, err := db.ExecContext(ctx, `
		UPDATE reservations
		SET date = ?, start_time = ?, client_name = ?, client_phone = ?, notes = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'confirmed')`,
		r.Date, r.StartTime, r.ClientName, r.ClientPhone, r.Notes, touch(), r.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		current, err := db.GetReservation(ctx, r.ID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: cannot edit reservation in status %s", model.ErrIllegalStateTransition, current.Status)
	}
	return nil
}

// ReservationFilter narrows business-side reservation listings.
type ReservationFilter struct {
	Status   model.ReservationStatus
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}

// ListReservationsForCustomer returns a customer's reservations, newest
// first.
func (db *DB) ListReservationsForCustomer(ctx context.Context, customerID int64) ([]model.Reservation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE customer_id = ?
		ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// ListReservationsForBusiness returns a business's reservations matching the
// filter, ordered by date then start time.
func (db *DB) ListReservationsForBusiness(ctx context.Context, businessID int64, filter ReservationFilter) ([]model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE business_id = ?`
	args := []any{businessID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if !filter.DateFrom.IsZero() {
		query += ` AND date(date) >= date(?)`
		args = append(args, filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		query += ` AND date(date) <= date(?)`
		args = append(args, filter.DateTo)
	}
	query += ` ORDER BY date, start_time`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
