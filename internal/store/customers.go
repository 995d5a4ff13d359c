package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slotbook/internal/model"
)

// GetCustomer returns a customer identity for attaching to a reservation.
func (db *DB) GetCustomer(ctx context.Context, id int64) (*model.Customer, error) {
	var c model.Customer
	err := db.QueryRowContext(ctx, `
		SELECT id, name, phone, email, created_at, updated_at
		FROM customers WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a customer record.
func (db *DB) CreateCustomer(ctx context.Context, c *model.Customer) error {
	now := touch()
	result, err := db.ExecContext(ctx, `
		INSERT INTO customers (name, phone, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Phone, c.Email, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	c.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last id: %w", err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}
