// Package store is the sqlite persistence boundary for slots, reservations,
// operating windows, services and customers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection. Write transactions begin with an immediate
// lock (_txlock=immediate), so check-then-insert sequences inside one
// transaction serialize against concurrent writers. This is the locking
// discipline the capacity gate relies on.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// Open initializes the database connection and creates tables if they don't
// exist.
func Open(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_fk=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if logger != nil {
		logger.Info().Str("path", path).Msg("database initialized")
	}
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			order_mode TEXT NOT NULL DEFAULT 'scheduled',
			duration_min INTEGER NOT NULL DEFAULT 0,
			capacity INTEGER NOT NULL DEFAULT 1,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS operating_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			day_of_week INTEGER NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			open_time TEXT NOT NULL,
			close_time TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(business_id, day_of_week, seq)
		)`,

		`CREATE TABLE IF NOT EXISTS slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			date DATETIME NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			capacity INTEGER NOT NULL DEFAULT 1,
			available BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(business_id, date, start_time),
			FOREIGN KEY(service_id) REFERENCES services(id)
		)`,

		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL UNIQUE,
			customer_id INTEGER NOT NULL,
			business_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			slot_id INTEGER,
			date DATETIME NOT NULL,
			start_time TEXT NOT NULL,
			duration_min INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			client_name TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			reminder_sent BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(customer_id) REFERENCES customers(id),
			FOREIGN KEY(service_id) REFERENCES services(id),
			FOREIGN KEY(slot_id) REFERENCES slots(id) ON DELETE SET NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_windows_business_day ON operating_windows(business_id, day_of_week, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_service ON slots(service_id)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_business_date ON slots(business_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_slot_status ON reservations(slot_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_business_date ON reservations(business_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_customer_created ON reservations(customer_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_service_status ON reservations(service_id, status, date)`,
		`CREATE INDEX IF NOT EXISTS idx_services_business ON services(business_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// midnight normalizes a timestamp to the start of its day.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// beginImmediate starts a write transaction. With _txlock=immediate the
// write lock is taken at BEGIN, not at first write, so concurrent
// check-then-insert transactions cannot interleave.
func (db *DB) beginImmediate(ctx context.Context) (*sql.Tx, error) {
	return db.BeginTx(ctx, nil)
}

// touch returns the shared "now" for created_at/updated_at columns.
func touch() time.Time {
	return time.Now().UTC()
}
