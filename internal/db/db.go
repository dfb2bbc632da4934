package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps sql.DB with the salon calendar queries.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// NewDB opens database at path and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Writers take the lock when the transaction begins so that the overlap check and the insert
	// of a booking cannot interleave with another writer.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "db").Logger()
	}

	return &DB{DB: sqlDB, path: path, logger: l}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS salons (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT '',
			slot_step INTEGER NOT NULL DEFAULT 30,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS salon_schedules (
			salon_id INTEGER NOT NULL REFERENCES salons(id) ON DELETE CASCADE,
			day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
			is_active BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '00:00',
			end_time TEXT NOT NULL DEFAULT '00:00',
			PRIMARY KEY (salon_id, day_of_week)
		)`,

		`CREATE TABLE IF NOT EXISTS staff (
			id INTEGER PRIMARY KEY,
			salon_id INTEGER NOT NULL REFERENCES salons(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			is_public BOOLEAN NOT NULL DEFAULT 1,
			accepts_bookings BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS staff_schedules (
			staff_id INTEGER NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
			day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
			is_active BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT NOT NULL DEFAULT '00:00',
			end_time TEXT NOT NULL DEFAULT '00:00',
			PRIMARY KEY (staff_id, day_of_week)
		)`,

		// Exactly one of day_of_week and date is set.
		`CREATE TABLE IF NOT EXISTS breaks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scope TEXT NOT NULL CHECK (scope IN ('salon', 'staff')),
			salon_id INTEGER NOT NULL REFERENCES salons(id) ON DELETE CASCADE,
			staff_id INTEGER REFERENCES staff(id) ON DELETE CASCADE,
			day_of_week INTEGER,
			date TEXT,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			reason TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'manual'
		)`,

		`CREATE TABLE IF NOT EXISTS vacations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			scope TEXT NOT NULL CHECK (scope IN ('salon', 'staff')),
			salon_id INTEGER NOT NULL REFERENCES salons(id) ON DELETE CASCADE,
			staff_id INTEGER REFERENCES staff(id) ON DELETE CASCADE,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			reason TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT 'manual'
		)`,

		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY,
			salon_id INTEGER NOT NULL REFERENCES salons(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL CHECK (duration_minutes >= 0),
			is_active BOOLEAN NOT NULL DEFAULT 1,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			salon_id INTEGER NOT NULL REFERENCES salons(id),
			staff_id INTEGER NOT NULL REFERENCES staff(id),
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			client_name TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS booking_services (
			booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			service_id INTEGER NOT NULL REFERENCES services(id),
			PRIMARY KEY (booking_id, position)
		)`,

		`CREATE TABLE IF NOT EXISTS booking_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			prev_status TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_staff_date ON bookings(staff_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_events_booking ON booking_events(booking_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_breaks_salon ON breaks(salon_id, staff_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vacations_salon ON vacations(salon_id, staff_id)`,

		// Two blocking bookings can never start at the same minute for the same staff member.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_slot ON bookings(staff_id, date, start_time)
			WHERE status IN ('pending', 'confirmed', 'in_progress')`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
