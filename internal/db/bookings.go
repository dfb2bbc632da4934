package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

const bookingColumns = `id, reference, salon_id, staff_id, date, start_time, end_time, status,
	client_name, client_phone, created_at, updated_at`

var blockingStatusFilter = func() string {
	quoted := make([]string, 0, len(model.BlockingStatuses))
	for _, st := range model.BlockingStatuses {
		quoted = append(quoted, "'"+string(st)+"'")
	}
	return "status IN (" + strings.Join(quoted, ", ") + ")"
}()

// ListStaffBookings returns every booking of a staff member on date, in any status, ordered by
// start time.
func (db *DB) ListStaffBookings(ctx context.Context, staffID int64, date model.Date) ([]model.Booking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE staff_id = ? AND date = ?
		ORDER BY start_time, id`,
		staffID, date.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var result []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return result, nil
	}

	services, err := db.dayBookingServices(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].ServiceIDs = services[result[i].ID]
	}
	return result, nil
}

// dayBookingServices loads the services of every booking of a staff member on date in one query.
func (db *DB) dayBookingServices(ctx context.Context, staffID int64, date model.Date) (map[int64][]int64, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT bs.booking_id, bs.service_id
		FROM booking_services bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE b.staff_id = ? AND b.date = ?
		ORDER BY bs.booking_id, bs.position`,
		staffID, date.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list booking services: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]int64)
	for rows.Next() {
		var bookingID, serviceID int64
		if err := rows.Scan(&bookingID, &serviceID); err != nil {
			return nil, err
		}
		result[bookingID] = append(result[bookingID], serviceID)
	}
	return result, rows.Err()
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: booking %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	if b.ServiceIDs, err = db.bookingServices(ctx, db.DB, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBooking inserts b after re-checking, inside one write transaction, that no blocking
// booking of the same staff member overlaps it. ErrSlotUnavailable is returned on conflict.
// On success b.ID, b.Reference and the timestamps are filled in.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b == nil {
		return fmt.Errorf("%w: booking is nil", model.ErrInvalidInput)
	}
	if b.End <= b.Start {
		return fmt.Errorf("%w: booking end %s is not after start %s", model.ErrInvalidInput, b.End, b.Start)
	}
	if b.Status == "" {
		b.Status = model.StatusPending
	}
	if b.Reference == "" {
		b.Reference = uuid.NewString()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if b.Status.Blocking() {
		var overlapping int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM bookings
			WHERE staff_id = ? AND date = ?
			AND start_time < ? AND end_time > ?
			AND `+blockingStatusFilter,
			b.StaffID, b.Date.String(), b.End.String(), b.Start.String(),
		).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if overlapping > 0 {
			return fmt.Errorf("%w: staff %d %s %s", model.ErrSlotUnavailable, b.StaffID, b.Date, b.Interval())
		}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (
			reference, salon_id, staff_id, date, start_time, end_time, status,
			client_name, client_phone, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.SalonID, b.StaffID, b.Date.String(), b.Start.String(), b.End.String(), string(b.Status),
		b.ClientName, b.ClientPhone, now, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: staff %d %s %s", model.ErrSlotUnavailable, b.StaffID, b.Date, b.Interval())
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}

	for i, serviceID := range b.ServiceIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booking_services (booking_id, position, service_id) VALUES (?, ?, ?)`,
			id, i, serviceID,
		); err != nil {
			return fmt.Errorf("insert booking service %d: %w", serviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: staff %d %s %s", model.ErrSlotUnavailable, b.StaffID, b.Date, b.Interval())
		}
		return fmt.Errorf("commit booking: %w", err)
	}

	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now

	db.logger.Debug().
		Int64("booking_id", id).
		Int64("staff_id", b.StaffID).
		Str("date", b.Date.String()).
		Str("interval", b.Interval().String()).
		Msg("booking created")
	return nil
}

// UpdateBookingStatus moves a booking from one status to another. The update only applies while
// the stored status still equals from; otherwise ErrNotFound is returned.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, from, to model.BookingStatus) error {
	res, err := db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from),
	)
	if err != nil {
		return fmt.Errorf("update booking %d status: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: booking %d in status %s", model.ErrNotFound, id, from)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (db *DB) bookingServices(ctx context.Context, q queryer, bookingID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT service_id FROM booking_services WHERE booking_id = ? ORDER BY position`,
		bookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("booking %d services: %w", bookingID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b                  model.Booking
		date, start, end   string
		status             string
		createdAt, updated sql.NullTime
	)
	if err := row.Scan(
		&b.ID, &b.Reference, &b.SalonID, &b.StaffID, &date, &start, &end, &status,
		&b.ClientName, &b.ClientPhone, &createdAt, &updated,
	); err != nil {
		return nil, err
	}

	var err error
	if b.Date, err = model.ParseDate(date); err != nil {
		return nil, fmt.Errorf("booking %d date: %w", b.ID, err)
	}
	if b.Start, err = model.ParseTimeOfDay(start); err != nil {
		return nil, fmt.Errorf("booking %d start: %w", b.ID, err)
	}
	if b.End, err = model.ParseTimeOfDay(end); err != nil {
		return nil, fmt.Errorf("booking %d end: %w", b.ID, err)
	}
	if b.Status, err = model.ParseBookingStatus(status); err != nil {
		return nil, fmt.Errorf("booking %d: %w", b.ID, err)
	}
	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updated.Time
	return &b, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
