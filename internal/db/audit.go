package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/events"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// RecordBookingEvent appends a booking event to the history table.
func (db *DB) RecordBookingEvent(ctx context.Context, event events.Event) error {
	var p events.BookingPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	if p.BookingID == 0 {
		return fmt.Errorf("%w: %s event without booking id", model.ErrInvalidInput, event.Type)
	}
	at := event.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO booking_events (booking_id, type, status, prev_status, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.BookingID, event.Type, p.Status, p.PrevStatus, string(event.Payload), at.UTC())
	if err != nil {
		return fmt.Errorf("record booking event: %w", err)
	}
	return nil
}

// ListBookingEvents returns the history of a booking, oldest first. An unknown booking is
// ErrNotFound.
func (db *DB) ListBookingEvents(ctx context.Context, bookingID int64) ([]model.BookingEvent, error) {
	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, bookingID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup booking %d: %w", bookingID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: booking %d", model.ErrNotFound, bookingID)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, type, status, prev_status, payload, created_at
		FROM booking_events
		WHERE booking_id = ?
		ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking events: %w", err)
	}
	defer rows.Close()

	result := make([]model.BookingEvent, 0)
	for rows.Next() {
		var e model.BookingEvent
		var status, prev, payload string
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Type, &status, &prev, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = model.BookingStatus(status)
		e.PrevStatus = model.BookingStatus(prev)
		e.Payload = json.RawMessage(payload)
		result = append(result, e)
	}
	return result, rows.Err()
}
