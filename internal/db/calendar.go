package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// GetSalon returns the salon with its weekly schedule and salon-wide exclusions.
// Schedule is nil when no schedule rows exist.
func (db *DB) GetSalon(ctx context.Context, id int64) (*model.Salon, error) {
	var s model.Salon
	err := db.QueryRowContext(ctx, `
		SELECT id, name, timezone, slot_step
		FROM salons
		WHERE id = ? AND is_active = 1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Timezone, &s.SlotStep)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: salon %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get salon %d: %w", id, err)
	}

	if s.Schedule, err = db.loadSchedule(ctx, "salon_schedules", "salon_id", id); err != nil {
		return nil, fmt.Errorf("salon %d schedule: %w", id, err)
	}
	if s.Exclusions, err = db.loadExclusions(ctx, model.ScopeSalon, "salon_id", id); err != nil {
		return nil, fmt.Errorf("salon %d exclusions: %w", id, err)
	}
	return &s, nil
}

// GetStaff returns a staff member with schedule and personal exclusions. Inactive staff are
// returned as well; callers decide through Staff.Bookable.
func (db *DB) GetStaff(ctx context.Context, id int64) (*model.Staff, error) {
	var st model.Staff
	err := db.QueryRowContext(ctx, `
		SELECT id, salon_id, name, is_active, is_public, accepts_bookings
		FROM staff
		WHERE id = ?`,
		id,
	).Scan(&st.ID, &st.SalonID, &st.Name, &st.IsActive, &st.IsPublic, &st.AcceptsBookings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: staff %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get staff %d: %w", id, err)
	}

	if st.Schedule, err = db.loadSchedule(ctx, "staff_schedules", "staff_id", id); err != nil {
		return nil, fmt.Errorf("staff %d schedule: %w", id, err)
	}
	if st.Exclusions, err = db.loadExclusions(ctx, model.ScopeStaff, "staff_id", id); err != nil {
		return nil, fmt.Errorf("staff %d exclusions: %w", id, err)
	}
	return &st, nil
}

// ListPublicStaff returns the bookable staff of a salon shown in public listings.
func (db *DB) ListPublicStaff(ctx context.Context, salonID int64) ([]model.Staff, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, salon_id, name, is_active, is_public, accepts_bookings
		FROM staff
		WHERE salon_id = ? AND is_active = 1 AND is_public = 1 AND accepts_bookings = 1
		ORDER BY name, id`,
		salonID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Staff
	for rows.Next() {
		var st model.Staff
		if err := rows.Scan(&st.ID, &st.SalonID, &st.Name, &st.IsActive, &st.IsPublic, &st.AcceptsBookings); err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// GetServices resolves service ids of a salon. Unknown, foreign or inactive ids are an
// ErrInvalidReference. The result follows the order of ids, duplicates included.
func (db *DB) GetServices(ctx context.Context, salonID int64, ids []int64) ([]model.Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, salonID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, salon_id, name, duration_minutes, is_active
		FROM services
		WHERE salon_id = ? AND is_active = 1 AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]model.Service, len(ids))
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.SalonID, &s.Name, &s.DurationMinutes, &s.IsActive); err != nil {
			return nil, err
		}
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: service %d is not offered by salon %d", model.ErrInvalidReference, id, salonID)
		}
		result = append(result, s)
	}
	return result, nil
}

func (db *DB) loadSchedule(ctx context.Context, table, ownerColumn string, ownerID int64) (*model.WeeklySchedule, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, is_active, start_time, end_time
		FROM `+table+`
		WHERE `+ownerColumn+` = ?`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		sched model.WeeklySchedule
		found bool
	)
	for rows.Next() {
		var (
			dayOfWeek  int
			active     bool
			start, end string
		)
		if err := rows.Scan(&dayOfWeek, &active, &start, &end); err != nil {
			return nil, err
		}
		day, err := model.WeekdayFromISO(dayOfWeek)
		if err != nil {
			return nil, err
		}
		d := model.DaySchedule{IsActive: active}
		if d.Start, err = model.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if d.End, err = model.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		sched.Set(day, d)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &sched, nil
}

func (db *DB) loadExclusions(ctx context.Context, scope model.Scope, ownerColumn string, ownerID int64) (model.Exclusions, error) {
	var ex model.Exclusions

	rows, err := db.QueryContext(ctx, `
		SELECT id, day_of_week, date, start_time, end_time, is_active, reason
		FROM breaks
		WHERE scope = ? AND `+ownerColumn+` = ?
		ORDER BY start_time, id`,
		string(scope), ownerID,
	)
	if err != nil {
		return ex, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b          model.Break
			dayOfWeek  sql.NullInt64
			date       sql.NullString
			start, end string
		)
		if err := rows.Scan(&b.ID, &dayOfWeek, &date, &start, &end, &b.Active, &b.Reason); err != nil {
			return ex, err
		}
		b.Scope = scope

		switch {
		case dayOfWeek.Valid:
			day, err := model.WeekdayFromISO(int(dayOfWeek.Int64))
			if err != nil {
				return ex, fmt.Errorf("break %d: %w", b.ID, err)
			}
			b.Recurrence = model.Weekly{Day: day}
		case date.Valid:
			d, err := model.ParseDate(date.String)
			if err != nil {
				return ex, fmt.Errorf("break %d: %w", b.ID, err)
			}
			b.Recurrence = model.OnDate{Date: d}
		default:
			return ex, fmt.Errorf("break %d has neither day_of_week nor date", b.ID)
		}

		if b.Start, err = model.ParseTimeOfDay(start); err != nil {
			return ex, fmt.Errorf("break %d: %w", b.ID, err)
		}
		if b.End, err = model.ParseTimeOfDay(end); err != nil {
			return ex, fmt.Errorf("break %d: %w", b.ID, err)
		}
		ex.Breaks = append(ex.Breaks, b)
	}
	if err := rows.Err(); err != nil {
		return ex, err
	}

	vrows, err := db.QueryContext(ctx, `
		SELECT id, start_date, end_date, is_active, reason
		FROM vacations
		WHERE scope = ? AND `+ownerColumn+` = ?
		ORDER BY start_date, id`,
		string(scope), ownerID,
	)
	if err != nil {
		return ex, err
	}
	defer vrows.Close()

	for vrows.Next() {
		var (
			v        model.Vacation
			from, to string
		)
		if err := vrows.Scan(&v.ID, &from, &to, &v.Active, &v.Reason); err != nil {
			return ex, err
		}
		v.Scope = scope
		if v.From, err = model.ParseDate(from); err != nil {
			return ex, fmt.Errorf("vacation %d: %w", v.ID, err)
		}
		if v.To, err = model.ParseDate(to); err != nil {
			return ex, fmt.Errorf("vacation %d: %w", v.ID, err)
		}
		ex.Vacations = append(ex.Vacations, v)
	}
	return ex, vrows.Err()
}
