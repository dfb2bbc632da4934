package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/config"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

const sourceConfig = "config"

// SyncSalonsFromConfig applies salons.yaml to the database. Salons, staff and services are
// upserted, weekly schedules are replaced, config-sourced breaks and vacations are rebuilt and
// entities that disappeared from the file are deactivated. Holidays become salon vacations.
// Manually created breaks and vacations are left untouched.
func (db *DB) SyncSalonsFromConfig(ctx context.Context, cfg *config.SalonsConfig) error {
	if cfg == nil {
		return fmt.Errorf("salons config is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	holidays := make([]model.Vacation, 0, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		d, err := model.ParseDate(h.Date)
		if err != nil {
			return fmt.Errorf("parse holiday %s: %w", h.Date, err)
		}
		holidays = append(holidays, model.Vacation{Scope: model.ScopeSalon, From: d, To: d, Active: true, Reason: h.Name})
	}

	salons := make([]int64, 0, len(cfg.Salons))
	for _, s := range cfg.Salons {
		// Preserve created_at if the salon already exists.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO salons (id, name, timezone, slot_step, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, COALESCE((SELECT created_at FROM salons WHERE id = ?), ?), ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				timezone = excluded.timezone,
				slot_step = excluded.slot_step,
				is_active = 1,
				updated_at = excluded.updated_at`,
			s.ID, s.Name, s.Timezone, s.SlotStepMinutes, s.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync salon %d: %w", s.ID, err)
		}
		salons = append(salons, s.ID)

		if err := replaceSchedule(ctx, tx, "salon_schedules", "salon_id", s.ID, s.Schedule); err != nil {
			return fmt.Errorf("sync salon %d schedule: %w", s.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM breaks WHERE scope = 'salon' AND salon_id = ? AND source = ?`, s.ID, sourceConfig,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vacations WHERE scope = 'salon' AND salon_id = ? AND source = ?`, s.ID, sourceConfig,
		); err != nil {
			return err
		}
		if err := insertExclusions(ctx, tx, model.ScopeSalon, s.ID, nil, s.Breaks, s.Vacations); err != nil {
			return fmt.Errorf("sync salon %d exclusions: %w", s.ID, err)
		}
		for _, h := range holidays {
			if err := insertVacation(ctx, tx, s.ID, nil, h); err != nil {
				return fmt.Errorf("sync salon %d holiday %s: %w", s.ID, h.From, err)
			}
		}
	}

	staff := make([]int64, 0, len(cfg.Staff))
	for _, st := range cfg.Staff {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO staff (id, salon_id, name, is_active, is_public, accepts_bookings, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM staff WHERE id = ?), ?), ?)
			ON CONFLICT(id) DO UPDATE SET
				salon_id = excluded.salon_id,
				name = excluded.name,
				is_active = excluded.is_active,
				is_public = excluded.is_public,
				accepts_bookings = excluded.accepts_bookings,
				updated_at = excluded.updated_at`,
			st.ID, st.SalonID, st.Name, st.IsActive, st.IsPublic, st.AcceptsBookings, st.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync staff %d: %w", st.ID, err)
		}
		staff = append(staff, st.ID)

		if err := replaceSchedule(ctx, tx, "staff_schedules", "staff_id", st.ID, st.Schedule); err != nil {
			return fmt.Errorf("sync staff %d schedule: %w", st.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM breaks WHERE scope = 'staff' AND staff_id = ? AND source = ?`, st.ID, sourceConfig,
		); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM vacations WHERE scope = 'staff' AND staff_id = ? AND source = ?`, st.ID, sourceConfig,
		); err != nil {
			return err
		}
		staffID := st.ID
		if err := insertExclusions(ctx, tx, model.ScopeStaff, st.SalonID, &staffID, st.Breaks, st.Vacations); err != nil {
			return fmt.Errorf("sync staff %d exclusions: %w", st.ID, err)
		}
	}

	services := make([]int64, 0, len(cfg.Services))
	for _, sv := range cfg.Services {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO services (id, salon_id, name, duration_minutes, is_active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				salon_id = excluded.salon_id,
				name = excluded.name,
				duration_minutes = excluded.duration_minutes,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			sv.ID, sv.SalonID, sv.Name, sv.DurationMinutes, sv.IsActive, now,
		)
		if err != nil {
			return fmt.Errorf("sync service %d: %w", sv.ID, err)
		}
		services = append(services, sv.ID)
	}

	// Deactivate entities that disappeared from config.
	if err := deactivateMissing(ctx, tx, `UPDATE salons SET is_active = 0, updated_at = ? WHERE id = ?`, "salons", salons, now); err != nil {
		return err
	}
	if err := deactivateMissing(ctx, tx, `UPDATE staff SET is_active = 0, updated_at = ? WHERE id = ?`, "staff", staff, now); err != nil {
		return err
	}
	if err := deactivateMissing(ctx, tx, `UPDATE services SET is_active = 0, updated_at = ? WHERE id = ?`, "services", services, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit salons sync: %w", err)
	}

	db.logger.Info().
		Int("salons", len(salons)).
		Int("staff", len(staff)).
		Int("services", len(services)).
		Int("holidays", len(holidays)).
		Msg("salons config synced")
	return nil
}

func replaceSchedule(ctx context.Context, tx *sql.Tx, table, ownerColumn string, ownerID int64, sched config.ScheduleConfig) error {
	weekly, err := sched.Weekly()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+ownerColumn+` = ?`, ownerID); err != nil {
		return err
	}
	for _, day := range model.AllDays() {
		d := weekly.Day(day)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO `+table+` (`+ownerColumn+`, day_of_week, is_active, start_time, end_time)
			VALUES (?, ?, ?, ?, ?)`,
			ownerID, day.ISO(), d.IsActive, d.Start.String(), d.End.String(),
		); err != nil {
			return err
		}
	}
	return nil
}

func insertExclusions(
	ctx context.Context,
	tx *sql.Tx,
	scope model.Scope,
	salonID int64,
	staffID *int64,
	breaks []config.BreakConfig,
	vacations []config.VacationConfig,
) error {
	for i, bc := range breaks {
		b, err := bc.Break(scope)
		if err != nil {
			return fmt.Errorf("breaks[%d]: %w", i, err)
		}
		var (
			dayOfWeek sql.NullInt64
			date      sql.NullString
		)
		switch r := b.Recurrence.(type) {
		case model.Weekly:
			dayOfWeek = sql.NullInt64{Int64: int64(r.Day.ISO()), Valid: true}
		case model.OnDate:
			date = sql.NullString{String: r.Date.String(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO breaks (scope, salon_id, staff_id, day_of_week, date, start_time, end_time, is_active, reason, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(scope), salonID, staffID, dayOfWeek, date, b.Start.String(), b.End.String(), b.Active, b.Reason, sourceConfig,
		); err != nil {
			return fmt.Errorf("breaks[%d]: %w", i, err)
		}
	}

	for i, vc := range vacations {
		v, err := vc.Vacation(scope)
		if err != nil {
			return fmt.Errorf("vacations[%d]: %w", i, err)
		}
		if err := insertVacation(ctx, tx, salonID, staffID, v); err != nil {
			return fmt.Errorf("vacations[%d]: %w", i, err)
		}
	}
	return nil
}

func insertVacation(ctx context.Context, tx *sql.Tx, salonID int64, staffID *int64, v model.Vacation) error {
	scope := model.ScopeSalon
	if staffID != nil {
		scope = model.ScopeStaff
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vacations (scope, salon_id, staff_id, start_date, end_date, is_active, reason, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(scope), salonID, staffID, v.From.String(), v.To.String(), v.Active, v.Reason, sourceConfig,
	)
	return err
}

func deactivateMissing(ctx context.Context, tx *sql.Tx, update, table string, seen []int64, now time.Time) error {
	keep := make(map[int64]struct{}, len(seen))
	for _, id := range seen {
		keep[id] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM `+table+` WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var missing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		if _, ok := keep[id]; !ok {
			missing = append(missing, id)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range missing {
		if _, err := tx.ExecContext(ctx, update, now, id); err != nil {
			return fmt.Errorf("deactivate %s %d: %w", table, id, err)
		}
	}
	return nil
}
