package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
)

// DayConfig is one weekday of a schedule. Days missing from the map are closed.
type DayConfig struct {
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	Closed bool   `yaml:"closed,omitempty"`
}

// ScheduleConfig maps weekday names ("monday", "tue", ...) to hours.
type ScheduleConfig map[string]DayConfig

// BreakConfig is a recurring (weekday) or one-off (date) break.
type BreakConfig struct {
	Weekday string `yaml:"weekday,omitempty"`
	Date    string `yaml:"date,omitempty"` // "2026-12-24" or "24.12.2026"
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Active  *bool  `yaml:"active,omitempty"`
	Reason  string `yaml:"reason,omitempty"`
}

// VacationConfig blocks whole days From..To inclusive.
type VacationConfig struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Active *bool  `yaml:"active,omitempty"`
	Reason string `yaml:"reason,omitempty"`
}

// SalonConfig represents a single salon configuration.
type SalonConfig struct {
	ID              int64            `yaml:"id"`
	Name            string           `yaml:"name"`
	Timezone        string           `yaml:"timezone"`
	SlotStepMinutes int              `yaml:"slot_step_minutes"`
	Schedule        ScheduleConfig   `yaml:"schedule"`
	Breaks          []BreakConfig    `yaml:"breaks"`
	Vacations       []VacationConfig `yaml:"vacations"`
}

// StaffConfig represents a staff member of a salon.
type StaffConfig struct {
	ID              int64            `yaml:"id"`
	SalonID         int64            `yaml:"salon_id"`
	Name            string           `yaml:"name"`
	IsActive        bool             `yaml:"is_active"`
	IsPublic        bool             `yaml:"is_public"`
	AcceptsBookings bool             `yaml:"accepts_bookings"`
	Schedule        ScheduleConfig   `yaml:"schedule"`
	Breaks          []BreakConfig    `yaml:"breaks"`
	Vacations       []VacationConfig `yaml:"vacations"`
}

// ServiceConfig represents a bookable service.
type ServiceConfig struct {
	ID              int64  `yaml:"id"`
	SalonID         int64  `yaml:"salon_id"`
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	IsActive        bool   `yaml:"is_active"`
}

// HolidayConfig closes every salon on Date.
type HolidayConfig struct {
	Date string `yaml:"date"`
	Name string `yaml:"name"`
}

// DefaultsConfig represents global default settings.
type DefaultsConfig struct {
	SlotStepMinutes int            `yaml:"slot_step_minutes"`
	Schedule        ScheduleConfig `yaml:"schedule"`
}

// SalonsConfig is the root configuration for salons.yaml.
type SalonsConfig struct {
	Salons   []SalonConfig   `yaml:"salons"`
	Staff    []StaffConfig   `yaml:"staff"`
	Services []ServiceConfig `yaml:"services"`
	Defaults DefaultsConfig  `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadSalonsConfig loads and validates the salons catalogue from a YAML file.
func LoadSalonsConfig(path string) (*SalonsConfig, error) {
	if path == "" {
		path = "configs/salons.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read salons config: %w", err)
	}

	return ParseSalonsConfig(data)
}

// ParseSalonsConfig decodes and validates salons.yaml content.
func ParseSalonsConfig(data []byte) (*SalonsConfig, error) {
	var cfg SalonsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse salons config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate salons config: %w", err)
	}

	return &cfg, nil
}

func (c *SalonsConfig) applyDefaults() {
	for i := range c.Salons {
		if c.Salons[i].Schedule == nil && c.Defaults.Schedule != nil {
			c.Salons[i].Schedule = c.Defaults.Schedule
		}
		if c.Salons[i].SlotStepMinutes == 0 {
			c.Salons[i].SlotStepMinutes = c.Defaults.SlotStepMinutes
		}
		if c.Salons[i].SlotStepMinutes == 0 {
			c.Salons[i].SlotStepMinutes = model.DefaultSlotStep
		}
	}
}

// Validate checks the configuration for errors.
func (c *SalonsConfig) Validate() error {
	if len(c.Salons) == 0 {
		return fmt.Errorf("no salons defined")
	}

	salons := make(map[int64]bool)
	for i, s := range c.Salons {
		prefix := fmt.Sprintf("salons[%d]", i)
		if s.ID <= 0 {
			return fmt.Errorf("%s: id must be positive, got %d", prefix, s.ID)
		}
		if salons[s.ID] {
			return fmt.Errorf("%s: duplicate id %d", prefix, s.ID)
		}
		salons[s.ID] = true

		if s.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if s.Timezone != "" {
			if _, err := time.LoadLocation(s.Timezone); err != nil {
				return fmt.Errorf("%s.timezone: unknown zone '%s'", prefix, s.Timezone)
			}
		}
		if !model.ValidSlotStep(s.SlotStepMinutes) {
			return fmt.Errorf("%s.slot_step_minutes: %d is not one of %v", prefix, s.SlotStepMinutes, model.SlotSteps)
		}
		if s.Schedule == nil {
			return fmt.Errorf("%s.schedule is required", prefix)
		}
		if err := validateCalendar(prefix, s.Schedule, s.Breaks, s.Vacations); err != nil {
			return err
		}
	}

	staff := make(map[int64]bool)
	for i, st := range c.Staff {
		prefix := fmt.Sprintf("staff[%d]", i)
		if st.ID <= 0 {
			return fmt.Errorf("%s: id must be positive, got %d", prefix, st.ID)
		}
		if staff[st.ID] {
			return fmt.Errorf("%s: duplicate id %d", prefix, st.ID)
		}
		staff[st.ID] = true

		if c.GetSalonByID(st.SalonID) == nil {
			return fmt.Errorf("%s: unknown salon_id %d", prefix, st.SalonID)
		}
		if st.Schedule == nil {
			return fmt.Errorf("%s.schedule is required", prefix)
		}
		if err := validateCalendar(prefix, st.Schedule, st.Breaks, st.Vacations); err != nil {
			return err
		}
	}

	services := make(map[int64]bool)
	for i, sv := range c.Services {
		prefix := fmt.Sprintf("services[%d]", i)
		if sv.ID <= 0 {
			return fmt.Errorf("%s: id must be positive, got %d", prefix, sv.ID)
		}
		if services[sv.ID] {
			return fmt.Errorf("%s: duplicate id %d", prefix, sv.ID)
		}
		services[sv.ID] = true

		if c.GetSalonByID(sv.SalonID) == nil {
			return fmt.Errorf("%s: unknown salon_id %d", prefix, sv.SalonID)
		}
		if sv.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if sv.DurationMinutes < 0 {
			return fmt.Errorf("%s.duration_minutes cannot be negative", prefix)
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := model.ParseDate(h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

func validateCalendar(prefix string, sched ScheduleConfig, breaks []BreakConfig, vacations []VacationConfig) error {
	if _, err := sched.Weekly(); err != nil {
		return fmt.Errorf("%s.schedule: %w", prefix, err)
	}
	for i, b := range breaks {
		if _, err := b.Break(model.ScopeSalon); err != nil {
			return fmt.Errorf("%s.breaks[%d]: %w", prefix, i, err)
		}
	}
	for i, v := range vacations {
		if _, err := v.Vacation(model.ScopeSalon); err != nil {
			return fmt.Errorf("%s.vacations[%d]: %w", prefix, i, err)
		}
	}
	return nil
}

// Weekly converts the map into a WeeklySchedule.
func (s ScheduleConfig) Weekly() (model.WeeklySchedule, error) {
	var out model.WeeklySchedule
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[model.Weekday]string, len(names))
	for _, name := range names {
		d := s[name]
		day, err := model.ParseWeekday(name)
		if err != nil {
			return out, err
		}
		if prev, ok := seen[day]; ok {
			return out, fmt.Errorf("duplicate weekday %s (keys %q and %q)", day, prev, name)
		}
		seen[day] = name
		if d.Closed {
			continue
		}
		start, err := model.ParseTimeOfDay(d.Start)
		if err != nil {
			return out, fmt.Errorf("%s.start: %w", name, err)
		}
		end, err := model.ParseTimeOfDay(d.End)
		if err != nil {
			return out, fmt.Errorf("%s.end: %w", name, err)
		}
		out.Set(day, model.DaySchedule{IsActive: true, Start: start, End: end})
	}
	return out, out.Validate()
}

// Break converts the entry. Exactly one of weekday and date must be set.
func (b BreakConfig) Break(scope model.Scope) (model.Break, error) {
	out := model.Break{Scope: scope, Active: b.Active == nil || *b.Active, Reason: b.Reason}

	switch {
	case b.Weekday != "" && b.Date != "":
		return out, fmt.Errorf("set either weekday or date, not both")
	case b.Weekday != "":
		day, err := model.ParseWeekday(b.Weekday)
		if err != nil {
			return out, err
		}
		out.Recurrence = model.Weekly{Day: day}
	case b.Date != "":
		date, err := model.ParseDate(b.Date)
		if err != nil {
			return out, err
		}
		out.Recurrence = model.OnDate{Date: date}
	default:
		return out, fmt.Errorf("weekday or date is required")
	}

	var err error
	if out.Start, err = model.ParseTimeOfDay(b.Start); err != nil {
		return out, fmt.Errorf("start: %w", err)
	}
	if out.End, err = model.ParseTimeOfDay(b.End); err != nil {
		return out, fmt.Errorf("end: %w", err)
	}
	if out.End <= out.Start {
		return out, fmt.Errorf("end must be after start")
	}
	return out, nil
}

// Vacation converts the entry.
func (v VacationConfig) Vacation(scope model.Scope) (model.Vacation, error) {
	out := model.Vacation{Scope: scope, Active: v.Active == nil || *v.Active, Reason: v.Reason}

	var err error
	if out.From, err = model.ParseDate(v.From); err != nil {
		return out, fmt.Errorf("from: %w", err)
	}
	if out.To, err = model.ParseDate(v.To); err != nil {
		return out, fmt.Errorf("to: %w", err)
	}
	if out.To.Before(out.From) {
		return out, fmt.Errorf("to must not be before from")
	}
	return out, nil
}

// GetSalonByID returns salon config by ID.
func (c *SalonsConfig) GetSalonByID(id int64) *SalonConfig {
	for i := range c.Salons {
		if c.Salons[i].ID == id {
			return &c.Salons[i]
		}
	}
	return nil
}

// String returns a summary of the configuration.
func (c *SalonsConfig) String() string {
	return fmt.Sprintf("SalonsConfig: %d salons, %d staff, %d services, %d holidays",
		len(c.Salons), len(c.Staff), len(c.Services), len(c.Holidays))
}
