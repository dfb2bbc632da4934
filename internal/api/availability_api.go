package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/metrics"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/service"
)

// SlotsResponse is the response for GET /api/v1/staff/{id}/slots.
type SlotsResponse struct {
	StaffID    int64    `json:"staff_id"`
	Date       string   `json:"date"`
	Duration   int      `json:"duration,omitempty"`
	ServiceIDs []int64  `json:"service_ids,omitempty"`
	Slots      []string `json:"slots"`
}

// AvailabilityResponse is the response for GET /api/v1/staff/{id}/availability.
type AvailabilityResponse struct {
	StaffID   int64  `json:"staff_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Duration  int    `json:"duration"`
	Available bool   `json:"available"`
}

// DatesResponse is the response for GET /api/v1/staff/{id}/dates.
type DatesResponse struct {
	StaffID  int64    `json:"staff_id"`
	From     string   `json:"from"`
	Days     int      `json:"days"`
	Duration int      `json:"duration"`
	Dates    []string `json:"dates"`
}

// handleSlots lists start times.
// GET /api/v1/staff/{id}/slots?date=2026-10-19&services=1,2 or &duration=75
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots")

	staffID, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	resp := SlotsResponse{StaffID: staffID, Date: date}
	var err error
	switch {
	case q.Get("services") != "":
		if resp.ServiceIDs, err = parseIDs(q.Get("services")); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp.Slots, err = s.availability.SlotsForServices(r.Context(), staffID, date, resp.ServiceIDs)
	case q.Get("duration") != "":
		if resp.Duration, err = strconv.Atoi(q.Get("duration")); err != nil {
			writeError(w, http.StatusBadRequest, "duration must be a number of minutes")
			return
		}
		resp.Slots, err = s.availability.Slots(r.Context(), staffID, date, resp.Duration)
	default:
		writeError(w, http.StatusBadRequest, "services or duration is required")
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if resp.Slots == nil {
		resp.Slots = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAvailability checks a single start time.
// GET /api/v1/staff/{id}/availability?date=2026-10-19&time=10:00&duration=30
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	staffID, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if q.Get("date") == "" || q.Get("time") == "" {
		writeError(w, http.StatusBadRequest, "date and time are required")
		return
	}
	duration, ok := queryDuration(w, r)
	if !ok {
		return
	}

	available, err := s.availability.IsAvailable(r.Context(), staffID, q.Get("date"), q.Get("time"), duration)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		StaffID:   staffID,
		Date:      q.Get("date"),
		Time:      q.Get("time"),
		Duration:  duration,
		Available: available,
	})
}

// handleDay returns the day summary.
// GET /api/v1/staff/{id}/day?date=2026-10-19&duration=30
func (s *HTTPServer) handleDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("day")

	staffID, ok := pathID(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	duration, ok := queryDuration(w, r)
	if !ok {
		return
	}

	summary, err := s.availability.DaySummary(r.Context(), staffID, date, duration)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleDates scans a range of dates.
// GET /api/v1/staff/{id}/dates?from=2026-10-19&days=14&duration=30
func (s *HTTPServer) handleDates(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("dates")

	staffID, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from := q.Get("from")
	if from == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}
	days := 14
	if raw := q.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be a number")
			return
		}
		days = n
	}
	if days > service.MaxScanDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("date range exceeds maximum of %d days", service.MaxScanDays))
		return
	}
	duration, ok := queryDuration(w, r)
	if !ok {
		return
	}

	dates, err := s.availability.NextAvailableDates(r.Context(), staffID, from, days, duration)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DatesResponse{StaffID: staffID, From: from, Days: days, Duration: duration, Dates: dates})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryDuration(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("duration")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "duration is required")
		return 0, false
	}
	d, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "duration must be a number of minutes")
		return 0, false
	}
	return d, true
}

func parseIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid service id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// StaffResponse is a public staff entry.
type StaffResponse struct {
	ID      int64  `json:"id"`
	SalonID int64  `json:"salon_id"`
	Name    string `json:"name"`
}

// handleListStaff lists staff that accept online bookings.
// GET /api/v1/salons/{id}/staff
func (s *HTTPServer) handleListStaff(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_staff")

	salonID, ok := pathID(w, r)
	if !ok {
		return
	}
	staff, err := s.directory.ListPublicStaff(r.Context(), salonID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]StaffResponse, 0, len(staff))
	for _, st := range staff {
		out = append(out, StaffResponse{ID: st.ID, SalonID: st.SalonID, Name: st.Name})
	}
	writeJSON(w, http.StatusOK, out)
}
