package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/metrics"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/service"
)

// BookingResponse represents a booking in API responses.
type BookingResponse struct {
	ID          int64     `json:"id"`
	Reference   string    `json:"reference"`
	SalonID     int64     `json:"salon_id"`
	StaffID     int64     `json:"staff_id"`
	Date        string    `json:"date"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Status      string    `json:"status"`
	ServiceIDs  []int64   `json:"service_ids"`
	ClientName  string    `json:"client_name,omitempty"`
	ClientPhone string    `json:"client_phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpdateStatusRequest is the request body for PATCH /api/v1/bookings/{id}/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func newBookingResponse(b *model.Booking) BookingResponse {
	ids := b.ServiceIDs
	if ids == nil {
		ids = []int64{}
	}
	return BookingResponse{
		ID:          b.ID,
		Reference:   b.Reference,
		SalonID:     b.SalonID,
		StaffID:     b.StaffID,
		Date:        b.Date.String(),
		Start:       b.Start.String(),
		End:         b.End.String(),
		Status:      string(b.Status),
		ServiceIDs:  ids,
		ClientName:  b.ClientName,
		ClientPhone: b.ClientPhone,
		CreatedAt:   b.CreatedAt,
	}
}

// handleCreateBooking books a slot.
// POST /api/v1/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req service.CreateBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.StaffID <= 0 || req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "staff_id, date and time are required")
		return
	}

	b, err := s.bookings.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.log.Info().
		Int64("booking_id", b.ID).
		Int64("staff_id", b.StaffID).
		Str("date", b.Date.String()).
		Str("start", b.Start.String()).
		Msg("booking created via API")

	writeJSON(w, http.StatusCreated, newBookingResponse(b))
}

// handleGetBooking returns a booking.
// GET /api/v1/bookings/{id}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking")

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBookingResponse(b))
}

// handleUpdateStatus changes the status of a booking.
// PATCH /api/v1/bookings/{id}/status
func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_booking_status")

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	if _, err := s.bookings.UpdateStatus(r.Context(), id, req.Status); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBookingEvents returns the history of a booking.
// GET /api/v1/bookings/{id}/events
func (s *HTTPServer) handleBookingEvents(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("booking_events")

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	history, err := s.directory.ListBookingEvents(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
