package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/aaleksandraa/frizerino-backend-sub001/internal/model"
	"github.com/aaleksandraa/frizerino-backend-sub001/internal/service"
)

// AvailabilityQueries is the read side served by the API.
type AvailabilityQueries interface {
	IsAvailable(ctx context.Context, staffID int64, date, at string, duration int) (bool, error)
	Slots(ctx context.Context, staffID int64, date string, duration int) ([]string, error)
	SlotsForServices(ctx context.Context, staffID int64, date string, serviceIDs []int64) ([]string, error)
	DaySummary(ctx context.Context, staffID int64, date string, duration int) (*service.DaySummary, error)
	NextAvailableDates(ctx context.Context, staffID int64, from string, days, duration int) ([]string, error)
}

// BookingCommands is the write side served by the API.
type BookingCommands interface {
	Create(ctx context.Context, req service.CreateBookingRequest) (*model.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*model.Booking, error)
	Get(ctx context.Context, id int64) (*model.Booking, error)
}

// Directory serves the staff list and booking history.
type Directory interface {
	ListPublicStaff(ctx context.Context, salonID int64) ([]model.Staff, error)
	ListBookingEvents(ctx context.Context, bookingID int64) ([]model.BookingEvent, error)
}

// Options configures the HTTP server.
type Options struct {
	Address        string
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For header is honoured.
	TrustedProxies []string
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	availability AvailabilityQueries
	bookings     BookingCommands
	directory    Directory
	apiKey       string
	limiters     *limiterStore
	proxies      []*net.IPNet
	log          zerolog.Logger
	server       *http.Server
}

func NewHTTPServer(
	opts Options,
	availability AvailabilityQueries,
	bookings BookingCommands,
	directory Directory,
	logger *zerolog.Logger,
) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "http").Logger()
	}

	s := &HTTPServer{
		availability: availability,
		bookings:     bookings,
		directory:    directory,
		apiKey:       opts.APIKey,
		log:          l,
	}
	for _, p := range opts.TrustedProxies {
		ipNet, err := parseProxy(p)
		if err != nil {
			l.Warn().Str("proxy", p).Msg("ignoring invalid trusted proxy")
			continue
		}
		s.proxies = append(s.proxies, ipNet)
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = int(opts.RateLimitRPS) + 1
		}
		s.limiters = newLimiterStore(rate.Limit(opts.RateLimitRPS), burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/salons/{id}/staff", s.handleListStaff)
	mux.HandleFunc("GET /api/v1/staff/{id}/slots", s.handleSlots)
	mux.HandleFunc("GET /api/v1/staff/{id}/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/v1/staff/{id}/day", s.handleDay)
	mux.HandleFunc("GET /api/v1/staff/{id}/dates", s.handleDates)
	mux.HandleFunc("POST /api/v1/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("GET /api/v1/bookings/{id}/events", s.handleBookingEvents)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/status", s.handleUpdateStatus)

	s.server = &http.Server{
		Addr:              opts.Address,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return s
}

// Handler returns the root handler including middleware.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving HTTP until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		if s.apiKey != "" && r.Header.Get("X-Api-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}

		if s.limiters != nil {
			ip := s.clientIP(r)
			if !s.limiters.get(ip).Allow() {
				s.log.Warn().Str("ip", ip).Msg("rate limit exceeded")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
				return
			}
		}

		next.ServeHTTP(w, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(started)).
			Msg("request served")
	})
}

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds a token bucket per client IP. Buckets idle for longer than limiterIdleTTL
// are dropped on the next sweep.
type limiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(limit rate.Limit, burst int) *limiterStore {
	return &limiterStore{
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (s *limiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterIdleTTL {
		for key, e := range s.limiters {
			if now.Sub(e.lastSeen) >= limiterIdleTTL {
				delete(s.limiters, key)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.limiters[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *limiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

func parseProxy(raw string) (*net.IPNet, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		_, ipNet, err := net.ParseCIDR(raw)
		return ipNet, err
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return nil, fmt.Errorf("invalid proxy address %q", raw)
	}
	bits := 8 * net.IPv6len
	if ip.To4() != nil {
		ip, bits = ip.To4(), 8*net.IPv4len
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func (s *HTTPServer) trusted(ip net.IP) bool {
	for _, n := range s.proxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP returns the peer address. X-Forwarded-For is only read when the peer is a trusted
// proxy, and then the rightmost hop that is not itself a trusted proxy wins.
func (s *HTTPServer) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer := net.ParseIP(host)
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" || peer == nil || !s.trusted(peer) {
		return host
	}

	hops := strings.Split(fwd, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		ip := net.ParseIP(hop)
		if ip == nil {
			return host
		}
		if !s.trusted(ip) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeServiceError maps domain errors to HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrInvalidReference), errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "booking is busy, please retry")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
