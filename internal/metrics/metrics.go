package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "frizerino"

var (
	once sync.Once

	availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_requests_total",
			Help:      "Count of availability queries by operation and result.",
		},
		[]string{"operation", "result"},
	)

	slotsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_slots_returned",
			Help:      "Number of start times returned per slot query.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Count of booking attempts by result.",
		},
		[]string{"result"},
	)

	bookingStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_changes_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_lock_wait_seconds",
			Help:      "Time spent waiting for the per-staff booking lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 3},
		},
	)

	lockFallback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_lock_fallback_total",
			Help:      "Count of lock acquisitions served by the in-process fallback.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by route.",
		},
		[]string{"route"},
	)

	configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "salons_config_reloads_total",
			Help:      "Count of salons.yaml reloads by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityRequests,
			slotsReturned,
			bookingsCreated,
			bookingStatusChanges,
			lockWait,
			lockFallback,
			httpRequests,
			configReloads,
		)
	})
}

// Result maps an error to a short label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func IncAvailability(operation, result string) {
	availabilityRequests.WithLabelValues(operation, result).Inc()
}

func ObserveSlots(n int) {
	slotsReturned.Observe(float64(n))
}

func IncBookingCreated(result string) {
	bookingsCreated.WithLabelValues(result).Inc()
}

func IncStatusChange(status string) {
	bookingStatusChanges.WithLabelValues(status).Inc()
}

func ObserveLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}

func IncLockFallback() {
	lockFallback.Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}

func IncConfigReload(result string) {
	configReloads.WithLabelValues(result).Inc()
}
