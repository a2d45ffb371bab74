package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Scheduling metrics
	appointmentBookingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_bookings_total",
			Help: "Appointment booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	appointmentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Applied appointment status transitions",
		},
		[]string{"from", "to"},
	)

	sessionRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_records_total",
			Help: "Session record creation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Authentication metrics
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"method", "status"},
	)

	// Video provider metrics
	videoRoomRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_room_requests_total",
			Help: "Video room provisioning calls by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		appointmentBookingsTotal,
		appointmentTransitionsTotal,
		sessionRecordsTotal,
		authAttemptsTotal,
		videoRoomRequestsTotal,
	)
}

// Handler exposes the default registry for scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordBooking counts a booking attempt; outcome is "created" or an error kind
func RecordBooking(outcome string) {
	appointmentBookingsTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition counts an applied status change
func RecordTransition(from, to string) {
	appointmentTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordSessionRecord counts a session record attempt
func RecordSessionRecord(outcome string) {
	sessionRecordsTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthAttempt records authentication attempt metrics
func RecordAuthAttempt(method, status string) {
	authAttemptsTotal.WithLabelValues(method, status).Inc()
}

// RecordVideoRoom counts a call to the video provider
func RecordVideoRoom(outcome string) {
	videoRoomRequestsTotal.WithLabelValues(outcome).Inc()
}
