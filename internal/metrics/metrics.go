// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aldoetobex/legal-aid-backend/pkg/apperror"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legalaid_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "legalaid_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// AvailabilityDurationMs times slot expansion for one lawyer.
	AvailabilityDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "legalaid_availability_compute_duration_ms",
		Help:    "Latency of availability expansion in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// RevocationCheckDurationMs times token revocation lookups.
	RevocationCheckDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "legalaid_token_revocation_check_duration_ms",
		Help:    "Latency of token revocation checks in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})

	schedulesReplaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "legalaid_schedules_replaced_total",
		Help: "Total number of weekly schedule replacements",
	})

	bookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legalaid_bookings_created_total",
		Help: "Consultation bookings created, by initial status",
	}, []string{"status"})

	verificationChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legalaid_verification_changes_total",
		Help: "Admin verification decisions by resulting status",
	}, []string{"status"})

	usersRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "legalaid_users_registered_total",
		Help: "Accounts created, by role",
	}, []string{"role"})
)

// ObserveSince records elapsed milliseconds on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

// IncScheduleReplaced counts one schedule swap.
func IncScheduleReplaced() { schedulesReplaced.Inc() }

// IncBookingCreated counts one new booking.
func IncBookingCreated(status string) { bookingsCreated.WithLabelValues(status).Inc() }

// IncVerification counts one verification decision.
func IncVerification(status string) { verificationChanges.WithLabelValues(status).Inc() }

// IncRegistered counts one new account.
func IncRegistered(role string) { usersRegistered.WithLabelValues(role).Inc() }

// Middleware records request count and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		} else if e, ok := apperror.As(err); ok {
			status = e.Status
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		route := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
