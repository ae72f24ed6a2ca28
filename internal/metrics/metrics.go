package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RegistrationsTotal counts registration attempts by outcome:
	// registered, waiting, payment_pending, rejected.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tulpar_registrations_total",
		Help: "Registration attempts by outcome",
	}, []string{"outcome"})

	// SeatConflictsTotal counts seat claims that lost the capacity race.
	SeatConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tulpar_seat_conflicts_total",
		Help: "Seat claims rejected because the event was at capacity",
	})

	// WaitlistPromotionsTotal counts successful waitlist promotions.
	WaitlistPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tulpar_waitlist_promotions_total",
		Help: "Waitlist entries promoted to confirmed registrations",
	})

	// WebhookResultsTotal counts webhook deliveries by result:
	// applied, duplicate, invalid_signature, unmatched.
	WebhookResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tulpar_payment_webhooks_total",
		Help: "Payment webhook deliveries by processing result",
	}, []string{"result"})

	// RefundsRequiredTotal counts paid attempts that could not be seated.
	RefundsRequiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tulpar_refunds_required_total",
		Help: "Payments captured without an available seat",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tulpar_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Middleware records request latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the prometheus registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
