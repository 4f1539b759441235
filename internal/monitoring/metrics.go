package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec

	// Business metrics
	RegistrationsTotal    prometheus.Counter
	ActivationsTotal      prometheus.Counter
	CommissionsPaidTotal  *prometheus.CounterVec
	CommissionAmountTotal prometheus.Counter
	BonusClaimsTotal      prometheus.Counter
	WithdrawalsTotal      *prometheus.CounterVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Total number of rate limit hits",
			},
			[]string{"route"},
		),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_type"},
		),

		// Business metrics
		RegistrationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "registrations_total",
				Help: "Total number of user registrations",
			},
		),
		ActivationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "activations_total",
				Help: "Total number of account activations",
			},
		),
		CommissionsPaidTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_commissions_paid_total",
				Help: "Total number of referral commissions paid, by level",
			},
			[]string{"level"},
		),
		CommissionAmountTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "referral_commission_amount_fcfa_total",
				Help: "Total referral commission amount paid in FCFA",
			},
		),
		BonusClaimsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bonus_claims_total",
				Help: "Total number of welcome bonus claims",
			},
		),
		WithdrawalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "withdrawals_total",
				Help: "Total number of withdrawal events, by status",
			},
			[]string{"status"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		// Track in-flight requests
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordRegistration records a user registration
func RecordRegistration() {
	Get().RegistrationsTotal.Inc()
}

// RecordActivation records an account activation
func RecordActivation() {
	Get().ActivationsTotal.Inc()
}

// RecordCommission records a paid referral commission
func RecordCommission(level int, amount float64) {
	Get().CommissionsPaidTotal.WithLabelValues(strconv.Itoa(level)).Inc()
	Get().CommissionAmountTotal.Add(amount)
}

// RecordBonusClaim records a welcome bonus claim
func RecordBonusClaim() {
	Get().BonusClaimsTotal.Inc()
}

// RecordWithdrawal records a withdrawal lifecycle event
func RecordWithdrawal(status string) {
	Get().WithdrawalsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimitHit records a rate limit hit
func RecordRateLimitHit(route string) {
	Get().RateLimitHits.WithLabelValues(route).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(queryType string, duration time.Duration) {
	Get().DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}
