package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Webhook metrics
	WebhookEventsTotal       *prometheus.CounterVec
	WebhookDuplicatesTotal   *prometheus.CounterVec
	WebhookSignatureFailures *prometheus.CounterVec
	WebhookDispatchAttempts  *prometheus.HistogramVec
	WebhookDeadLetterTotal   *prometheus.CounterVec
	TierDefaultedTotal       *prometheus.CounterVec

	// Generation metrics
	GenerationTotal     *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec
	GenerationTokens    *prometheus.HistogramVec
	GenerationCostUSD   *prometheus.CounterVec
	BreakerState        *prometheus.GaugeVec
	StaticFallbackTotal *prometheus.CounterVec
	ValidationFailures  *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Email metrics
	EmailsEnqueuedTotal *prometheus.CounterVec
	EmailsSentTotal     *prometheus.CounterVec
	EmailsFailedTotal   *prometheus.CounterVec
	EmailQueueDepth     prometheus.Gauge

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Redis metrics
	RedisConnectionsActive prometheus.Gauge
	RedisCommandsTotal     *prometheus.CounterVec
	RedisCommandDuration   *prometheus.HistogramVec

	// Business metrics
	SubscribersByTier  *prometheus.GaugeVec
	TrialsExpiredTotal prometheus.Counter
	RemindersSentTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astral_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astral_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astral_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Webhook metrics
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_webhook_events_total",
				Help: "Total number of webhook events received",
			},
			[]string{"endpoint", "event_type", "status"},
		),
		WebhookDuplicatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_webhook_duplicates_total",
				Help: "Webhook events skipped because the event id was already processed",
			},
			[]string{"endpoint"},
		),
		WebhookSignatureFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_webhook_signature_failures_total",
				Help: "Webhook requests rejected for an invalid or stale signature",
			},
			[]string{"endpoint", "reason"},
		),
		WebhookDispatchAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astral_webhook_dispatch_attempts",
				Help:    "Number of dispatch attempts before a webhook event settled",
				Buckets: []float64{1, 2, 3},
			},
			[]string{"event_type"},
		),
		WebhookDeadLetterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_webhook_dead_letter_total",
				Help: "Webhook events that exhausted all dispatch attempts",
			},
			[]string{"event_type"},
		),
		TierDefaultedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_tier_defaulted_total",
				Help: "Subscriptions whose tier could not be resolved and fell back to the configured default",
			},
			[]string{"price_id"},
		),

		// Generation metrics
		GenerationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_generation_total",
				Help: "Total number of content generation requests",
			},
			[]string{"provider", "perspective", "tier", "outcome"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astral_generation_duration_seconds",
				Help:    "Content generation duration in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 15, 25, 40},
			},
			[]string{"provider", "tier"},
		),
		GenerationTokens: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astral_generation_tokens",
				Help:    "Tokens consumed per generation",
				Buckets: prometheus.ExponentialBuckets(64, 2, 8),
			},
			[]string{"provider"},
		),
		GenerationCostUSD: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_generation_cost_usd_total",
				Help: "Estimated generation cost in USD",
			},
			[]string{"provider"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "astral_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),
		StaticFallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_static_fallback_total",
				Help: "Newsletters served from the static perspective templates",
			},
			[]string{"perspective", "reason"},
		),
		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_generation_validation_failures_total",
				Help: "Generated payloads rejected by schema or quality validation",
			},
			[]string{"provider", "rule"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),

		// Email metrics
		EmailsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_emails_enqueued_total",
				Help: "Emails pushed onto the delivery queue",
			},
			[]string{"email_type"},
		),
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_emails_sent_total",
				Help: "Emails delivered by the worker",
			},
			[]string{"email_type"},
		),
		EmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_emails_failed_total",
				Help: "Emails that failed delivery after retries",
			},
			[]string{"email_type"},
		),
		EmailQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astral_email_queue_depth",
				Help: "Current length of the email delivery queue",
			},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astral_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astral_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astral_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astral_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Redis metrics
		RedisConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "astral_redis_connections_active",
				Help: "Number of active Redis connections",
			},
		),
		RedisCommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "astral_redis_commands_total",
				Help: "Total number of Redis commands",
			},
			[]string{"command", "status"},
		),
		RedisCommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "astral_redis_command_duration_seconds",
				Help:    "Redis command duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"command"},
		),

		// Business metrics
		SubscribersByTier: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "astral_subscribers_total",
				Help: "Current number of subscribers per tier",
			},
			[]string{"tier"},
		),
		TrialsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "astral_trials_expired_total",
				Help: "Trials downgraded to the free tier by the expiry job",
			},
		),
		RemindersSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "astral_trial_reminders_sent_total",
				Help: "Trial ending reminders enqueued",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.WebhookEventsTotal,
		m.WebhookDuplicatesTotal,
		m.WebhookSignatureFailures,
		m.WebhookDispatchAttempts,
		m.WebhookDeadLetterTotal,
		m.TierDefaultedTotal,
		m.GenerationTotal,
		m.GenerationDuration,
		m.GenerationTokens,
		m.GenerationCostUSD,
		m.BreakerState,
		m.StaticFallbackTotal,
		m.ValidationFailures,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EmailsEnqueuedTotal,
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.EmailQueueDepth,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.RedisConnectionsActive,
		m.RedisCommandsTotal,
		m.RedisCommandDuration,
		m.SubscribersByTier,
		m.TrialsExpiredTotal,
		m.RemindersSentTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
