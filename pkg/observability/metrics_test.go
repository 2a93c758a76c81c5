package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	require.NotNil(t, m)

	// Touch a few instruments so they show up in the gather output.
	m.WebhookEventsTotal.WithLabelValues("subscription", "customer.subscription.created", "processed").Inc()
	m.GenerationTotal.WithLabelValues("nova", "sun", "pro", "success").Inc()
	m.BreakerState.WithLabelValues("nova").Set(1)
	m.EmailQueueDepth.Set(3)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["astral_webhook_events_total"])
	assert.True(t, names["astral_generation_total"])
	assert.True(t, names["astral_breaker_state"])
	assert.True(t, names["astral_email_queue_depth"])
}

func TestNewMetricsDoubleRegisterPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)
	assert.Panics(t, func() { NewMetrics(registry) })
}

func TestWebhookCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.WebhookDuplicatesTotal.WithLabelValues("payment").Inc()
	m.WebhookDuplicatesTotal.WithLabelValues("payment").Inc()
	m.WebhookDeadLetterTotal.WithLabelValues("invoice.payment_failed").Inc()
	m.TierDefaultedTotal.WithLabelValues("price_unknown").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.WebhookDuplicatesTotal.WithLabelValues("payment")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.WebhookDeadLetterTotal.WithLabelValues("invoice.payment_failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TierDefaultedTotal.WithLabelValues("price_unknown")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook/subscription", strings.NewReader(`{"id":"evt_1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/stripe/webhook/subscription", "202")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.TrialsExpiredTotal.Inc()

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "astral_trials_expired_total 1")
}
