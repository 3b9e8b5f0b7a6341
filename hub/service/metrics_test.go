package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics()
	m.ObserveRequest("subscribe", http.StatusAccepted)
	m.ObserveRequest("subscribe", http.StatusAccepted)
	m.ObserveVerification("subscribe", "verified")
	m.ObserveDelivery(DeliveryRetried, time.Millisecond)
	m.ObserveDelivery(DeliveryDelivered, time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("subscribe", "202")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.verifications.WithLabelValues("subscribe", "verified")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.deliveries.WithLabelValues(DeliveryDelivered)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "websub_hub_deliveries_total")
	assert.Contains(t, rec.Body.String(), "websub_hub_delivery_duration_seconds")
}
