package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *PrometheusMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPrometheusMetrics_Counter(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Counter(MetricRemindersArmed, 1, T("tier", "clock_alarm"))
	m.Counter(MetricRemindersArmed, 2, T("tier", "clock_alarm"))
	m.Counter(MetricRemindersArmed, 1, T("tier", "inexact"))

	out := scrape(t, m)
	assert.Contains(t, out, `synapse_reminders_armed_total{tier="clock_alarm"} 3`)
	assert.Contains(t, out, `synapse_reminders_armed_total{tier="inexact"} 1`)
}

func TestPrometheusMetrics_DropsMismatchedLabels(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Counter("synapse.test", 1, T("a", "1"))
	m.Counter("synapse.test", 1, T("b", "1"))
	m.Counter("synapse.test", 1)

	out := scrape(t, m)
	assert.Contains(t, out, `synapse_test_total{a="1"} 1`)
}

func TestPrometheusMetrics_GaugeAndTiming(t *testing.T) {
	m := NewPrometheusMetrics()

	m.Gauge(MetricRemindersPending, 4)
	m.Timing(MetricSubscriptionFetches, 250*time.Millisecond, T("status", "ok"))

	out := scrape(t, m)
	assert.Contains(t, out, "synapse_reminders_pending 4")
	assert.Contains(t, out, `synapse_subscriptions_fetch_duration_seconds_count{status="ok"} 1`)
	assert.Contains(t, out, "synapse_goroutines")
}

func TestPrometheusMetrics_NilHandler(t *testing.T) {
	var m *PrometheusMetrics

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 503, rec.Code)
}
