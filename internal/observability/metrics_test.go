package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricValue returns the summed counter or gauge value of name with the optional outcome label.
func metricValue(t *testing.T, m *Metrics, name, outcome string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if outcome != "" {
				matched := false
				for _, label := range metric.GetLabel() {
					if label.GetName() == "outcome" && label.GetValue() == outcome {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			total += metric.GetCounter().GetValue() + metric.GetGauge().GetValue()
		}
	}
	return total
}

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics()

	m.ObserveAttempt(OutcomeRetry)
	m.ObserveAttempt(OutcomeSuccess)
	m.ObserveUpload(OutcomeFailed)
	m.ObserveUpload(OutcomeSuccess)
	m.AddChartFailures(3)
	m.AddCleaned(5)
	m.IncInFlight()
	m.IncInFlight()
	m.DecInFlight()
	m.ObserveDuration(2 * time.Second)

	assert.Equal(t, 1.0, metricValue(t, m, "report_generation_attempts_total", OutcomeRetry))
	assert.Equal(t, 1.0, metricValue(t, m, "report_generation_attempts_total", OutcomeSuccess))
	assert.Equal(t, 1.0, metricValue(t, m, "report_uploads_total", OutcomeFailed))
	assert.Equal(t, 3.0, metricValue(t, m, "report_chart_wait_failures_total", ""))
	assert.Equal(t, 5.0, metricValue(t, m, "report_jobs_cleaned_total", ""))
	assert.Equal(t, 1.0, metricValue(t, m, "report_jobs_in_flight", ""))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveAttempt(OutcomeFailed)
		m.ObserveDuration(time.Second)
		m.AddChartFailures(1)
		m.ObserveUpload(OutcomeSuccess)
		m.IncInFlight()
		m.DecInFlight()
		m.AddCleaned(1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveAttempt(OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `report_generation_attempts_total{outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
