// internal/metrics/metrics_test.go

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	// private registries must not collide on duplicate registration
	a := New()
	b := New()

	a.RunStarted("sentiment")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RunsStarted.WithLabelValues("sentiment")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RunsStarted.WithLabelValues("sentiment")))
}

func TestRecorders(t *testing.T) {
	m := New()

	m.RunFinished("opportunity", "malformed")
	m.SignalsRemoved("near_duplicate", 3)
	m.SignalsRemoved("blocked", 0)
	m.VolatilityObserved(42)
	m.ProviderCall("classifier", errors.New("boom"), time.Second)
	m.ProviderCall("classifier", nil, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFinished.WithLabelValues("opportunity", "malformed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SignalsDropped.WithLabelValues("near_duplicate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SignalsDropped.WithLabelValues("blocked")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.Volatility))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("classifier", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("classifier", "ok")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.RunStarted("sentiment")
	m.StageCompleted("sentiment", "A", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `pulse_runs_started_total{variant="sentiment"} 1`))
	assert.True(t, strings.Contains(body, "pulse_stage_duration_seconds_bucket"))
}
