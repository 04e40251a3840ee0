package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
)

func TestRecorder_SpikePasses(t *testing.T) {
	r := NewRecorder()

	r.PassCompleted(20*time.Millisecond, spike.PassResult{
		Active:   []domain.SpikeSignal{{ID: "a"}, {ID: "b"}},
		Raised:   []domain.SpikeSignal{{ID: "b"}},
		Resolved: []domain.SpikeSignal{{ID: "c"}},
	})
	r.PassFailed(errors.New("boom"))
	r.PassSkipped()
	r.PassSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(r.spikePasses.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.spikePasses.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.spikePasses.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.activeSignals))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signalsRaised))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signalsResolved))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.CommitConflict("approve_transfer")
	r.ObserveRequest(http.MethodGet, "/api/v1/positions", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `commit_conflicts_total{op="approve_transfer"} 1`)
	assert.Contains(t, body, "http_request_duration_seconds_count")
	assert.Contains(t, body, "go_goroutines")
}
