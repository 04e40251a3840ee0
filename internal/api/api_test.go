package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/commit"
	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/emergency"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
	"github.com/andresuchdata/supplyengine/internal/engine/vendor"
	"github.com/andresuchdata/supplyengine/internal/repository/memory"
	"github.com/andresuchdata/supplyengine/internal/service"
	"github.com/andresuchdata/supplyengine/internal/snapshot"
)

type recordedRequests struct {
	mu     sync.Mutex
	routes []string
}

func (r *recordedRequests) ObserveRequest(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, method+" "+route)
}

func newTestRouter(t *testing.T) (*gin.Engine, *recordedRequests) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	snap, err := snapshot.Load("../../fixtures/demo.yaml")
	require.NoError(t, err)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := memory.NewStore(snap).WithClock(clock)
	registry, err := policy.NewRegistry(domain.DefaultPolicy(), now)
	require.NoError(t, err)
	baselines := spike.NewMemoryBaselineStore(map[domain.PairKey]float64{
		{LocationID: "downtown", ItemID: "milk"}: 5,
	})

	engine := service.NewEngineService(service.Deps{
		Snapshots: store,
		Ledger:    store,
		Detector:  spike.NewDetector(baselines, spike.Config{Now: clock}),
		Registry:  registry,
		Committer: commit.NewCommitter(store, commit.WithClock(clock)),
		Vendor:    vendor.DefaultParams(),
		Emergency: emergency.DefaultConfig(),
		Now:       clock,
	})
	requests := &recordedRequests{}
	return NewRouter(&Services{Engine: engine, Requests: requests}, []string{"*"}), requests
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestPositionsEndpoint(t *testing.T) {
	r, requests := newTestRouter(t)

	rec, body := do(t, r, http.MethodGet, "/api/v1/positions?location_id=downtown&item_id=milk", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["total"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, 119.0, first["reorder_point"])

	assert.Equal(t, []string{"GET /api/v1/positions"}, requests.routes)
}

func TestErrorMapping(t *testing.T) {
	r, _ := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown location", http.MethodGet, "/api/v1/routes/best?from=harbor&to=moon", "", http.StatusNotFound, "not_found"},
		{"missing route ends", http.MethodGet, "/api/v1/routes/best?from=harbor", "", http.StatusUnprocessableEntity, "domain_error"},
		{"bad quantity", http.MethodGet, "/api/v1/vendors/choose?item_id=milk&quantity=lots", "", http.StatusUnprocessableEntity, "domain_error"},
		{"bad urgency", http.MethodGet, "/api/v1/vendors/choose?item_id=milk&quantity=10&urgency=yesterday", "", http.StatusUnprocessableEntity, "domain_error"},
		{"stale policy", http.MethodPost, "/api/v1/policy/apply", `{"profile":{"global_service_level":0.9},"based_on":7}`, http.StatusConflict, "concurrency_conflict"},
		{"invalid policy", http.MethodPost, "/api/v1/policy/simulate", `{"global_service_level":1.2}`, http.StatusUnprocessableEntity, "domain_error"},
		{"malformed body", http.MethodPost, "/api/v1/transfers", `{`, http.StatusBadRequest, "bad_request"},
		{"unknown transfer", http.MethodPost, "/api/v1/transfers/nope/complete", "", http.StatusNotFound, "not_found"},
		{"unknown spike", http.MethodGet, "/api/v1/spikes/nope/options", "", http.StatusNotFound, "not_found"},
		{"overdrawn transfer", http.MethodPost, "/api/v1/transfers",
			`{"from_location_id":"harbor","to_location_id":"downtown","item_id":"milk","quantity":5000,"source_version":1}`,
			http.StatusConflict, "insufficient_stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSpikeFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, body := do(t, r, http.MethodPost, "/api/v1/spikes/detect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	raised := body["raised"].([]any)
	require.Len(t, raised, 1)
	id := raised[0].(map[string]any)["id"].(string)

	rec, body = do(t, r, http.MethodGet, "/api/v1/spikes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, body = do(t, r, http.MethodGet, "/api/v1/spikes/"+id+"/options", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["options"])

	rec, body = do(t, r, http.MethodPost, "/api/v1/spikes/"+id+"/accept", `{"kind":"IGNORE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "IGNORE", body["option"].(map[string]any)["kind"])

	rec, _ = do(t, r, http.MethodPost, "/api/v1/spikes/"+id+"/dismiss", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, r, http.MethodGet, "/api/v1/spikes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["data"])
}

func TestTransferFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, body := do(t, r, http.MethodGet, "/api/v1/transfers/suggestions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	suggestions := body["data"].([]any)
	require.NotEmpty(t, suggestions)

	payload, err := json.Marshal(suggestions[0])
	require.NoError(t, err)
	rec, body = do(t, r, http.MethodPost, "/api/v1/transfers", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "IN_TRANSIT", body["status"])
	id := body["id"].(string)

	rec, body = do(t, r, http.MethodPost, "/api/v1/transfers/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CANCELLED", body["status"])

	rec, body = do(t, r, http.MethodGet, "/api/v1/transfers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
}

func TestPolicyEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, body := do(t, r, http.MethodGet, "/api/v1/policy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["version"])

	rec, body = do(t, r, http.MethodGet, "/api/v1/policy/curve?grid=0.9,0.95,0.99", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 3)

	rec, body = do(t, r, http.MethodPost, "/api/v1/policy/apply",
		`{"profile":{"global_service_level":0.97,"holding_cost_rate":0.25,"auto_transfer_threshold":0.2},"based_on":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2.0, body["version"])
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", ""})
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)
	assert.False(t, all)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
