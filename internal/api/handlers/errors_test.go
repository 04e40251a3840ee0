package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
)

func TestStatusFor(t *testing.T) {
	short := &domain.InsufficientStockError{LocationID: "harbor", ItemID: "milk", Requested: 10, Available: 2}

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", domain.NewNotFound("transfer", "t-1"), http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("load: %w", domain.NewNotFound("item", "x")), http.StatusNotFound, "not_found"},
		{"insufficient", short, http.StatusConflict, "insufficient_stock"},
		{"conflict wins over its cause", &domain.ConcurrencyConflictError{Resource: "r", Expected: 1, Actual: 2, Cause: short}, http.StatusConflict, "concurrency_conflict"},
		{"unreachable", &domain.UnreachableError{From: "a", To: "b"}, http.StatusUnprocessableEntity, "unreachable"},
		{"domain", domain.NewDomainError("quantity", "must be > 0"), http.StatusUnprocessableEntity, "domain_error"},
		{"detection busy", fmt.Errorf("detect: %w", spike.ErrPassInProgress), http.StatusConflict, "pass_in_progress"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	writeError(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error","code":"internal"}`, rec.Body.String())
}

func TestWriteErrorMarksRetryable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	writeError(c, &domain.ConcurrencyConflictError{Resource: "policy", Expected: 1, Actual: 2})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retryable":true`)
}

func TestGridQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x?grid=0.9,%200.95,,0.99", nil)

	grid, err := gridQuery(c)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.95, 0.99}, grid)

	c.Request = httptest.NewRequest(http.MethodGet, "/x?grid=high", nil)
	_, err = gridQuery(c)
	assert.ErrorIs(t, err, domain.ErrDomain)
}
