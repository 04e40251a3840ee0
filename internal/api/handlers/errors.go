package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
)

// StatusFor maps an error class to its HTTP status and machine code.
// Conflicts are checked first: a conflict may wrap the stock error that
// surfaced it.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, domain.ErrUnreachable):
		return http.StatusUnprocessableEntity, "unreachable"
	case errors.Is(err, domain.ErrDomain):
		return http.StatusUnprocessableEntity, "domain_error"
	case errors.Is(err, spike.ErrPassInProgress):
		return http.StatusConflict, "pass_in_progress"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	body := gin.H{"error": err.Error(), "code": code}
	if domain.IsRetryable(err) || errors.Is(err, spike.ErrPassInProgress) {
		body["retryable"] = true
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		body["error"] = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
}

// floatQuery parses an optional numeric query parameter.
func floatQuery(c *gin.Context, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.NewDomainError(name, "not a number: %q", raw)
	}
	return v, nil
}

// gridQuery parses a comma-separated list of service levels.
func gridQuery(c *gin.Context) ([]float64, error) {
	raw := strings.TrimSpace(c.Query("grid"))
	if raw == "" {
		return nil, nil
	}
	var grid []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, domain.NewDomainError("grid", "not a number: %q", part)
		}
		grid = append(grid, v)
	}
	return grid, nil
}
