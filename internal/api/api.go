package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/supplyengine/internal/api/handlers"
	"github.com/andresuchdata/supplyengine/internal/api/middleware"
	"github.com/andresuchdata/supplyengine/internal/service"
)

type Services struct {
	Engine *service.EngineService
	// Requests receives per-request latency; nil disables it.
	Requests middleware.RequestObserver
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	if services != nil && services.Requests != nil {
		router.Use(middleware.Metrics(services.Requests))
	}

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Engine != nil {
		h := handlers.NewEngineHandler(services.Engine)

		apiGroup.GET("/positions", h.GetPositions)

		spikeGroup := apiGroup.Group("/spikes")
		{
			spikeGroup.GET("", h.GetSpikes)
			spikeGroup.POST("/detect", h.DetectSpikes)
			spikeGroup.POST("/:id/dismiss", h.DismissSpike)
			spikeGroup.GET("/:id/options", h.GetSpikeOptions)
			spikeGroup.POST("/:id/accept", h.AcceptSpikeOption)
		}

		apiGroup.POST("/landed-cost", h.LandedCost)
		vendorGroup := apiGroup.Group("/vendors")
		{
			vendorGroup.GET("/choose", h.ChooseVendor)
			vendorGroup.POST("/breakeven", h.Breakeven)
		}

		transferGroup := apiGroup.Group("/transfers")
		{
			transferGroup.GET("", h.ListTransfers)
			transferGroup.GET("/suggestions", h.GetTransferSuggestions)
			transferGroup.POST("", h.ApproveTransfer)
			transferGroup.POST("/:id/complete", h.CompleteTransfer)
			transferGroup.POST("/:id/cancel", h.CancelTransfer)
		}

		apiGroup.GET("/routes/best", h.BestRoute)

		policyGroup := apiGroup.Group("/policy")
		{
			policyGroup.GET("", h.GetPolicy)
			policyGroup.POST("/simulate", h.SimulatePolicy)
			policyGroup.GET("/curve", h.GetPolicyCurve)
			policyGroup.POST("/apply", h.ApplyPolicy)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
