package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/supplyengine/internal/api"
	"github.com/andresuchdata/supplyengine/internal/bootstrap"
	"github.com/andresuchdata/supplyengine/internal/config"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
	"github.com/andresuchdata/supplyengine/internal/metrics"
	"github.com/andresuchdata/supplyengine/internal/service"
	"github.com/andresuchdata/supplyengine/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.LogFormat == "json" {
		logger.UseJSON(os.Stdout)
	}
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	engine, err := bootstrap.Build(ctx, cfg, recorder)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to build engine")
	}
	defer engine.Close()

	router := api.NewRouter(&api.Services{Engine: engine.Service, Requests: recorder}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	ops := &http.Server{
		Addr:         ":" + cfg.Server.OpsPort,
		Handler:      opsRouter(recorder),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	scheduler := spike.NewScheduler(engine.Detector, engine.Ledger, service.SignalLogger{}, recorder, cfg.Engine.SpikeInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		return listen(srv)
	})
	g.Go(func() error {
		logger.Log.Info().Str("port", cfg.Server.OpsPort).Msg("Starting ops listener")
		return listen(ops)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), ops.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	logger.Log.Info().Msg("Server exiting")
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func opsRouter(recorder *metrics.Recorder) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", recorder.Handler()).Methods(http.MethodGet)
	return r
}
