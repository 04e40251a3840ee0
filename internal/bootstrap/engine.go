// Package bootstrap wires the engine service from configuration. Both the
// HTTP server and the CLI build their engine here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/cache"
	"github.com/andresuchdata/supplyengine/internal/commit"
	"github.com/andresuchdata/supplyengine/internal/config"
	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
	"github.com/andresuchdata/supplyengine/internal/metrics"
	"github.com/andresuchdata/supplyengine/internal/repository"
	"github.com/andresuchdata/supplyengine/internal/repository/memory"
	"github.com/andresuchdata/supplyengine/internal/repository/postgres"
	"github.com/andresuchdata/supplyengine/internal/service"
	"github.com/andresuchdata/supplyengine/internal/snapshot"
)

// Ledger is a store serving both snapshots and commits.
type Ledger interface {
	repository.SnapshotRepository
	repository.LedgerStore
}

// Engine is a wired service together with the pieces the binaries run
// alongside it.
type Engine struct {
	Service  *service.EngineService
	Ledger   Ledger
	Detector *spike.Detector

	closers []func() error
}

// Close releases database and redis connections.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type buildOptions struct {
	baselines map[domain.PairKey]float64
}

type Option func(*buildOptions)

// WithBaselines merges known consumption baselines (units per hour) into the
// baseline store before the first pass.
func WithBaselines(seed map[domain.PairKey]float64) Option {
	return func(o *buildOptions) { o.baselines = seed }
}

// Build opens the configured ledger and cache and wires the service. A nil
// recorder disables metrics.
func Build(ctx context.Context, cfg *config.Config, recorder *metrics.Recorder, opts ...Option) (*Engine, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{}

	ledger, err := e.openLedger(ctx, cfg)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.Ledger = ledger

	client := e.openRedis(cfg.Cache)

	registry, err := policy.NewRegistry(service.PolicyProfile(cfg.Engine), time.Now())
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("initial policy: %w", err)
	}

	baselines := cache.NewBaselineStore(client, cfg.Cache.BaselineKey)
	if err := seedBaselines(ctx, baselines, o.baselines); err != nil {
		_ = e.Close()
		return nil, err
	}
	e.Detector = spike.NewDetector(baselines, service.SpikeConfig(cfg.Engine))

	var commitOpts []commit.Option
	if recorder != nil {
		commitOpts = append(commitOpts, commit.WithObserver(recorder))
	}

	e.Service = service.NewEngineService(service.Deps{
		Snapshots: ledger,
		Ledger:    ledger,
		Detector:  e.Detector,
		Registry:  registry,
		Committer: commit.NewCommitter(ledger, commitOpts...),
		Curves:    cache.NewPolicyCurveCache(client, cache.CurveTTL(cfg.Cache)),
		Vendor:    service.VendorParams(cfg.Engine),
		Emergency: service.EmergencyConfig(cfg.Engine),
	})
	return e, nil
}

func seedBaselines(ctx context.Context, store spike.BaselineStore, seed map[domain.PairKey]float64) error {
	if len(seed) == 0 {
		return nil
	}
	current, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load baselines: %w", err)
	}
	for k, v := range seed {
		current[k] = v
	}
	if err := store.Commit(ctx, current); err != nil {
		return fmt.Errorf("seed baselines: %w", err)
	}
	return nil
}

func (e *Engine) openLedger(ctx context.Context, cfg *config.Config) (Ledger, error) {
	switch source := strings.ToLower(strings.TrimSpace(cfg.Snapshot.Source)); source {
	case "", "file":
		snap, err := snapshot.Load(cfg.Snapshot.Path)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("path", cfg.Snapshot.Path).
			Int("records", len(snap.Records)).
			Msg("ledger loaded from snapshot file")
		return memory.NewStore(snap), nil

	case "postgres":
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		e.closers = append(e.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		log.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("ledger backed by postgres")
		return postgres.NewStore(db), nil

	default:
		return nil, fmt.Errorf("unknown snapshot source %q", source)
	}
}

// openRedis returns nil when caching is disabled or redis is unreachable;
// the engine then runs on in-process stores.
func (e *Engine) openRedis(cfg config.CacheConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	client, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, continuing without cache")
		return nil
	}
	e.closers = append(e.closers, client.Close)
	return client
}
