package spike

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// SnapshotSource supplies the ledger observation for a pass.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
}

// SignalSink receives the outcome of every successful pass.
type SignalSink interface {
	Publish(ctx context.Context, res PassResult) error
}

// Observer is notified about pass outcomes, e.g. for metrics.
type Observer interface {
	PassCompleted(d time.Duration, res PassResult)
	PassFailed(err error)
	PassSkipped()
}

type noopObserver struct{}

func (noopObserver) PassCompleted(time.Duration, PassResult) {}
func (noopObserver) PassFailed(error)                        {}
func (noopObserver) PassSkipped()                            {}

// Scheduler runs detection passes on a fixed interval.
type Scheduler struct {
	detector *Detector
	source   SnapshotSource
	sink     SignalSink
	observer Observer
	interval time.Duration
}

// NewScheduler wires a scheduler. sink and observer may be nil.
func NewScheduler(detector *Detector, source SnapshotSource, sink SignalSink, observer Observer, interval time.Duration) *Scheduler {
	if observer == nil {
		observer = noopObserver{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		detector: detector,
		source:   source,
		sink:     sink,
		observer: observer,
		interval: interval,
	}
}

// Run executes a pass immediately and then on every tick until ctx is
// cancelled. A failed pass is logged and retried on the next tick; a tick
// arriving while a pass still runs is skipped.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Float64("threshold", s.detector.Threshold()).Msg("spike scheduler started")

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("spike scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		switch {
		case errors.Is(err, ErrPassInProgress):
			log.Debug().Msg("spike pass still running, skipping tick")
		case ctx.Err() != nil:
			log.Debug().Err(err).Msg("spike pass cancelled")
		default:
			log.Error().Err(err).Msg("spike pass failed")
		}
	}
}

// RunOnce runs a single pass.
func (s *Scheduler) RunOnce(ctx context.Context) (PassResult, error) {
	start := time.Now()

	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		s.failed(ctx, err)
		return PassResult{}, err
	}

	res, err := s.detector.Detect(ctx, InputFromSnapshot(snap))
	if errors.Is(err, ErrPassInProgress) {
		s.observer.PassSkipped()
		return PassResult{}, err
	}
	if err != nil {
		s.failed(ctx, err)
		return PassResult{}, err
	}

	if res.Skipped > 0 {
		log.Warn().Int("skipped", res.Skipped).Msg("spike pass skipped records with unknown item or location")
	}
	for _, sig := range res.Raised {
		log.Info().
			Str("signal_id", sig.ID).
			Str("location_id", sig.LocationID).
			Str("item_id", sig.ItemID).
			Float64("multiplier", sig.Multiplier).
			Time("shortage_at", sig.ShortageAt).
			Msg("spike detected")
	}

	s.observer.PassCompleted(time.Since(start), res)

	if s.sink != nil {
		if err := s.sink.Publish(ctx, res); err != nil {
			log.Warn().Err(err).Msg("failed to publish spike signals")
		}
	}
	return res, nil
}

// failed reports a failed pass unless it failed because the run was cancelled.
func (s *Scheduler) failed(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.observer.PassFailed(err)
}
