// Package spike detects short-term consumption spikes against a rolling
// per-(location, item) baseline and projects when stock will run out.
package spike

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

const (
	DefaultThreshold = 2.0
	DefaultSmoothing = 0.2
)

// ErrPassInProgress is returned when a detection pass is already running.
var ErrPassInProgress = errors.New("spike detection pass already running")

// Config tunes a Detector.
type Config struct {
	// Threshold is the current/baseline multiplier above which a spike is raised.
	Threshold float64
	// Smoothing is the EWMA weight of a new non-spiking sample in the baseline.
	Smoothing float64
	Now       func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		c.Smoothing = DefaultSmoothing
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Input is one observation of the ledger: stock levels plus current
// consumption rates in units per hour.
type Input struct {
	Locations []domain.Location
	Items     []domain.Item
	Records   []domain.InventoryRecord
	Rates     map[domain.PairKey]float64
}

// InputFromSnapshot reads a detection input off a snapshot.
func InputFromSnapshot(s *domain.Snapshot) Input {
	return Input{
		Locations: s.Locations,
		Items:     s.Items,
		Records:   s.Records,
		Rates:     s.Consumption,
	}
}

// PassResult reports one detection pass.
type PassResult struct {
	At        time.Time            `json:"at"`
	Active    []domain.SpikeSignal `json:"active"`
	Raised    []domain.SpikeSignal `json:"raised"`
	Resolved  []domain.SpikeSignal `json:"resolved"`
	Evaluated int                  `json:"evaluated"`
	// Skipped counts records naming an unknown item or location.
	Skipped int `json:"skipped"`
	// Seeded counts pairs that received their first baseline this pass.
	Seeded int `json:"seeded"`
}

// Detector owns the set of monitored signals. Baselines live in the
// BaselineStore and are only written at the end of a successful pass.
type Detector struct {
	cfg      Config
	baseline BaselineStore

	pass sync.Mutex // held for the duration of a pass

	mu        sync.RWMutex
	active    map[domain.PairKey]domain.SpikeSignal
	dismissed map[domain.PairKey]domain.SpikeSignal
	// pending collects dismissals made while a pass runs; nil between passes.
	pending map[domain.PairKey]domain.SpikeSignal
}

func NewDetector(baseline BaselineStore, cfg Config) *Detector {
	return &Detector{
		cfg:       cfg.withDefaults(),
		baseline:  baseline,
		active:    make(map[domain.PairKey]domain.SpikeSignal),
		dismissed: make(map[domain.PairKey]domain.SpikeSignal),
	}
}

func (d *Detector) Threshold() float64 { return d.cfg.Threshold }

// Detect runs one pass. Passes never overlap: a call made while another pass
// runs returns ErrPassInProgress. On any error, including cancellation,
// neither the baseline nor the signal set changes.
func (d *Detector) Detect(ctx context.Context, in Input) (PassResult, error) {
	if !d.pass.TryLock() {
		return PassResult{}, ErrPassInProgress
	}
	defer d.pass.Unlock()

	current, err := d.baseline.Load(ctx)
	if err != nil {
		return PassResult{}, err
	}

	now := d.cfg.Now()
	items := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		items[it.ID] = struct{}{}
	}
	locations := make(map[string]struct{}, len(in.Locations))
	for _, l := range in.Locations {
		locations[l.ID] = struct{}{}
	}

	d.mu.Lock()
	active := cloneSignals(d.active)
	dismissed := cloneSignals(d.dismissed)
	d.pending = make(map[domain.PairKey]domain.SpikeSignal)
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.pending = nil
		d.mu.Unlock()
	}()

	next := make(map[domain.PairKey]float64, len(current))
	for k, v := range current {
		next[k] = v
	}

	records := append([]domain.InventoryRecord(nil), in.Records...)
	sort.Slice(records, func(i, j int) bool {
		return records[i].Key().String() < records[j].Key().String()
	})

	res := PassResult{At: now}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return PassResult{}, err
		}

		key := rec.Key()
		if _, ok := items[rec.ItemID]; !ok {
			res.Skipped++
			continue
		}
		if _, ok := locations[rec.LocationID]; !ok {
			res.Skipped++
			continue
		}
		rate, ok := in.Rates[key]
		if !ok || rate < 0 {
			continue
		}
		res.Evaluated++

		base, ok := current[key]
		if !ok || base <= 0 {
			next[key] = rate
			res.Seeded++
			continue
		}

		multiplier := rate / base
		if multiplier <= d.cfg.Threshold {
			next[key] = d.cfg.Smoothing*rate + (1-d.cfg.Smoothing)*base
			if sig, ok := active[key]; ok {
				sig.State = domain.SignalResolved
				res.Resolved = append(res.Resolved, sig)
				delete(active, key)
			}
			delete(dismissed, key)
			continue
		}

		// Spiking samples stay out of the baseline.
		if rec.OnHand <= 0 {
			// Already out of stock: nothing left to project.
			if sig, ok := active[key]; ok {
				sig.State = domain.SignalResolved
				res.Resolved = append(res.Resolved, sig)
				delete(active, key)
			}
			continue
		}
		if _, ok := dismissed[key]; ok {
			continue
		}

		sig := domain.SpikeSignal{
			ID:           uuid.NewString(),
			LocationID:   rec.LocationID,
			ItemID:       rec.ItemID,
			Multiplier:   multiplier,
			CurrentRate:  rate,
			BaselineRate: base,
			OnHand:       rec.OnHand,
			DetectedAt:   now,
			ShortageAt:   now.Add(time.Duration(rec.OnHand / rate * float64(time.Hour))),
			State:        domain.SignalActive,
		}
		if prev, ok := active[key]; ok {
			// A repeat detection replaces the prior signal under the same id.
			sig.ID = prev.ID
		}
		active[key] = sig
		res.Raised = append(res.Raised, sig)
	}

	if err := ctx.Err(); err != nil {
		return PassResult{}, err
	}
	if err := d.baseline.Commit(ctx, next); err != nil {
		return PassResult{}, err
	}

	d.mu.Lock()
	for key, sig := range d.pending {
		// Dismissed mid-pass: the dismissal stands unless the pair recovered.
		if _, ok := active[key]; !ok {
			continue
		}
		delete(active, key)
		dismissed[key] = sig
		res.Raised = withoutPair(res.Raised, key)
	}
	d.active = active
	d.dismissed = dismissed
	d.mu.Unlock()

	res.Active = sortedSignals(active)
	return res, nil
}

// Active returns the active signals, soonest shortage first.
func (d *Detector) Active() []domain.SpikeSignal {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedSignals(d.active)
}

// Get returns an active signal by id.
func (d *Detector) Get(id string) (domain.SpikeSignal, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.active {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.SpikeSignal{}, domain.NewNotFound("spike_signal", id)
}

// Dismiss retires an active signal. The pair is not raised again until its
// rate falls back under the threshold.
func (d *Detector) Dismiss(id string) (domain.SpikeSignal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, s := range d.active {
		if s.ID != id {
			continue
		}
		s.State = domain.SignalDismissed
		delete(d.active, key)
		d.dismissed[key] = s
		if d.pending != nil {
			d.pending[key] = s
		}
		return s, nil
	}
	return domain.SpikeSignal{}, domain.NewNotFound("spike_signal", id)
}

func cloneSignals(in map[domain.PairKey]domain.SpikeSignal) map[domain.PairKey]domain.SpikeSignal {
	out := make(map[domain.PairKey]domain.SpikeSignal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func withoutPair(in []domain.SpikeSignal, key domain.PairKey) []domain.SpikeSignal {
	out := in[:0]
	for _, s := range in {
		if s.Key() != key {
			out = append(out, s)
		}
	}
	return out
}

func sortedSignals(in map[domain.PairKey]domain.SpikeSignal) []domain.SpikeSignal {
	out := make([]domain.SpikeSignal, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ShortageAt.Equal(out[j].ShortageAt) {
			return out[i].ShortageAt.Before(out[j].ShortageAt)
		}
		return out[i].Key().String() < out[j].Key().String()
	})
	return out
}
