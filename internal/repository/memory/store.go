// Package memory is an in-process ledger used by tests, the CLI and the
// server when no database is configured.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/position"
	"github.com/andresuchdata/supplyengine/internal/repository"
)

// Store serves snapshots of a fixed catalog over a mutable ledger.
type Store struct {
	mu        sync.RWMutex
	base      domain.Snapshot
	order     []domain.PairKey
	records   map[domain.PairKey]domain.InventoryRecord
	rates     map[domain.PairKey]float64
	transfers map[string]domain.Transfer
	now       func() time.Time
}

// NewStore copies seed. Records keep their versions; a zero version starts at 1.
func NewStore(seed *domain.Snapshot) *Store {
	s := &Store{
		base:      *seed,
		records:   make(map[domain.PairKey]domain.InventoryRecord, len(seed.Records)),
		rates:     make(map[domain.PairKey]float64, len(seed.Consumption)),
		transfers: make(map[string]domain.Transfer),
		now:       time.Now,
	}
	s.base.Records = nil
	s.base.Consumption = nil
	for _, r := range seed.Records {
		rec := r.Clone()
		if rec.Version == 0 {
			rec.Version = 1
		}
		if _, ok := s.records[rec.Key()]; !ok {
			s.order = append(s.order, rec.Key())
		}
		s.records[rec.Key()] = rec
	}
	for k, v := range seed.Consumption {
		s.rates[k] = v
	}
	return s
}

// WithClock replaces the clock used for snapshot timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

var (
	_ repository.SnapshotRepository = (*Store)(nil)
	_ repository.LedgerStore        = (*Store)(nil)
)

func (s *Store) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.base
	snap.TakenAt = s.now()
	snap.Records = make([]domain.InventoryRecord, 0, len(s.order))
	for _, k := range s.order {
		snap.Records = append(snap.Records, s.records[k].Clone())
	}
	snap.Consumption = make(map[domain.PairKey]float64, len(s.rates))
	for k, v := range s.rates {
		snap.Consumption[k] = v
	}
	return &snap, nil
}

func (s *Store) Record(_ context.Context, key domain.PairKey) (domain.InventoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return domain.InventoryRecord{}, domain.NewNotFound("inventory_record", key.String())
	}
	return rec.Clone(), nil
}

func (s *Store) Transfer(_ context.Context, id string) (domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[id]
	if !ok {
		return domain.Transfer{}, domain.NewNotFound("transfer", id)
	}
	return t.Clone(), nil
}

// Transfers lists every transfer, oldest first.
func (s *Store) Transfers(context.Context) ([]domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Commit(ctx context.Context, change repository.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[domain.PairKey]domain.InventoryRecord, len(change.Mutations))
	for _, m := range change.Mutations {
		rec, ok := next[m.Key]
		if !ok {
			if rec, ok = s.records[m.Key]; !ok {
				return domain.NewNotFound("inventory_record", m.Key.String())
			}
			rec = rec.Clone()
		}
		if rec.Version != m.ExpectedVersion {
			return &domain.ConcurrencyConflictError{
				Resource: "inventory_record " + m.Key.String(),
				Expected: m.ExpectedVersion,
				Actual:   rec.Version,
			}
		}
		applied, err := repository.Apply(rec, m)
		if err != nil {
			return err
		}
		next[m.Key] = applied
	}

	if t := change.Transfer; t != nil {
		stored, exists := s.transfers[t.ID]
		switch {
		case change.CreateTransfer && exists:
			return &domain.ConcurrencyConflictError{Resource: "transfer " + t.ID}
		case !change.CreateTransfer && !exists:
			return domain.NewNotFound("transfer", t.ID)
		case !change.CreateTransfer && stored.Status != change.PrevStatus:
			return &domain.ConcurrencyConflictError{
				Resource: "transfer " + t.ID,
				Expected: int64(change.PrevStatus),
				Actual:   int64(stored.Status),
			}
		}
	}

	for k, rec := range next {
		rec.Version++
		s.records[k] = rec
	}
	if change.Transfer != nil {
		s.transfers[change.Transfer.ID] = change.Transfer.Clone()
	}
	return nil
}

// Consume records sales of qty at a pair, drawing lots FEFO, and returns the
// updated record.
func (s *Store) Consume(_ context.Context, key domain.PairKey, qty float64) (domain.InventoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return domain.InventoryRecord{}, domain.NewNotFound("inventory_record", key.String())
	}
	if qty > rec.OnHand+repository.QtyTolerance {
		return domain.InventoryRecord{}, &domain.InsufficientStockError{
			LocationID: key.LocationID, ItemID: key.ItemID, Requested: qty, Available: rec.OnHand,
		}
	}
	rec = rec.Clone()
	if len(rec.Lots) > 0 {
		remaining, _, err := position.AllocateFEFO(rec.Lots, qty)
		if err != nil {
			return domain.InventoryRecord{}, err
		}
		rec.Lots = remaining
	}
	rec.OnHand = math.Max(rec.OnHand-qty, 0)
	rec.Version++
	s.records[key] = rec
	return rec.Clone(), nil
}

// SetRate sets the current consumption rate (units per hour) of a pair.
func (s *Store) SetRate(key domain.PairKey, perHour float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[key] = perHour
}
