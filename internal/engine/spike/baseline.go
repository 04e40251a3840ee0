package spike

import (
	"context"
	"sync"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// BaselineStore holds the rolling consumption baseline (units per hour) per
// (location, item). The detector is its single writer.
type BaselineStore interface {
	Load(ctx context.Context) (map[domain.PairKey]float64, error)
	// Commit replaces the whole baseline atomically.
	Commit(ctx context.Context, baseline map[domain.PairKey]float64) error
}

// MemoryBaselineStore keeps the baseline in process.
type MemoryBaselineStore struct {
	mu     sync.RWMutex
	values map[domain.PairKey]float64
}

func NewMemoryBaselineStore(seed map[domain.PairKey]float64) *MemoryBaselineStore {
	s := &MemoryBaselineStore{values: make(map[domain.PairKey]float64, len(seed))}
	for k, v := range seed {
		s.values[k] = v
	}
	return s
}

func (s *MemoryBaselineStore) Load(ctx context.Context) (map[domain.PairKey]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.PairKey]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryBaselineStore) Commit(ctx context.Context, baseline map[domain.PairKey]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := make(map[domain.PairKey]float64, len(baseline))
	for k, v := range baseline {
		values[k] = v
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}
