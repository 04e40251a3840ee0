package policy

import (
	"sync"
	"time"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// Versioned is an applied profile and the version it was applied as.
type Versioned struct {
	Profile   domain.PolicyProfile `json:"profile"`
	Version   int64                `json:"version"`
	AppliedAt time.Time            `json:"applied_at"`
}

// Registry holds the applied policy. Readers get copies; a draft replaces the
// current profile only when it was computed against the current version.
type Registry struct {
	mu      sync.RWMutex
	current Versioned
}

// NewRegistry starts at version 1 with initial.
func NewRegistry(initial domain.PolicyProfile, now time.Time) (*Registry, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &Registry{current: Versioned{Profile: initial.Clone(), Version: 1, AppliedAt: now}}, nil
}

func (r *Registry) Current() Versioned {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.current
	out.Profile = out.Profile.Clone()
	return out
}

// Apply makes draft current. basedOn is the version the draft was edited
// from; a mismatch returns a ConcurrencyConflictError and leaves the registry
// unchanged.
func (r *Registry) Apply(draft domain.PolicyProfile, basedOn int64, now time.Time) (Versioned, error) {
	if err := draft.Validate(); err != nil {
		return Versioned{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if basedOn != r.current.Version {
		return Versioned{}, &domain.ConcurrencyConflictError{
			Resource: "policy",
			Expected: basedOn,
			Actual:   r.current.Version,
		}
	}
	r.current = Versioned{Profile: draft.Clone(), Version: r.current.Version + 1, AppliedAt: now}

	out := r.current
	out.Profile = out.Profile.Clone()
	return out, nil
}
