// Package commit applies approved decisions to the ledger. Every commit is
// re-validated against the store's current records and applied with a
// version check, so decisions computed from a stale snapshot are rejected
// with a retryable error instead of overwriting newer state.
package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/position"
	"github.com/andresuchdata/supplyengine/internal/repository"
)

// Observer is told about rejected commits, e.g. for metrics.
type Observer interface {
	CommitConflict(op string)
}

type noopObserver struct{}

func (noopObserver) CommitConflict(string) {}

// Committer applies decisions through a LedgerStore.
type Committer struct {
	store    repository.LedgerStore
	observer Observer
	now      func() time.Time
	newID    func() string
}

type Option func(*Committer)

func WithObserver(o Observer) Option {
	return func(c *Committer) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Committer) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Committer) { c.newID = newID }
}

func NewCommitter(store repository.LedgerStore, opts ...Option) *Committer {
	c := &Committer{
		store:    store,
		observer: noopObserver{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acceptance is the outcome of accepting an emergency option.
type Acceptance struct {
	Option   domain.EmergencyOption `json:"option"`
	Transfer *domain.Transfer       `json:"transfer,omitempty"`
	// OnOrder is the target's on-order quantity after an order was placed.
	OnOrder float64 `json:"on_order,omitempty"`
}

// ApproveTransfer creates a transfer from a suggestion and dispatches it,
// debiting the source. The source is re-checked first: when it no longer
// holds the quantity the error is InsufficientStockError if the record is
// unchanged since the suggestion, ConcurrencyConflictError otherwise.
func (c *Committer) ApproveTransfer(ctx context.Context, s domain.TransferSuggestion) (domain.Transfer, error) {
	now := c.now()
	t, err := domain.NewTransfer(c.newID(), s, now)
	if err != nil {
		return domain.Transfer{}, err
	}

	src, err := c.store.Record(ctx, domain.PairKey{LocationID: s.FromLocationID, ItemID: s.ItemID})
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("load source: %w", err)
	}
	if _, err := c.store.Record(ctx, domain.PairKey{LocationID: s.ToLocationID, ItemID: s.ItemID}); err != nil {
		return domain.Transfer{}, fmt.Errorf("load target: %w", err)
	}

	if src.OnHand < s.Quantity {
		short := &domain.InsufficientStockError{
			LocationID: src.LocationID,
			ItemID:     src.ItemID,
			Requested:  s.Quantity,
			Available:  src.OnHand,
		}
		if src.Version == s.SourceVersion {
			return domain.Transfer{}, short
		}
		return domain.Transfer{}, c.conflict("approve_transfer", &domain.ConcurrencyConflictError{
			Resource: "inventory_record " + src.Key().String(),
			Expected: s.SourceVersion,
			Actual:   src.Version,
			Cause:    short,
		})
	}

	debit := repository.Mutation{
		Key:             src.Key(),
		ExpectedVersion: src.Version,
		OnHandDelta:     -s.Quantity,
	}
	if len(src.Lots) > 0 {
		remaining, draws, err := position.AllocateFEFO(src.Lots, s.Quantity)
		if err != nil {
			return domain.Transfer{}, err
		}
		debit.Lots, debit.ReplaceLots = remaining, true
		t.Lots = drawnLots(src.Lots, draws)
	}

	if err := t.Dispatch(now); err != nil {
		return domain.Transfer{}, err
	}
	err = c.store.Commit(ctx, repository.Change{
		Mutations:      []repository.Mutation{debit},
		Transfer:       t,
		CreateTransfer: true,
	})
	if err != nil {
		return domain.Transfer{}, c.conflict("approve_transfer", err)
	}

	log.Info().
		Str("transfer_id", t.ID).
		Str("from", t.FromLocationID).
		Str("to", t.ToLocationID).
		Str("item_id", t.ItemID).
		Float64("quantity", t.Quantity).
		Msg("transfer approved")
	return *t, nil
}

// CompleteTransfer credits the target of an in-transit transfer.
func (c *Committer) CompleteTransfer(ctx context.Context, id string) (domain.Transfer, error) {
	t, err := c.store.Transfer(ctx, id)
	if err != nil {
		return domain.Transfer{}, err
	}
	prev := t.Status
	if err := t.Complete(c.now()); err != nil {
		return domain.Transfer{}, err
	}

	credit, err := c.credit(ctx, t.ToLocationID, t)
	if err != nil {
		return domain.Transfer{}, err
	}
	if err := c.store.Commit(ctx, repository.Change{
		Mutations:  []repository.Mutation{credit},
		Transfer:   &t,
		PrevStatus: prev,
	}); err != nil {
		return domain.Transfer{}, c.conflict("complete_transfer", err)
	}

	log.Info().Str("transfer_id", t.ID).Msg("transfer completed")
	return t, nil
}

// CancelTransfer abandons a transfer. Stock already dispatched returns to
// the source.
func (c *Committer) CancelTransfer(ctx context.Context, id string) (domain.Transfer, error) {
	t, err := c.store.Transfer(ctx, id)
	if err != nil {
		return domain.Transfer{}, err
	}
	prev := t.Status
	if err := t.Cancel(c.now()); err != nil {
		return domain.Transfer{}, err
	}

	change := repository.Change{Transfer: &t, PrevStatus: prev}
	if prev == domain.TransferInTransit {
		credit, err := c.credit(ctx, t.FromLocationID, t)
		if err != nil {
			return domain.Transfer{}, err
		}
		change.Mutations = []repository.Mutation{credit}
	}
	if err := c.store.Commit(ctx, change); err != nil {
		return domain.Transfer{}, c.conflict("cancel_transfer", err)
	}

	log.Info().Str("transfer_id", t.ID).Str("was", prev.String()).Msg("transfer cancelled")
	return t, nil
}

// AcceptEmergencyOption commits the chosen response to a spike. Courier and
// vendor options go on order at the signal's location; a transfer option is
// approved as a transfer; IGNORE changes nothing.
func (c *Committer) AcceptEmergencyOption(ctx context.Context, sig domain.SpikeSignal, opt domain.EmergencyOption) (Acceptance, error) {
	out := Acceptance{Option: opt}

	switch opt.Kind {
	case domain.OptionIgnore:
		log.Info().Str("signal_id", sig.ID).Msg("emergency ignored")
		return out, nil

	case domain.OptionTransfer:
		t, err := c.ApproveTransfer(ctx, domain.TransferSuggestion{
			FromLocationID: opt.SourceLocationID,
			ToLocationID:   sig.LocationID,
			ItemID:         sig.ItemID,
			Quantity:       opt.Quantity,
			TotalCost:      opt.Cost,
			RouteIDs:       opt.RouteIDs,
			SourceVersion:  opt.SourceVersion,
		})
		if err != nil {
			return out, err
		}
		out.Transfer = &t
		return out, nil

	case domain.OptionCourier, domain.OptionVendorExpedite:
		if opt.Quantity <= 0 {
			return out, domain.NewDomainError("quantity", "must be > 0, got %.2f", opt.Quantity)
		}
		rec, err := c.store.Record(ctx, sig.Key())
		if err != nil {
			return out, err
		}
		err = c.store.Commit(ctx, repository.Change{Mutations: []repository.Mutation{{
			Key:             rec.Key(),
			ExpectedVersion: rec.Version,
			OnOrderDelta:    opt.Quantity,
		}}})
		if err != nil {
			return out, c.conflict("accept_emergency", err)
		}
		out.OnOrder = rec.OnOrder + opt.Quantity

		log.Info().
			Str("signal_id", sig.ID).
			Str("kind", string(opt.Kind)).
			Str("provider", opt.Provider).
			Float64("quantity", opt.Quantity).
			Msg("emergency order placed")
		return out, nil
	}
	return out, domain.NewDomainError("kind", "unknown option kind %q", opt.Kind)
}

// credit returns the mutation adding a transfer's quantity at loc. Lots
// travel with the stock when the receiving record tracks lots.
func (c *Committer) credit(ctx context.Context, loc string, t domain.Transfer) (repository.Mutation, error) {
	rec, err := c.store.Record(ctx, domain.PairKey{LocationID: loc, ItemID: t.ItemID})
	if err != nil {
		return repository.Mutation{}, err
	}
	m := repository.Mutation{Key: rec.Key(), ExpectedVersion: rec.Version, OnHandDelta: t.Quantity}
	if len(rec.Lots) > 0 || (rec.OnHand == 0 && len(t.Lots) > 0) {
		incoming := t.Lots
		if len(incoming) == 0 {
			// Expiry unknown: treat as due now.
			incoming = []domain.Lot{{LotID: t.ID, Quantity: t.Quantity}}
		}
		m.Lots, m.ReplaceLots = mergeLots(rec.Lots, incoming), true
	}
	return m, nil
}

func (c *Committer) conflict(op string, err error) error {
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		c.observer.CommitConflict(op)
		log.Warn().Err(err).Str("op", op).Msg("commit rejected, snapshot is stale")
	}
	return err
}

// mergeLots adds incoming to lots, folding quantities of the same lot.
func mergeLots(lots, incoming []domain.Lot) []domain.Lot {
	out := append([]domain.Lot(nil), lots...)
	for _, in := range incoming {
		merged := false
		for i := range out {
			if out[i].LotID == in.LotID && out[i].DaysUntilExpiry == in.DaysUntilExpiry {
				out[i].Quantity += in.Quantity
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, in)
		}
	}
	return out
}

// drawnLots turns FEFO draws back into lots carrying their source expiry.
func drawnLots(source []domain.Lot, draws []position.Allocation) []domain.Lot {
	expiry := make(map[string]int, len(source))
	for _, l := range source {
		expiry[l.LotID] = l.DaysUntilExpiry
	}
	out := make([]domain.Lot, len(draws))
	for i, d := range draws {
		out[i] = domain.Lot{LotID: d.LotID, Quantity: d.Quantity, DaysUntilExpiry: expiry[d.LotID]}
	}
	return out
}
