package commit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/repository"
	"github.com/andresuchdata/supplyengine/internal/repository/memory"
)

var (
	t0        = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	harborKey = domain.PairKey{LocationID: "harbor", ItemID: "milk"}
	downKey   = domain.PairKey{LocationID: "downtown", ItemID: "milk"}
)

func seed() *domain.Snapshot {
	return &domain.Snapshot{
		Items:     []domain.Item{{ID: "milk", Category: domain.CategoryMilk}},
		Locations: []domain.Location{{ID: "downtown"}, {ID: "harbor"}},
		Records: []domain.InventoryRecord{
			{LocationID: "harbor", ItemID: "milk", OnHand: 400, Version: 1, Lots: []domain.Lot{
				{LotID: "a", Quantity: 300, DaysUntilExpiry: 10},
				{LotID: "b", Quantity: 100, DaysUntilExpiry: 2},
			}},
			{LocationID: "downtown", ItemID: "milk", OnHand: 20, Version: 1},
		},
	}
}

type conflictCounter struct{ ops []string }

func (c *conflictCounter) CommitConflict(op string) { c.ops = append(c.ops, op) }

func newCommitter(store repository.LedgerStore) (*Committer, *conflictCounter) {
	obs := &conflictCounter{}
	n := 0
	return NewCommitter(store,
		WithObserver(obs),
		WithClock(func() time.Time { return t0 }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("t-%d", n) }),
	), obs
}

func suggestion(qty float64, version int64) domain.TransferSuggestion {
	return domain.TransferSuggestion{
		FromLocationID: "harbor",
		ToLocationID:   "downtown",
		ItemID:         "milk",
		Quantity:       qty,
		TotalCost:      22,
		SourceVersion:  version,
	}
}

func record(t *testing.T, store *memory.Store, key domain.PairKey) domain.InventoryRecord {
	t.Helper()
	rec, err := store.Record(context.Background(), key)
	require.NoError(t, err)
	return rec
}

func TestApproveTransfer_DebitsSourceFEFO(t *testing.T) {
	store := memory.NewStore(seed())
	c, _ := newCommitter(store)

	tr, err := c.ApproveTransfer(context.Background(), suggestion(150, 1))
	require.NoError(t, err)
	assert.Equal(t, "t-1", tr.ID)
	assert.Equal(t, domain.TransferInTransit, tr.Status)
	assert.Equal(t, []domain.Lot{
		{LotID: "b", Quantity: 100, DaysUntilExpiry: 2},
		{LotID: "a", Quantity: 50, DaysUntilExpiry: 10},
	}, tr.Lots)

	src := record(t, store, harborKey)
	assert.Equal(t, 250.0, src.OnHand)
	assert.Equal(t, int64(2), src.Version)
	assert.Equal(t, []domain.Lot{{LotID: "a", Quantity: 250, DaysUntilExpiry: 10}}, src.Lots)

	// nothing arrives until completion
	assert.Equal(t, 20.0, record(t, store, downKey).OnHand)
}

func TestCompleteTransfer_CreditsTarget(t *testing.T) {
	store := memory.NewStore(seed())
	c, _ := newCommitter(store)
	ctx := context.Background()

	tr, err := c.ApproveTransfer(ctx, suggestion(150, 1))
	require.NoError(t, err)

	done, err := c.CompleteTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCompleted, done.Status)

	target := record(t, store, downKey)
	assert.Equal(t, 170.0, target.OnHand)
	assert.Empty(t, target.Lots, "target without lot tracking stays untracked")

	_, err = c.CompleteTransfer(ctx, tr.ID)
	assert.ErrorIs(t, err, domain.ErrDomain)
	_, err = c.CancelTransfer(ctx, tr.ID)
	assert.ErrorIs(t, err, domain.ErrDomain)

	_, err = c.CompleteTransfer(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelTransfer_ReturnsStock(t *testing.T) {
	store := memory.NewStore(seed())
	c, _ := newCommitter(store)
	ctx := context.Background()

	tr, err := c.ApproveTransfer(ctx, suggestion(150, 1))
	require.NoError(t, err)

	cancelled, err := c.CancelTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferCancelled, cancelled.Status)

	src := record(t, store, harborKey)
	assert.Equal(t, 400.0, src.OnHand)
	assert.Equal(t, []domain.Lot{
		{LotID: "a", Quantity: 300, DaysUntilExpiry: 10},
		{LotID: "b", Quantity: 100, DaysUntilExpiry: 2},
	}, src.Lots)

	transfers, err := store.Transfers(ctx)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, domain.TransferCancelled, transfers[0].Status)
}

func TestApproveTransfer_Revalidation(t *testing.T) {
	ctx := context.Background()

	t.Run("unchanged record without stock", func(t *testing.T) {
		c, obs := newCommitter(memory.NewStore(seed()))
		_, err := c.ApproveTransfer(ctx, suggestion(500, 1))
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.NotErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.False(t, domain.IsRetryable(err))
		assert.Empty(t, obs.ops)
	})

	t.Run("stale record without stock", func(t *testing.T) {
		store := memory.NewStore(seed())
		_, err := store.Consume(ctx, harborKey, 300)
		require.NoError(t, err)

		c, obs := newCommitter(store)
		_, err = c.ApproveTransfer(ctx, suggestion(150, 1))
		require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.True(t, domain.IsRetryable(err))
		assert.Equal(t, []string{"approve_transfer"}, obs.ops)
		assert.Equal(t, 100.0, record(t, store, harborKey).OnHand)
	})

	t.Run("stale record still holding enough", func(t *testing.T) {
		store := memory.NewStore(seed())
		_, err := store.Consume(ctx, harborKey, 10)
		require.NoError(t, err)

		c, _ := newCommitter(store)
		_, err = c.ApproveTransfer(ctx, suggestion(150, 1))
		require.NoError(t, err)
		assert.Equal(t, 240.0, record(t, store, harborKey).OnHand)
	})

	t.Run("unknown target", func(t *testing.T) {
		c, _ := newCommitter(memory.NewStore(seed()))
		s := suggestion(10, 1)
		s.ToLocationID = "airport"
		_, err := c.ApproveTransfer(ctx, s)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// racingStore sells one unit at the source between read and commit.
type racingStore struct {
	*memory.Store
}

func (r racingStore) Commit(ctx context.Context, change repository.Change) error {
	if _, err := r.Consume(ctx, harborKey, 1); err != nil {
		return err
	}
	return r.Store.Commit(ctx, change)
}

func TestApproveTransfer_LostRaceIsConflict(t *testing.T) {
	store := memory.NewStore(seed())
	c, obs := newCommitter(racingStore{store})

	_, err := c.ApproveTransfer(context.Background(), suggestion(150, 1))
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, []string{"approve_transfer"}, obs.ops)

	transfers, err := store.Transfers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, transfers)
	assert.Equal(t, 399.0, record(t, store, harborKey).OnHand)
}

func TestAcceptEmergencyOption(t *testing.T) {
	ctx := context.Background()
	sig := domain.SpikeSignal{ID: "sig-1", LocationID: "downtown", ItemID: "milk", State: domain.SignalActive}

	t.Run("courier goes on order", func(t *testing.T) {
		store := memory.NewStore(seed())
		c, _ := newCommitter(store)

		acc, err := c.AcceptEmergencyOption(ctx, sig, domain.EmergencyOption{Kind: domain.OptionCourier, Provider: "CityDash", Quantity: 60})
		require.NoError(t, err)
		assert.Equal(t, 60.0, acc.OnOrder)
		assert.Nil(t, acc.Transfer)

		rec := record(t, store, downKey)
		assert.Equal(t, 60.0, rec.OnOrder)
		assert.Equal(t, int64(2), rec.Version)
	})

	t.Run("transfer is approved", func(t *testing.T) {
		store := memory.NewStore(seed())
		c, _ := newCommitter(store)

		acc, err := c.AcceptEmergencyOption(ctx, sig, domain.EmergencyOption{
			Kind: domain.OptionTransfer, SourceLocationID: "harbor", Quantity: 50, Cost: 17.5, SourceVersion: 1,
		})
		require.NoError(t, err)
		require.NotNil(t, acc.Transfer)
		assert.Equal(t, "downtown", acc.Transfer.ToLocationID)
		assert.Equal(t, 350.0, record(t, store, harborKey).OnHand)
	})

	t.Run("ignore changes nothing", func(t *testing.T) {
		store := memory.NewStore(seed())
		c, _ := newCommitter(store)

		_, err := c.AcceptEmergencyOption(ctx, sig, domain.EmergencyOption{Kind: domain.OptionIgnore})
		require.NoError(t, err)
		assert.Equal(t, int64(1), record(t, store, downKey).Version)
	})

	t.Run("invalid", func(t *testing.T) {
		c, _ := newCommitter(memory.NewStore(seed()))

		_, err := c.AcceptEmergencyOption(ctx, sig, domain.EmergencyOption{Kind: domain.OptionCourier})
		assert.ErrorIs(t, err, domain.ErrDomain)
		_, err = c.AcceptEmergencyOption(ctx, sig, domain.EmergencyOption{Kind: "TELEPORT", Quantity: 1})
		assert.ErrorIs(t, err, domain.ErrDomain)
	})
}
