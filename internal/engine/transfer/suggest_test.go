package transfer

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/routing"
	"github.com/andresuchdata/supplyengine/internal/engine/vendor"
)

var locations = []domain.Location{
	{ID: "downtown", Name: "Downtown"},
	{ID: "harbor", Name: "Harbor"},
	{ID: "uptown", Name: "Uptown"},
	{ID: "airport", Name: "Airport"},
}

var routes = []domain.Route{
	{ID: "hd", FromLocationID: "harbor", ToLocationID: "downtown", Mode: domain.ModeVan,
		BaseCost: 10, DistanceKm: 10, TransitHours: 1, HandlingFeePerUnit: 0.05, Active: true},
	{ID: "ud", FromLocationID: "uptown", ToLocationID: "downtown", Mode: domain.ModeVan,
		BaseCost: 10, DistanceKm: 20, TransitHours: 2, HandlingFeePerUnit: 0.05, Active: true},
}

// fakeSourcing prices an expedite at a flat per-unit cost with a 12h ETA.
type fakeSourcing map[string]float64

func (f fakeSourcing) CheapestExpedite(itemID string, qty float64) (vendor.ExpediteQuote, error) {
	perUnit, ok := f[itemID]
	if !ok {
		return vendor.ExpediteQuote{}, domain.NewNotFound("supplier_item", itemID)
	}
	return vendor.ExpediteQuote{
		SupplierID: "s1",
		Quantity:   qty,
		ETA:        12 * time.Hour,
		TotalCost:  decimal.NewFromFloat(perUnit * qty),
	}, nil
}

func pos(loc, item string, onHand, rop float64, version int64) domain.InventoryPosition {
	return domain.InventoryPosition{
		LocationID:   loc,
		Item:         domain.Item{ID: item},
		OnHand:       onHand,
		ReorderPoint: rop,
		Version:      version,
	}
}

func inputs(t *testing.T, sourcing fakeSourcing) Inputs {
	t.Helper()
	router, err := routing.NewRouter(locations, routes)
	require.NoError(t, err)
	return Inputs{Policy: domain.DefaultPolicy(), Router: router, Sourcing: sourcing}
}

func TestSuggest_GreedyPairing(t *testing.T) {
	positions := []domain.InventoryPosition{
		pos("downtown", "milk", 20, 120, 3),
		pos("harbor", "milk", 400, 100, 7),
		pos("uptown", "milk", 160, 100, 2),
		pos("airport", "milk", 110, 100, 1),

		pos("downtown", "beans", 0, 200, 1),
		pos("harbor", "beans", 250, 100, 4),
		pos("uptown", "beans", 180, 100, 5),
	}

	got, err := Suggest(positions, inputs(t, fakeSourcing{"milk": 3, "beans": 10}))
	require.NoError(t, err)
	require.Len(t, got, 3)

	// beans: harbor covers 150 of the 200 deficit, uptown the remaining 50
	assert.Equal(t, "harbor", got[0].FromLocationID)
	assert.Equal(t, "beans", got[0].ItemID)
	assert.Equal(t, 150.0, got[0].Quantity)
	assert.InDelta(t, 22.0, got[0].TotalCost, 1e-9)
	assert.InDelta(t, 1478.0, got[0].EstimatedSavings, 1e-9)
	assert.Equal(t, int64(4), got[0].SourceVersion)

	assert.Equal(t, "uptown", got[1].FromLocationID)
	assert.Equal(t, 50.0, got[1].Quantity)
	assert.InDelta(t, 19.0, got[1].FixedCost, 1e-9)
	assert.InDelta(t, 2.5, got[1].HandlingCost, 1e-9)
	assert.InDelta(t, 478.5, got[1].EstimatedSavings, 1e-9)
	assert.Equal(t, 2*time.Hour, got[1].TransitTime)

	milk := got[2]
	assert.Equal(t, "harbor", milk.FromLocationID)
	assert.Equal(t, "downtown", milk.ToLocationID)
	assert.Equal(t, 100.0, milk.Quantity)
	assert.InDelta(t, 14.5, milk.FixedCost, 1e-9)
	assert.InDelta(t, 5.0, milk.HandlingCost, 1e-9)
	assert.InDelta(t, 280.5, milk.EstimatedSavings, 1e-9)
	assert.Equal(t, 11*time.Hour, milk.TimeSaved)
	assert.Equal(t, []string{"hd"}, milk.RouteIDs)
	assert.Equal(t, int64(7), milk.SourceVersion)
}

// minOrderSourcing raises every expedite to a minimum order.
type minOrderSourcing struct {
	perUnit, minQty float64
}

func (m minOrderSourcing) CheapestExpedite(_ string, qty float64) (vendor.ExpediteQuote, error) {
	ordered := math.Max(qty, m.minQty)
	return vendor.ExpediteQuote{
		SupplierID: "s1",
		Quantity:   ordered,
		ETA:        12 * time.Hour,
		TotalCost:  decimal.NewFromFloat(m.perUnit * ordered),
	}, nil
}

func TestSuggest_SavingsIgnoreSupplierMinimum(t *testing.T) {
	positions := []domain.InventoryPosition{
		pos("downtown", "milk", 20, 120, 3),
		pos("harbor", "milk", 400, 100, 7),
	}
	in := inputs(t, nil)
	in.Sourcing = minOrderSourcing{perUnit: 3, minQty: 500}

	got, err := Suggest(positions, in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Quantity)
	// 100 units at 3.00 against the 19.50 transfer, not the 500 unit order.
	assert.InDelta(t, 280.5, got[0].EstimatedSavings, 1e-9)
}

func TestSuggest_DonorKeepsItsReorderPoint(t *testing.T) {
	positions := []domain.InventoryPosition{
		pos("downtown", "milk", 0, 300, 1),
		pos("harbor", "milk", 160, 100, 1),
	}

	got, err := Suggest(positions, inputs(t, fakeSourcing{"milk": 3}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 60.0, got[0].Quantity)
}

func TestSuggest_DeficitBelowThresholdIsIgnored(t *testing.T) {
	positions := []domain.InventoryPosition{
		// deficit 20 is exactly 0.2 of the reorder point
		pos("downtown", "milk", 80, 100, 1),
		pos("harbor", "milk", 400, 100, 1),
	}

	in := inputs(t, fakeSourcing{"milk": 3})
	got, err := Suggest(positions, in)
	require.NoError(t, err)
	assert.Empty(t, got)

	in.Policy = in.Policy.WithAutoTransferThreshold(0.1)
	got, err = Suggest(positions, in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 20.0, got[0].Quantity)
}

func TestSuggest_SkipsUnreachableAndUnprofitable(t *testing.T) {
	positions := []domain.InventoryPosition{
		// only donor has no route in
		pos("downtown", "cups", 0, 500, 1),
		pos("airport", "cups", 900, 100, 1),

		// 50 units cost 17 to move but only 0.50 to expedite
		pos("downtown", "sugar", 0, 50, 1),
		pos("harbor", "sugar", 200, 100, 1),

		// no supplier to compare against
		pos("downtown", "syrup", 0, 50, 1),
		pos("harbor", "syrup", 200, 100, 1),
	}

	got, err := Suggest(positions, inputs(t, fakeSourcing{"cups": 1, "sugar": 0.01}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggest_Errors(t *testing.T) {
	in := inputs(t, fakeSourcing{})
	in.Policy.GlobalServiceLevel = 1
	_, err := Suggest(nil, in)
	assert.ErrorIs(t, err, domain.ErrDomain)

	_, err = Suggest(nil, Inputs{Policy: domain.DefaultPolicy()})
	assert.ErrorIs(t, err, domain.ErrDomain)
}
