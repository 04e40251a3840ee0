package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

const minimal = `
items:
  - {id: milk, name: Whole milk, category: milk, storage_cost_per_unit: 2}
locations:
  - {id: downtown, name: Downtown}
  - {id: harbor, name: Harbor}
suppliers:
  - {id: dairy, name: Dairy Direct, reliability: 0.95, categories: [milk]}
supplier_items:
  - supplier_id: dairy
    item_id: milk
    base_price: 1.2
    delivery_days: 1
    tiers: [{min_qty: 0, unit_price: 1.2}, {min_qty: 200, unit_price: 1.05}]
records:
  - location_id: downtown
    item_id: milk
    on_hand: 30
    lots: [{lot_id: a, quantity: 30, days_until_expiry: 3}]
routes:
  - {id: r1, from_location_id: harbor, to_location_id: downtown, mode: van, base_cost: 10, distance_km: 5, transit_hours: 1, active: true}
demand:
  - {location_id: downtown, item_id: milk, avg_daily_usage: 25, demand_std_dev: 5, avg_lead_time_days: 3, lead_time_std_dev: 1}
consumption:
  - {location_id: downtown, item_id: milk, per_hour: 15}
`

func TestParse(t *testing.T) {
	snap, err := Parse([]byte(minimal))
	require.NoError(t, err)

	key := domain.PairKey{LocationID: "downtown", ItemID: "milk"}
	assert.Equal(t, domain.CategoryMilk, snap.Items[0].Category)
	assert.Equal(t, []domain.Category{domain.CategoryMilk}, snap.Suppliers[0].Categories)
	assert.Equal(t, 1.05, snap.SupplierItems[0].Tiers[1].UnitPrice)
	assert.Equal(t, "a", snap.Records[0].Lots[0].LotID)
	assert.Equal(t, domain.ModeVan, snap.Routes[0].Mode)
	assert.Equal(t, domain.DemandProfile{AvgDailyUsage: 25, DemandStdDev: 5, AvgLeadTimeDays: 3, LeadTimeStdDev: 1}, snap.Demand[key])
	assert.Equal(t, 15.0, snap.Consumption[key])
}

func TestParse_RoundTripsThroughFile(t *testing.T) {
	snap, err := Parse([]byte(minimal))
	require.NoError(t, err)

	out, err := yaml.Marshal(FromSnapshot(snap))
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, snap.Demand, again.Demand)
	assert.Equal(t, snap.Consumption, again.Consumption)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *File)
		want   error
	}{
		{"record for unknown item", func(f *File) {
			f.Records = append(f.Records, domain.InventoryRecord{LocationID: "downtown", ItemID: "tea"})
		}, domain.ErrNotFound},
		{"duplicate record", func(f *File) {
			f.Records = append(f.Records, f.Records[0])
		}, domain.ErrDomain},
		{"route to unknown location", func(f *File) {
			f.Routes[0].ToLocationID = "airport"
		}, domain.ErrNotFound},
		{"increasing tier price", func(f *File) {
			f.SupplierItems[0].Tiers[1].UnitPrice = 2
		}, domain.ErrDomain},
		{"supplier item for unknown supplier", func(f *File) {
			f.SupplierItems[0].SupplierID = "ghost"
		}, domain.ErrNotFound},
		{"bad category", func(f *File) {
			f.Items[0].Category = "gadgets"
		}, domain.ErrDomain},
		{"negative rate", func(f *File) {
			f.Consumption[0].PerHour = -1
		}, domain.ErrDomain},
		{"negative history", func(f *File) {
			f.History = []HistoryEntry{{LocationID: "harbor", ItemID: "milk", Daily: []float64{3, -1}}}
		}, domain.ErrDomain},
		{"lead time for unknown item", func(f *File) {
			f.LeadTimes = []LeadTimeEntry{{ItemID: "tea"}}
		}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f File
			require.NoError(t, yaml.Unmarshal([]byte(minimal), &f))
			tt.mutate(&f)
			assert.ErrorIs(t, f.Validate(), tt.want)
		})
	}
}

func TestParse_DerivesDemandFromHistory(t *testing.T) {
	doc := minimal + `
history:
  - {location_id: harbor, item_id: milk, daily: [10, 12, 14]}
  - {location_id: downtown, item_id: milk, daily: [1, 1, 1]}
lead_times:
  - {item_id: milk, avg_days: 2, std_dev_days: 0.5}
`
	snap, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, domain.DemandProfile{AvgDailyUsage: 12, DemandStdDev: 2, AvgLeadTimeDays: 2, LeadTimeStdDev: 0.5},
		snap.Demand[domain.PairKey{LocationID: "harbor", ItemID: "milk"}])
	// An explicit profile is not replaced by history.
	assert.Equal(t, 25.0, snap.Demand[domain.PairKey{LocationID: "downtown", ItemID: "milk"}].AvgDailyUsage)
}

func TestLoad_DemoFixture(t *testing.T) {
	snap, err := Load("../../fixtures/demo.yaml")
	require.NoError(t, err)
	assert.Len(t, snap.Locations, 4)
	assert.NotEmpty(t, snap.Records)
	assert.Equal(t, 15.0, snap.Consumption[domain.PairKey{LocationID: "downtown", ItemID: "milk"}])

	_, err = Load("does-not-exist.yaml")
	assert.Error(t, err)
}
