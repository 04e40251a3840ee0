package report

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
	"github.com/andresuchdata/supplyengine/internal/storage"
)

func samplePositions() []domain.InventoryPosition {
	return []domain.InventoryPosition{
		{
			LocationID: "downtown", LocationName: "Downtown, Main St",
			Item:   domain.Item{ID: "milk", Name: "Whole milk", Category: domain.CategoryMilk},
			OnHand: 30, DailyUsage: 25, ServiceLevel: 0.95, SafetyStock: 44, ReorderPoint: 119,
			DaysCover: 1.2, Version: 3,
			Status: domain.PositionStatus{Code: domain.StatusStockoutRisk, RiskScore: 0.75},
		},
		{
			LocationID: "harbor", LocationName: "Harbor",
			Item:   domain.Item{ID: "cups", Name: "Cups", Category: domain.CategoryCups},
			OnHand: 500, DaysCover: math.Inf(1), Version: 1,
			Status: domain.PositionStatus{Code: domain.StatusOK},
		},
	}
}

func TestWritePositionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePositionsCSV(&buf, samplePositions()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "location_id,location_name,item_id"))
	assert.Equal(t, `downtown,"Downtown, Main St",milk,Whole milk,milk,30,0,25,0.95,44,119,1.2,STOCKOUT_RISK,0.75,3`, lines[1])
	assert.Equal(t, "harbor,Harbor,cups,Cups,cups,500,0,0,0,0,0,,OK,0,1", lines[2])
}

func TestWriteCurveAndTransfersCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCurveCSV(&buf, []policy.CurvePoint{{ServiceLevel: 0.9, CapitalRequired: 60.5, SafetyStockUnits: 31, StockoutRiskPct: 10}}))
	assert.Equal(t, "service_level,capital_required,safety_stock_units,stockout_risk_pct\n0.9,60.5,31,10\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteTransfersCSV(&buf, []domain.TransferSuggestion{{
		ItemID: "milk", FromLocationID: "harbor", ToLocationID: "downtown", Quantity: 100,
		TotalCost: 19.5, EstimatedSavings: 280.5, TransitTime: time.Hour, TimeSaved: 11 * time.Hour,
		RouteIDs: []string{"r-hu", "r-ud"}, SourceVersion: 7,
	}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "milk,harbor,downtown,100,19.5,280.5,60,660,r-hu;r-ud,7", lines[1])
}

type failingStorage struct{ storage.ObjectStorage }

func (failingStorage) UploadObject(context.Context, string, []byte, string) error {
	return errors.New("bucket unavailable")
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	store := storage.NewLocalStorage(t.TempDir())
	exp := NewExporter(store, "reports")
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	keys, err := exp.Export(ctx, Bundle{
		TakenAt:   at,
		Positions: samplePositions(),
		Curve:     []policy.CurvePoint{{ServiceLevel: 0.9}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"reports/20260301T093000Z/positions.csv",
		"reports/20260301T093000Z/policy_curve.csv",
	}, keys)

	data, err := store.ReadObject(ctx, keys[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), "0.9,0,0,0")

	_, err = NewExporter(failingStorage{}, "").Export(ctx, Bundle{TakenAt: at, Positions: samplePositions()})
	assert.ErrorContains(t, err, "bucket unavailable")
}
