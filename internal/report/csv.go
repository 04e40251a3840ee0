// Package report renders engine output as CSV and ships it to object storage.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
)

var (
	positionHeader = []string{
		"location_id", "location_name", "item_id", "item_name", "category",
		"on_hand", "on_order", "daily_usage", "service_level", "safety_stock",
		"reorder_point", "days_cover", "status", "risk_score", "version",
	}
	curveHeader    = []string{"service_level", "capital_required", "safety_stock_units", "stockout_risk_pct"}
	transferHeader = []string{
		"item_id", "from_location_id", "to_location_id", "quantity", "total_cost",
		"estimated_savings", "transit_minutes", "time_saved_minutes", "route_ids", "source_version",
	}
)

// WritePositionsCSV writes one row per position. An unbounded days cover is
// left empty.
func WritePositionsCSV(w io.Writer, positions []domain.InventoryPosition) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(positionHeader); err != nil {
		return fmt.Errorf("write positions header: %w", err)
	}
	for _, p := range positions {
		cover := ""
		if !math.IsInf(p.DaysCover, 0) && !math.IsNaN(p.DaysCover) {
			cover = num(p.DaysCover)
		}
		row := []string{
			p.LocationID, p.LocationName, p.Item.ID, p.Item.Name, string(p.Item.Category),
			num(p.OnHand), num(p.OnOrder), num(p.DailyUsage), num(p.ServiceLevel), num(p.SafetyStock),
			num(p.ReorderPoint), cover, string(p.Status.Code), num(p.Status.RiskScore),
			strconv.FormatInt(p.Version, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write position %s: %w", p.Key(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteCurveCSV(w io.Writer, points []policy.CurvePoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(curveHeader); err != nil {
		return fmt.Errorf("write curve header: %w", err)
	}
	for _, pt := range points {
		row := []string{num(pt.ServiceLevel), num(pt.CapitalRequired), num(pt.SafetyStockUnits), num(pt.StockoutRiskPct)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write curve point: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteTransfersCSV(w io.Writer, suggestions []domain.TransferSuggestion) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transferHeader); err != nil {
		return fmt.Errorf("write transfers header: %w", err)
	}
	for _, s := range suggestions {
		row := []string{
			s.ItemID, s.FromLocationID, s.ToLocationID, num(s.Quantity), num(s.TotalCost),
			num(s.EstimatedSavings), num(s.TransitTime.Minutes()), num(s.TimeSaved.Minutes()),
			strings.Join(s.RouteIDs, ";"), strconv.FormatInt(s.SourceVersion, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write transfer %s: %w", s.ItemID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
