// Package policy projects what a draft replenishment policy would cost and
// keeps the applied policy behind a versioned copy-on-write registry.
package policy

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/position"
)

// Inputs is the inventory snapshot a simulation runs over.
type Inputs struct {
	Records   []domain.InventoryRecord
	Items     []domain.Item
	Locations []domain.Location
	Demand    domain.DemandModel
	Workers   int
}

func InputsFromSnapshot(s *domain.Snapshot) Inputs {
	return Inputs{
		Records:   s.Records,
		Items:     s.Items,
		Locations: s.Locations,
		Demand:    s.Demand,
	}
}

// Impact aggregates one profile over the whole snapshot.
type Impact struct {
	ServiceLevel     float64 `json:"service_level"`
	CapitalRequired  float64 `json:"capital_required"`
	SafetyStockUnits float64 `json:"safety_stock_units"`
	StockoutRiskPct  float64 `json:"stockout_risk_pct"`
	Positions        int     `json:"positions"`
}

// PolicyImpact compares a draft against the baseline. Deltas are draft minus
// baseline.
type PolicyImpact struct {
	Baseline          Impact  `json:"baseline"`
	Draft             Impact  `json:"draft"`
	CapitalDelta      float64 `json:"capital_delta"`
	SafetyStockDelta  float64 `json:"safety_stock_delta"`
	StockoutRiskDelta float64 `json:"stockout_risk_delta"`
}

// CurvePoint is one sample of the service-level versus capital curve.
type CurvePoint struct {
	ServiceLevel     float64 `json:"service_level"`
	CapitalRequired  float64 `json:"capital_required"`
	SafetyStockUnits float64 `json:"safety_stock_units"`
	StockoutRiskPct  float64 `json:"stockout_risk_pct"`
}

// DefaultGrid is 0.80 through 0.99 in steps of 0.01.
func DefaultGrid() []float64 {
	grid := make([]float64, 0, 20)
	for pct := 80; pct <= 99; pct++ {
		grid = append(grid, float64(pct)/100)
	}
	return grid
}

// Simulate evaluates both profiles over the same snapshot.
func Simulate(baseline, draft domain.PolicyProfile, in Inputs) (PolicyImpact, error) {
	base, err := Evaluate(baseline, in)
	if err != nil {
		return PolicyImpact{}, err
	}
	next, err := Evaluate(draft, in)
	if err != nil {
		return PolicyImpact{}, err
	}
	return PolicyImpact{
		Baseline:          base,
		Draft:             next,
		CapitalDelta:      round(next.CapitalRequired-base.CapitalRequired, 2),
		SafetyStockDelta:  next.SafetyStockUnits - base.SafetyStockUnits,
		StockoutRiskDelta: round(next.StockoutRiskPct-base.StockoutRiskPct, 2),
	}, nil
}

// Evaluate rebuilds every position under p. Capital is safety stock units
// times the item's annual storage cost. Stockout risk is (1 - service level)
// as a percentage, weighted by daily usage when per-category levels diverge.
func Evaluate(p domain.PolicyProfile, in Inputs) (Impact, error) {
	positions, err := position.Build(in.Records, in.Items, in.Locations, position.Options{
		Policy:  p,
		Demand:  in.Demand,
		Workers: in.Workers,
	})
	if err != nil {
		return Impact{}, err
	}

	var capital, units, weighted, usage, plain float64
	for _, pos := range positions {
		capital += pos.SafetyStock * pos.Item.StorageCostPerUnit
		units += pos.SafetyStock
		risk := (1 - pos.ServiceLevel) * 100
		weighted += risk * pos.DailyUsage
		usage += pos.DailyUsage
		plain += risk
	}

	stockout := (1 - p.GlobalServiceLevel) * 100
	switch {
	case usage > 0:
		stockout = weighted / usage
	case len(positions) > 0:
		stockout = plain / float64(len(positions))
	}

	return Impact{
		ServiceLevel:     p.GlobalServiceLevel,
		CapitalRequired:  round(capital, 2),
		SafetyStockUnits: units,
		StockoutRiskPct:  round(stockout, 2),
		Positions:        len(positions),
	}, nil
}

// Curve resamples the draft's global service level over grid, holding every
// other parameter fixed. Points come back in grid order.
func Curve(ctx context.Context, draft domain.PolicyProfile, in Inputs, grid []float64) ([]CurvePoint, error) {
	if len(grid) == 0 {
		grid = DefaultGrid()
	}
	for _, sl := range grid {
		if sl <= 0 || sl >= 1 {
			return nil, domain.NewDomainError("grid", "service level must be in (0,1), got %.4f", sl)
		}
	}

	points := make([]CurvePoint, len(grid))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, sl := range grid {
		i, sl := i, sl
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			impact, err := Evaluate(draft.WithServiceLevel(sl), in)
			if err != nil {
				return err
			}
			points[i] = CurvePoint{
				ServiceLevel:     sl,
				CapitalRequired:  impact.CapitalRequired,
				SafetyStockUnits: impact.SafetyStockUnits,
				StockoutRiskPct:  impact.StockoutRiskPct,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}
