// Package position joins catalog and ledger snapshots into per-(location,
// item) inventory positions.
package position

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/risk"
)

// Lot expiry risk thresholds in days.
const (
	CriticalExpiryDays = 3
	WarningExpiryDays  = 7
)

// lotSumTolerance absorbs float noise when comparing lot totals to on-hand.
const lotSumTolerance = 1e-6

// Options parameterise a build.
type Options struct {
	Policy  domain.PolicyProfile
	Demand  domain.DemandModel // nil means no demand anywhere
	Workers int                // <= 0 uses GOMAXPROCS
}

// Build joins records with their item and location and derives the risk
// figures of every position. Pairs without a record are omitted. Output order
// follows the input records. Build never mutates its inputs.
func Build(records []domain.InventoryRecord, items []domain.Item, locations []domain.Location, opts Options) ([]domain.InventoryPosition, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	itemIdx := make(map[string]domain.Item, len(items))
	for _, it := range items {
		itemIdx[it.ID] = it
	}
	locIdx := make(map[string]domain.Location, len(locations))
	for _, l := range locations {
		locIdx[l.ID] = l
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]domain.InventoryPosition, len(records))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)

	for i := range records {
		i := i
		g.Go(func() error {
			rec := records[i]
			item, ok := itemIdx[rec.ItemID]
			if !ok {
				return domain.NewNotFound("item", rec.ItemID)
			}
			loc, ok := locIdx[rec.LocationID]
			if !ok {
				return domain.NewNotFound("location", rec.LocationID)
			}

			pos, err := buildOne(rec, item, loc, opts)
			if err != nil {
				return fmt.Errorf("position %s/%s: %w", rec.LocationID, rec.ItemID, err)
			}
			out[i] = pos
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func buildOne(rec domain.InventoryRecord, item domain.Item, loc domain.Location, opts Options) (domain.InventoryPosition, error) {
	if rec.OnHand < 0 {
		return domain.InventoryPosition{}, domain.NewDomainError("on_hand", "must be >= 0, got %.2f", rec.OnHand)
	}
	if rec.OnOrder < 0 {
		return domain.InventoryPosition{}, domain.NewDomainError("on_order", "must be >= 0, got %.2f", rec.OnOrder)
	}

	lots, err := fefoView(rec)
	if err != nil {
		return domain.InventoryPosition{}, err
	}

	serviceLevel := opts.Policy.ServiceLevelFor(item.Category)

	var profile domain.DemandProfile
	if opts.Demand != nil {
		if p, ok := opts.Demand.Demand(rec.LocationID, rec.ItemID); ok {
			profile = p
		}
	}

	var safetyStock, reorderPoint float64
	if profile.AvgDailyUsage > 0 || profile.DemandStdDev > 0 {
		in := risk.FromProfile(profile, serviceLevel)
		ss, err := risk.SafetyStock(in)
		if err != nil {
			return domain.InventoryPosition{}, err
		}
		safetyStock = math.Round(ss * (1 + opts.Policy.SafetyStockBufferPct/100))
		reorderPoint, err = risk.ReorderPoint(in, safetyStock)
		if err != nil {
			return domain.InventoryPosition{}, err
		}
	}

	daysCover := risk.DaysCover(rec.OnHand, profile.AvgDailyUsage)
	status := risk.Classify(risk.Level{
		OnHand:       rec.OnHand,
		SafetyStock:  safetyStock,
		ReorderPoint: reorderPoint,
		DaysCover:    daysCover,
		BulkCapacity: item.BulkCapacity,
	})

	return domain.InventoryPosition{
		LocationID:   loc.ID,
		LocationName: loc.Name,
		Item:         item,
		OnHand:       rec.OnHand,
		OnOrder:      rec.OnOrder,
		Version:      rec.Version,
		DailyUsage:   profile.AvgDailyUsage,
		LeadTimeDays: profile.AvgLeadTimeDays,
		ServiceLevel: serviceLevel,
		SafetyStock:  safetyStock,
		ReorderPoint: reorderPoint,
		DaysCover:    daysCover,
		Status:       status,
		Lots:         lots,
	}, nil
}

// fefoView validates the lot breakdown and returns it sorted by ascending
// days until expiry, tagged with its expiry risk.
func fefoView(rec domain.InventoryRecord) ([]domain.LotView, error) {
	if len(rec.Lots) == 0 {
		return nil, nil
	}

	var sum float64
	views := make([]domain.LotView, len(rec.Lots))
	for i, lot := range rec.Lots {
		if lot.Quantity < 0 {
			return nil, domain.NewDomainError("lots", "lot %s has negative quantity", lot.LotID)
		}
		sum += lot.Quantity
		views[i] = domain.LotView{Lot: lot, RiskLevel: LotRiskLevel(lot.DaysUntilExpiry)}
	}
	if math.Abs(sum-rec.OnHand) > lotSumTolerance {
		return nil, domain.NewDomainError("lots", "lot quantities sum to %.2f, on hand is %.2f", sum, rec.OnHand)
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].DaysUntilExpiry != views[j].DaysUntilExpiry {
			return views[i].DaysUntilExpiry < views[j].DaysUntilExpiry
		}
		return views[i].LotID < views[j].LotID
	})
	return views, nil
}

// LotRiskLevel tags a lot by its days until expiry.
func LotRiskLevel(daysUntilExpiry int) domain.LotRisk {
	switch {
	case daysUntilExpiry <= CriticalExpiryDays:
		return domain.LotRiskCritical
	case daysUntilExpiry <= WarningExpiryDays:
		return domain.LotRiskWarning
	default:
		return domain.LotRiskNormal
	}
}

// Index returns positions keyed by (location, item).
func Index(positions []domain.InventoryPosition) map[domain.PairKey]domain.InventoryPosition {
	idx := make(map[domain.PairKey]domain.InventoryPosition, len(positions))
	for _, p := range positions {
		idx[p.Key()] = p
	}
	return idx
}
