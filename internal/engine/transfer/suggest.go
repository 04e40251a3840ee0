// Package transfer proposes stock moves from locations holding more than
// their reorder point to locations short of it.
package transfer

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/routing"
	"github.com/andresuchdata/supplyengine/internal/engine/vendor"
)

// Router finds paths between locations.
type Router interface {
	FindRoute(from, to string) (routing.Path, error)
}

// Sourcing prices the emergency order a transfer would make unnecessary.
type Sourcing interface {
	CheapestExpedite(itemID string, qty float64) (vendor.ExpediteQuote, error)
}

// Inputs parameterise a suggestion pass.
type Inputs struct {
	Policy   domain.PolicyProfile
	Router   Router
	Sourcing Sourcing
}

type party struct {
	pos    domain.InventoryPosition
	amount float64 // surplus for donors, deficit for recipients
}

// Suggest pairs donors and recipients item by item. A recipient qualifies
// when its deficit exceeds the policy's auto-transfer share of its reorder
// point. Recipients with the largest deficit are served first, from the
// donors with the largest surplus. Donors never drop below their own reorder
// point, unreachable pairs are skipped and moves that save nothing are
// omitted. The result is ordered by estimated savings, largest first.
func Suggest(positions []domain.InventoryPosition, in Inputs) ([]domain.TransferSuggestion, error) {
	if err := in.Policy.Validate(); err != nil {
		return nil, err
	}
	if in.Router == nil || in.Sourcing == nil {
		return nil, domain.NewDomainError("inputs", "router and sourcing are required")
	}

	byItem := make(map[string][]domain.InventoryPosition)
	for _, p := range positions {
		byItem[p.Item.ID] = append(byItem[p.Item.ID], p)
	}
	itemIDs := make([]string, 0, len(byItem))
	for id := range byItem {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	var out []domain.TransferSuggestion
	for _, itemID := range itemIDs {
		suggestions, err := suggestItem(itemID, byItem[itemID], in)
		if err != nil {
			return nil, err
		}
		out = append(out, suggestions...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EstimatedSavings != b.EstimatedSavings {
			return a.EstimatedSavings > b.EstimatedSavings
		}
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if a.ToLocationID != b.ToLocationID {
			return a.ToLocationID < b.ToLocationID
		}
		return a.FromLocationID < b.FromLocationID
	})
	return out, nil
}

func suggestItem(itemID string, positions []domain.InventoryPosition, in Inputs) ([]domain.TransferSuggestion, error) {
	var donors, recipients []*party
	for _, p := range positions {
		surplus := p.Surplus()
		switch {
		case surplus > 0:
			donors = append(donors, &party{pos: p, amount: surplus})
		case -surplus > in.Policy.AutoTransferThreshold*p.ReorderPoint:
			recipients = append(recipients, &party{pos: p, amount: -surplus})
		}
	}
	if len(donors) == 0 || len(recipients) == 0 {
		return nil, nil
	}
	byAmount := func(ps []*party) {
		sort.SliceStable(ps, func(i, j int) bool {
			if ps[i].amount != ps[j].amount {
				return ps[i].amount > ps[j].amount
			}
			return ps[i].pos.LocationID < ps[j].pos.LocationID
		})
	}
	byAmount(donors)
	byAmount(recipients)

	var out []domain.TransferSuggestion
	for _, r := range recipients {
		for _, d := range donors {
			qty := math.Floor(math.Min(d.amount, r.amount))
			if qty < 1 {
				continue
			}

			path, err := in.Router.FindRoute(d.pos.LocationID, r.pos.LocationID)
			if errors.Is(err, domain.ErrUnreachable) {
				continue
			}
			if err != nil {
				return nil, err
			}

			quote, err := in.Sourcing.CheapestExpedite(itemID, qty)
			if errors.Is(err, domain.ErrNotFound) {
				// Nothing to compare against.
				continue
			}
			if err != nil {
				return nil, err
			}

			fixed := round2(path.TotalCost)
			handling := round2(path.HandlingFeePerUnit * qty)
			total := round2(fixed + handling)
			savings := round2(quote.CostFor(qty).InexactFloat64() - total)
			if savings <= 0 {
				continue
			}

			timeSaved := quote.ETA - path.TransitTime()
			if timeSaved < 0 {
				timeSaved = 0
			}
			out = append(out, domain.TransferSuggestion{
				FromLocationID:   d.pos.LocationID,
				ToLocationID:     r.pos.LocationID,
				ItemID:           itemID,
				Quantity:         qty,
				FixedCost:        fixed,
				HandlingCost:     handling,
				TotalCost:        total,
				EstimatedSavings: savings,
				TimeSaved:        timeSaved.Round(time.Minute),
				TransitTime:      path.TransitTime(),
				RouteIDs:         path.RouteIDs(),
				SourceVersion:    d.pos.Version,
			})
			d.amount -= qty
			r.amount -= qty
			if r.amount < 1 {
				break
			}
		}
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
