// Package emergency enumerates the sourcing responses to a spike signal and
// recommends one.
package emergency

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/routing"
	"github.com/andresuchdata/supplyengine/internal/engine/vendor"
)

// Courier is a same-day delivery capability for one category.
type Courier struct {
	Provider    string  `json:"provider" yaml:"provider"`
	BaseFee     float64 `json:"base_fee" yaml:"base_fee"`
	CostPerUnit float64 `json:"cost_per_unit" yaml:"cost_per_unit"`
	ETAHours    float64 `json:"eta_hours" yaml:"eta_hours"`
}

// DefaultCouriers covers the categories a city courier will carry.
func DefaultCouriers() map[domain.Category]Courier {
	return map[domain.Category]Courier{
		domain.CategoryMilk:   {Provider: "CityDash", BaseFee: 15, CostPerUnit: 1.5, ETAHours: 1.5},
		domain.CategoryPastry: {Provider: "CityDash", BaseFee: 15, CostPerUnit: 2, ETAHours: 1.5},
		domain.CategoryFood:   {Provider: "CityDash", BaseFee: 15, CostPerUnit: 2, ETAHours: 2},
		domain.CategoryBeans:  {Provider: "BeanRunner", BaseFee: 25, CostPerUnit: 3, ETAHours: 3},
		domain.CategoryCups:   {Provider: "BeanRunner", BaseFee: 20, CostPerUnit: 0.05, ETAHours: 3},
		domain.CategorySyrup:  {Provider: "BeanRunner", BaseFee: 20, CostPerUnit: 1, ETAHours: 3},
	}
}

// Config tunes option generation.
type Config struct {
	Couriers map[domain.Category]Courier
	// CoverWindowHours sizes the default request: enough stock for this many
	// hours at the spiking rate.
	CoverWindowHours float64
	// LostSalesHorizonHours is how long an unanswered stock-out is assumed to last.
	LostSalesHorizonHours float64
}

func DefaultConfig() Config {
	return Config{
		Couriers:              DefaultCouriers(),
		CoverWindowHours:      24,
		LostSalesHorizonHours: 24,
	}
}

// Request asks for options answering one signal.
type Request struct {
	Signal domain.SpikeSignal
	Item   domain.Item
	// Quantity to source; 0 sizes it from the cover window.
	Quantity float64
}

// Generator builds option sets over one snapshot.
type Generator struct {
	cfg       Config
	catalog   *domain.Catalog
	selector  *vendor.Selector
	router    *routing.Router
	positions []domain.InventoryPosition
}

// NewGenerator wires a generator. positions are the current positions used
// to find transfer donors.
func NewGenerator(cfg Config, catalog *domain.Catalog, selector *vendor.Selector, router *routing.Router, positions []domain.InventoryPosition) *Generator {
	if cfg.CoverWindowHours <= 0 {
		cfg.CoverWindowHours = 24
	}
	if cfg.LostSalesHorizonHours <= 0 {
		cfg.LostSalesHorizonHours = 24
	}
	return &Generator{cfg: cfg, catalog: catalog, selector: selector, router: router, positions: positions}
}

// Options enumerates every response to the signal. There is always one
// IGNORE option; exactly one option is recommended.
func (g *Generator) Options(req Request, now time.Time) ([]domain.EmergencyOption, error) {
	sig := req.Signal
	if sig.State != domain.SignalActive {
		return nil, domain.NewDomainError("signal", "signal %s is %s", sig.ID, sig.State)
	}
	if req.Item.ID != sig.ItemID {
		return nil, domain.NewDomainError("item", "signal %s is for %s, not %s", sig.ID, sig.ItemID, req.Item.ID)
	}
	if req.Quantity < 0 {
		return nil, domain.NewDomainError("quantity", "must be >= 0, got %.2f", req.Quantity)
	}

	qty := req.Quantity
	if qty == 0 {
		qty = math.Ceil(sig.CurrentRate * g.cfg.CoverWindowHours)
	}
	if qty <= 0 {
		return nil, domain.NewDomainError("quantity", "signal %s has no consumption to cover", sig.ID)
	}
	window := sig.TimeToShortage(now)

	options := []domain.EmergencyOption{g.ignore(sig, window)}

	if c, ok := g.cfg.Couriers[req.Item.Category]; ok {
		options = append(options, domain.EmergencyOption{
			Kind:     domain.OptionCourier,
			Provider: c.Provider,
			Quantity: qty,
			Cost:     money(c.BaseFee + c.CostPerUnit*qty),
			ETA:      time.Duration(c.ETAHours * float64(time.Hour)),
			Risk:     "premium same-day rate",
		})
	}

	expedites, err := g.expedites(req.Item.ID, qty)
	if err != nil {
		return nil, err
	}
	options = append(options, expedites...)

	transfers, err := g.transfers(sig, qty, window)
	if err != nil {
		return nil, err
	}
	options = append(options, transfers...)

	sort.SliceStable(options, func(i, j int) bool { return cheaper(options[i], options[j]) })
	Recommend(options, window)
	return options, nil
}

func (g *Generator) ignore(sig domain.SpikeSignal, window time.Duration) domain.EmergencyOption {
	lost := sig.CurrentRate * g.cfg.LostSalesHorizonHours
	return domain.EmergencyOption{
		Kind:     domain.OptionIgnore,
		Provider: "none",
		Cost:     0,
		ETA:      window,
		Risk: fmt.Sprintf("stock-out in %s, about %.0f units of lost sales over the following %.0fh",
			window.Round(time.Minute), lost, g.cfg.LostSalesHorizonHours),
	}
}

func (g *Generator) expedites(itemID string, qty float64) ([]domain.EmergencyOption, error) {
	if g.selector == nil {
		return nil, nil
	}
	quotes, err := g.selector.ExpediteQuotes(itemID, qty)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EmergencyOption, 0, len(quotes))
	for _, q := range quotes {
		sup, err := g.catalog.Supplier(q.SupplierID)
		if err != nil {
			return nil, err
		}
		opt := domain.EmergencyOption{
			Kind:       domain.OptionVendorExpedite,
			Provider:   sup.Name,
			Quantity:   q.Quantity,
			Cost:       q.TotalCost.InexactFloat64(),
			ETA:        q.ETA,
			SupplierID: sup.ID,
		}
		if sup.Reliability < 0.9 {
			opt.Risk = fmt.Sprintf("supplier reliability %.0f%%", sup.Reliability*100)
		}
		out = append(out, opt)
	}
	return out, nil
}

// transfers offers stock from locations whose surplus over their reorder
// point exceeds the request and whose route arrives inside the window.
func (g *Generator) transfers(sig domain.SpikeSignal, qty float64, window time.Duration) ([]domain.EmergencyOption, error) {
	if g.router == nil {
		return nil, nil
	}

	var out []domain.EmergencyOption
	for _, p := range g.positions {
		if p.Item.ID != sig.ItemID || p.LocationID == sig.LocationID {
			continue
		}
		if p.Surplus() <= qty {
			continue
		}
		path, err := g.router.FindRoute(p.LocationID, sig.LocationID)
		if errors.Is(err, domain.ErrUnreachable) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if path.TransitTime() >= window {
			continue
		}
		out = append(out, domain.EmergencyOption{
			Kind:             domain.OptionTransfer,
			Provider:         p.LocationName,
			Quantity:         qty,
			Cost:             money(path.TotalCost + path.HandlingFeePerUnit*qty),
			ETA:              path.TransitTime(),
			SourceLocationID: p.LocationID,
			RouteIDs:         path.RouteIDs(),
			SourceVersion:    p.Version,
		})
	}
	return out, nil
}

// Recommend flags exactly one option: the cheapest among those arriving
// within the window, or the fastest when none does. IGNORE only wins when it
// is the sole option. Ties go to lower cost, then shorter ETA.
func Recommend(options []domain.EmergencyOption, window time.Duration) {
	if len(options) == 0 {
		return
	}
	for i := range options {
		options[i].Recommended = false
	}

	best := -1
	for i, o := range options {
		if o.Kind == domain.OptionIgnore || o.ETA > window {
			continue
		}
		if best < 0 || cheaper(o, options[best]) {
			best = i
		}
	}
	if best < 0 {
		for i, o := range options {
			if o.Kind == domain.OptionIgnore {
				continue
			}
			if best < 0 || faster(o, options[best]) {
				best = i
			}
		}
	}
	if best < 0 {
		best = 0
	}
	options[best].Recommended = true
}

func cheaper(a, b domain.EmergencyOption) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	if a.ETA != b.ETA {
		return a.ETA < b.ETA
	}
	return tiebreak(a, b)
}

func faster(a, b domain.EmergencyOption) bool {
	if a.ETA != b.ETA {
		return a.ETA < b.ETA
	}
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	return tiebreak(a, b)
}

var kindOrder = map[domain.OptionKind]int{
	domain.OptionTransfer:       0,
	domain.OptionVendorExpedite: 1,
	domain.OptionCourier:        2,
	domain.OptionIgnore:         3,
}

func tiebreak(a, b domain.EmergencyOption) bool {
	if kindOrder[a.Kind] != kindOrder[b.Kind] {
		return kindOrder[a.Kind] < kindOrder[b.Kind]
	}
	return a.Provider < b.Provider
}

func money(v float64) float64 {
	return math.Round(v*100) / 100
}
