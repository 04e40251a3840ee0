package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/cache"
	"github.com/andresuchdata/supplyengine/internal/commit"
	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/engine/emergency"
	"github.com/andresuchdata/supplyengine/internal/engine/policy"
	"github.com/andresuchdata/supplyengine/internal/engine/position"
	"github.com/andresuchdata/supplyengine/internal/engine/risk"
	"github.com/andresuchdata/supplyengine/internal/engine/routing"
	"github.com/andresuchdata/supplyengine/internal/engine/spike"
	"github.com/andresuchdata/supplyengine/internal/engine/transfer"
	"github.com/andresuchdata/supplyengine/internal/engine/vendor"
	"github.com/andresuchdata/supplyengine/internal/report"
	"github.com/andresuchdata/supplyengine/internal/repository"
)

// Deps wires an EngineService. Curves and Now may be left empty.
type Deps struct {
	Snapshots repository.SnapshotRepository
	Ledger    repository.LedgerStore
	Detector  *spike.Detector
	Registry  *policy.Registry
	Committer *commit.Committer
	Curves    cache.PolicyCurveCache
	Vendor    vendor.Params
	Emergency emergency.Config
	Now       func() time.Time
}

// EngineService runs every engine against a fresh snapshot per call.
type EngineService struct {
	snapshots repository.SnapshotRepository
	ledger    repository.LedgerStore
	detector  *spike.Detector
	registry  *policy.Registry
	committer *commit.Committer
	curves    cache.PolicyCurveCache
	vendor    vendor.Params
	emergency emergency.Config
	now       func() time.Time
}

func NewEngineService(d Deps) *EngineService {
	if d.Curves == nil {
		d.Curves = cache.NewNoopPolicyCurveCache()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &EngineService{
		snapshots: d.Snapshots,
		ledger:    d.Ledger,
		detector:  d.Detector,
		registry:  d.Registry,
		committer: d.Committer,
		curves:    d.Curves,
		vendor:    d.Vendor,
		emergency: d.Emergency,
		now:       d.Now,
	}
}

// view is one snapshot plus everything derived from it under the current policy.
type view struct {
	snap      *domain.Snapshot
	catalog   *domain.Catalog
	policy    policy.Versioned
	positions []domain.InventoryPosition
}

func (s *EngineService) view(ctx context.Context) (*view, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	current := s.registry.Current()
	positions, err := position.Build(snap.Records, snap.Items, snap.Locations, position.Options{
		Policy: current.Profile,
		Demand: snap.Demand,
	})
	if err != nil {
		return nil, err
	}
	return &view{snap: snap, catalog: snap.Catalog(), policy: current, positions: positions}, nil
}

func (v *view) selector(p vendor.Params) (*vendor.Selector, error) {
	p.HoldingCostRate = v.policy.Profile.HoldingCostRate
	return vendor.NewSelector(v.catalog, p)
}

func (v *view) router() (*routing.Router, error) {
	return routing.NewRouter(v.snap.Locations, v.snap.Routes)
}

// PositionFilter narrows a position listing. Empty fields match everything.
type PositionFilter struct {
	LocationID string
	ItemID     string
	Status     domain.StatusCode
}

func (f PositionFilter) match(p domain.InventoryPosition) bool {
	return (f.LocationID == "" || p.LocationID == f.LocationID) &&
		(f.ItemID == "" || p.Item.ID == f.ItemID) &&
		(f.Status == "" || p.Status.Code == f.Status)
}

// Positions lists positions riskiest first.
func (s *EngineService) Positions(ctx context.Context, filter PositionFilter) ([]domain.InventoryPosition, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.InventoryPosition, 0, len(v.positions))
	for _, p := range v.positions {
		if filter.match(p) {
			out = append(out, p)
		}
	}
	risk.SortByRisk(out)
	return out, nil
}

// DetectSpikes runs one detection pass against a fresh snapshot.
func (s *EngineService) DetectSpikes(ctx context.Context) (spike.PassResult, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return spike.PassResult{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s.detector.Detect(ctx, spike.InputFromSnapshot(snap))
}

func (s *EngineService) ActiveSpikes() []domain.SpikeSignal {
	return s.detector.Active()
}

func (s *EngineService) DismissSpike(id string) (domain.SpikeSignal, error) {
	sig, err := s.detector.Dismiss(id)
	if err != nil {
		return sig, err
	}
	log.Info().Str("signal_id", id).Str("location_id", sig.LocationID).Str("item_id", sig.ItemID).Msg("spike dismissed")
	return sig, nil
}

// EmergencyOptions enumerates responses to an active signal. qty 0 sizes the
// request from the configured cover window.
func (s *EngineService) EmergencyOptions(ctx context.Context, signalID string, qty float64) (domain.SpikeSignal, []domain.EmergencyOption, error) {
	sig, err := s.detector.Get(signalID)
	if err != nil {
		return sig, nil, err
	}
	v, err := s.view(ctx)
	if err != nil {
		return sig, nil, err
	}
	item, err := v.catalog.Item(sig.ItemID)
	if err != nil {
		return sig, nil, err
	}
	selector, err := v.selector(s.vendor)
	if err != nil {
		return sig, nil, err
	}
	router, err := v.router()
	if err != nil {
		return sig, nil, err
	}

	gen := emergency.NewGenerator(s.emergency, v.catalog, selector, router, v.positions)
	options, err := gen.Options(emergency.Request{Signal: sig, Item: item, Quantity: qty}, s.now())
	if err != nil {
		return sig, nil, err
	}
	return sig, options, nil
}

// OptionChoice picks one generated option. An empty Kind takes the
// recommended option.
type OptionChoice struct {
	Kind             domain.OptionKind `json:"kind"`
	Provider         string            `json:"provider"`
	SourceLocationID string            `json:"source_location_id"`
	Quantity         float64           `json:"quantity"`
}

func (c OptionChoice) match(o domain.EmergencyOption) bool {
	if c.Kind == "" {
		return o.Recommended
	}
	return o.Kind == c.Kind &&
		(c.Provider == "" || o.Provider == c.Provider) &&
		(c.SourceLocationID == "" || o.SourceLocationID == c.SourceLocationID)
}

// AcceptEmergencyOption regenerates the options against the current ledger
// and commits the chosen one.
func (s *EngineService) AcceptEmergencyOption(ctx context.Context, signalID string, choice OptionChoice) (commit.Acceptance, error) {
	sig, options, err := s.EmergencyOptions(ctx, signalID, choice.Quantity)
	if err != nil {
		return commit.Acceptance{}, err
	}
	for _, o := range options {
		if choice.match(o) {
			return s.committer.AcceptEmergencyOption(ctx, sig, o)
		}
	}
	return commit.Acceptance{}, domain.NewNotFound("emergency_option", string(choice.Kind)+"/"+choice.Provider)
}

// LandedCost quotes every supplier of an item at qty, best value marked.
func (s *EngineService) LandedCost(ctx context.Context, itemID string, qty float64) ([]vendor.CostBreakdown, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	params := s.vendor
	params.HoldingCostRate = v.policy.Profile.HoldingCostRate
	return vendor.Quotes(v.catalog, itemID, qty, params)
}

func (s *EngineService) ChooseVendor(ctx context.Context, itemID string, qty float64, urgency domain.Urgency) (vendor.VendorChoice, error) {
	v, err := s.view(ctx)
	if err != nil {
		return vendor.VendorChoice{}, err
	}
	selector, err := v.selector(s.vendor)
	if err != nil {
		return vendor.VendorChoice{}, err
	}
	return selector.ChooseBestVendorGivenUrgency(itemID, qty, urgency)
}

// BreakevenRequest asks whether topping an order up to the next tier pays.
// LocationID selects the demand that drains the extra units; without it the
// usage of every location is summed.
type BreakevenRequest struct {
	SupplierID string  `json:"supplier_id"`
	ItemID     string  `json:"item_id"`
	Quantity   float64 `json:"quantity"`
	LocationID string  `json:"location_id"`
}

func (s *EngineService) Breakeven(ctx context.Context, req BreakevenRequest) (vendor.Breakeven, error) {
	v, err := s.view(ctx)
	if err != nil {
		return vendor.Breakeven{}, err
	}
	item, err := v.catalog.Item(req.ItemID)
	if err != nil {
		return vendor.Breakeven{}, err
	}
	si, err := v.catalog.SupplierItem(req.SupplierID, req.ItemID)
	if err != nil {
		return vendor.Breakeven{}, err
	}

	var usage float64
	if req.LocationID != "" {
		if _, err := v.catalog.Location(req.LocationID); err != nil {
			return vendor.Breakeven{}, err
		}
		if d, ok := v.snap.Demand.Demand(req.LocationID, req.ItemID); ok {
			usage = d.AvgDailyUsage
		}
	} else {
		for _, l := range v.snap.Locations {
			if d, ok := v.snap.Demand.Demand(l.ID, req.ItemID); ok {
				usage += d.AvgDailyUsage
			}
		}
	}

	return vendor.EvaluateNextTier(si, item, req.Quantity, vendor.BreakevenInputs{
		DailyUsage:      usage,
		HoldingCostRate: v.policy.Profile.HoldingCostRate,
	})
}

func (s *EngineService) TransferSuggestions(ctx context.Context) ([]domain.TransferSuggestion, error) {
	v, err := s.view(ctx)
	if err != nil {
		return nil, err
	}
	return s.suggest(v)
}

func (s *EngineService) suggest(v *view) ([]domain.TransferSuggestion, error) {
	selector, err := v.selector(s.vendor)
	if err != nil {
		return nil, err
	}
	router, err := v.router()
	if err != nil {
		return nil, err
	}
	return transfer.Suggest(v.positions, transfer.Inputs{
		Policy:   v.policy.Profile,
		Router:   router,
		Sourcing: selector,
	})
}

func (s *EngineService) ApproveTransfer(ctx context.Context, suggestion domain.TransferSuggestion) (domain.Transfer, error) {
	return s.committer.ApproveTransfer(ctx, suggestion)
}

func (s *EngineService) CompleteTransfer(ctx context.Context, id string) (domain.Transfer, error) {
	return s.committer.CompleteTransfer(ctx, id)
}

func (s *EngineService) CancelTransfer(ctx context.Context, id string) (domain.Transfer, error) {
	return s.committer.CancelTransfer(ctx, id)
}

func (s *EngineService) Transfers(ctx context.Context) ([]domain.Transfer, error) {
	return s.ledger.Transfers(ctx)
}

func (s *EngineService) BestRoute(ctx context.Context, from, to string) (routing.Path, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return routing.Path{}, fmt.Errorf("load snapshot: %w", err)
	}
	router, err := routing.NewRouter(snap.Locations, snap.Routes)
	if err != nil {
		return routing.Path{}, err
	}
	return router.FindRoute(from, to)
}

func (s *EngineService) Policy() policy.Versioned {
	return s.registry.Current()
}

// SimulatePolicy compares draft with the applied profile. Nothing is applied.
func (s *EngineService) SimulatePolicy(ctx context.Context, draft domain.PolicyProfile) (policy.PolicyImpact, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return policy.PolicyImpact{}, fmt.Errorf("load snapshot: %w", err)
	}
	return policy.Simulate(s.registry.Current().Profile, draft, policy.InputsFromSnapshot(snap))
}

// PolicyCurve samples draft over grid. Results are cached per snapshot
// fingerprint, so a ledger commit or a catalog or demand edit misses the cache.
func (s *EngineService) PolicyCurve(ctx context.Context, draft domain.PolicyProfile, grid []float64) ([]policy.CurvePoint, error) {
	snap, err := s.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return s.curve(ctx, snap, draft, grid)
}

func (s *EngineService) curve(ctx context.Context, snap *domain.Snapshot, draft domain.PolicyProfile, grid []float64) ([]policy.CurvePoint, error) {
	key := cache.CurveKey{Profile: draft, Grid: grid, SnapshotTag: Fingerprint(snap)}
	if points, ok, err := s.curves.GetCurve(ctx, key); err == nil && ok {
		return points, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("policy: cache get curve failed")
	}

	points, err := policy.Curve(ctx, draft, policy.InputsFromSnapshot(snap), grid)
	if err != nil {
		return nil, err
	}

	if err := s.curves.SetCurve(ctx, key, points); err != nil {
		log.Warn().Err(err).Msg("policy: cache set curve failed")
	}
	return points, nil
}

// ApplyPolicy makes draft current when basedOn is still the applied version.
func (s *EngineService) ApplyPolicy(ctx context.Context, draft domain.PolicyProfile, basedOn int64) (policy.Versioned, error) {
	applied, err := s.registry.Apply(draft, basedOn, s.now())
	if err != nil {
		return applied, err
	}
	if err := s.curves.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("policy: cache invalidate failed")
	}
	log.Info().
		Int64("version", applied.Version).
		Float64("service_level", applied.Profile.GlobalServiceLevel).
		Msg("policy applied")
	return applied, nil
}

// ReportBundle gathers positions, the applied policy's curve and transfer
// suggestions from one snapshot.
func (s *EngineService) ReportBundle(ctx context.Context) (report.Bundle, error) {
	v, err := s.view(ctx)
	if err != nil {
		return report.Bundle{}, err
	}
	positions := append([]domain.InventoryPosition(nil), v.positions...)
	risk.SortByRisk(positions)

	curve, err := s.curve(ctx, v.snap, v.policy.Profile, nil)
	if err != nil {
		return report.Bundle{}, err
	}
	suggestions, err := s.suggest(v)
	if err != nil {
		return report.Bundle{}, err
	}
	return report.Bundle{
		TakenAt:     v.snap.TakenAt,
		Positions:   positions,
		Curve:       curve,
		Suggestions: suggestions,
	}, nil
}

// Fingerprint identifies the state of a snapshot that positions depend on:
// record versions, consumption rates, item costs and demand profiles.
func Fingerprint(snap *domain.Snapshot) string {
	h := fnv.New64a()
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	keys := make([]string, 0, len(snap.Records)+len(snap.Consumption)+len(snap.Items)+len(snap.Demand))
	for _, r := range snap.Records {
		keys = append(keys, r.Key().String()+"="+strconv.FormatInt(r.Version, 10))
	}
	for k, v := range snap.Consumption {
		keys = append(keys, "rate:"+k.String()+"="+num(v))
	}
	for _, it := range snap.Items {
		keys = append(keys, strings.Join([]string{"item:" + it.ID, string(it.Category), num(it.StorageCostPerUnit),
			num(it.BulkCapacity), strconv.FormatBool(it.Perishable), strconv.Itoa(it.ShelfLifeDays)}, "|"))
	}
	for k, d := range snap.Demand {
		keys = append(keys, strings.Join([]string{"demand:" + k.String(), num(d.AvgDailyUsage), num(d.DemandStdDev),
			num(d.AvgLeadTimeDays), num(d.LeadTimeStdDev)}, "|"))
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
