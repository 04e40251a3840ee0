package domain

import "strings"

// TransportMode is the closed set of ways stock moves between locations.
type TransportMode string

const (
	ModeBike    TransportMode = "bike"
	ModeVan     TransportMode = "van"
	ModeTruck   TransportMode = "truck"
	ModeCourier TransportMode = "courier"
	ModeRail    TransportMode = "rail"
)

// ParseTransportMode returns the mode for a label (case-insensitive).
func ParseTransportMode(label string) (TransportMode, bool) {
	m := TransportMode(strings.ToLower(strings.TrimSpace(label)))
	switch m {
	case ModeBike, ModeVan, ModeTruck, ModeCourier, ModeRail:
		return m, true
	}
	return "", false
}

// RatePerKm is the variable cost of moving one shipment one kilometre.
func (m TransportMode) RatePerKm() float64 {
	switch m {
	case ModeBike:
		return 0.10
	case ModeVan:
		return 0.45
	case ModeTruck:
		return 0.80
	case ModeCourier:
		return 1.20
	case ModeRail:
		return 0.30
	}
	return 0
}

// Route is a directed edge between two locations.
type Route struct {
	ID                 string        `json:"id" yaml:"id" db:"id"`
	FromLocationID     string        `json:"from_location_id" yaml:"from_location_id" db:"from_location_id"`
	ToLocationID       string        `json:"to_location_id" yaml:"to_location_id" db:"to_location_id"`
	Mode               TransportMode `json:"mode" yaml:"mode" db:"mode"`
	BaseCost           float64       `json:"base_cost" yaml:"base_cost" db:"base_cost"`
	DistanceKm         float64       `json:"distance_km" yaml:"distance_km" db:"distance_km"`
	FuelSurchargePct   float64       `json:"fuel_surcharge_pct" yaml:"fuel_surcharge_pct" db:"fuel_surcharge_pct"`
	TransitHours       float64       `json:"transit_hours" yaml:"transit_hours" db:"transit_hours"`
	HandlingFeePerUnit float64       `json:"handling_fee_per_unit" yaml:"handling_fee_per_unit" db:"handling_fee_per_unit"`
	Active             bool          `json:"active" yaml:"active" db:"active"`
}

func (r Route) Validate() error {
	if r.ID == "" {
		return NewDomainError("route.id", "must not be empty")
	}
	if r.FromLocationID == "" || r.ToLocationID == "" {
		return NewDomainError("route.locations", "route %s must name both ends", r.ID)
	}
	if _, ok := ParseTransportMode(string(r.Mode)); !ok {
		return NewDomainError("route.mode", "route %s has unknown mode %q", r.ID, r.Mode)
	}
	if r.BaseCost < 0 || r.DistanceKm < 0 || r.FuelSurchargePct < 0 || r.TransitHours < 0 || r.HandlingFeePerUnit < 0 {
		return NewDomainError("route.cost", "route %s has negative cost attributes", r.ID)
	}
	return nil
}
