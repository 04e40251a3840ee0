package domain

import (
	"strings"
	"time"
)

// SignalState tracks a spike signal through monitoring.
type SignalState string

const (
	SignalActive    SignalState = "active"
	SignalResolved  SignalState = "resolved"
	SignalDismissed SignalState = "dismissed"
)

// SpikeSignal is a detected demand anomaly at one location. Rates are units per hour.
type SpikeSignal struct {
	ID           string      `json:"id"`
	LocationID   string      `json:"location_id"`
	ItemID       string      `json:"item_id"`
	Multiplier   float64     `json:"multiplier"`
	CurrentRate  float64     `json:"current_rate"`
	BaselineRate float64     `json:"baseline_rate"`
	OnHand       float64     `json:"on_hand"`
	DetectedAt   time.Time   `json:"detected_at"`
	ShortageAt   time.Time   `json:"shortage_at"`
	State        SignalState `json:"state"`
}

// Key returns the (location, item) identity of the signal.
func (s SpikeSignal) Key() PairKey {
	return PairKey{LocationID: s.LocationID, ItemID: s.ItemID}
}

// TimeToShortage is the window left before stock runs out, never negative.
func (s SpikeSignal) TimeToShortage(now time.Time) time.Duration {
	d := s.ShortageAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// OptionKind is the closed set of emergency sourcing responses.
type OptionKind string

const (
	OptionCourier        OptionKind = "COURIER"
	OptionVendorExpedite OptionKind = "VENDOR_EXPEDITE"
	OptionTransfer       OptionKind = "TRANSFER"
	OptionIgnore         OptionKind = "IGNORE"
)

// EmergencyOption is one way of answering a spike.
type EmergencyOption struct {
	Kind             OptionKind    `json:"kind"`
	Provider         string        `json:"provider"`
	Quantity         float64       `json:"quantity"`
	Cost             float64       `json:"cost"`
	ETA              time.Duration `json:"eta"`
	Risk             string        `json:"risk,omitempty"`
	Recommended      bool          `json:"recommended"`
	SupplierID       string        `json:"supplier_id,omitempty"`
	SourceLocationID string        `json:"source_location_id,omitempty"`
	RouteIDs         []string      `json:"route_ids,omitempty"`
	// SourceVersion is the donor record version a TRANSFER option was computed against.
	SourceVersion int64 `json:"source_version,omitempty"`
}

// Urgency weights vendor selection between landed cost and delivery time.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyStandard Urgency = "standard"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ParseUrgency returns the urgency for a label (case-insensitive); an empty
// label means standard.
func ParseUrgency(label string) (Urgency, bool) {
	u := Urgency(strings.ToLower(strings.TrimSpace(label)))
	switch u {
	case "":
		return UrgencyStandard, true
	case UrgencyLow, UrgencyStandard, UrgencyHigh, UrgencyCritical:
		return u, true
	}
	return "", false
}
