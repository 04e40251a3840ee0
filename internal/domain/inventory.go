package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Lot is a quantity sharing one expiry.
type Lot struct {
	LotID           string  `json:"lot_id" yaml:"lot_id"`
	Quantity        float64 `json:"quantity" yaml:"quantity"`
	DaysUntilExpiry int     `json:"days_until_expiry" yaml:"days_until_expiry"`
}

// InventoryRecord is the ledger row for one (location, item) pair. Version is
// bumped by the store on every mutation and drives optimistic commits.
type InventoryRecord struct {
	LocationID string     `json:"location_id" yaml:"location_id" db:"location_id"`
	ItemID     string     `json:"item_id" yaml:"item_id" db:"item_id"`
	OnHand     float64    `json:"on_hand" yaml:"on_hand" db:"on_hand"`
	OnOrder    float64    `json:"on_order" yaml:"on_order" db:"on_order"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty" yaml:"expiry_date,omitempty" db:"expiry_date"`
	Lots       []Lot      `json:"lots,omitempty" yaml:"lots,omitempty" db:"-"`
	Version    int64      `json:"version" yaml:"version" db:"version"`
}

// Key returns the (location, item) identity of the record.
func (r InventoryRecord) Key() PairKey {
	return PairKey{LocationID: r.LocationID, ItemID: r.ItemID}
}

// Clone returns a deep copy.
func (r InventoryRecord) Clone() InventoryRecord {
	out := r
	if r.Lots != nil {
		out.Lots = append([]Lot(nil), r.Lots...)
	}
	if r.ExpiryDate != nil {
		t := *r.ExpiryDate
		out.ExpiryDate = &t
	}
	return out
}

// PairKey identifies a (location, item) pair.
type PairKey struct {
	LocationID string `json:"location_id"`
	ItemID     string `json:"item_id"`
}

func (k PairKey) String() string {
	return k.LocationID + "|" + k.ItemID
}

// ParsePairKey is the inverse of PairKey.String.
func ParsePairKey(s string) (PairKey, bool) {
	loc, item, ok := strings.Cut(s, "|")
	if !ok || loc == "" || item == "" {
		return PairKey{}, false
	}
	return PairKey{LocationID: loc, ItemID: item}, true
}

// StatusCode is the risk classification of a position.
type StatusCode string

const (
	StatusOK           StatusCode = "OK"
	StatusLow          StatusCode = "LOW"
	StatusStockoutRisk StatusCode = "STOCKOUT_RISK"
	StatusExcess       StatusCode = "EXCESS"
)

// PositionStatus is the derived status of a position.
type PositionStatus struct {
	Code        StatusCode `json:"code"`
	RiskScore   float64    `json:"risk_score"`
	BadgeColor  string     `json:"badge_color"`
	Explanation string     `json:"explanation"`
}

// LotRisk tags a lot by how close it is to expiry.
type LotRisk string

const (
	LotRiskCritical LotRisk = "critical"
	LotRiskWarning  LotRisk = "warning"
	LotRiskNormal   LotRisk = "normal"
)

// LotView is a lot in FEFO order with its expiry risk.
type LotView struct {
	Lot
	RiskLevel LotRisk `json:"risk_level"`
}

// InventoryPosition is derived on every query and never persisted.
type InventoryPosition struct {
	LocationID   string         `json:"location_id"`
	LocationName string         `json:"location_name"`
	Item         Item           `json:"item"`
	OnHand       float64        `json:"on_hand"`
	OnOrder      float64        `json:"on_order"`
	Version      int64          `json:"version"`
	DailyUsage   float64        `json:"daily_usage"`
	LeadTimeDays float64        `json:"lead_time_days"`
	ServiceLevel float64        `json:"service_level"`
	SafetyStock  float64        `json:"safety_stock"`
	ReorderPoint float64        `json:"reorder_point"`
	DaysCover    float64        `json:"days_cover"`
	Status       PositionStatus `json:"status"`
	Lots         []LotView      `json:"lots,omitempty"`
}

// Key returns the (location, item) identity of the position.
func (p InventoryPosition) Key() PairKey {
	return PairKey{LocationID: p.LocationID, ItemID: p.Item.ID}
}

// Surplus is onHand - reorderPoint; negative values are a deficit.
func (p InventoryPosition) Surplus() float64 {
	return p.OnHand - p.ReorderPoint
}

// MarshalJSON renders an unbounded days cover as null.
func (p InventoryPosition) MarshalJSON() ([]byte, error) {
	type alias InventoryPosition
	out := struct {
		alias
		DaysCover *float64 `json:"days_cover"`
	}{alias: alias(p)}
	if !math.IsInf(p.DaysCover, 0) && !math.IsNaN(p.DaysCover) {
		d := p.DaysCover
		out.DaysCover = &d
	}
	return json.Marshal(out)
}
