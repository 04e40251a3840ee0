package domain

import (
	"fmt"
	"strings"
)

// Category is the closed set of item categories carried by the stores.
type Category string

const (
	CategoryBeans    Category = "beans"
	CategoryMilk     Category = "milk"
	CategoryCups     Category = "cups"
	CategorySyrup    Category = "syrup"
	CategoryPastry   Category = "pastry"
	CategoryTea      Category = "tea"
	CategorySugar    Category = "sugar"
	CategoryCleaning Category = "cleaning"
	CategorySeasonal Category = "seasonal"
	CategoryFood     Category = "food"
	CategorySauce    Category = "sauce"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryBeans, CategoryMilk, CategoryCups, CategorySyrup, CategoryPastry, CategoryTea,
	CategorySugar, CategoryCleaning, CategorySeasonal, CategoryFood, CategorySauce,
}

// ParseCategory returns the category for a label (case-insensitive).
func ParseCategory(label string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(label)))
	return c, c.Valid()
}

func (c Category) Valid() bool {
	switch c {
	case CategoryBeans, CategoryMilk, CategoryCups, CategorySyrup, CategoryPastry, CategoryTea,
		CategorySugar, CategoryCleaning, CategorySeasonal, CategoryFood, CategorySauce:
		return true
	}
	return false
}

// Perishable reports whether items of this category spoil by default.
func (c Category) Perishable() bool {
	switch c {
	case CategoryMilk, CategoryPastry, CategoryFood, CategorySauce, CategorySeasonal:
		return true
	case CategoryBeans, CategoryCups, CategorySyrup, CategoryTea, CategorySugar, CategoryCleaning:
		return false
	}
	return false
}

// Item is immutable catalog reference data.
type Item struct {
	ID       string   `json:"id" yaml:"id" db:"id"`
	Name     string   `json:"name" yaml:"name" db:"name"`
	Category Category `json:"category" yaml:"category" db:"category"`
	Unit     string   `json:"unit" yaml:"unit" db:"unit"`
	// StorageCostPerUnit is the annual cost of storing one unit.
	StorageCostPerUnit float64 `json:"storage_cost_per_unit" yaml:"storage_cost_per_unit" db:"storage_cost_per_unit"`
	// BulkCapacity is the on-hand level above which stock counts as excess; 0 disables it.
	BulkCapacity  float64 `json:"bulk_capacity" yaml:"bulk_capacity" db:"bulk_capacity"`
	Perishable    bool    `json:"perishable" yaml:"perishable" db:"perishable"`
	ShelfLifeDays int     `json:"shelf_life_days" yaml:"shelf_life_days" db:"shelf_life_days"`
}

func (i Item) Validate() error {
	if i.ID == "" {
		return NewDomainError("item.id", "must not be empty")
	}
	if !i.Category.Valid() {
		return NewDomainError("item.category", "unknown category %q", i.Category)
	}
	if i.StorageCostPerUnit < 0 {
		return NewDomainError("item.storage_cost_per_unit", "must be >= 0, got %.4f", i.StorageCostPerUnit)
	}
	if i.BulkCapacity < 0 {
		return NewDomainError("item.bulk_capacity", "must be >= 0, got %.2f", i.BulkCapacity)
	}
	return nil
}

// Location is a store or warehouse.
type Location struct {
	ID      string `json:"id" yaml:"id" db:"id"`
	Name    string `json:"name" yaml:"name" db:"name"`
	Address string `json:"address" yaml:"address" db:"address"`
}

// SpeedClass describes how quickly a supplier usually delivers.
type SpeedClass string

const (
	SpeedStandard SpeedClass = "standard"
	SpeedExpress  SpeedClass = "express"
	SpeedSlow     SpeedClass = "slow"
)

// Supplier is vendor reference data.
type Supplier struct {
	ID                    string     `json:"id" yaml:"id" db:"id"`
	Name                  string     `json:"name" yaml:"name" db:"name"`
	Reliability           float64    `json:"reliability" yaml:"reliability" db:"reliability"`
	Categories            []Category `json:"categories" yaml:"categories" db:"-"`
	SpeedClass            SpeedClass `json:"speed_class" yaml:"speed_class" db:"speed_class"`
	FreeShippingThreshold float64    `json:"free_shipping_threshold" yaml:"free_shipping_threshold" db:"free_shipping_threshold"`
	FlatShippingRate      float64    `json:"flat_shipping_rate" yaml:"flat_shipping_rate" db:"flat_shipping_rate"`
	International         bool       `json:"international" yaml:"international" db:"international"`
	FillRate              float64    `json:"fill_rate" yaml:"fill_rate" db:"fill_rate"`
	LateRate              float64    `json:"late_rate" yaml:"late_rate" db:"late_rate"`
	// DiscountPct is a temporary negotiated discount applied to unit prices.
	DiscountPct float64 `json:"discount_pct" yaml:"discount_pct" db:"discount_pct"`
}

// Supplies reports whether the supplier carries the category. A supplier
// with no declared categories is treated as carrying everything.
func (s Supplier) Supplies(c Category) bool {
	if len(s.Categories) == 0 {
		return true
	}
	for _, sc := range s.Categories {
		if sc == c {
			return true
		}
	}
	return false
}

// WithDiscount returns a copy of the supplier carrying a negotiated discount.
func (s Supplier) WithDiscount(pct float64) (Supplier, error) {
	if pct < 0 || pct >= 100 {
		return s, NewDomainError("supplier.discount_pct", "must be in [0,100), got %.2f", pct)
	}
	out := s
	out.Categories = append([]Category(nil), s.Categories...)
	out.DiscountPct = pct
	return out, nil
}

func (s Supplier) Validate() error {
	if s.ID == "" {
		return NewDomainError("supplier.id", "must not be empty")
	}
	if s.Reliability <= 0 || s.Reliability > 1 {
		return NewDomainError("supplier.reliability", "must be in (0,1], got %.3f", s.Reliability)
	}
	if s.FlatShippingRate < 0 || s.FreeShippingThreshold < 0 {
		return NewDomainError("supplier.shipping", "rates must be >= 0")
	}
	if s.DiscountPct < 0 || s.DiscountPct >= 100 {
		return NewDomainError("supplier.discount_pct", "must be in [0,100), got %.2f", s.DiscountPct)
	}
	return nil
}

// VolumeTier is a bulk price break.
type VolumeTier struct {
	MinQty    float64 `json:"min_qty" yaml:"min_qty"`
	UnitPrice float64 `json:"unit_price" yaml:"unit_price"`
}

// SupplierItem holds a supplier's price terms for one item.
type SupplierItem struct {
	SupplierID   string       `json:"supplier_id" yaml:"supplier_id" db:"supplier_id"`
	ItemID       string       `json:"item_id" yaml:"item_id" db:"item_id"`
	BasePrice    float64      `json:"base_price" yaml:"base_price" db:"base_price"`
	MinOrderQty  float64      `json:"min_order_qty" yaml:"min_order_qty" db:"min_order_qty"`
	DeliveryDays float64      `json:"delivery_days" yaml:"delivery_days" db:"delivery_days"`
	Tiers        []VolumeTier `json:"tiers,omitempty" yaml:"tiers,omitempty" db:"-"`
}

// Validate enforces strictly increasing tier MinQty and non-increasing UnitPrice.
func (si SupplierItem) Validate() error {
	if si.BasePrice < 0 {
		return NewDomainError("supplier_item.base_price", "must be >= 0, got %.4f", si.BasePrice)
	}
	if si.MinOrderQty < 0 {
		return NewDomainError("supplier_item.min_order_qty", "must be >= 0, got %.2f", si.MinOrderQty)
	}
	if si.DeliveryDays < 0 {
		return NewDomainError("supplier_item.delivery_days", "must be >= 0, got %.2f", si.DeliveryDays)
	}
	for i, t := range si.Tiers {
		if t.MinQty < 0 || t.UnitPrice < 0 {
			return NewDomainError("supplier_item.tiers", "tier %d has negative values", i)
		}
		if i == 0 {
			continue
		}
		prev := si.Tiers[i-1]
		if t.MinQty <= prev.MinQty {
			return NewDomainError("supplier_item.tiers", "min_qty must be strictly increasing (tier %d: %.2f <= %.2f)", i, t.MinQty, prev.MinQty)
		}
		if t.UnitPrice > prev.UnitPrice {
			return NewDomainError("supplier_item.tiers", "unit_price must be non-increasing (tier %d: %.4f > %.4f)", i, t.UnitPrice, prev.UnitPrice)
		}
	}
	return nil
}

// TierFor returns the tier with the highest MinQty <= qty. ok is false when
// no tier applies and the base price should be used.
func (si SupplierItem) TierFor(qty float64) (VolumeTier, bool) {
	var (
		best  VolumeTier
		found bool
	)
	for _, t := range si.Tiers {
		if t.MinQty <= qty {
			best = t
			found = true
		}
	}
	return best, found
}

// NextTier returns the first tier whose MinQty exceeds qty.
func (si SupplierItem) NextTier(qty float64) (VolumeTier, bool) {
	for _, t := range si.Tiers {
		if t.MinQty > qty {
			return t, true
		}
	}
	return VolumeTier{}, false
}

// Key identifies a supplier-item pair.
func (si SupplierItem) Key() string {
	return fmt.Sprintf("%s/%s", si.SupplierID, si.ItemID)
}
