package domain

import "time"

// Snapshot is an immutable read of the catalog and ledger stores. Every
// computation pass works against one snapshot.
type Snapshot struct {
	TakenAt       time.Time         `json:"taken_at" yaml:"taken_at"`
	Items         []Item            `json:"items" yaml:"items"`
	Locations     []Location        `json:"locations" yaml:"locations"`
	Suppliers     []Supplier        `json:"suppliers" yaml:"suppliers"`
	SupplierItems []SupplierItem    `json:"supplier_items" yaml:"supplier_items"`
	Records       []InventoryRecord `json:"records" yaml:"records"`
	Routes        []Route           `json:"routes" yaml:"routes"`
	Demand        StaticDemand      `json:"-" yaml:"-"`
	// Consumption holds the current consumption rate (units per hour) per pair,
	// read by the spike detector.
	Consumption map[PairKey]float64 `json:"-" yaml:"-"`
}

// Catalog indexes the reference data of a snapshot.
type Catalog struct {
	Items         map[string]Item
	Locations     map[string]Location
	Suppliers     map[string]Supplier
	SupplierItems map[string][]SupplierItem // by item id
}

// NewCatalog indexes reference data. Duplicate ids keep the last entry.
func NewCatalog(items []Item, locations []Location, suppliers []Supplier, supplierItems []SupplierItem) *Catalog {
	c := &Catalog{
		Items:         make(map[string]Item, len(items)),
		Locations:     make(map[string]Location, len(locations)),
		Suppliers:     make(map[string]Supplier, len(suppliers)),
		SupplierItems: make(map[string][]SupplierItem),
	}
	for _, it := range items {
		c.Items[it.ID] = it
	}
	for _, l := range locations {
		c.Locations[l.ID] = l
	}
	for _, s := range suppliers {
		c.Suppliers[s.ID] = s
	}
	for _, si := range supplierItems {
		c.SupplierItems[si.ItemID] = append(c.SupplierItems[si.ItemID], si)
	}
	return c
}

// Catalog indexes the snapshot's reference data.
func (s *Snapshot) Catalog() *Catalog {
	return NewCatalog(s.Items, s.Locations, s.Suppliers, s.SupplierItems)
}

func (c *Catalog) Item(id string) (Item, error) {
	it, ok := c.Items[id]
	if !ok {
		return Item{}, NewNotFound("item", id)
	}
	return it, nil
}

func (c *Catalog) Location(id string) (Location, error) {
	l, ok := c.Locations[id]
	if !ok {
		return Location{}, NewNotFound("location", id)
	}
	return l, nil
}

func (c *Catalog) Supplier(id string) (Supplier, error) {
	s, ok := c.Suppliers[id]
	if !ok {
		return Supplier{}, NewNotFound("supplier", id)
	}
	return s, nil
}

// SupplierItem returns the price terms of one supplier for one item.
func (c *Catalog) SupplierItem(supplierID, itemID string) (SupplierItem, error) {
	for _, si := range c.SupplierItems[itemID] {
		if si.SupplierID == supplierID {
			return si, nil
		}
	}
	return SupplierItem{}, NewNotFound("supplier_item", supplierID+"/"+itemID)
}
