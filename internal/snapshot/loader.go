// Package snapshot reads catalog and ledger fixtures from YAML.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// File is the on-disk layout of a snapshot fixture.
type File struct {
	TakenAt       time.Time                `yaml:"taken_at,omitempty"`
	Items         []domain.Item            `yaml:"items"`
	Locations     []domain.Location        `yaml:"locations"`
	Suppliers     []domain.Supplier        `yaml:"suppliers"`
	SupplierItems []domain.SupplierItem    `yaml:"supplier_items"`
	Records       []domain.InventoryRecord `yaml:"records"`
	Routes        []domain.Route           `yaml:"routes"`
	Demand        []DemandEntry            `yaml:"demand"`
	Consumption   []RateEntry              `yaml:"consumption"`
	// History and LeadTimes derive demand profiles for pairs that have no
	// explicit demand entry.
	History   []HistoryEntry  `yaml:"history,omitempty"`
	LeadTimes []LeadTimeEntry `yaml:"lead_times,omitempty"`
}

// DemandEntry is the demand profile of one pair.
type DemandEntry struct {
	LocationID           string `yaml:"location_id"`
	ItemID               string `yaml:"item_id"`
	domain.DemandProfile `yaml:",inline"`
}

// RateEntry is the current consumption rate of one pair, units per hour.
type RateEntry struct {
	LocationID string  `yaml:"location_id"`
	ItemID     string  `yaml:"item_id"`
	PerHour    float64 `yaml:"per_hour"`
}

// HistoryEntry is the daily consumption of one pair, oldest day first.
type HistoryEntry struct {
	LocationID string    `yaml:"location_id"`
	ItemID     string    `yaml:"item_id"`
	Daily      []float64 `yaml:"daily"`
}

type LeadTimeEntry struct {
	ItemID          string `yaml:"item_id"`
	domain.LeadTime `yaml:",inline"`
}

// Load reads and validates a fixture file.
func Load(path string) (*domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	snap, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Parse decodes and validates a fixture.
func Parse(data []byte) (*domain.Snapshot, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f.Snapshot(), nil
}

// Snapshot converts the fixture into a domain snapshot.
func (f File) Snapshot() *domain.Snapshot {
	s := &domain.Snapshot{
		TakenAt:       f.TakenAt,
		Items:         f.Items,
		Locations:     f.Locations,
		Suppliers:     f.Suppliers,
		SupplierItems: f.SupplierItems,
		Records:       f.Records,
		Routes:        f.Routes,
		Demand:        make(domain.StaticDemand, len(f.Demand)),
		Consumption:   make(map[domain.PairKey]float64, len(f.Consumption)),
	}
	for _, d := range f.Demand {
		s.Demand[domain.PairKey{LocationID: d.LocationID, ItemID: d.ItemID}] = d.DemandProfile
	}
	for _, r := range f.Consumption {
		s.Consumption[domain.PairKey{LocationID: r.LocationID, ItemID: r.ItemID}] = r.PerHour
	}

	if len(f.History) > 0 {
		hist := domain.HistoricalDemand{
			DailyConsumption: make(map[domain.PairKey][]float64, len(f.History)),
			LeadTimes:        make(map[string]domain.LeadTime, len(f.LeadTimes)),
		}
		for _, h := range f.History {
			hist.DailyConsumption[domain.PairKey{LocationID: h.LocationID, ItemID: h.ItemID}] = h.Daily
		}
		for _, lt := range f.LeadTimes {
			hist.LeadTimes[lt.ItemID] = lt.LeadTime
		}
		for k := range hist.DailyConsumption {
			if _, ok := s.Demand[k]; ok {
				continue
			}
			if p, ok := hist.Demand(k.LocationID, k.ItemID); ok {
				s.Demand[k] = p
			}
		}
	}
	return s
}

// FromSnapshot is the inverse of Snapshot.
func FromSnapshot(s *domain.Snapshot) File {
	f := File{
		TakenAt:       s.TakenAt,
		Items:         s.Items,
		Locations:     s.Locations,
		Suppliers:     s.Suppliers,
		SupplierItems: s.SupplierItems,
		Records:       s.Records,
		Routes:        s.Routes,
	}
	for k, d := range s.Demand {
		f.Demand = append(f.Demand, DemandEntry{LocationID: k.LocationID, ItemID: k.ItemID, DemandProfile: d})
	}
	for k, r := range s.Consumption {
		f.Consumption = append(f.Consumption, RateEntry{LocationID: k.LocationID, ItemID: k.ItemID, PerHour: r})
	}
	return f
}

// Validate checks every entity and every cross reference. Sections are
// checked concurrently; the first failure is returned.
func (f File) Validate() error {
	items := make(map[string]bool, len(f.Items))
	for _, it := range f.Items {
		if items[it.ID] {
			return domain.NewDomainError("items", "duplicate item %q", it.ID)
		}
		items[it.ID] = true
	}
	locations := make(map[string]bool, len(f.Locations))
	for _, l := range f.Locations {
		if l.ID == "" {
			return domain.NewDomainError("locations", "location id must not be empty")
		}
		if locations[l.ID] {
			return domain.NewDomainError("locations", "duplicate location %q", l.ID)
		}
		locations[l.ID] = true
	}
	suppliers := make(map[string]bool, len(f.Suppliers))
	for _, s := range f.Suppliers {
		suppliers[s.ID] = true
	}

	pair := func(loc, item string) error {
		if !locations[loc] {
			return domain.NewNotFound("location", loc)
		}
		if !items[item] {
			return domain.NewNotFound("item", item)
		}
		return nil
	}

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for _, it := range f.Items {
			if err := it.Validate(); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, s := range f.Suppliers {
			if err := s.Validate(); err != nil {
				return err
			}
		}
		for _, si := range f.SupplierItems {
			if !suppliers[si.SupplierID] {
				return domain.NewNotFound("supplier", si.SupplierID)
			}
			if !items[si.ItemID] {
				return domain.NewNotFound("item", si.ItemID)
			}
			if err := si.Validate(); err != nil {
				return fmt.Errorf("supplier item %s: %w", si.Key(), err)
			}
		}
		return nil
	})
	g.Go(func() error {
		seen := make(map[domain.PairKey]bool, len(f.Records))
		for _, r := range f.Records {
			if err := pair(r.LocationID, r.ItemID); err != nil {
				return fmt.Errorf("record: %w", err)
			}
			if seen[r.Key()] {
				return domain.NewDomainError("records", "duplicate record %s", r.Key())
			}
			seen[r.Key()] = true
		}
		return nil
	})
	g.Go(func() error {
		for _, r := range f.Routes {
			if err := r.Validate(); err != nil {
				return err
			}
			if !locations[r.FromLocationID] {
				return domain.NewNotFound("location", r.FromLocationID)
			}
			if !locations[r.ToLocationID] {
				return domain.NewNotFound("location", r.ToLocationID)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, d := range f.Demand {
			if err := pair(d.LocationID, d.ItemID); err != nil {
				return fmt.Errorf("demand: %w", err)
			}
			if d.AvgDailyUsage < 0 || d.DemandStdDev < 0 || d.AvgLeadTimeDays < 0 || d.LeadTimeStdDev < 0 {
				return domain.NewDomainError("demand", "negative profile for %s/%s", d.LocationID, d.ItemID)
			}
		}
		for _, r := range f.Consumption {
			if err := pair(r.LocationID, r.ItemID); err != nil {
				return fmt.Errorf("consumption: %w", err)
			}
			if r.PerHour < 0 {
				return domain.NewDomainError("consumption", "negative rate for %s/%s", r.LocationID, r.ItemID)
			}
		}
		for _, h := range f.History {
			if err := pair(h.LocationID, h.ItemID); err != nil {
				return fmt.Errorf("history: %w", err)
			}
			for _, v := range h.Daily {
				if v < 0 {
					return domain.NewDomainError("history", "negative consumption for %s/%s", h.LocationID, h.ItemID)
				}
			}
		}
		for _, lt := range f.LeadTimes {
			if !items[lt.ItemID] {
				return fmt.Errorf("lead time: %w", domain.NewNotFound("item", lt.ItemID))
			}
			if lt.AvgDays < 0 || lt.StdDevDays < 0 {
				return domain.NewDomainError("lead_times", "negative lead time for %s", lt.ItemID)
			}
		}
		return nil
	})
	return g.Wait()
}
