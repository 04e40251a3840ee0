package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// Seed upserts a snapshot into the database. Records are written with their
// own version, or 1 when unset.
func (db *DB) Seed(ctx context.Context, snap *domain.Snapshot) error {
	return db.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		for _, it := range snap.Items {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO items (id, name, category, unit, storage_cost_per_unit, bulk_capacity, perishable, shelf_life_days)
				VALUES (:id, :name, :category, :unit, :storage_cost_per_unit, :bulk_capacity, :perishable, :shelf_life_days)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					category = EXCLUDED.category,
					unit = EXCLUDED.unit,
					storage_cost_per_unit = EXCLUDED.storage_cost_per_unit,
					bulk_capacity = EXCLUDED.bulk_capacity,
					perishable = EXCLUDED.perishable,
					shelf_life_days = EXCLUDED.shelf_life_days`, it)
			if err != nil {
				return fmt.Errorf("failed to upsert item %s: %w", it.ID, err)
			}
		}

		for _, l := range snap.Locations {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO locations (id, name, address) VALUES (:id, :name, :address)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address`, l)
			if err != nil {
				return fmt.Errorf("failed to upsert location %s: %w", l.ID, err)
			}
		}

		for _, s := range snap.Suppliers {
			categories, err := encodeJSON(s.Categories)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO suppliers (id, name, reliability, categories, speed_class, free_shipping_threshold,
					flat_shipping_rate, international, fill_rate, late_rate, discount_pct)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					reliability = EXCLUDED.reliability,
					categories = EXCLUDED.categories,
					speed_class = EXCLUDED.speed_class,
					free_shipping_threshold = EXCLUDED.free_shipping_threshold,
					flat_shipping_rate = EXCLUDED.flat_shipping_rate,
					international = EXCLUDED.international,
					fill_rate = EXCLUDED.fill_rate,
					late_rate = EXCLUDED.late_rate,
					discount_pct = EXCLUDED.discount_pct`,
				s.ID, s.Name, s.Reliability, categories, s.SpeedClass, s.FreeShippingThreshold,
				s.FlatShippingRate, s.International, s.FillRate, s.LateRate, s.DiscountPct)
			if err != nil {
				return fmt.Errorf("failed to upsert supplier %s: %w", s.ID, err)
			}
		}

		for _, si := range snap.SupplierItems {
			tiers, err := encodeJSON(si.Tiers)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO supplier_items (supplier_id, item_id, base_price, min_order_qty, delivery_days, tiers)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (supplier_id, item_id) DO UPDATE SET
					base_price = EXCLUDED.base_price,
					min_order_qty = EXCLUDED.min_order_qty,
					delivery_days = EXCLUDED.delivery_days,
					tiers = EXCLUDED.tiers`,
				si.SupplierID, si.ItemID, si.BasePrice, si.MinOrderQty, si.DeliveryDays, tiers)
			if err != nil {
				return fmt.Errorf("failed to upsert supplier item %s: %w", si.Key(), err)
			}
		}

		for _, r := range snap.Records {
			lots, err := encodeJSON(r.Lots)
			if err != nil {
				return err
			}
			version := r.Version
			if version == 0 {
				version = 1
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO inventory_records (location_id, item_id, on_hand, on_order, expiry_date, lots, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (location_id, item_id) DO UPDATE SET
					on_hand = EXCLUDED.on_hand,
					on_order = EXCLUDED.on_order,
					expiry_date = EXCLUDED.expiry_date,
					lots = EXCLUDED.lots,
					version = inventory_records.version + 1`,
				r.LocationID, r.ItemID, r.OnHand, r.OnOrder, r.ExpiryDate, lots, version)
			if err != nil {
				return fmt.Errorf("failed to upsert inventory record %s: %w", r.Key(), err)
			}
		}

		for _, rt := range snap.Routes {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO routes (id, from_location_id, to_location_id, mode, base_cost, distance_km,
					fuel_surcharge_pct, transit_hours, handling_fee_per_unit, active)
				VALUES (:id, :from_location_id, :to_location_id, :mode, :base_cost, :distance_km,
					:fuel_surcharge_pct, :transit_hours, :handling_fee_per_unit, :active)
				ON CONFLICT (id) DO UPDATE SET
					from_location_id = EXCLUDED.from_location_id,
					to_location_id = EXCLUDED.to_location_id,
					mode = EXCLUDED.mode,
					base_cost = EXCLUDED.base_cost,
					distance_km = EXCLUDED.distance_km,
					fuel_surcharge_pct = EXCLUDED.fuel_surcharge_pct,
					transit_hours = EXCLUDED.transit_hours,
					handling_fee_per_unit = EXCLUDED.handling_fee_per_unit,
					active = EXCLUDED.active`, rt)
			if err != nil {
				return fmt.Errorf("failed to upsert route %s: %w", rt.ID, err)
			}
		}

		for _, k := range sortedKeys(snap.Demand) {
			d := snap.Demand[k]
			_, err := tx.ExecContext(ctx, `
				INSERT INTO demand_profiles (location_id, item_id, avg_daily_usage, demand_std_dev, avg_lead_time_days, lead_time_std_dev)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (location_id, item_id) DO UPDATE SET
					avg_daily_usage = EXCLUDED.avg_daily_usage,
					demand_std_dev = EXCLUDED.demand_std_dev,
					avg_lead_time_days = EXCLUDED.avg_lead_time_days,
					lead_time_std_dev = EXCLUDED.lead_time_std_dev`,
				k.LocationID, k.ItemID, d.AvgDailyUsage, d.DemandStdDev, d.AvgLeadTimeDays, d.LeadTimeStdDev)
			if err != nil {
				return fmt.Errorf("failed to upsert demand %s: %w", k, err)
			}
		}

		for _, k := range sortedKeys(snap.Consumption) {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO consumption_rates (location_id, item_id, per_hour) VALUES ($1, $2, $3)
				ON CONFLICT (location_id, item_id) DO UPDATE SET per_hour = EXCLUDED.per_hour`,
				k.LocationID, k.ItemID, snap.Consumption[k])
			if err != nil {
				return fmt.Errorf("failed to upsert consumption rate %s: %w", k, err)
			}
		}

		log.Info().
			Int("items", len(snap.Items)).
			Int("locations", len(snap.Locations)).
			Int("records", len(snap.Records)).
			Int("routes", len(snap.Routes)).
			Msg("seeded snapshot")
		return nil
	})
}

func sortedKeys[V any](m map[domain.PairKey]V) []domain.PairKey {
	keys := make([]domain.PairKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
