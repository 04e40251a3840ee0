package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/supplyengine/internal/domain"
	"github.com/andresuchdata/supplyengine/internal/repository"
)

// Store reads snapshots from and commits ledger changes to postgres.
type Store struct {
	db  *DB
	now func() time.Time
}

func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

var (
	_ repository.SnapshotRepository = (*Store)(nil)
	_ repository.LedgerStore        = (*Store)(nil)
)

type supplierRow struct {
	domain.Supplier
	CategoriesJSON []byte `db:"categories"`
}

type supplierItemRow struct {
	domain.SupplierItem
	TiersJSON []byte `db:"tiers"`
}

type recordRow struct {
	domain.InventoryRecord
	LotsJSON []byte `db:"lots"`
}

func (r recordRow) decode() (domain.InventoryRecord, error) {
	rec := r.InventoryRecord
	if err := decodeJSON(r.LotsJSON, &rec.Lots); err != nil {
		return rec, fmt.Errorf("decode lots of %s: %w", rec.Key(), err)
	}
	return rec, nil
}

type demandRow struct {
	LocationID string `db:"location_id"`
	ItemID     string `db:"item_id"`
	domain.DemandProfile
}

type rateRow struct {
	LocationID string  `db:"location_id"`
	ItemID     string  `db:"item_id"`
	PerHour    float64 `db:"per_hour"`
}

type transferRow struct {
	ID             string    `db:"id"`
	FromLocationID string    `db:"from_location_id"`
	ToLocationID   string    `db:"to_location_id"`
	ItemID         string    `db:"item_id"`
	Quantity       float64   `db:"quantity"`
	TotalCost      float64   `db:"total_cost"`
	Status         string    `db:"status"`
	LotsJSON       []byte    `db:"lots"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r transferRow) decode() (domain.Transfer, error) {
	status, ok := domain.ParseTransferStatus(r.Status)
	if !ok {
		return domain.Transfer{}, fmt.Errorf("transfer %s has unknown status %q", r.ID, r.Status)
	}
	t := domain.Transfer{
		ID:             r.ID,
		FromLocationID: r.FromLocationID,
		ToLocationID:   r.ToLocationID,
		ItemID:         r.ItemID,
		Quantity:       r.Quantity,
		TotalCost:      r.TotalCost,
		Status:         status,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if err := decodeJSON(r.LotsJSON, &t.Lots); err != nil {
		return t, fmt.Errorf("decode lots of transfer %s: %w", r.ID, err)
	}
	return t, nil
}

const (
	selectItems     = `SELECT id, name, category, unit, storage_cost_per_unit, bulk_capacity, perishable, shelf_life_days FROM items ORDER BY id`
	selectLocations = `SELECT id, name, address FROM locations ORDER BY id`
	selectSuppliers = `
		SELECT id, name, reliability, categories, speed_class, free_shipping_threshold,
			flat_shipping_rate, international, fill_rate, late_rate, discount_pct
		FROM suppliers ORDER BY id`
	selectSupplierItems = `
		SELECT supplier_id, item_id, base_price, min_order_qty, delivery_days, tiers
		FROM supplier_items ORDER BY item_id, supplier_id`
	recordColumns = `location_id, item_id, on_hand, on_order, expiry_date, lots, version`
	selectRecords = `SELECT ` + recordColumns + ` FROM inventory_records ORDER BY position`
	selectRecord  = `SELECT ` + recordColumns + ` FROM inventory_records WHERE location_id = $1 AND item_id = $2`
	lockRecord    = selectRecord + ` FOR UPDATE`
	selectRoutes  = `
		SELECT id, from_location_id, to_location_id, mode, base_cost, distance_km,
			fuel_surcharge_pct, transit_hours, handling_fee_per_unit, active
		FROM routes ORDER BY id`
	selectDemand = `
		SELECT location_id, item_id, avg_daily_usage, demand_std_dev, avg_lead_time_days, lead_time_std_dev
		FROM demand_profiles`
	selectRates     = `SELECT location_id, item_id, per_hour FROM consumption_rates`
	transferColumns = `id, from_location_id, to_location_id, item_id, quantity, total_cost, status, lots, created_at, updated_at`
	selectTransfer  = `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	selectTransfers = `SELECT ` + transferColumns + ` FROM transfers ORDER BY created_at, id`
)

// Snapshot reads every table inside one repeatable-read transaction.
func (s *Store) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{
		TakenAt:     s.now(),
		Demand:      make(domain.StaticDemand),
		Consumption: make(map[domain.PairKey]float64),
	}
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	err := s.db.WithTx(ctx, opts, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &snap.Items, selectItems); err != nil {
			return fmt.Errorf("failed to load items: %w", err)
		}
		if err := tx.SelectContext(ctx, &snap.Locations, selectLocations); err != nil {
			return fmt.Errorf("failed to load locations: %w", err)
		}
		if err := tx.SelectContext(ctx, &snap.Routes, selectRoutes); err != nil {
			return fmt.Errorf("failed to load routes: %w", err)
		}

		var suppliers []supplierRow
		if err := tx.SelectContext(ctx, &suppliers, selectSuppliers); err != nil {
			return fmt.Errorf("failed to load suppliers: %w", err)
		}
		for _, r := range suppliers {
			sup := r.Supplier
			if err := decodeJSON(r.CategoriesJSON, &sup.Categories); err != nil {
				return fmt.Errorf("decode categories of supplier %s: %w", sup.ID, err)
			}
			snap.Suppliers = append(snap.Suppliers, sup)
		}

		var supplierItems []supplierItemRow
		if err := tx.SelectContext(ctx, &supplierItems, selectSupplierItems); err != nil {
			return fmt.Errorf("failed to load supplier items: %w", err)
		}
		for _, r := range supplierItems {
			si := r.SupplierItem
			if err := decodeJSON(r.TiersJSON, &si.Tiers); err != nil {
				return fmt.Errorf("decode tiers of %s: %w", si.Key(), err)
			}
			snap.SupplierItems = append(snap.SupplierItems, si)
		}

		var records []recordRow
		if err := tx.SelectContext(ctx, &records, selectRecords); err != nil {
			return fmt.Errorf("failed to load inventory records: %w", err)
		}
		for _, r := range records {
			rec, err := r.decode()
			if err != nil {
				return err
			}
			snap.Records = append(snap.Records, rec)
		}

		var demand []demandRow
		if err := tx.SelectContext(ctx, &demand, selectDemand); err != nil {
			return fmt.Errorf("failed to load demand profiles: %w", err)
		}
		for _, d := range demand {
			snap.Demand[domain.PairKey{LocationID: d.LocationID, ItemID: d.ItemID}] = d.DemandProfile
		}

		var rates []rateRow
		if err := tx.SelectContext(ctx, &rates, selectRates); err != nil {
			return fmt.Errorf("failed to load consumption rates: %w", err)
		}
		for _, r := range rates {
			snap.Consumption[domain.PairKey{LocationID: r.LocationID, ItemID: r.ItemID}] = r.PerHour
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) Record(ctx context.Context, key domain.PairKey) (domain.InventoryRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, selectRecord, key.LocationID, key.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryRecord{}, domain.NewNotFound("inventory_record", key.String())
	}
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("failed to get inventory record: %w", err)
	}
	return row.decode()
}

func (s *Store) Transfer(ctx context.Context, id string) (domain.Transfer, error) {
	var row transferRow
	err := s.db.GetContext(ctx, &row, selectTransfer, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transfer{}, domain.NewNotFound("transfer", id)
	}
	if err != nil {
		return domain.Transfer{}, fmt.Errorf("failed to get transfer: %w", err)
	}
	return row.decode()
}

// Transfers lists every transfer, oldest first.
func (s *Store) Transfers(ctx context.Context) ([]domain.Transfer, error) {
	var rows []transferRow
	if err := s.db.SelectContext(ctx, &rows, selectTransfers); err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	out := make([]domain.Transfer, 0, len(rows))
	for _, r := range rows {
		t, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Commit locks every touched record, checks its version and writes the
// change in one transaction.
func (s *Store) Commit(ctx context.Context, change repository.Change) error {
	return s.db.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		next := make(map[domain.PairKey]domain.InventoryRecord, len(change.Mutations))
		var order []domain.PairKey
		for _, m := range change.Mutations {
			rec, ok := next[m.Key]
			if !ok {
				var row recordRow
				err := tx.GetContext(ctx, &row, lockRecord, m.Key.LocationID, m.Key.ItemID)
				if errors.Is(err, sql.ErrNoRows) {
					return domain.NewNotFound("inventory_record", m.Key.String())
				}
				if err != nil {
					return fmt.Errorf("failed to lock inventory record: %w", err)
				}
				if rec, err = row.decode(); err != nil {
					return err
				}
				order = append(order, m.Key)
			}
			if rec.Version != m.ExpectedVersion {
				return &domain.ConcurrencyConflictError{
					Resource: "inventory_record " + m.Key.String(),
					Expected: m.ExpectedVersion,
					Actual:   rec.Version,
				}
			}
			applied, err := repository.Apply(rec, m)
			if err != nil {
				return err
			}
			next[m.Key] = applied
		}

		for _, k := range order {
			if err := updateRecord(ctx, tx, next[k]); err != nil {
				return err
			}
		}

		if change.Transfer == nil {
			return nil
		}
		if change.CreateTransfer {
			return insertTransfer(ctx, tx, *change.Transfer)
		}
		return updateTransfer(ctx, tx, *change.Transfer, change.PrevStatus)
	})
}

func updateRecord(ctx context.Context, tx *sqlx.Tx, rec domain.InventoryRecord) error {
	lots, err := encodeJSON(rec.Lots)
	if err != nil {
		return err
	}
	query := `
		UPDATE inventory_records
		SET on_hand = $3, on_order = $4, lots = $5, version = version + 1
		WHERE location_id = $1 AND item_id = $2`
	if _, err := tx.ExecContext(ctx, query, rec.LocationID, rec.ItemID, rec.OnHand, rec.OnOrder, lots); err != nil {
		return fmt.Errorf("failed to update inventory record: %w", err)
	}
	return nil
}

func insertTransfer(ctx context.Context, tx *sqlx.Tx, t domain.Transfer) error {
	lots, err := encodeJSON(t.Lots)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`
	res, err := tx.ExecContext(ctx, query,
		t.ID, t.FromLocationID, t.ToLocationID, t.ItemID, t.Quantity, t.TotalCost,
		t.Status.String(), lots, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ConcurrencyConflictError{Resource: "transfer " + t.ID}
	}
	return nil
}

func updateTransfer(ctx context.Context, tx *sqlx.Tx, t domain.Transfer, prev domain.TransferStatus) error {
	lots, err := encodeJSON(t.Lots)
	if err != nil {
		return err
	}
	var current string
	err = tx.GetContext(ctx, &current, `SELECT status FROM transfers WHERE id = $1 FOR UPDATE`, t.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound("transfer", t.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to lock transfer: %w", err)
	}
	if current != prev.String() {
		actual, _ := domain.ParseTransferStatus(current)
		return &domain.ConcurrencyConflictError{
			Resource: "transfer " + t.ID,
			Expected: int64(prev),
			Actual:   int64(actual),
		}
	}

	query := `UPDATE transfers SET status = $2, lots = $3, updated_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, t.ID, t.Status.String(), lots, t.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update transfer: %w", err)
	}
	return nil
}

func encodeJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json column: %w", err)
	}
	if string(b) == "null" {
		return []byte("[]"), nil
	}
	return b, nil
}

func decodeJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}
