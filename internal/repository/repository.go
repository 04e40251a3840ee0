// Package repository declares the stores the engine reads snapshots from and
// commits ledger changes to.
package repository

import (
	"context"
	"math"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// SnapshotRepository returns a consistent read of catalog and ledger.
type SnapshotRepository interface {
	Snapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Mutation adjusts one ledger record. It only applies while the record is
// still at ExpectedVersion.
type Mutation struct {
	Key             domain.PairKey
	ExpectedVersion int64
	OnHandDelta     float64
	OnOrderDelta    float64
	// Lots replaces the record's lots when ReplaceLots is set.
	Lots        []domain.Lot
	ReplaceLots bool
}

// Change is applied atomically: every mutation and the transfer write land
// together or not at all.
type Change struct {
	Mutations []Mutation
	Transfer  *domain.Transfer
	// CreateTransfer inserts Transfer; otherwise Transfer replaces a stored
	// transfer that must still be in PrevStatus.
	CreateTransfer bool
	PrevStatus     domain.TransferStatus
}

// LedgerStore is the write side of the ledger. Commit fails with a
// ConcurrencyConflictError when any version or status check does not hold.
type LedgerStore interface {
	Record(ctx context.Context, key domain.PairKey) (domain.InventoryRecord, error)
	Transfer(ctx context.Context, id string) (domain.Transfer, error)
	Transfers(ctx context.Context) ([]domain.Transfer, error)
	Commit(ctx context.Context, change Change) error
}

// QtyTolerance absorbs float drift when comparing quantities.
const QtyTolerance = 1e-9

// Apply returns rec with m applied. It does not check or bump the version.
func Apply(rec domain.InventoryRecord, m Mutation) (domain.InventoryRecord, error) {
	onHand := rec.OnHand + m.OnHandDelta
	if onHand < -QtyTolerance {
		return rec, &domain.InsufficientStockError{
			LocationID: rec.LocationID,
			ItemID:     rec.ItemID,
			Requested:  -m.OnHandDelta,
			Available:  rec.OnHand,
		}
	}
	onOrder := rec.OnOrder + m.OnOrderDelta
	if onOrder < -QtyTolerance {
		return rec, domain.NewDomainError("on_order", "would drop to %.2f", onOrder)
	}
	rec.OnHand = math.Max(onHand, 0)
	rec.OnOrder = math.Max(onOrder, 0)
	if m.ReplaceLots {
		rec.Lots = append([]domain.Lot(nil), m.Lots...)
	}
	return rec, nil
}
