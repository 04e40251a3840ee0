package position

import (
	"sort"

	"github.com/andresuchdata/supplyengine/internal/domain"
)

// Allocation is the quantity drawn from one lot.
type Allocation struct {
	LotID    string  `json:"lot_id"`
	Quantity float64 `json:"quantity"`
}

// AllocateFEFO draws qty from lots, earliest expiry first. It returns the
// remaining lots (emptied lots dropped) and the draws made. Asking for more
// than the lots hold fails with InsufficientStockError; lots is left untouched.
func AllocateFEFO(lots []domain.Lot, qty float64) ([]domain.Lot, []Allocation, error) {
	if qty < 0 {
		return nil, nil, domain.NewDomainError("quantity", "must be >= 0, got %.2f", qty)
	}

	ordered := append([]domain.Lot(nil), lots...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DaysUntilExpiry != ordered[j].DaysUntilExpiry {
			return ordered[i].DaysUntilExpiry < ordered[j].DaysUntilExpiry
		}
		return ordered[i].LotID < ordered[j].LotID
	})

	var available float64
	for _, l := range ordered {
		available += l.Quantity
	}
	if qty > available+lotSumTolerance {
		return nil, nil, &domain.InsufficientStockError{Requested: qty, Available: available}
	}

	remaining := make([]domain.Lot, 0, len(ordered))
	var draws []Allocation
	need := qty
	for _, l := range ordered {
		if need <= lotSumTolerance {
			remaining = append(remaining, l)
			continue
		}
		take := l.Quantity
		if take > need {
			take = need
		}
		need -= take
		draws = append(draws, Allocation{LotID: l.LotID, Quantity: take})
		if left := l.Quantity - take; left > lotSumTolerance {
			l.Quantity = left
			remaining = append(remaining, l)
		}
	}
	return remaining, draws, nil
}
