package domain

import "time"

// TransferSuggestion is a proposed rebalancing move.
type TransferSuggestion struct {
	FromLocationID   string        `json:"from_location_id"`
	ToLocationID     string        `json:"to_location_id"`
	ItemID           string        `json:"item_id"`
	Quantity         float64       `json:"quantity"`
	FixedCost        float64       `json:"fixed_cost"`
	HandlingCost     float64       `json:"handling_cost"`
	TotalCost        float64       `json:"total_cost"`
	EstimatedSavings float64       `json:"estimated_savings"`
	TimeSaved        time.Duration `json:"time_saved"`
	TransitTime      time.Duration `json:"transit_time"`
	RouteIDs         []string      `json:"route_ids"`
	// SourceVersion is the ledger version of the donor record the suggestion
	// was computed against.
	SourceVersion int64 `json:"source_version"`
}

// Transfer is an approved movement of stock between two locations.
type Transfer struct {
	ID             string         `json:"id"`
	FromLocationID string         `json:"from_location_id"`
	ToLocationID   string         `json:"to_location_id"`
	ItemID         string         `json:"item_id"`
	Quantity       float64        `json:"quantity"`
	TotalCost      float64        `json:"total_cost"`
	Status         TransferStatus `json:"status"`
	// Lots are the source lots drawn on dispatch, in FEFO order.
	Lots      []Lot     `json:"lots,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTransfer starts a pending transfer from a suggestion.
func NewTransfer(id string, s TransferSuggestion, now time.Time) (*Transfer, error) {
	if s.FromLocationID == s.ToLocationID {
		return nil, NewDomainError("transfer.locations", "source and target must differ")
	}
	if s.Quantity <= 0 {
		return nil, NewDomainError("transfer.quantity", "must be > 0, got %.2f", s.Quantity)
	}
	return &Transfer{
		ID:             id,
		FromLocationID: s.FromLocationID,
		ToLocationID:   s.ToLocationID,
		ItemID:         s.ItemID,
		Quantity:       s.Quantity,
		TotalCost:      s.TotalCost,
		Status:         TransferPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (t *Transfer) transition(next TransferStatus, now time.Time) error {
	if !t.Status.CanTransition(next) {
		return NewDomainError("transfer.status", "cannot move transfer %s from %s to %s", t.ID, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Dispatch moves a pending transfer in transit.
func (t *Transfer) Dispatch(now time.Time) error { return t.transition(TransferInTransit, now) }

// Complete marks an in-transit transfer as received.
func (t *Transfer) Complete(now time.Time) error { return t.transition(TransferCompleted, now) }

// Clone returns a deep copy.
func (t Transfer) Clone() Transfer {
	out := t
	if t.Lots != nil {
		out.Lots = append([]Lot(nil), t.Lots...)
	}
	return out
}

// Cancel abandons a pending or in-transit transfer.
func (t *Transfer) Cancel(now time.Time) error { return t.transition(TransferCancelled, now) }
