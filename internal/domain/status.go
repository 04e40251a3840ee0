package domain

import "strings"

// TransferStatus is the lifecycle state of a transfer.
type TransferStatus int

const (
	TransferPending TransferStatus = iota
	TransferInTransit
	TransferCompleted
	TransferCancelled
)

var transferStatusLabels = map[TransferStatus]string{
	TransferPending:   "PENDING",
	TransferInTransit: "IN_TRANSIT",
	TransferCompleted: "COMPLETED",
	TransferCancelled: "CANCELLED",
}

var transferStatusCodes = map[string]TransferStatus{
	"pending":    TransferPending,
	"in_transit": TransferInTransit,
	"completed":  TransferCompleted,
	"cancelled":  TransferCancelled,
}

// allowedTransitions lists the states reachable from each state.
var allowedTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:   {TransferInTransit, TransferCancelled},
	TransferInTransit: {TransferCompleted, TransferCancelled},
}

// String returns the label for a transfer status.
func (s TransferStatus) String() string {
	if label, ok := transferStatusLabels[s]; ok {
		return label
	}

	return "UNKNOWN"
}

// Terminal reports whether no further transition is possible.
func (s TransferStatus) Terminal() bool {
	return s == TransferCompleted || s == TransferCancelled
}

// CanTransition reports whether s may move to next.
func (s TransferStatus) CanTransition(next TransferStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseTransferStatus returns the status for a given label (case-insensitive).
func ParseTransferStatus(label string) (TransferStatus, bool) {
	code, ok := transferStatusCodes[strings.ToLower(label)]

	return code, ok
}

func (s TransferStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TransferStatus) UnmarshalText(b []byte) error {
	code, ok := ParseTransferStatus(string(b))
	if !ok {
		return NewDomainError("transfer.status", "unknown status %q", string(b))
	}
	*s = code
	return nil
}
