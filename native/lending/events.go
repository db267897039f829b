package lending

import (
	"math/big"

	"lendfi/core/types"
	"lendfi/crypto"
)

// Event types emitted by the market ledger saga coordinator.
const (
	EventTypeOperationCommitted = "lending.operation.committed"
	EventTypeOperationAborted   = "lending.operation.aborted"
)

// OperationCommitted is emitted when a settlement saga reaches its final
// confirmed state. Amount carries the settled value: claim units for supply,
// underlying units otherwise.
type OperationCommitted struct {
	Kind    string
	ID      string
	Asset   string
	Account crypto.Address
	Amount  *big.Int
}

// EventType implements events.Event.
func (OperationCommitted) EventType() string { return EventTypeOperationCommitted }

// Event renders the canonical attribute payload.
func (e OperationCommitted) Event() *types.Event {
	return &types.Event{
		Type: EventTypeOperationCommitted,
		Attributes: map[string]string{
			"kind":    e.Kind,
			"id":      e.ID,
			"asset":   e.Asset,
			"account": e.Account.String(),
			"amount":  formatAmount(e.Amount),
		},
	}
}

// OperationAborted is emitted when a saga abandons without mutating state.
type OperationAborted struct {
	Kind    string
	ID      string
	Asset   string
	Account crypto.Address
	Reason  string
}

// EventType implements events.Event.
func (OperationAborted) EventType() string { return EventTypeOperationAborted }

// Event renders the canonical attribute payload.
func (e OperationAborted) Event() *types.Event {
	return &types.Event{
		Type: EventTypeOperationAborted,
		Attributes: map[string]string{
			"kind":    e.Kind,
			"id":      e.ID,
			"asset":   e.Asset,
			"account": e.Account.String(),
			"reason":  e.Reason,
		},
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
