package lending

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"lendfi/crypto"
)

// OperationState tracks a multi-leg settlement through its saga lifecycle.
type OperationState uint8

const (
	StateInitiated OperationState = iota
	StatePermissionChecked
	StateSettled
	StateCommitted
	StateAborted
)

func (s OperationState) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StatePermissionChecked:
		return "permission_checked"
	case StateSettled:
		return "settled"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Operation is one pending multi-leg settlement, keyed by a correlation id.
type Operation struct {
	ID        uuid.UUID
	Kind      string
	Account   crypto.Address
	Amount    *big.Int
	State     OperationState
	StartedAt time.Time
}

// operationTable records in-flight operations and holds a per-account
// advisory reservation: while an operation for an account is pending, further
// mutating operations on that account are rejected. This closes the window
// where unrelated entry points could act on pre-continuation state.
type operationTable struct {
	mu       sync.Mutex
	clock    func() time.Time
	ops      map[uuid.UUID]*Operation
	inFlight map[string]uuid.UUID
}

func newOperationTable() *operationTable {
	return &operationTable{
		clock:    time.Now,
		ops:      make(map[uuid.UUID]*Operation),
		inFlight: make(map[string]uuid.UUID),
	}
}

// begin registers a new operation and takes the account reservation.
func (t *operationTable) begin(kind string, account crypto.Address, amount *big.Int) (*Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := account.String()
	if _, busy := t.inFlight[key]; busy {
		return nil, ErrOperationInFlight
	}
	op := &Operation{
		ID:        uuid.New(),
		Kind:      kind,
		Account:   account,
		State:     StateInitiated,
		StartedAt: t.clock(),
	}
	if amount != nil {
		op.Amount = new(big.Int).Set(amount)
	}
	t.ops[op.ID] = op
	t.inFlight[key] = op.ID
	return op, nil
}

// transition advances the operation to the next leg state. Transitions only
// move forward; anything else indicates a coordinator bug.
func (t *operationTable) transition(op *Operation, next OperationState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op == nil {
		return ErrInconsistentState
	}
	if next <= op.State || op.State >= StateCommitted {
		return fmt.Errorf("%w: %s -> %s", ErrInconsistentState, op.State, next)
	}
	op.State = next
	return nil
}

// commit finalizes the operation and releases the account reservation.
func (t *operationTable) commit(op *Operation) {
	t.finish(op, StateCommitted)
}

// abort abandons the operation and releases the account reservation. No
// compensation is required because committed mutations only happen after the
// final confirmed leg.
func (t *operationTable) abort(op *Operation) {
	t.finish(op, StateAborted)
}

func (t *operationTable) finish(op *Operation, terminal OperationState) {
	if op == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	op.State = terminal
	delete(t.ops, op.ID)
	key := op.Account.String()
	if id, ok := t.inFlight[key]; ok && id == op.ID {
		delete(t.inFlight, key)
	}
}

// pending reports whether the account currently holds a reservation.
func (t *operationTable) pending(account crypto.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, busy := t.inFlight[account.String()]
	return busy
}
