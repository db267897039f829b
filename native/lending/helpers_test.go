package lending

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"lendfi/core/events"
	"lendfi/crypto"
	"lendfi/state"
	"lendfi/storage"
)

func makeAddress(seed byte) crypto.Address {
	buf := make([]byte, 20)
	for i := range buf {
		buf[i] = seed
	}
	return crypto.MustNewAddress(crypto.LendPrefix, buf)
}

func newTestStore() *state.Manager {
	return state.NewManager(storage.NewMemDB())
}

func newTestLedger(t *testing.T) (*Ledger, *mockToken) {
	t.Helper()
	token := &mockToken{}
	l := NewLedger(newTestStore(), "NUSD", makeAddress(0xAA))
	l.SetToken(token)
	return l, token
}

type transferRecord struct {
	from   crypto.Address
	to     crypto.Address
	amount *big.Int
	memo   string
}

// mockToken scripts the asset-transfer service: failNext reports an executed
// transfer that did not go through, errNext a delivery failure, onTransfer a
// hook running in place of a successful leg's remote side.
type mockToken struct {
	mu         sync.Mutex
	failNext   bool
	errNext    error
	onTransfer func()
	transfers  []transferRecord
}

func (m *mockToken) TransferAndNotify(_ context.Context, from, to crypto.Address, amount *big.Int, memo string) (DeliveryOutcome, error) {
	m.mu.Lock()
	fail := m.failNext
	m.failNext = false
	errNext := m.errNext
	m.errNext = nil
	hook := m.onTransfer
	m.mu.Unlock()
	if errNext != nil {
		return DeliveryOutcome{}, errNext
	}
	if fail {
		return DeliveryOutcome{Delivered: false, Info: "transfer rejected"}, nil
	}
	if hook != nil {
		hook()
	}
	m.mu.Lock()
	m.transfers = append(m.transfers, transferRecord{
		from:   from,
		to:     to,
		amount: new(big.Int).Set(amount),
		memo:   memo,
	})
	m.mu.Unlock()
	return DeliveryOutcome{Delivered: true}, nil
}

func (m *mockToken) BalanceOf(context.Context, crypto.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (m *mockToken) transferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
}

func (m *mockToken) lastTransfer(t *testing.T) transferRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.transfers) == 0 {
		t.Fatalf("no transfers recorded")
	}
	return m.transfers[len(m.transfers)-1]
}

type mockGate struct {
	allowed bool
	err     error
	calls   int
}

func (g *mockGate) BorrowAllowed(context.Context, crypto.Address, crypto.Address, *big.Int) (bool, error) {
	g.calls++
	if g.err != nil {
		return false, g.err
	}
	return g.allowed, nil
}

type failingSink struct {
	err error
}

func (s failingSink) IncreaseSupply(crypto.Address, crypto.Address, *big.Int) error { return s.err }
func (s failingSink) DecreaseSupply(crypto.Address, crypto.Address, *big.Int) error { return s.err }
func (s failingSink) IncreaseBorrow(crypto.Address, crypto.Address, *big.Int) error { return s.err }
func (s failingSink) DecreaseBorrow(crypto.Address, crypto.Address, *big.Int) error { return s.err }

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

type stubView struct {
	rate *big.Int
	err  error
}

func (v stubView) ExchangeRate() (*big.Int, error) {
	if v.err != nil {
		return nil, v.err
	}
	return new(big.Int).Set(v.rate), nil
}
