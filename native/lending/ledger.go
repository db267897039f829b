package lending

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"lendfi/core/events"
	"lendfi/crypto"
	"lendfi/native/common"
)

// Ledger is the per-asset market ledger. Every mutating operation is a saga:
// pre-flight checks and the account reservation happen synchronously, remote
// legs settle against the external asset-transfer service, and local state is
// mutated only in the continuation after the final leg confirms. The state
// mutex is released across remote legs and cross-component calls, so the
// reservation held by the operation table is what keeps concurrent entry
// points off the account.
type Ledger struct {
	mu          sync.Mutex
	store       Storage
	asset       string
	address     crypto.Address
	token       TokenTransferor
	gate        RiskGate
	positions   PositionSink
	pauses      common.PauseView
	emitter     events.Emitter
	ops         *operationTable
	initialRate *big.Int
}

// NewLedger constructs a market ledger for one underlying asset. The address
// identifies the ledger's custody account on the asset-transfer service.
func NewLedger(store Storage, asset string, address crypto.Address) *Ledger {
	return &Ledger{
		store:       store,
		asset:       strings.TrimSpace(asset),
		address:     address,
		emitter:     events.NoopEmitter{},
		ops:         newOperationTable(),
		initialRate: Ray(),
	}
}

// SetToken wires the external asset-transfer service.
func (l *Ledger) SetToken(token TokenTransferor) {
	if l == nil {
		return
	}
	l.token = token
}

// SetRiskGate wires the controller's borrow authorization surface.
func (l *Ledger) SetRiskGate(gate RiskGate) {
	if l == nil {
		return
	}
	l.gate = gate
}

// SetPositionSink wires the controller's cross-market position mirror.
func (l *Ledger) SetPositionSink(sink PositionSink) {
	if l == nil {
		return
	}
	l.positions = sink
}

// SetPauses wires the pause-flag view, typically the controller itself.
func (l *Ledger) SetPauses(p common.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetInitialExchangeRate overrides the ray-scaled rate used while no claim
// units exist.
func (l *Ledger) SetInitialExchangeRate(rate *big.Int) {
	if l == nil || rate == nil || rate.Sign() <= 0 {
		return
	}
	l.initialRate = new(big.Int).Set(rate)
}

// Asset returns the underlying asset symbol.
func (l *Ledger) Asset() string { return l.asset }

// Address returns the ledger's custody identity.
func (l *Ledger) Address() crypto.Address { return l.address }

// Supply deposits amount of the underlying asset in exchange for tokenized
// claim units. The credit happens only after the transfer-in leg confirms; a
// failed transfer leaves no trace because nothing was mutated beforehand.
// The caller's new claim-unit balance is returned.
func (l *Ledger) Supply(ctx context.Context, caller crypto.Address, amount *big.Int) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	if err := common.Guard(l.pauses, ActionSupply); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if l.token == nil {
		return nil, errNoTokenService
	}
	op, err := l.ops.begin(ActionSupply, caller, amount)
	if err != nil {
		return nil, err
	}

	if err := l.settleTransfer(ctx, op, caller, l.address); err != nil {
		return nil, l.abort(op, err)
	}

	var credited *big.Int
	err = l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		balance, err := l.balance(supplyPrefix, caller)
		if err != nil {
			return err
		}
		balance = new(big.Int).Add(balance, amount)
		market.TotalSupply = new(big.Int).Add(market.TotalSupply, amount)
		market.TotalCash = new(big.Int).Add(market.TotalCash, amount)
		if err := l.persistPosition(supplyPrefix, caller, balance, market); err != nil {
			return err
		}
		credited = balance
		return nil
	})
	if err != nil {
		return nil, l.abort(op, err)
	}
	if l.positions != nil {
		if err := l.positions.IncreaseSupply(l.address, caller, amount); err != nil {
			return nil, l.commitWithMirrorFailure(op, err)
		}
	}
	l.commit(op, amount)
	return credited, nil
}

// Withdraw redeems amount claim units for underlying asset at the current
// exchange rate. The debit is deferred until the transfer-out leg confirms;
// a failed leg leaves the account balance untouched. The settled underlying
// payout is returned.
func (l *Ledger) Withdraw(ctx context.Context, caller crypto.Address, amount *big.Int) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	if err := common.Guard(l.pauses, ActionWithdraw); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if l.token == nil {
		return nil, errNoTokenService
	}
	op, err := l.ops.begin(ActionWithdraw, caller, amount)
	if err != nil {
		return nil, err
	}

	var payout *big.Int
	err = l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		balance, err := l.balance(supplyPrefix, caller)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		rate := deriveExchangeRate(market, l.initialRate)
		payout = rayMul(amount, rate)
		if payout.Sign() <= 0 {
			return ErrInvalidAmount
		}
		if market.TotalCash.Cmp(payout) < 0 {
			return ErrInsufficientLiquidity
		}
		return nil
	})
	if err != nil {
		return nil, l.abort(op, err)
	}

	if err := l.settleTransferAmount(ctx, op, l.address, caller, payout); err != nil {
		return nil, l.abort(op, err)
	}

	err = l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		balance, err := l.balance(supplyPrefix, caller)
		if err != nil {
			return err
		}
		// The reservation keeps other operations off this account, so
		// the pre-leg snapshot must still hold here.
		if balance.Cmp(amount) < 0 || market.TotalCash.Cmp(payout) < 0 {
			return ErrInconsistentState
		}
		balance = new(big.Int).Sub(balance, amount)
		market.TotalSupply = new(big.Int).Sub(market.TotalSupply, amount)
		market.TotalCash = new(big.Int).Sub(market.TotalCash, payout)
		return l.persistPosition(supplyPrefix, caller, balance, market)
	})
	if err != nil {
		return nil, l.abort(op, err)
	}
	if l.positions != nil {
		if err := l.positions.DecreaseSupply(l.address, caller, amount); err != nil {
			return nil, l.commitWithMirrorFailure(op, err)
		}
	}
	l.commit(op, payout)
	return payout, nil
}

// Borrow runs the two-leg saga: the controller's risk gate authorizes the
// loan, the transfer-out leg settles, and only a confirmed settlement records
// the debt. A permission call that fails to deliver aborts with
// ErrRemoteCallFailed; an executed false result aborts with
// ErrBorrowNotAllowed; a failed second leg leaves debt unrecorded.
func (l *Ledger) Borrow(ctx context.Context, caller crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilState
	}
	if err := common.Guard(l.pauses, ActionBorrow); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if l.token == nil {
		return errNoTokenService
	}
	if l.gate == nil {
		return errNoRiskGate
	}
	op, err := l.ops.begin(ActionBorrow, caller, amount)
	if err != nil {
		return err
	}

	err = l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		if market.TotalCash.Cmp(amount) < 0 {
			return ErrInsufficientLiquidity
		}
		return nil
	})
	if err != nil {
		return l.abort(op, err)
	}

	allowed, err := l.gate.BorrowAllowed(ctx, l.address, caller, amount)
	if err != nil {
		if isDomainDenial(err) {
			return l.abort(op, err)
		}
		return l.abort(op, fmt.Errorf("%w: %v", ErrRemoteCallFailed, err))
	}
	if !allowed {
		return l.abort(op, ErrBorrowNotAllowed)
	}
	if err := l.ops.transition(op, StatePermissionChecked); err != nil {
		return l.abort(op, err)
	}

	if err := l.settleTransfer(ctx, op, l.address, caller); err != nil {
		return l.abort(op, err)
	}

	err = l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		if market.TotalCash.Cmp(amount) < 0 {
			return ErrInconsistentState
		}
		debt, err := l.balance(borrowPrefix, caller)
		if err != nil {
			return err
		}
		debt = new(big.Int).Add(debt, amount)
		market.TotalBorrow = new(big.Int).Add(market.TotalBorrow, amount)
		market.TotalCash = new(big.Int).Sub(market.TotalCash, amount)
		return l.persistPosition(borrowPrefix, caller, debt, market)
	})
	if err != nil {
		return l.abort(op, err)
	}
	if l.positions != nil {
		if err := l.positions.IncreaseBorrow(l.address, caller, amount); err != nil {
			return l.commitWithMirrorFailure(op, err)
		}
	}
	l.commit(op, amount)
	return nil
}

// Repay settles outstanding debt. The transfer-in amount is clamped to the
// outstanding debt before the leg is issued, so an overpayment never leaves
// the caller; debt can never go negative. The settled amount is returned.
func (l *Ledger) Repay(ctx context.Context, caller crypto.Address, amount *big.Int) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	if err := common.Guard(l.pauses, ActionRepay); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if l.token == nil {
		return nil, errNoTokenService
	}
	op, err := l.ops.begin(ActionRepay, caller, amount)
	if err != nil {
		return nil, err
	}

	var settle *big.Int
	err = l.locked(func() error {
		debt, err := l.balance(borrowPrefix, caller)
		if err != nil {
			return err
		}
		if debt.Sign() == 0 {
			return ErrNoOutstandingDebt
		}
		settle = minBig(amount, debt)
		return nil
	})
	if err != nil {
		return nil, l.abort(op, err)
	}

	if err := l.settleTransferAmount(ctx, op, caller, l.address, settle); err != nil {
		return nil, l.abort(op, err)
	}

	err = l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		debt, err := l.balance(borrowPrefix, caller)
		if err != nil {
			return err
		}
		if debt.Cmp(settle) < 0 || market.TotalBorrow.Cmp(settle) < 0 {
			return ErrInconsistentState
		}
		debt = new(big.Int).Sub(debt, settle)
		market.TotalBorrow = new(big.Int).Sub(market.TotalBorrow, settle)
		market.TotalCash = new(big.Int).Add(market.TotalCash, settle)
		return l.persistPosition(borrowPrefix, caller, debt, market)
	})
	if err != nil {
		return nil, l.abort(op, err)
	}
	if l.positions != nil {
		if err := l.positions.DecreaseBorrow(l.address, caller, settle); err != nil {
			return nil, l.commitWithMirrorFailure(op, err)
		}
	}
	l.commit(op, settle)
	return settle, nil
}

// AddReserve moves amount of the underlying asset into the market's reserve.
// No pause flag gates reserves; the transfer-in leg still confirms before the
// reserve is recorded.
func (l *Ledger) AddReserve(ctx context.Context, caller crypto.Address, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if l.token == nil {
		return errNoTokenService
	}
	op, err := l.ops.begin("add_reserve", caller, amount)
	if err != nil {
		return err
	}

	if err := l.settleTransfer(ctx, op, caller, l.address); err != nil {
		return l.abort(op, err)
	}

	err = l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		market.TotalReserve = new(big.Int).Add(market.TotalReserve, amount)
		market.TotalCash = new(big.Int).Add(market.TotalCash, amount)
		return l.persistMarket(market)
	})
	if err != nil {
		return l.abort(op, err)
	}
	l.commit(op, amount)
	return nil
}

// ExchangeRate derives the current ray-scaled claim-unit redemption rate
// from the market accounting. It implements the controller's MarketView.
func (l *Ledger) ExchangeRate() (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	var rate *big.Int
	err := l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		rate = deriveExchangeRate(market, l.initialRate)
		return nil
	})
	return rate, err
}

// TotalSupplies returns the claim units outstanding.
func (l *Ledger) TotalSupplies() (*big.Int, error) {
	return l.marketField(func(m *MarketState) *big.Int { return m.TotalSupply })
}

// TotalBorrows returns the underlying units lent out.
func (l *Ledger) TotalBorrows() (*big.Int, error) {
	return l.marketField(func(m *MarketState) *big.Int { return m.TotalBorrow })
}

// TotalReserve returns the underlying units held in reserve.
func (l *Ledger) TotalReserve() (*big.Int, error) {
	return l.marketField(func(m *MarketState) *big.Int { return m.TotalReserve })
}

// SuppliesOf returns the account's claim-unit balance.
func (l *Ledger) SuppliesOf(account crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := l.locked(func() error {
		var err error
		balance, err = l.balance(supplyPrefix, account)
		return err
	})
	return balance, err
}

// BorrowsOf returns the account's outstanding debt.
func (l *Ledger) BorrowsOf(account crypto.Address) (*big.Int, error) {
	var balance *big.Int
	err := l.locked(func() error {
		var err error
		balance, err = l.balance(borrowPrefix, account)
		return err
	})
	return balance, err
}

func (l *Ledger) marketField(pick func(*MarketState) *big.Int) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilState
	}
	var value *big.Int
	err := l.locked(func() error {
		market, err := l.loadMarket()
		if err != nil {
			return err
		}
		value = new(big.Int).Set(pick(market))
		return nil
	})
	return value, err
}

func (l *Ledger) locked(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}

// settleTransfer runs a transfer leg for the operation's full amount.
func (l *Ledger) settleTransfer(ctx context.Context, op *Operation, from, to crypto.Address) error {
	return l.settleTransferAmount(ctx, op, from, to, op.Amount)
}

// settleTransferAmount issues the external transfer leg and advances the
// operation to Settled on confirmation. Both a delivery failure and an
// executed-but-failed transfer surface as ErrRemoteCallFailed.
func (l *Ledger) settleTransferAmount(ctx context.Context, op *Operation, from, to crypto.Address, amount *big.Int) error {
	memo := fmt.Sprintf("lendfi/%s/%s/%s", l.asset, op.Kind, op.ID)
	outcome, err := l.token.TransferAndNotify(ctx, from, to, amount, memo)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteCallFailed, err)
	}
	if !outcome.Delivered {
		return fmt.Errorf("%w: %s", ErrRemoteCallFailed, outcome.Info)
	}
	return l.ops.transition(op, StateSettled)
}

func (l *Ledger) loadMarket() (*MarketState, error) {
	var stored storedMarketState
	if _, err := l.store.KVGet(assetKey(marketStatePrefix, l.asset), &stored); err != nil {
		return nil, err
	}
	market := &MarketState{
		TotalSupply:  stored.TotalSupply,
		TotalBorrow:  stored.TotalBorrow,
		TotalReserve: stored.TotalReserve,
		TotalCash:    stored.TotalCash,
	}
	market.ensureDefaults()
	return market, nil
}

func (l *Ledger) persistMarket(market *MarketState) error {
	stored := storedMarketState{
		TotalSupply:  market.TotalSupply,
		TotalBorrow:  market.TotalBorrow,
		TotalReserve: market.TotalReserve,
		TotalCash:    market.TotalCash,
	}
	return l.store.KVPut(assetKey(marketStatePrefix, l.asset), &stored)
}

func (l *Ledger) balance(prefix []byte, account crypto.Address) (*big.Int, error) {
	var stored storedBalance
	if _, err := l.store.KVGet(positionKey(prefix, l.asset, account), &stored); err != nil {
		return nil, err
	}
	if stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return stored.Amount, nil
}

func (l *Ledger) persistPosition(prefix []byte, account crypto.Address, balance *big.Int, market *MarketState) error {
	if err := l.store.KVPut(positionKey(prefix, l.asset, account), &storedBalance{Amount: balance}); err != nil {
		return err
	}
	return l.persistMarket(market)
}

func (l *Ledger) commit(op *Operation, settled *big.Int) {
	l.ops.commit(op)
	OperationMetrics().ObserveCommit(op.Kind)
	l.emitter.Emit(OperationCommitted{
		Kind:    op.Kind,
		ID:      op.ID.String(),
		Asset:   l.asset,
		Account: op.Account,
		Amount:  settled,
	})
}

func (l *Ledger) abort(op *Operation, err error) error {
	l.ops.abort(op)
	OperationMetrics().ObserveAbort(op.Kind, reasonLabel(err))
	l.emitter.Emit(OperationAborted{
		Kind:    op.Kind,
		ID:      op.ID.String(),
		Asset:   l.asset,
		Account: op.Account,
		Reason:  reasonLabel(err),
	})
	return err
}

// commitWithMirrorFailure records the local commit (the ledger state is
// already persisted) but surfaces the cross-component divergence to the
// caller.
func (l *Ledger) commitWithMirrorFailure(op *Operation, err error) error {
	l.commit(op, op.Amount)
	return fmt.Errorf("%w: position mirror update failed: %v", ErrInconsistentState, err)
}

// isDomainDenial distinguishes typed risk-gate denials from transport
// failures of the permission call.
func isDomainDenial(err error) bool {
	for _, sentinel := range []error{ErrMissingPrice, ErrUnknownMarket, ErrInvalidAmount, ErrActionPaused} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
