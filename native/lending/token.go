package lending

import (
	"context"
	"math/big"

	"lendfi/crypto"
)

// DeliveryOutcome is the executed result of an asynchronous call to the
// asset-transfer service. A false Delivered means the call ran but the
// transfer itself failed; Info carries the remote detail.
type DeliveryOutcome struct {
	Delivered bool
	Info      string
}

// TokenTransferor is the external balance ledger for a market's underlying
// asset. The market ledger never implements it; transfers settle remotely and
// the outcome signal confirms each leg. A non-nil error reports a delivery
// failure: the call never executed on the remote side.
type TokenTransferor interface {
	TransferAndNotify(ctx context.Context, from, to crypto.Address, amount *big.Int, memo string) (DeliveryOutcome, error)
	BalanceOf(ctx context.Context, account crypto.Address) (*big.Int, error)
}

// RiskGate is the controller authorization surface a market ledger consults
// before finalizing a borrow.
type RiskGate interface {
	BorrowAllowed(ctx context.Context, market, account crypto.Address, amount *big.Int) (bool, error)
}

// PositionSink receives cross-market position updates when a ledger commits
// an operation. The caller address identifies the reporting ledger.
type PositionSink interface {
	IncreaseSupply(caller, account crypto.Address, amount *big.Int) error
	DecreaseSupply(caller, account crypto.Address, amount *big.Int) error
	IncreaseBorrow(caller, account crypto.Address, amount *big.Int) error
	DecreaseBorrow(caller, account crypto.Address, amount *big.Int) error
}
