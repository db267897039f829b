package lending

import (
	"math/big"

	"lendfi/crypto"
)

// Action names understood by the pause guard. They match the flag fields of
// ActionStatus one to one.
const (
	ActionSupply    = "supply"
	ActionWithdraw  = "withdraw"
	ActionBorrow    = "borrow"
	ActionRepay     = "repay"
	ActionLiquidate = "liquidate"
)

// Price is the latest oracle quote for one asset. A new quote replaces the
// prior one unconditionally; no history is retained.
type Price struct {
	AssetID    string
	Value      *big.Int
	Volatility *big.Int
	AsOfBlock  uint64
}

// Copy returns a deep copy so callers cannot mutate registry state.
func (p *Price) Copy() *Price {
	if p == nil {
		return nil
	}
	clone := &Price{AssetID: p.AssetID, AsOfBlock: p.AsOfBlock}
	if p.Value != nil {
		clone.Value = new(big.Int).Set(p.Value)
	}
	if p.Volatility != nil {
		clone.Volatility = new(big.Int).Set(p.Volatility)
	}
	return clone
}

// MarketState captures the global accounting for one market ledger.
// TotalSupply is denominated in tokenized claim units; the remaining fields
// in underlying asset units.
type MarketState struct {
	TotalSupply  *big.Int
	TotalBorrow  *big.Int
	TotalReserve *big.Int
	// TotalCash mirrors the underlying units held in the ledger's custody
	// account, updated on every confirmed transfer leg.
	TotalCash *big.Int
}

// Copy returns a deep copy of the market state.
func (m *MarketState) Copy() *MarketState {
	if m == nil {
		return nil
	}
	clone := &MarketState{}
	if m.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(m.TotalSupply)
	}
	if m.TotalBorrow != nil {
		clone.TotalBorrow = new(big.Int).Set(m.TotalBorrow)
	}
	if m.TotalReserve != nil {
		clone.TotalReserve = new(big.Int).Set(m.TotalReserve)
	}
	if m.TotalCash != nil {
		clone.TotalCash = new(big.Int).Set(m.TotalCash)
	}
	return clone
}

func (m *MarketState) ensureDefaults() {
	if m.TotalSupply == nil {
		m.TotalSupply = big.NewInt(0)
	}
	if m.TotalBorrow == nil {
		m.TotalBorrow = big.NewInt(0)
	}
	if m.TotalReserve == nil {
		m.TotalReserve = big.NewInt(0)
	}
	if m.TotalCash == nil {
		m.TotalCash = big.NewInt(0)
	}
}

// ActionStatus holds the admin pause flags. The zero value leaves every
// action enabled.
type ActionStatus struct {
	Withdraw  bool
	Repay     bool
	Supply    bool
	Liquidate bool
	Borrow    bool
}

// IsPaused implements common.PauseView.
func (s ActionStatus) IsPaused(action string) bool {
	switch action {
	case ActionWithdraw:
		return s.Withdraw
	case ActionRepay:
		return s.Repay
	case ActionSupply:
		return s.Supply
	case ActionLiquidate:
		return s.Liquidate
	case ActionBorrow:
		return s.Borrow
	default:
		return false
	}
}

// MarketInfo is a controller-side market registration.
type MarketInfo struct {
	Asset               string
	Ledger              crypto.Address
	CollateralFactorBps uint64
}
