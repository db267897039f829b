package lending

import (
	"math/big"
)

// CollateralInput is the per-market snapshot the risk gate evaluates: the
// account's positions, the market's exchange rate and collateral factor, and
// the latest price quote.
type CollateralInput struct {
	Asset               string
	SupplyBalance       *big.Int
	DebtBalance         *big.Int
	ExchangeRate        *big.Int
	PriceValue          *big.Int
	CollateralFactorBps uint64
}

// evaluateBorrow is the pure authorization decision: total collateral value
// across markets must cover the account's debt value projected after the
// requested borrow. A market with positions but no quote denies outright.
func evaluateBorrow(inputs []CollateralInput, targetAsset string, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() <= 0 {
		return false, ErrInvalidAmount
	}
	collateral := big.NewInt(0)
	debt := big.NewInt(0)
	targetSeen := false
	for _, input := range inputs {
		supply := input.SupplyBalance
		debtBal := input.DebtBalance
		hasSupply := supply != nil && supply.Sign() > 0
		hasDebt := debtBal != nil && debtBal.Sign() > 0
		isTarget := input.Asset == targetAsset
		if isTarget {
			targetSeen = true
		}
		if !hasSupply && !hasDebt && !isTarget {
			continue
		}
		if input.PriceValue == nil || input.PriceValue.Sign() <= 0 {
			return false, ErrMissingPrice
		}
		if hasSupply {
			if input.ExchangeRate == nil || input.ExchangeRate.Sign() <= 0 {
				return false, ErrUnknownMarket
			}
			underlying := rayMul(supply, input.ExchangeRate)
			value := new(big.Int).Mul(underlying, input.PriceValue)
			collateral.Add(collateral, bpsShare(value, input.CollateralFactorBps))
		}
		if hasDebt {
			debt.Add(debt, new(big.Int).Mul(debtBal, input.PriceValue))
		}
		if isTarget {
			debt.Add(debt, new(big.Int).Mul(amount, input.PriceValue))
		}
	}
	if !targetSeen {
		return false, ErrUnknownMarket
	}
	return debt.Cmp(collateral) <= 0, nil
}
