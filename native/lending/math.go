package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	ray         = big.NewInt(1_000_000_000_000_000_000)
)

// Ray returns the fixed-point scale used for exchange rates (1e18).
func Ray() *big.Int { return new(big.Int).Set(ray) }

// rayMul computes a*b/ray, the product of an amount and a ray-scaled rate.
func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	result := new(big.Int).Mul(a, b)
	return result.Quo(result, ray)
}

// bpsShare computes amount*bps/10_000.
func bpsShare(amount *big.Int, bps uint64) *big.Int {
	if amount == nil || amount.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return share.Quo(share, basisPoints)
}

// deriveExchangeRate converts the market accounting into the ray-scaled
// claim-unit redemption rate:
//
//	rate = (cash + borrows - reserves) * ray / totalSupply
//
// falling back to the configured initial rate while no claim units exist.
func deriveExchangeRate(m *MarketState, initial *big.Int) *big.Int {
	if initial == nil || initial.Sign() <= 0 {
		initial = ray
	}
	if m == nil || m.TotalSupply == nil || m.TotalSupply.Sign() == 0 {
		return new(big.Int).Set(initial)
	}
	underlying := new(big.Int).Add(m.TotalCash, m.TotalBorrow)
	underlying.Sub(underlying, m.TotalReserve)
	if underlying.Sign() <= 0 {
		return big.NewInt(0)
	}
	rate := new(big.Int).Mul(underlying, ray)
	return rate.Quo(rate, m.TotalSupply)
}

// minBig returns the smaller of a and b without aliasing either.
func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
