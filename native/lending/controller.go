package lending

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"lendfi/crypto"
)

// MarketView exposes the single piece of live market state the risk gate
// needs from each ledger: the current claim-unit redemption rate.
type MarketView interface {
	ExchangeRate() (*big.Int, error)
}

// Controller is the market registry and risk gate coordinating all market
// ledgers. It owns the price registry, the admin pause flags, and the
// cross-market position mirrors registered ledgers report into.
type Controller struct {
	mu     sync.RWMutex
	store  Storage
	owner  crypto.Address
	oracle crypto.Address
	prices *PriceRegistry
	pauses ActionStatus
	assets []string
	views  map[string]MarketView
}

// NewController initialises the controller against the persisted state,
// loading any pause flags and market index written by a prior run.
func NewController(store Storage, owner, oracle crypto.Address) (*Controller, error) {
	if store == nil {
		return nil, errNilState
	}
	c := &Controller{
		store:  store,
		owner:  owner,
		oracle: oracle,
		prices: NewPriceRegistry(store, oracle),
		views:  make(map[string]MarketView),
	}
	var pauses storedActionStatus
	ok, err := store.KVGet(pausesKey, &pauses)
	if err != nil {
		return nil, err
	}
	if ok {
		c.pauses = ActionStatus(pauses)
	}
	var index storedMarketIndex
	ok, err = store.KVGet(marketIndexKey, &index)
	if err != nil {
		return nil, err
	}
	if ok {
		c.assets = append(c.assets, index.Assets...)
	}
	return c, nil
}

// Prices returns the controller-owned price registry.
func (c *Controller) Prices() *PriceRegistry {
	return c.prices
}

// IsPaused implements common.PauseView for the market ledgers.
func (c *Controller) IsPaused(action string) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pauses.IsPaused(action)
}

// SetActionPaused flips one pause flag. Owner only; the flags persist across
// restarts.
func (c *Controller) SetActionPaused(caller crypto.Address, action string, paused bool) error {
	if c == nil || c.store == nil {
		return errNilState
	}
	if !caller.Equal(c.owner) {
		return ErrUnauthorized
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch action {
	case ActionWithdraw:
		c.pauses.Withdraw = paused
	case ActionRepay:
		c.pauses.Repay = paused
	case ActionSupply:
		c.pauses.Supply = paused
	case ActionLiquidate:
		c.pauses.Liquidate = paused
	case ActionBorrow:
		c.pauses.Borrow = paused
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidAmount, action)
	}
	stored := storedActionStatus(c.pauses)
	return c.store.KVPut(pausesKey, &stored)
}

// RegisterMarket records the asset -> ledger mapping. Owner only; the map is
// append-mostly and re-registering an asset is rejected.
func (c *Controller) RegisterMarket(caller crypto.Address, asset string, ledger crypto.Address, collateralFactorBps uint64) error {
	if c == nil || c.store == nil {
		return errNilState
	}
	if !caller.Equal(c.owner) {
		return ErrUnauthorized
	}
	asset = strings.TrimSpace(asset)
	if asset == "" || ledger.IsZero() {
		return fmt.Errorf("%w: asset and ledger address required", ErrInvalidAmount)
	}
	if collateralFactorBps > 10_000 {
		return fmt.Errorf("%w: collateral factor exceeds 100%%", ErrInvalidAmount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var existing storedMarketInfo
	ok, err := c.store.KVGet(assetKey(marketInfoPrefix, asset), &existing)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("market %s already registered", asset)
	}
	stored := storedMarketInfo{
		Asset:               asset,
		LedgerPrefix:        string(ledger.Prefix()),
		LedgerBytes:         append([]byte(nil), ledger.Bytes()...),
		CollateralFactorBps: collateralFactorBps,
	}
	if err := c.store.KVPut(assetKey(marketInfoPrefix, asset), &stored); err != nil {
		return err
	}
	if err := c.store.KVPut(addressKey(marketAddrPrefix, ledger), asset); err != nil {
		return err
	}
	c.assets = append(c.assets, asset)
	index := storedMarketIndex{Assets: c.assets}
	return c.store.KVPut(marketIndexKey, &index)
}

// AttachMarketView wires the live exchange-rate source for a registered
// market. Views are process-local and re-attached on restart.
func (c *Controller) AttachMarketView(asset string, view MarketView) {
	if c == nil || view == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[strings.TrimSpace(asset)] = view
}

// MarketByAsset resolves a registered market by asset symbol.
func (c *Controller) MarketByAsset(asset string) (*MarketInfo, bool, error) {
	if c == nil || c.store == nil {
		return nil, false, errNilState
	}
	var stored storedMarketInfo
	ok, err := c.store.KVGet(assetKey(marketInfoPrefix, strings.TrimSpace(asset)), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	info, err := marketInfoFromStored(&stored)
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

// MarketByAddress resolves a registered market by its ledger address.
func (c *Controller) MarketByAddress(addr crypto.Address) (*MarketInfo, bool, error) {
	if c == nil || c.store == nil {
		return nil, false, errNilState
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.marketByAddress(addr)
}

func (c *Controller) marketByAddress(addr crypto.Address) (*MarketInfo, bool, error) {
	var asset string
	ok, err := c.store.KVGet(addressKey(marketAddrPrefix, addr), &asset)
	if err != nil || !ok {
		return nil, false, err
	}
	return c.marketByAssetLocked(asset)
}

func (c *Controller) marketByAssetLocked(asset string) (*MarketInfo, bool, error) {
	var stored storedMarketInfo
	ok, err := c.store.KVGet(assetKey(marketInfoPrefix, asset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	info, err := marketInfoFromStored(&stored)
	if err != nil {
		return nil, false, err
	}
	return info, true, nil
}

func marketInfoFromStored(stored *storedMarketInfo) (*MarketInfo, error) {
	ledger, err := crypto.NewAddress(crypto.AddressPrefix(stored.LedgerPrefix), stored.LedgerBytes)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", stored.Asset, err)
	}
	return &MarketInfo{
		Asset:               stored.Asset,
		Ledger:              ledger,
		CollateralFactorBps: stored.CollateralFactorBps,
	}, nil
}

// SupplyOf returns the mirrored supply position for an account in a market.
func (c *Controller) SupplyOf(asset string, account crypto.Address) (*big.Int, error) {
	return c.mirrorBalance(mirrorSupplyPrefix, asset, account)
}

// BorrowOf returns the mirrored debt position for an account in a market.
func (c *Controller) BorrowOf(asset string, account crypto.Address) (*big.Int, error) {
	return c.mirrorBalance(mirrorBorrowPrefix, asset, account)
}

func (c *Controller) mirrorBalance(prefix []byte, asset string, account crypto.Address) (*big.Int, error) {
	if c == nil || c.store == nil {
		return nil, errNilState
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var stored storedBalance
	ok, err := c.store.KVGet(positionKey(prefix, strings.TrimSpace(asset), account), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || stored.Amount == nil {
		return big.NewInt(0), nil
	}
	return stored.Amount, nil
}

// IncreaseSupply implements PositionSink. Only registered ledgers may report.
func (c *Controller) IncreaseSupply(caller, account crypto.Address, amount *big.Int) error {
	return c.adjustMirror(mirrorSupplyPrefix, caller, account, amount, true)
}

// DecreaseSupply implements PositionSink.
func (c *Controller) DecreaseSupply(caller, account crypto.Address, amount *big.Int) error {
	return c.adjustMirror(mirrorSupplyPrefix, caller, account, amount, false)
}

// IncreaseBorrow implements PositionSink.
func (c *Controller) IncreaseBorrow(caller, account crypto.Address, amount *big.Int) error {
	return c.adjustMirror(mirrorBorrowPrefix, caller, account, amount, true)
}

// DecreaseBorrow implements PositionSink.
func (c *Controller) DecreaseBorrow(caller, account crypto.Address, amount *big.Int) error {
	return c.adjustMirror(mirrorBorrowPrefix, caller, account, amount, false)
}

func (c *Controller) adjustMirror(prefix []byte, caller, account crypto.Address, amount *big.Int, increase bool) error {
	if c == nil || c.store == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok, err := c.marketByAddress(caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	key := positionKey(prefix, info.Asset, account)
	var stored storedBalance
	if _, err := c.store.KVGet(key, &stored); err != nil {
		return err
	}
	if stored.Amount == nil {
		stored.Amount = big.NewInt(0)
	}
	if increase {
		stored.Amount = new(big.Int).Add(stored.Amount, amount)
	} else {
		next := new(big.Int).Sub(stored.Amount, amount)
		// A decrease below zero means the mirror diverged from the
		// reporting ledger.
		if next.Sign() < 0 {
			return fmt.Errorf("%w: mirror position below zero for %s", ErrInconsistentState, info.Asset)
		}
		stored.Amount = next
	}
	return c.store.KVPut(key, &stored)
}

// BorrowAllowed is the risk gate: it prices the account's mirrored positions
// across every registered market and approves the borrow only when projected
// debt value stays within collateral value. Assets the account touches must
// have a quote; a missing quote denies rather than skipping the asset.
func (c *Controller) BorrowAllowed(ctx context.Context, market, account crypto.Address, amount *big.Int) (bool, error) {
	if c == nil || c.store == nil {
		return false, errNilState
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return false, ErrInvalidAmount
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	target, ok, err := c.marketByAddress(market)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrUnknownMarket
	}
	inputs := make([]CollateralInput, 0, len(c.assets))
	for _, asset := range c.assets {
		info, ok, err := c.marketByAssetLocked(asset)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("%w: indexed market %s missing", ErrInconsistentState, asset)
		}
		input := CollateralInput{Asset: asset, CollateralFactorBps: info.CollateralFactorBps}

		var supply storedBalance
		if _, err := c.store.KVGet(positionKey(mirrorSupplyPrefix, asset, account), &supply); err != nil {
			return false, err
		}
		input.SupplyBalance = supply.Amount
		var debt storedBalance
		if _, err := c.store.KVGet(positionKey(mirrorBorrowPrefix, asset, account), &debt); err != nil {
			return false, err
		}
		input.DebtBalance = debt.Amount

		touched := (input.SupplyBalance != nil && input.SupplyBalance.Sign() > 0) ||
			(input.DebtBalance != nil && input.DebtBalance.Sign() > 0) ||
			asset == target.Asset
		if !touched {
			continue
		}

		var quote storedPrice
		ok, err = c.store.KVGet(assetKey(pricePrefix, asset), &quote)
		if err != nil {
			return false, err
		}
		if ok {
			input.PriceValue = quote.Value
		}

		if view, ok := c.views[asset]; ok {
			rate, err := view.ExchangeRate()
			if err != nil {
				return false, err
			}
			input.ExchangeRate = rate
		}
		inputs = append(inputs, input)
	}
	return evaluateBorrow(inputs, target.Asset, amount)
}
