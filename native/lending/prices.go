package lending

import (
	"math/big"
	"strings"
	"sync"

	"lendfi/crypto"
)

// PriceRegistry holds the latest quote per asset, fed by the configured
// oracle identity. Quotes overwrite unconditionally; there is no protection
// against an older AsOfBlock replacing a newer one.
type PriceRegistry struct {
	mu     sync.RWMutex
	store  Storage
	oracle crypto.Address
}

// NewPriceRegistry constructs a registry persisting into store and accepting
// quotes only from oracle.
func NewPriceRegistry(store Storage, oracle crypto.Address) *PriceRegistry {
	return &PriceRegistry{store: store, oracle: oracle}
}

// UpsertPrice records the quote, replacing any existing one for the asset.
// Only the configured oracle may call it and the value must be positive.
func (r *PriceRegistry) UpsertPrice(caller crypto.Address, price *Price) error {
	if r == nil || r.store == nil {
		return errNilState
	}
	if !caller.Equal(r.oracle) {
		return ErrUnauthorized
	}
	if price == nil || strings.TrimSpace(price.AssetID) == "" {
		return ErrInvalidAmount
	}
	if price.Value == nil || price.Value.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset := strings.TrimSpace(price.AssetID)
	stored := storedPrice{
		AssetID:   asset,
		Value:     new(big.Int).Set(price.Value),
		AsOfBlock: price.AsOfBlock,
	}
	if price.Volatility != nil {
		stored.Volatility = new(big.Int).Set(price.Volatility)
	} else {
		stored.Volatility = big.NewInt(0)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.KVPut(assetKey(pricePrefix, asset), &stored)
}

// GetPrice returns the latest quote for the asset. Absence is a valid result,
// not an error.
func (r *PriceRegistry) GetPrice(assetID string) (*Price, bool, error) {
	if r == nil || r.store == nil {
		return nil, false, errNilState
	}
	asset := strings.TrimSpace(assetID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stored storedPrice
	ok, err := r.store.KVGet(assetKey(pricePrefix, asset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	price := &Price{
		AssetID:    stored.AssetID,
		Value:      stored.Value,
		Volatility: stored.Volatility,
		AsOfBlock:  stored.AsOfBlock,
	}
	return price, true, nil
}

// PricesForAssets performs a batch read. Assets without a quote are omitted
// from the result rather than reported as missing.
func (r *PriceRegistry) PricesForAssets(assetIDs []string) (map[string]*big.Int, error) {
	result := make(map[string]*big.Int, len(assetIDs))
	for _, asset := range assetIDs {
		price, ok, err := r.GetPrice(asset)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		result[price.AssetID] = price.Value
	}
	return result, nil
}
