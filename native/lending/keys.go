package lending

import (
	"math/big"

	"lendfi/crypto"
)

// Storage abstracts the subset of state manager functionality the lending
// components require. Partitions are expressed as key prefixes.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	marketStatePrefix  = []byte("lending/market/")
	supplyPrefix       = []byte("lending/supplies/")
	borrowPrefix       = []byte("lending/borrows/")
	pricePrefix        = []byte("controller/prices/")
	marketInfoPrefix   = []byte("controller/markets/")
	marketAddrPrefix   = []byte("controller/marketaddr/")
	mirrorSupplyPrefix = []byte("controller/supplies/")
	mirrorBorrowPrefix = []byte("controller/borrows/")
	marketIndexKey     = []byte("controller/markets/index")
	pausesKey          = []byte("controller/pauses")
)

func assetKey(prefix []byte, asset string) []byte {
	buf := make([]byte, 0, len(prefix)+len(asset))
	buf = append(buf, prefix...)
	return append(buf, asset...)
}

func addressKey(prefix []byte, addr crypto.Address) []byte {
	encoded := addr.String()
	buf := make([]byte, 0, len(prefix)+len(encoded))
	buf = append(buf, prefix...)
	return append(buf, encoded...)
}

func positionKey(prefix []byte, asset string, addr crypto.Address) []byte {
	encoded := addr.String()
	buf := make([]byte, 0, len(prefix)+len(asset)+1+len(encoded))
	buf = append(buf, prefix...)
	buf = append(buf, asset...)
	buf = append(buf, '/')
	return append(buf, encoded...)
}

// storedBalance wraps a single big.Int position so records stay RLP-friendly.
type storedBalance struct {
	Amount *big.Int
}

// storedPrice is the persisted representation of a Price quote.
type storedPrice struct {
	AssetID    string
	Value      *big.Int
	Volatility *big.Int
	AsOfBlock  uint64
}

// storedMarketInfo is the persisted representation of a market registration.
type storedMarketInfo struct {
	Asset               string
	LedgerPrefix        string
	LedgerBytes         []byte
	CollateralFactorBps uint64
}

// storedMarketState is the persisted representation of MarketState.
type storedMarketState struct {
	TotalSupply  *big.Int
	TotalBorrow  *big.Int
	TotalReserve *big.Int
	TotalCash    *big.Int
}

// storedActionStatus is the persisted representation of the pause flags.
type storedActionStatus struct {
	Withdraw  bool
	Repay     bool
	Supply    bool
	Liquidate bool
	Borrow    bool
}

// storedMarketIndex lists the registered asset symbols in registration order.
type storedMarketIndex struct {
	Assets []string
}
