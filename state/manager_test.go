package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lendfi/storage"
)

type sampleRecord struct {
	Asset  string
	Amount *big.Int
	Height uint64
}

func TestManagerRoundTrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	in := sampleRecord{Asset: "ETH", Amount: big.NewInt(2000), Height: 10}
	require.NoError(t, manager.KVPut([]byte("prices/ETH"), &in))

	var out sampleRecord
	ok, err := manager.KVGet([]byte("prices/ETH"), &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, in.Asset, out.Asset)
	require.Zero(t, in.Amount.Cmp(out.Amount))
	require.Equal(t, in.Height, out.Height)
}

func TestManagerMissingKey(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	var out sampleRecord
	ok, err := manager.KVGet([]byte("prices/BTC"), &out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerOverwrite(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	key := []byte("prices/ETH")

	require.NoError(t, manager.KVPut(key, &sampleRecord{Asset: "ETH", Amount: big.NewInt(1), Height: 1}))
	require.NoError(t, manager.KVPut(key, &sampleRecord{Asset: "ETH", Amount: big.NewInt(2), Height: 2}))

	var out sampleRecord
	ok, err := manager.KVGet(key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, out.Amount.Cmp(big.NewInt(2)))
}

func TestManagerDelete(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	key := []byte("prices/ETH")

	require.NoError(t, manager.KVPut(key, &sampleRecord{Asset: "ETH", Amount: big.NewInt(1), Height: 1}))
	require.NoError(t, manager.KVDelete(key))

	var out sampleRecord
	ok, err := manager.KVGet(key, &out)
	require.NoError(t, err)
	require.False(t, ok)
}
