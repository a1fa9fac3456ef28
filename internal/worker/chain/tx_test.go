package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignTxRecoversSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	chainID := big.NewInt(8453)
	router := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	raw, hash, err := SignTx(key, chainID, TxParams{
		Nonce:    7,
		To:       router,
		Value:    big.NewInt(100),
		GasLimit: 400000,
		GasPrice: big.NewInt(2_000_000_000),
		Data:     []byte{0x01, 0x02},
	})
	require.NoError(t, err)

	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(raw))
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(400000), tx.Gas())
	assert.Equal(t, router, *tx.To())
	assert.Equal(t, 0, tx.Value().Cmp(big.NewInt(100)))

	from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), from)
}

func TestSignTxNilValue(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	raw, _, err := SignTx(key, big.NewInt(1), TxParams{GasLimit: 100000, GasPrice: big.NewInt(1)})
	require.NoError(t, err)

	tx := new(types.Transaction)
	require.NoError(t, tx.UnmarshalBinary(raw))
	assert.Equal(t, 0, tx.Value().Sign())
}
