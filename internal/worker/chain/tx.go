package chain

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxParams 交易构建参数，gas 为静态上限
type TxParams struct {
	Nonce    uint64
	To       common.Address
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Data     []byte
}

// SignTx 构建并签名 legacy 交易，返回原始字节与哈希
func SignTx(key *ecdsa.PrivateKey, chainID *big.Int, p TxParams) ([]byte, common.Hash, error) {
	value := p.Value
	if value == nil {
		value = new(big.Int)
	}
	to := p.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    p.Nonce,
		GasPrice: p.GasPrice,
		Gas:      p.GasLimit,
		To:       &to,
		Value:    value,
		Data:     p.Data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, common.Hash{}, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, common.Hash{}, err
	}
	return raw, signed.Hash(), nil
}
