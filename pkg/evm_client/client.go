package evm_client

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Init evm client，chainID 非 0 时校验节点所在链
func Init(rawurl string, chainID uint64) (*ethclient.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc %s: %w", rawurl, err)
	}
	if chainID == 0 {
		return client, nil
	}

	id, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if id.Uint64() != chainID {
		client.Close()
		return nil, fmt.Errorf("rpc %s serves chain %d, expected %d", rawurl, id.Uint64(), chainID)
	}
	return client, nil
}
