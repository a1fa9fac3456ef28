package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"baseflow/pkg/xerror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ethService 进程内 eth 命名空间，只实现用到的方法
type ethService struct {
	sendErr error
}

func (s *ethService) BlockNumber() (hexutil.Uint64, error) {
	return hexutil.Uint64(105), nil
}

func (s *ethService) Call(args map[string]interface{}, block string) (hexutil.Bytes, error) {
	return nil, errors.New("execution reverted: STF")
}

func (s *ethService) SendRawTransaction(data hexutil.Bytes) (common.Hash, error) {
	if s.sendErr != nil {
		return common.Hash{}, s.sendErr
	}
	return common.BytesToHash([]byte{0xab}), nil
}

func (s *ethService) GetTransactionReceipt(hash common.Hash) (map[string]interface{}, error) {
	return nil, nil
}

func newInProcClient(t *testing.T, svc *ethService) *EthClient {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	t.Cleanup(server.Stop)

	rc := rpc.DialInProc(server)
	return NewEthClient(ethclient.NewClient(rc), zap.NewNop(), WithRateLimit(100), WithReceiptPollInterval(10*time.Millisecond))
}

func TestEthClientBlockNumber(t *testing.T) {
	c := newInProcClient(t, &ethService{})
	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(105), n)
}

func TestEthClientCallRevert(t *testing.T) {
	c := newInProcClient(t, &ethService{})
	_, err := c.Call(context.Background(), common.HexToAddress("0x01"), []byte{0x01, 0x02, 0x03, 0x04})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCallReverted)
	assert.True(t, IsReverted(err))
}

func TestEthClientSendClassification(t *testing.T) {
	c := newInProcClient(t, &ethService{})
	hash, err := c.SendRawTransaction(context.Background(), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, common.BytesToHash([]byte{0xab}), hash)

	c = newInProcClient(t, &ethService{sendErr: errors.New("insufficient funds for gas * price + value")})
	_, err = c.SendRawTransaction(context.Background(), []byte{0x01})
	assert.True(t, xerror.IsKind(err, xerror.InsufficientBalance))

	c = newInProcClient(t, &ethService{sendErr: errors.New("nonce too low")})
	_, err = c.SendRawTransaction(context.Background(), []byte{0x01})
	assert.True(t, xerror.IsKind(err, xerror.SubmissionRejected))
}

func TestEthClientReceiptTimeout(t *testing.T) {
	c := newInProcClient(t, &ethService{})
	_, err := c.WaitForReceipt(context.Background(), common.HexToHash("0x01"), 50*time.Millisecond)
	require.Error(t, err)
	assert.True(t, xerror.IsKind(err, xerror.ConfirmationTimeout))
}

func TestIsReverted(t *testing.T) {
	assert.False(t, IsReverted(nil))
	assert.True(t, IsReverted(ErrCallReverted))
	assert.True(t, IsReverted(errors.New("VM Exception: Revert")))
	assert.False(t, IsReverted(errors.New("connection refused")))
}

func TestReceiptSucceeded(t *testing.T) {
	var nilReceipt *Receipt
	assert.False(t, nilReceipt.Succeeded())
	assert.True(t, (&Receipt{Status: ReceiptStatusSuccessful}).Succeeded())
	assert.False(t, (&Receipt{Status: ReceiptStatusFailed}).Succeeded())
}
