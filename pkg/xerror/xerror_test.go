package xerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := Wrap(RpcUnavailable, errors.New("dial tcp: refused"), "block number")
	wrapped := fmt.Errorf("poll cycle: %w", base)

	assert.Equal(t, RpcUnavailable, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, RpcUnavailable))
	assert.True(t, errors.Is(wrapped, New(RpcUnavailable, "")))
	assert.False(t, errors.Is(wrapped, New(NoLiquidity, "")))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "no liquidity", New(NoLiquidity, "").Error())
	assert.Equal(t, "transaction reverted: status 0", New(TransactionReverted, "status 0").Error())
	assert.Equal(t, "rpc unavailable: send: boom", Wrap(RpcUnavailable, errors.New("boom"), "send").Error())
}
