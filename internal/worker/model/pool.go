package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PoolEvent 每条 PoolCreated 日志产生一次，由回调消费，不被保留
type PoolEvent struct {
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	NewToken    string `json:"new_token"` // 排除 wrapped native 后的代币
	FeeTier     uint32 `json:"fee_tier"`
	TickSpacing int32  `json:"tick_spacing"`
	PoolAddress string `json:"pool_address"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint   `json:"log_index"`
}

// Listing 新上线代币，推送给下游
type Listing struct {
	ChainID      int64           `json:"chainId"`
	Pool         PoolEvent       `json:"pool"`
	Token        *TokenInfo      `json:"token,omitempty"` // 补全失败时为空
	DiscoveredAt int64           `json:"discoveredAt"`    // 毫秒
	PriceUsd     decimal.Decimal `json:"priceUsd"`
}

// Pool mapped from table <pools>
type Pool struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	ChainID     int64           `gorm:"column:chain_id;not null;uniqueIndex:uniq_pools_chain_address" json:"chain_id"`
	Address     string          `gorm:"column:address;not null;uniqueIndex:uniq_pools_chain_address;comment:pool地址" json:"address"`
	Tokens      pq.StringArray  `gorm:"column:tokens;type:text[];comment:token0,token1" json:"tokens"`
	NewToken    string          `gorm:"column:new_token;not null;index" json:"new_token"`
	Symbol      string          `gorm:"column:symbol" json:"symbol"`
	Name        string          `gorm:"column:name" json:"name"`
	FeeTier     uint32          `gorm:"column:fee_tier" json:"fee_tier"`
	PriceUsd    decimal.Decimal `gorm:"column:price_usd;type:numeric(38,18)" json:"price_usd"`
	BlockNumber uint64          `gorm:"column:block_number;comment:创建交易对的block号" json:"block_number"`
	TxHash      string          `gorm:"column:tx_hash;comment:创建交易对的hash" json:"tx_hash"`
	Payload     *datatypes.JSON `gorm:"column:payload;comment:原始事件" json:"payload"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName Pool's table name
func (*Pool) TableName() string {
	return "pools"
}
