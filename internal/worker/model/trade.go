package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TradeStatusSuccess = 1
	TradeStatusFailed  = 0
)

// Trade mapped from table <trades>
type Trade struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	ChainID     int64           `gorm:"column:chain_id;not null" json:"chain_id"`
	Wallet      string          `gorm:"column:wallet;not null;index:idx_trades_wallet;comment:钱包地址" json:"wallet"`
	TxHash      string          `gorm:"column:tx_hash;not null;uniqueIndex:uniq_trades_tx_hash" json:"tx_hash"`
	TokenIn     string          `gorm:"column:token_in;not null" json:"token_in"`
	TokenOut    string          `gorm:"column:token_out;not null" json:"token_out"`
	AmountIn    decimal.Decimal `gorm:"column:amount_in;type:numeric(78,0);comment:base units" json:"amount_in"`
	AmountOut   decimal.Decimal `gorm:"column:amount_out;type:numeric(78,0);comment:预期输出 base units" json:"amount_out"`
	TradeType   string          `gorm:"column:trade_type;not null;comment:buy/sell" json:"trade_type"`
	Status      int             `gorm:"column:status;not null" json:"status"`
	GasUsed     uint64          `gorm:"column:gas_used" json:"gas_used"`
	BlockNumber uint64          `gorm:"column:block_number" json:"block_number"`
	Payload     *datatypes.JSON `gorm:"column:payload;comment:报价快照" json:"payload"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName Trade's table name
func (*Trade) TableName() string {
	return "trades"
}

// TradeEvent kafka 消息体
type TradeEvent struct {
	ChainID     int64  `json:"chainId"`
	Wallet      string `json:"wallet"`
	TxHash      string `json:"txHash"`
	TokenIn     string `json:"tokenIn"`
	TokenOut    string `json:"tokenOut"`
	AmountIn    string `json:"amountIn"`
	AmountOut   string `json:"amountOut"`
	Side        string `json:"side"`
	Status      int    `json:"status"`
	GasUsed     uint64 `json:"gasUsed"`
	BlockNumber uint64 `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"` // 毫秒
}

func NewTradeEvent(t Trade) TradeEvent {
	return TradeEvent{
		ChainID:     t.ChainID,
		Wallet:      t.Wallet,
		TxHash:      t.TxHash,
		TokenIn:     t.TokenIn,
		TokenOut:    t.TokenOut,
		AmountIn:    t.AmountIn.String(),
		AmountOut:   t.AmountOut.String(),
		Side:        t.TradeType,
		Status:      t.Status,
		GasUsed:     t.GasUsed,
		BlockNumber: t.BlockNumber,
		Timestamp:   t.CreatedAt.UnixMilli(),
	}
}

// Volume mapped from table <volume_tracking>
type Volume struct {
	ID           int64           `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	TokenAddress string          `gorm:"column:token_address;not null;uniqueIndex:uniq_volume_token_date" json:"token_address"`
	Date         string          `gorm:"column:date;not null;uniqueIndex:uniq_volume_token_date;comment:UTC yyyy-mm-dd" json:"date"`
	VolumeNative decimal.Decimal `gorm:"column:volume_native;type:numeric(38,18);not null;default:0" json:"volume_native"`
	TradeCount   int64           `gorm:"column:trade_count;not null;default:0" json:"trade_count"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName Volume's table name
func (*Volume) TableName() string {
	return "volume_tracking"
}
