package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultSymbol   = "UNKNOWN"
	DefaultName     = "Unknown Token"
	DefaultDecimals = uint8(18)
)

// TokenInfo 代币元数据及派生行情，获取后不可变
type TokenInfo struct {
	Address            string          `json:"address"`
	Symbol             string          `json:"symbol"`
	Name               string          `json:"name"`
	Decimals           uint8           `json:"decimals"`
	TotalSupply        decimal.Decimal `json:"total_supply"` // 已处理精度
	OwnershipRenounced bool            `json:"ownership_renounced"`

	PriceUsd      decimal.Decimal `json:"price_usd"`
	MarketCapUsd  decimal.Decimal `json:"market_cap_usd"`
	NativePrice   decimal.Decimal `json:"native_price_usd"`
	LowConfidence bool            `json:"low_confidence"` // 原生币价格来自兜底常量
	FetchedAt     time.Time       `json:"fetched_at"`
}

// NativePrice 原生币 USD 价格
type NativePrice struct {
	Usd           decimal.Decimal
	Source        string
	LowConfidence bool
}
