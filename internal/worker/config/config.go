package config

import (
	"errors"
	"fmt"
	"time"

	"baseflow/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config 定义整个配置的结构
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Chain         ChainConfig         `mapstructure:"chain"`
	Swap          SwapConfig          `mapstructure:"swap"`
	Discovery     DiscoveryConfig     `mapstructure:"discovery"`
	Oracle        OracleConfig        `mapstructure:"oracle"`
	Token         TokenConfig         `mapstructure:"token"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Monitor       MonitorConfig       `mapstructure:"monitor"`
}

// LogConfig Log 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ChainConfig 链与合约地址
type ChainConfig struct {
	RpcUrl        string `mapstructure:"rpc_url"`
	ChainID       uint64 `mapstructure:"chain_id"`
	WrappedNative string `mapstructure:"wrapped_native"`
	Quoter        string `mapstructure:"quoter"`
	Router        string `mapstructure:"router"`
	Factory       string `mapstructure:"factory"`
	PriceFeed     string `mapstructure:"price_feed"`
	RateLimit     int    `mapstructure:"rate_limit"` // 每秒请求数，0 不限速
	NativeSymbol  string `mapstructure:"native_symbol"`
}

type SwapConfig struct {
	DeadlineOffset      time.Duration `mapstructure:"deadline_offset"`
	SwapGasLimit        uint64        `mapstructure:"swap_gas_limit"`
	ApproveGasLimit     uint64        `mapstructure:"approve_gas_limit"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	DefaultFeeTier      uint32        `mapstructure:"default_fee_tier"`
	DefaultSlippageBps  uint32        `mapstructure:"default_slippage_bps"`
}

type DiscoveryConfig struct {
	Enable        bool          `mapstructure:"enable"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ErrorBackoff  time.Duration `mapstructure:"error_backoff"`
	MaxBlockRange uint64        `mapstructure:"max_block_range"`
	SeenTTL       time.Duration `mapstructure:"seen_ttl"`
	EnrichTimeout time.Duration `mapstructure:"enrich_timeout"`
}

type OracleConfig struct {
	FallbackPrice float64       `mapstructure:"fallback_price"`
	CmcBaseURL    string        `mapstructure:"cmc_base_url"`
	CmcAPIKey     string        `mapstructure:"cmc_api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RateLimit     int           `mapstructure:"rate_limit"` // 每分钟请求数
}

type TokenConfig struct {
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	PriceSampleEth string        `mapstructure:"price_sample_eth"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers      string `mapstructure:"brokers"`
	TopicTrade   string `mapstructure:"topic_trade"`
	TopicListing string `mapstructure:"topic_listing"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig 交易记录库，driver 支持 postgres / mysql
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ElasticsearchConfig struct {
	Addresses         []string `mapstructure:"addresses"`
	Username          string   `mapstructure:"username"`
	Password          string   `mapstructure:"password"`
	ListingsIndexName string   `mapstructure:"listings_index_name"`
}

type MonitorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
}

// Default Base 主网默认配置
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Chain: ChainConfig{
			RpcUrl:        "https://mainnet.base.org",
			ChainID:       8453,
			WrappedNative: "0x4200000000000000000000000000000000000006",
			Quoter:        "0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a",
			Factory:       "0x33128a8fC17869897dcE68Ed026d694621f6FDfD",
			PriceFeed:     "0x71041dddad3595F9CEd3DcCFBe3D1F4b0a16Bb70",
			NativeSymbol:  "ETH",
		},
		Swap: SwapConfig{
			DeadlineOffset:      300 * time.Second,
			SwapGasLimit:        400000,
			ApproveGasLimit:     100000,
			ReceiptTimeout:      120 * time.Second,
			ReceiptPollInterval: 2 * time.Second,
			DefaultFeeTier:      3000,
			DefaultSlippageBps:  50,
		},
		Discovery: DiscoveryConfig{
			Enable:        true,
			PollInterval:  15 * time.Second,
			ErrorBackoff:  30 * time.Second,
			SeenTTL:       24 * time.Hour,
			EnrichTimeout: 10 * time.Second,
		},
		Oracle: OracleConfig{
			FallbackPrice: 3000,
			CmcBaseURL:    "https://pro-api.coinmarketcap.com",
			Timeout:       5 * time.Second,
			RateLimit:     30,
		},
		Token: TokenConfig{
			CacheTTL:       30 * time.Second,
			PriceSampleEth: "0.1",
		},
		Kafka: KafkaConfig{
			TopicTrade:   "baseflow.trade",
			TopicListing: "baseflow.listing",
		},
		Database: DatabaseConfig{Driver: "postgres"},
	}
}

// Validate 校验链配置
func (c Config) Validate() error {
	if c.Chain.RpcUrl == "" {
		return errors.New("chain.rpc_url is required")
	}
	for name, addr := range map[string]string{
		"chain.wrapped_native": c.Chain.WrappedNative,
		"chain.quoter":         c.Chain.Quoter,
		"chain.factory":        c.Chain.Factory,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %q", name, addr)
		}
	}
	if c.Chain.Router != "" && !common.IsHexAddress(c.Chain.Router) {
		return fmt.Errorf("chain.router is not a valid address: %q", c.Chain.Router)
	}
	if c.Swap.DefaultSlippageBps > 10000 {
		return fmt.Errorf("swap.default_slippage_bps out of range: %d", c.Swap.DefaultSlippageBps)
	}
	return nil
}

func InitConfig() Config {
	config := Default()

	viper.SetConfigName("config.worker")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config/")

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}

	if err := decode(viper.AllSettings(), &config); err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid config: %s", err))
	}

	return config
}

func decode(settings map[string]any, out *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(settings)
}

func WatchConfig(config *Config) {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := InitConfig()
		*config = newConfig
		logger.SetLogLevel(config.Log.Level)
	})
}
