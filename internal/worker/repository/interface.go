package repository

import (
	"baseflow/pkg/elasticsearch"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type RedisClient = *redis.Client
type DBClient = *gorm.DB
type MQClient = *kafka.Writer

// Repository 持有外部客户端；未配置的组件返回 nil，调用方需跳过对应 sink
type Repository interface {
	GetRDB() RedisClient
	GetDB() DBClient
	GetMQ() MQClient
	GetES() *elasticsearch.Client
	GetEthClient() *ethclient.Client
	Close() error
}
