package repository

import (
	"context"
	"strings"
	"time"

	"baseflow/internal/worker/config"
	"baseflow/pkg/database"
	"baseflow/pkg/elasticsearch"
	"baseflow/pkg/evm_client"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func New(cfg config.Config, logger *zap.Logger) Repository {
	r := &repositoryImpl{
		cfg:    cfg,
		logger: logger,
	}
	r.init()
	return r
}

type repositoryImpl struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *gorm.DB
	rdb       *redis.Client
	mq        *kafka.Writer
	es        *elasticsearch.Client
	ethClient *ethclient.Client
}

func (r *repositoryImpl) init() {
	var err error

	// rpc 是必需的
	r.ethClient, err = evm_client.Init(r.cfg.Chain.RpcUrl, r.cfg.Chain.ChainID)
	if err != nil {
		panic(err)
	}

	if strings.TrimSpace(r.cfg.Database.DSN) != "" {
		r.db, err = database.Open(r.cfg.Database.Driver, r.cfg.Database.DSN)
		if err != nil {
			panic(err)
		}
	} else {
		r.logger.Info("database dsn empty, skip database initialization")
	}

	if r.cfg.Redis.Address != "" {
		r.rdb = redis.NewClient(&redis.Options{
			Addr:     r.cfg.Redis.Address,
			Password: r.cfg.Redis.Password,
			DB:       r.cfg.Redis.DB,
			PoolSize: 20,
		})
		if err := r.rdb.Ping(context.Background()).Err(); err != nil {
			r.logger.Warn("failed to connect to redis, continue", zap.Error(err))
		}
	} else {
		r.logger.Info("redis address empty, skip redis initialization")
	}

	if strings.TrimSpace(r.cfg.Kafka.Brokers) != "" {
		brokers := strings.Split(r.cfg.Kafka.Brokers, ",")
		// 同步写入，发布失败需要返回给调用方
		r.mq = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
			MaxAttempts:  5,
			WriteTimeout: 2 * time.Second,
		}
	} else {
		r.logger.Info("kafka brokers empty, skip kafka initialization")
	}

	if len(r.cfg.Elasticsearch.Addresses) > 0 {
		r.es, err = elasticsearch.NewClient(elasticsearch.Config{
			Addresses: r.cfg.Elasticsearch.Addresses,
			Username:  r.cfg.Elasticsearch.Username,
			Password:  r.cfg.Elasticsearch.Password,
			Indexs: map[string]map[string]interface{}{
				r.cfg.Elasticsearch.ListingsIndexName: ListingsIndexMapping,
			},
		}, r.logger)
		if err != nil {
			r.logger.Warn("failed to create elasticsearch client, continue without it", zap.Error(err))
			r.es = nil
		}
	} else {
		r.logger.Info("elasticsearch addresses empty, skip elasticsearch initialization")
	}
}

// ListingsIndexMapping 新上线代币索引
var ListingsIndexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"chain_id":            map[string]interface{}{"type": "long"},
			"pool_address":        map[string]interface{}{"type": "keyword"},
			"token_address":       map[string]interface{}{"type": "keyword"},
			"token0":              map[string]interface{}{"type": "keyword"},
			"token1":              map[string]interface{}{"type": "keyword"},
			"symbol":              map[string]interface{}{"type": "text", "fields": map[string]interface{}{"raw": map[string]interface{}{"type": "keyword"}}},
			"name":                map[string]interface{}{"type": "text"},
			"fee_tier":            map[string]interface{}{"type": "integer"},
			"price_usd":           map[string]interface{}{"type": "double"},
			"market_cap_usd":      map[string]interface{}{"type": "double"},
			"ownership_renounced": map[string]interface{}{"type": "boolean"},
			"block_number":        map[string]interface{}{"type": "long"},
			"discovered_at":       map[string]interface{}{"type": "date", "format": "epoch_millis"},
		},
	},
}

func (r *repositoryImpl) GetRDB() *redis.Client {
	return r.rdb
}

func (r *repositoryImpl) GetDB() *gorm.DB {
	return r.db
}

func (r *repositoryImpl) GetMQ() MQClient {
	return r.mq
}

func (r *repositoryImpl) GetES() *elasticsearch.Client {
	return r.es
}

func (r *repositoryImpl) GetEthClient() *ethclient.Client {
	return r.ethClient
}

func (r *repositoryImpl) Close() error {
	if r.db != nil {
		sqlDB, _ := r.db.DB()
		sqlDB.Close()
	}
	if r.rdb != nil {
		r.rdb.Close()
	}
	if r.mq != nil {
		r.mq.Close()
	}
	if r.ethClient != nil {
		r.ethClient.Close()
	}
	return nil
}
