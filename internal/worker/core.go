package worker

import (
	"context"
	"errors"
	"time"

	"baseflow/internal/worker/config"
	"baseflow/internal/worker/dao"
	"baseflow/internal/worker/discovery"
	"baseflow/internal/worker/job"
	"baseflow/internal/worker/model"
	"baseflow/internal/worker/monitor"
	"baseflow/internal/worker/repository"
	"baseflow/internal/worker/service"
	"baseflow/internal/worker/writer"
	"baseflow/internal/worker/writer/listing"
	"baseflow/internal/worker/writer/trade"
	"baseflow/internal/worker/writer/volume"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Core struct {
	cfg       config.Config
	tl        *zap.Logger
	repo      repository.Repository
	scheduler *job.Scheduler
	metrics   *monitor.MetricsServer

	Engine   *Engine
	Listings *service.ListingService
	monitor  *discovery.Monitor

	tradeWriter  *writer.AsyncBatchWriter[model.Trade]
	volumeWriter *writer.AsyncBatchWriter[model.Volume]
}

func New(cfg config.Config, logger *zap.Logger) *Core {
	// 初始化作业调度器
	scheduler := job.NewScheduler(logger)

	// 初始化repo
	repo := repository.New(cfg, logger)
	daos := dao.NewDAOManager(repo.GetDB(), repo.GetRDB(), cfg.Chain.ChainID, cfg.Discovery.SeenTTL)

	c := &Core{
		cfg:       cfg,
		repo:      repo,
		tl:        logger,
		scheduler: scheduler,
		metrics:   monitor.NewMetricsServer(cfg.Monitor, logger),
	}

	// 成交记录：异步写入，不阻塞兑换
	var trades service.Submitter[model.Trade]
	var volumes service.Submitter[model.Volume]
	var tradeSinks []writer.BatchWriter[model.Trade]
	if db := repo.GetDB(); db != nil {
		tradeSinks = append(tradeSinks, trade.NewDbTradeWriter(db, logger))
	}
	if mq := repo.GetMQ(); mq != nil {
		tradeSinks = append(tradeSinks, trade.NewKafkaTradeWriter(mq, logger, cfg.Kafka.TopicTrade))
	}
	if len(tradeSinks) > 0 {
		c.tradeWriter = writer.NewAsyncBatchWriter(logger, writer.Multi(tradeSinks...), 100, 500*time.Millisecond, "trade_writer", 1)
		trades = c.tradeWriter
	}
	if daos.VolumeDAO != nil {
		c.volumeWriter = writer.NewAsyncBatchWriter(logger, volume.NewDbVolumeWriter(daos.VolumeDAO, logger), 100, time.Second, "volume_writer", 1)
		volumes = c.volumeWriter
	}

	c.Engine = NewEngine(cfg, repo.GetEthClient(), service.NewTradeRecorder(trades, volumes, logger), logger)

	// 新池子推送，同步写入，全部成功才标记已见
	var listingSinks []writer.BatchWriter[model.Listing]
	if db := repo.GetDB(); db != nil {
		listingSinks = append(listingSinks, listing.NewDbPoolWriter(db, logger))
	}
	if mq := repo.GetMQ(); mq != nil {
		listingSinks = append(listingSinks, listing.NewKafkaListingWriter(mq, logger, cfg.Kafka.TopicListing))
	}
	if rdb := repo.GetRDB(); rdb != nil {
		listingSinks = append(listingSinks, listing.NewRedisListingPublisher(rdb, logger))
	}
	if es := repo.GetES(); es != nil {
		listingSinks = append(listingSinks, listing.NewESListingWriter(es, logger, cfg.Elasticsearch.ListingsIndexName))
	}
	var listingSink writer.BatchWriter[model.Listing]
	if len(listingSinks) > 0 {
		listingSink = writer.Multi(listingSinks...)
	}
	c.Listings = service.NewListingService(int64(cfg.Chain.ChainID), daos.SeenPoolDAO, c.Engine.Tokens, listingSink, cfg.Discovery.EnrichTimeout, logger)

	if cfg.Discovery.Enable {
		c.monitor = discovery.NewMonitor(c.Engine.Chain, c.Listings, discovery.Config{
			Factory:       common.HexToAddress(cfg.Chain.Factory),
			WrappedNative: common.HexToAddress(cfg.Chain.WrappedNative),
			PollInterval:  cfg.Discovery.PollInterval,
			ErrorBackoff:  cfg.Discovery.ErrorBackoff,
			MaxBlockRange: cfg.Discovery.MaxBlockRange,
		}, logger)
		scheduler.RegisterOnceJob("pool_discovery", c.runMonitor)

		// 每小时清理已见集合
		cleanup := job.NewSeenPoolCleanup(daos.SeenPoolDAO, cfg.Discovery.SeenTTL, logger)
		scheduler.RegisterJob("seen_pool_cleanup", time.Hour, cleanup.Run)
	}

	return c
}

func (c *Core) runMonitor(ctx context.Context) error {
	err := c.monitor.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, discovery.ErrMonitorStopped) {
		return nil
	}
	return err
}

func (c *Core) Start(ctx context.Context) {
	c.tl.Info("Starting worker core...")
	// 启动监控服务
	if c.metrics != nil {
		c.metrics.Run()
	}

	c.StartWriters()

	// 启动调度器
	c.scheduler.Start(ctx)
	c.tl.Info("Worker started successfully")

	// 等待外部关闭信号
	<-ctx.Done()
	c.tl.Info("Shutting down worker due to context cancellation...")
}

// StartWriters 启动成交写入器，独立于 ctx，Stop 时刷出剩余数据
func (c *Core) StartWriters() {
	if c.tradeWriter != nil {
		c.tradeWriter.Start(context.Background())
	}
	if c.volumeWriter != nil {
		c.volumeWriter.Start(context.Background())
	}
}

func (c *Core) Repository() repository.Repository {
	return c.repo
}

// Stop 优雅关闭 Core 的所有资源
func (c *Core) Stop(ctx context.Context) {
	c.tl.Info("Stopping worker core...")

	if c.monitor != nil {
		c.monitor.Stop()
	}

	// 停止调度器
	if c.scheduler != nil {
		c.scheduler.Stop(ctx)
	}

	if c.tradeWriter != nil {
		c.tradeWriter.Close()
	}
	if c.volumeWriter != nil {
		c.volumeWriter.Close()
	}

	// 停止 Prometheus 监控服务
	if c.metrics != nil {
		_ = c.metrics.Stop(ctx)
	}

	c.Engine.Close()
	_ = c.repo.Close()

	c.tl.Info("Worker core stopped.")
}
