package dao

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"baseflow/internal/worker/model"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestMemorySeenPoolDAO(t *testing.T) {
	ctx := context.Background()
	d := NewMemorySeenPoolDAO(time.Hour)

	seen, err := d.IsSeen(ctx, "0xABCDEF0000000000000000000000000000000001")
	require.NoError(t, err)
	assert.False(t, seen)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, d.MarkSeen(ctx, "0xABCDEF0000000000000000000000000000000001", old))
	require.NoError(t, d.MarkSeen(ctx, "0x0000000000000000000000000000000000000002", time.Now()))

	// 地址大小写不敏感
	seen, err = d.IsSeen(ctx, "0xabcdef0000000000000000000000000000000001")
	require.NoError(t, err)
	assert.True(t, seen)

	n, err := d.Trim(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	seen, _ = d.IsSeen(ctx, "0xabcdef0000000000000000000000000000000001")
	assert.False(t, seen)
	seen, _ = d.IsSeen(ctx, "0x0000000000000000000000000000000000000002")
	assert.True(t, seen)
}

func localRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("BASEFLOW_TEST_REDIS")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisSeenPoolDAO(t *testing.T) {
	rdb := localRedis(t)
	ctx := context.Background()
	chainID := uint64(time.Now().UnixNano() % 1_000_000)
	d := NewSeenPoolDAO(rdb, chainID)
	t.Cleanup(func() { rdb.Del(context.Background(), "baseflow:seen_pools:"+itoa(chainID)) })

	seen, err := d.IsSeen(ctx, "0xPOOL1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.MarkSeen(ctx, "0xPOOL1", time.Now().Add(-48*time.Hour)))
	require.NoError(t, d.MarkSeen(ctx, "0xPOOL2", time.Now()))

	// 新实例不带本地缓存，直接读 redis
	fresh := NewSeenPoolDAO(rdb, chainID)
	seen, err = fresh.IsSeen(ctx, "0xpool1")
	require.NoError(t, err)
	assert.True(t, seen)

	n, err := fresh.Trim(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	seen, _ = NewSeenPoolDAO(rdb, chainID).IsSeen(ctx, "0xpool1")
	assert.False(t, seen)
	seen, _ = NewSeenPoolDAO(rdb, chainID).IsSeen(ctx, "0xpool2")
	assert.True(t, seen)
}

func TestVolumeDAOUpsertSQL(t *testing.T) {
	// sql.Open 不建立连接；默认事务的 Begin 会连库，需关闭
	sqlDB, err := sql.Open("pgx", "host=127.0.0.1 user=baseflow dbname=baseflow sslmode=disable")
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)

	var captured string
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture", func(tx *gorm.DB) {
		captured = tx.Statement.SQL.String()
	}))

	err = NewVolumeDAO(db).Add(context.Background(), model.Volume{
		TokenAddress: "0xtoken",
		Date:         "2024-01-02",
		VolumeNative: decimal.RequireFromString("0.5"),
		TradeCount:   1,
	})
	require.NoError(t, err)
	assert.Contains(t, captured, `INSERT INTO "volume_tracking"`)
	assert.Contains(t, captured, `ON CONFLICT ("token_address","date") DO UPDATE SET`)
	assert.Contains(t, captured, "volume_tracking.volume_native +")
	assert.Contains(t, captured, "volume_tracking.trade_count +")
}

func itoa(n uint64) string {
	return decimal.NewFromInt(int64(n)).String()
}
