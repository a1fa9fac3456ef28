package dao

import (
	"context"
	"errors"
	"strconv"
	"time"

	"baseflow/pkg/utils"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// SeenPoolDAO 已处理池子集合，用于吸收至少一次投递带来的重复
type SeenPoolDAO interface {
	IsSeen(ctx context.Context, pool string) (bool, error)
	MarkSeen(ctx context.Context, pool string, at time.Time) error
	// Trim 删除 before 之前标记的条目，返回删除数量
	Trim(ctx context.Context, before time.Time) (int64, error)
}

// seenPoolDAO redis ZSET 实现，score 为标记时间(毫秒)，本地缓存只记正向结果
type seenPoolDAO struct {
	rds        *redis.Client
	key        string
	localCache *cache.Cache
}

func NewSeenPoolDAO(rds *redis.Client, chainID uint64) SeenPoolDAO {
	return &seenPoolDAO{
		rds:        rds,
		key:        utils.SeenPoolKey(chainID),
		localCache: cache.New(10*time.Minute, time.Minute),
	}
}

func (d *seenPoolDAO) IsSeen(ctx context.Context, pool string) (bool, error) {
	member := utils.PoolMember(pool)
	if _, found := d.localCache.Get(member); found {
		return true, nil
	}
	_, err := d.rds.ZScore(ctx, d.key, member).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	d.localCache.SetDefault(member, struct{}{})
	return true, nil
}

func (d *seenPoolDAO) MarkSeen(ctx context.Context, pool string, at time.Time) error {
	member := utils.PoolMember(pool)
	if err := d.rds.ZAdd(ctx, d.key, redis.Z{Score: float64(at.UnixMilli()), Member: member}).Err(); err != nil {
		return err
	}
	d.localCache.SetDefault(member, struct{}{})
	return nil
}

func (d *seenPoolDAO) Trim(ctx context.Context, before time.Time) (int64, error) {
	n, err := d.rds.ZRemRangeByScore(ctx, d.key, "-inf", "("+strconv.FormatInt(before.UnixMilli(), 10)).Result()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		// 本地缓存无法按时间裁剪，整体清空
		d.localCache.Flush()
	}
	return n, nil
}

// memorySeenPoolDAO 未配置 redis 时使用，进程重启后丢失
type memorySeenPoolDAO struct {
	localCache *cache.Cache
}

func NewMemorySeenPoolDAO(ttl time.Duration) SeenPoolDAO {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memorySeenPoolDAO{localCache: cache.New(ttl, time.Minute)}
}

func (d *memorySeenPoolDAO) IsSeen(_ context.Context, pool string) (bool, error) {
	_, found := d.localCache.Get(utils.PoolMember(pool))
	return found, nil
}

func (d *memorySeenPoolDAO) MarkSeen(_ context.Context, pool string, at time.Time) error {
	d.localCache.SetDefault(utils.PoolMember(pool), at)
	return nil
}

func (d *memorySeenPoolDAO) Trim(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for member, item := range d.localCache.Items() {
		if at, ok := item.Object.(time.Time); ok && at.Before(before) {
			d.localCache.Delete(member)
			n++
		}
	}
	return n, nil
}
