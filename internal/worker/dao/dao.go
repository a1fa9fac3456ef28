package dao

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DAOManager 管理所有DAO实例
type DAOManager struct {
	SeenPoolDAO SeenPoolDAO
	VolumeDAO   VolumeDAO
}

// NewDAOManager 创建DAO管理器实例，rds 为空时已见集合退化为进程内缓存
func NewDAOManager(db *gorm.DB, rds *redis.Client, chainID uint64, seenTTL time.Duration) *DAOManager {
	m := &DAOManager{}
	if rds != nil {
		m.SeenPoolDAO = NewSeenPoolDAO(rds, chainID)
	} else {
		m.SeenPoolDAO = NewMemorySeenPoolDAO(seenTTL)
	}
	if db != nil {
		m.VolumeDAO = NewVolumeDAO(db)
	}
	return m
}
