package utils

import (
	"time"

	"gorm.io/gorm"
)

// PoolOptions database/sql 连接池参数
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// SingleWriterPool SQLite 只允许一个写连接，:memory: 库也要求固定在同一连接上
var SingleWriterPool = PoolOptions{MaxOpen: 1, MaxIdle: 1, MaxLifetime: 0, MaxIdleTime: 0}

// ServerPool MySQL 等服务端数据库
var ServerPool = PoolOptions{MaxOpen: 50, MaxIdle: 10, MaxLifetime: time.Hour, MaxIdleTime: 10 * time.Minute}

// ConfigurePool 把连接池参数应用到 gorm 底层的 *sql.DB
func ConfigurePool(db *gorm.DB, opts PoolOptions) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	idle := min(opts.MaxIdle, opts.MaxOpen)
	sqlDB.SetMaxOpenConns(opts.MaxOpen)
	sqlDB.SetMaxIdleConns(idle)
	sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(opts.MaxIdleTime)
	return nil
}
