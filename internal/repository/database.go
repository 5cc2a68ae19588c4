package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/config"
	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/apk-analysis/apk-inspector-go/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSQLitePath = "data/apk_inspector.db"

// InitDB 打开数据库、配置连接池并迁移表结构
func InitDB(cfg *config.DatabaseConfig, log *logrus.Logger) (*gorm.DB, error) {
	dialector, pool, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      newGormLogger(log),
		NowFunc:     func() time.Time { return time.Now().UTC() },
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	if err := utils.ConfigurePool(db, pool); err != nil {
		return nil, err
	}
	if err := AutoMigrate(db, log); err != nil {
		return nil, err
	}

	log.WithField("type", cfg.Type).Info("Database initialized")
	return db, nil
}

// openDialector 按类型选择驱动，未知类型按 sqlite 处理
func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, utils.PoolOptions, error) {
	if cfg.Type == "mysql" {
		return mysql.Open(cfg.DSN()), utils.ServerPool, nil
	}

	path := cfg.SQLitePath
	if path == "" {
		path = defaultSQLitePath
	}
	if path == ":memory:" {
		return sqlite.Open(path), utils.SingleWriterPool, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, utils.PoolOptions{}, fmt.Errorf("failed to create sqlite directory: %w", err)
	}
	return sqlite.Open(path + "?_busy_timeout=5000&_journal_mode=WAL"), utils.SingleWriterPool, nil
}

// newGormLogger 慢查询和错误通过 logrus 输出
func newGormLogger(log *logrus.Logger) gormlogger.Interface {
	level := gormlogger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	return gormlogger.New(log, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// AutoMigrate 迁移报告、权限和任务表
func AutoMigrate(db *gorm.DB, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	if err := db.AutoMigrate(&domain.ApkReport{}, &domain.ReportPermission{}, &domain.ParseJob{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Info("Database migrations completed")
	return nil
}
