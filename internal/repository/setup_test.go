package repository

import (
	"io"
	"testing"

	"github.com/apk-analysis/apk-inspector-go/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to open test database")

	// :memory: 每个连接是独立的库
	require.NoError(t, utils.ConfigurePool(db, utils.SingleWriterPool))
	require.NoError(t, AutoMigrate(db, newTestLogger()), "Failed to migrate test database")

	return db
}
