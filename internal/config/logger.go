package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
)

// InitLogger 创建输出到标准输出的 logger
func InitLogger(cfg *LogConfig) *logrus.Logger {
	return NewLogger(cfg, os.Stdout)
}

// NewLogger 按配置创建 logger，无法识别的级别按 info 处理
func NewLogger(cfg *LogConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(true)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  "2006-01-02 15:04:05",
			CallerPrettyfier: shortCaller,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  "2006/01/02 15:04:05",
			CallerPrettyfier: shortCaller,
		})
	}

	logger.SetOutput(out)
	return logger
}

// shortCaller 只保留 "包目录/文件:行号"
func shortCaller(f *runtime.Frame) (string, string) {
	dir := filepath.Base(filepath.Dir(f.File))
	return "", fmt.Sprintf("%s/%s:%d", dir, filepath.Base(f.File), f.Line)
}
