package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/config"
	"github.com/apk-analysis/apk-inspector-go/internal/utils"
	"github.com/apk-analysis/apk-inspector-go/internal/worker"
	"github.com/sirupsen/logrus"
)

type batchOptions struct {
	Dir     string
	Out     string
	Workers int
	Append  bool
}

// batchRecord JSONL 中的一行，解析失败时 Error 非空
type batchRecord struct {
	Path        string             `json:"path"`
	PackageName string             `json:"package_name,omitempty"`
	RiskLevel   string             `json:"risk_level,omitempty"`
	Info        *apkparser.ApkInfo `json:"info,omitempty"`
	Error       string             `json:"error,omitempty"`
	DurationMs  int64              `json:"duration_ms"`
}

type batchStats struct {
	Parsed  int64
	Failed  int64
	Skipped int
}

type apkParser interface {
	Parse(ctx context.Context, apkPath string) (*apkparser.ApkInfo, error)
}

func runBatch(cfg *config.Config, logger *logrus.Logger, opts batchOptions) (*batchStats, error) {
	return batchParse(context.Background(), newParser(cfg, logger), logger, opts)
}

func batchParse(ctx context.Context, parser apkParser, logger *logrus.Logger, opts batchOptions) (*batchStats, error) {
	files, err := findAPKs(opts.Dir)
	if err != nil {
		return nil, err
	}

	stats := &batchStats{}
	if opts.Append {
		done, err := completedPaths(opts.Out)
		if err != nil {
			return nil, err
		}
		pending := files[:0]
		for _, f := range files {
			if done[f] {
				stats.Skipped++
				continue
			}
			pending = append(pending, f)
		}
		files = pending
	}

	out, err := utils.NewStreamJSONLWriter(opts.Out, opts.Append)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	if len(files) == 0 {
		return stats, nil
	}

	var parsed, failed atomic.Int64
	run := func(ctx context.Context, path string) error {
		start := time.Now()
		record := batchRecord{Path: path}

		info, err := parser.Parse(ctx, path)
		record.DurationMs = time.Since(start).Milliseconds()
		if err != nil {
			record.Error = err.Error()
			failed.Add(1)
		} else {
			record.Info = info
			record.PackageName = info.PackageName
			record.RiskLevel = string(apkparser.Summarize(info).PermissionAnalysis.RiskLevel)
			parsed.Add(1)
		}

		if writeErr := out.WriteLine(record); writeErr != nil {
			return writeErr
		}
		return err
	}

	pool := worker.NewPool(opts.Workers, len(files), run, logger)
	pool.Start(ctx)
	for _, f := range files {
		if err := pool.Submit(&worker.Job{ID: f, APKPath: f}); err != nil {
			pool.Stop()
			return nil, err
		}
	}
	pool.Stop()

	stats.Parsed = parsed.Load()
	stats.Failed = failed.Load()
	return stats, out.Flush()
}

// findAPKs 递归查找目录下的 .apk 文件（忽略大小写）
func findAPKs(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".apk") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// completedPaths 读取已有结果中解析成功的路径
func completedPaths(out string) (map[string]bool, error) {
	done := make(map[string]bool)
	err := utils.ReadJSONLFile(out, func(record batchRecord) error {
		if record.Error == "" {
			done[record.Path] = true
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return done, nil
	}
	return done, err
}
