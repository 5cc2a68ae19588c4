package main

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	mu    sync.Mutex
	calls []string
}

func (p *fakeParser) Parse(ctx context.Context, apkPath string) (*apkparser.ApkInfo, error) {
	p.mu.Lock()
	p.calls = append(p.calls, apkPath)
	p.mu.Unlock()

	if filepath.Base(apkPath) == "broken.apk" {
		return nil, apkparser.ErrInvalidArchive
	}
	return &apkparser.ApkInfo{
		PackageInfo: apkparser.PackageInfo{PackageName: "com.example." + filepath.Base(apkPath)},
		Permissions: []apkparser.Permission{{Name: "android.permission.CAMERA", IsDangerous: true}},
	}, nil
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("PK"), 0644))
}

func readRecords(t *testing.T, path string) []batchRecord {
	t.Helper()
	var records []batchRecord
	require.NoError(t, utils.ReadJSONLFile(path, func(r batchRecord) error {
		records = append(records, r)
		return nil
	}))
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records
}

func TestFindAPKs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.apk"))
	touch(t, filepath.Join(dir, "nested", "B.APK"))
	touch(t, filepath.Join(dir, "readme.txt"))

	files, err := findAPKs(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.apk"),
		filepath.Join(dir, "nested", "B.APK"),
	}, files)
}

func TestBatchParse_RecordsErrorsInline(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.apk"))
	touch(t, filepath.Join(dir, "broken.apk"))
	out := filepath.Join(t.TempDir(), "results.jsonl")

	stats, err := batchParse(context.Background(), &fakeParser{}, newTestLogger(), batchOptions{
		Dir:     dir,
		Out:     out,
		Workers: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Parsed)
	assert.Equal(t, int64(1), stats.Failed)

	records := readRecords(t, out)
	require.Len(t, records, 2)
	assert.Equal(t, "com.example.a.apk", records[0].PackageName)
	assert.Equal(t, "LOW", records[0].RiskLevel)
	assert.Empty(t, records[0].Error)
	assert.Nil(t, records[1].Info)
	assert.Contains(t, records[1].Error, "invalid APK archive")
}

func TestBatchParse_AppendSkipsCompleted(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.apk"))
	touch(t, filepath.Join(dir, "broken.apk"))
	out := filepath.Join(t.TempDir(), "results.jsonl")

	_, err := batchParse(context.Background(), &fakeParser{}, newTestLogger(), batchOptions{Dir: dir, Out: out, Workers: 1})
	require.NoError(t, err)

	touch(t, filepath.Join(dir, "c.apk"))
	parser := &fakeParser{}
	stats, err := batchParse(context.Background(), parser, newTestLogger(), batchOptions{Dir: dir, Out: out, Workers: 1, Append: true})
	require.NoError(t, err)

	// 失败的 APK 会重试，成功的跳过
	assert.Equal(t, 1, stats.Skipped)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "broken.apk"), filepath.Join(dir, "c.apk")}, parser.calls)
	assert.Len(t, readRecords(t, out), 4)
}

func TestBatchParse_EmptyDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.jsonl")

	stats, err := batchParse(context.Background(), &fakeParser{}, newTestLogger(), batchOptions{Dir: t.TempDir(), Out: out})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Parsed)
	assert.FileExists(t, out)
}

func TestCompletedPaths_MissingFile(t *testing.T) {
	done, err := completedPaths(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, done)
}

func TestBatchParse_MissingDir(t *testing.T) {
	_, err := batchParse(context.Background(), &fakeParser{}, newTestLogger(), batchOptions{
		Dir: filepath.Join(t.TempDir(), "missing"),
		Out: filepath.Join(t.TempDir(), "results.jsonl"),
	})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

// writeTestAPK 生成带文本 manifest 的最小 APK
func writeTestAPK(t *testing.T, path string, manifest string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("AndroidManifest.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}
