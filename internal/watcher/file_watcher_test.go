package watcher

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recorder struct {
	mu    sync.Mutex
	files []string
}

func (r *recorder) handle(ctx context.Context, filePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, filepath.Base(filePath))
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func fastOptions() Options {
	return Options{
		Pattern:     "*.apk",
		Debounce:    50 * time.Millisecond,
		SettleDelay: 10 * time.Millisecond,
	}
}

func TestFileWatcher_SubmitsNewAPK(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	fw, err := NewFileWatcher(dir, fastOptions(), rec.handle, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))
	defer fw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "App.APK"), []byte("PK\x03\x04 apk bytes"), 0644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"App.APK"}, rec.snapshot())
}

func TestFileWatcher_DebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	opts := fastOptions()
	opts.Debounce = 200 * time.Millisecond
	fw, err := NewFileWatcher(dir, opts, rec.handle, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))
	defer fw.Stop()

	path := filepath.Join(dir, "big.apk")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestFileWatcher_ScanExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.apk"), []byte("PK old"), 0644))
	rec := &recorder{}

	opts := fastOptions()
	opts.ScanExisting = true
	fw, err := NewFileWatcher(dir, opts, rec.handle, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))
	defer fw.Stop()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"old.apk"}, rec.snapshot())
}

func TestFileWatcher_EmptyFileNeverReady(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWatcher(dir, fastOptions(), (&recorder{}).handle, newTestLogger())
	require.NoError(t, err)
	defer fw.Stop()

	path := filepath.Join(dir, "empty.apk")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Error(t, fw.waitForFileReady(context.Background(), path))
	assert.Error(t, fw.waitForFileReady(context.Background(), filepath.Join(dir, "missing.apk")))
}

func TestFileWatcher_MatchPattern(t *testing.T) {
	fw := &FileWatcher{opts: Options{Pattern: "*.apk"}}
	assert.True(t, fw.matchPattern("app.apk"))
	assert.True(t, fw.matchPattern("APP.APK"))
	assert.False(t, fw.matchPattern("app.apk.part"))
	assert.False(t, fw.matchPattern("app.zip"))
}

func TestNewFileWatcher_InvalidPattern(t *testing.T) {
	_, err := NewFileWatcher(t.TempDir(), Options{Pattern: "[bad"}, (&recorder{}).handle, newTestLogger())
	assert.Error(t, err)
}

func TestFileWatcher_StopTwice(t *testing.T) {
	fw, err := NewFileWatcher(t.TempDir(), fastOptions(), (&recorder{}).handle, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, fw.Start(context.Background()))

	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
	assert.NotEmpty(t, fw.GetWatchDir())
}

func TestFileWatcher_MissingFileFailsFast(t *testing.T) {
	opts := fastOptions()
	opts.SettleDelay = time.Second
	fw, err := NewFileWatcher(t.TempDir(), opts, (&recorder{}).handle, newTestLogger())
	require.NoError(t, err)
	defer fw.Stop()

	start := time.Now()
	err = fw.waitForFileReady(context.Background(), filepath.Join(fw.GetWatchDir(), "gone.apk"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
