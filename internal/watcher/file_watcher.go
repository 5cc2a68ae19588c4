package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/retry"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileHandler 投递文件处理函数
type FileHandler func(ctx context.Context, filePath string) error

// Options 监控参数
type Options struct {
	Pattern      string        // 文件匹配模式，忽略大小写
	Debounce     time.Duration // 同一文件事件合并窗口
	SettleDelay  time.Duration // 两次检查文件大小的间隔
	ScanExisting bool          // 启动时投递目录中已有的文件
}

const settleChecks = 10

var errNotSettled = errors.New("file is still being written")

// pending 一个等待处理的文件
type pending struct {
	timer *time.Timer
	busy  bool
}

// FileWatcher 投递目录监控器
type FileWatcher struct {
	fs      *fsnotify.Watcher
	dir     string
	opts    Options
	handler FileHandler
	logger  *logrus.Logger
	settle  *retry.Config

	mu       sync.Mutex
	files    map[string]*pending
	stopped  bool
	inFlight sync.WaitGroup

	quit     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher 创建目录（如不存在）并开始监听
func NewFileWatcher(watchDir string, opts Options, handler FileHandler, logger *logrus.Logger) (*FileWatcher, error) {
	opts = withDefaults(opts)
	if _, err := filepath.Match(opts.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid watch pattern %q: %w", opts.Pattern, err)
	}
	if err := os.MkdirAll(watchDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fs.Add(watchDir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", watchDir, err)
	}

	fw := &FileWatcher{
		fs:      fs,
		dir:     watchDir,
		opts:    opts,
		handler: handler,
		logger:  logger,
		settle:  settleConfig(opts.SettleDelay, logger),
		files:   make(map[string]*pending),
		quit:    make(chan struct{}),
	}

	logger.WithFields(logrus.Fields{
		"watch_dir": watchDir,
		"pattern":   opts.Pattern,
	}).Info("File watcher created")
	return fw, nil
}

func withDefaults(opts Options) Options {
	if opts.Pattern == "" {
		opts.Pattern = "*.apk"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	return opts
}

// settleConfig 文件大小轮询使用固定间隔重试，轮询本身只在放弃时记录日志
func settleConfig(delay time.Duration, logger *logrus.Logger) *retry.Config {
	quiet := logrus.New()
	quiet.SetOutput(logger.Out)
	quiet.SetFormatter(logger.Formatter)
	quiet.SetLevel(logrus.ErrorLevel)

	return &retry.Config{
		Operation:       "settle_file",
		MaxAttempts:     settleChecks + 1,
		InitialInterval: delay,
		MaxInterval:     delay,
		Strategy:        retry.StrategyFixed,
		Logger:          quiet,
	}
}

// Start 启动事件循环，ScanExisting 时先投递已有文件
func (fw *FileWatcher) Start(ctx context.Context) error {
	if fw.opts.ScanExisting {
		fw.scanExisting(ctx)
	}

	go fw.loop(ctx)

	fw.logger.WithField("watch_dir", fw.dir).Info("File watcher started")
	return nil
}

func (fw *FileWatcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(fw.dir)
	if err != nil {
		fw.logger.WithError(err).Warn("Failed to scan existing files")
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !fw.matchPattern(entry.Name()) {
			continue
		}
		fw.logger.WithField("file", entry.Name()).Info("Found existing file")
		fw.schedule(ctx, filepath.Join(fw.dir, entry.Name()))
	}
}

func (fw *FileWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.quit:
			return
		case event, ok := <-fw.fs.Events:
			if !ok {
				return
			}
			if path, ok := fw.relevant(event); ok {
				fw.schedule(ctx, path)
			}
		case err, ok := <-fw.fs.Errors:
			if !ok {
				return
			}
			fw.logger.WithError(err).Error("Watcher error")
		}
	}
}

// relevant 只关心匹配模式的创建和写入事件
func (fw *FileWatcher) relevant(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if !fw.matchPattern(filepath.Base(event.Name)) {
		return "", false
	}

	fw.logger.WithFields(logrus.Fields{
		"event": event.Op.String(),
		"file":  filepath.Base(event.Name),
	}).Debug("File event detected")
	return event.Name, true
}

// schedule 防抖，窗口内重复事件只重置计时器
func (fw *FileWatcher) schedule(ctx context.Context, path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return
	}

	p, ok := fw.files[path]
	if !ok {
		p = &pending{}
		fw.files[path] = p
	}
	if p.busy {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(fw.opts.Debounce, func() { fw.fire(ctx, path) })
}

// fire 计时器到期后处理文件，同一路径同时只处理一次
func (fw *FileWatcher) fire(ctx context.Context, path string) {
	fw.mu.Lock()
	p, ok := fw.files[path]
	if fw.stopped || !ok || p.busy {
		fw.mu.Unlock()
		return
	}
	p.busy = true
	p.timer = nil
	fw.inFlight.Add(1)
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		delete(fw.files, path)
		fw.mu.Unlock()
		fw.inFlight.Done()
	}()

	log := fw.logger.WithField("file", path)
	if err := fw.waitForFileReady(ctx, path); err != nil {
		log.WithError(err).Error("File not ready")
		return
	}

	log.Info("Submitting dropped APK")
	if err := fw.handler(ctx, path); err != nil {
		log.WithError(err).Error("Failed to submit file")
		return
	}
	log.Info("File submitted successfully")
}

// waitForFileReady 等待文件大小在连续两次检查间不变且非空
func (fw *FileWatcher) waitForFileReady(ctx context.Context, path string) error {
	last := int64(-1)
	return retry.Do(ctx, fw.settle, func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return retry.Permanent(fmt.Errorf("file does not exist: %w", err))
			}
			return err
		}

		size := info.Size()
		if size > 0 && size == last {
			return nil
		}
		last = size
		return errNotSettled
	})
}

// matchPattern 忽略大小写匹配文件名
func (fw *FileWatcher) matchPattern(name string) bool {
	matched, err := filepath.Match(strings.ToLower(fw.opts.Pattern), strings.ToLower(name))
	return err == nil && matched
}

// Stop 停止监听并等待正在处理的文件
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		close(fw.quit)

		fw.mu.Lock()
		fw.stopped = true
		for path, p := range fw.files {
			if p.timer != nil && !p.busy {
				p.timer.Stop()
				delete(fw.files, path)
			}
		}
		fw.mu.Unlock()

		err = fw.fs.Close()
		fw.inFlight.Wait()
		fw.logger.Info("File watcher stopped")
	})
	return err
}

// GetWatchDir 监控目录
func (fw *FileWatcher) GetWatchDir() string {
	return fw.dir
}
