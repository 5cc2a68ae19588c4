package tempfiles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Registry 临时文件持有者，Cleanup 删除所有登记过的文件
type Registry struct {
	dir    string
	logger *logrus.Logger

	mu    sync.Mutex
	paths []string
}

// New 创建临时文件登记表，dir 为空时使用系统临时目录
func New(dir string, logger *logrus.Logger) (*Registry, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	return &Registry{
		dir:    dir,
		logger: logger,
	}, nil
}

// Dir 临时文件所在目录
func (r *Registry) Dir() string {
	return r.dir
}

// Create 创建并登记临时文件，pattern 语义同 os.CreateTemp
func (r *Registry) Create(pattern string) (*os.File, error) {
	f, err := os.CreateTemp(r.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	r.track(f.Name())
	return f, nil
}

// WriteBytes 写入数据到新的临时文件并返回路径
// pattern 中的 "*" 会被替换为随机 ID
func (r *Registry) WriteBytes(pattern string, data []byte) (string, error) {
	name := pattern
	if name == "" {
		name = "*"
	}
	path := filepath.Join(r.dir, replaceStar(name, uuid.New().String()))

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	r.track(path)
	return path, nil
}

// Track 登记一个外部创建的文件
func (r *Registry) Track(path string) {
	r.track(path)
}

func (r *Registry) track(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()

	r.logger.WithField("path", path).Debug("Temp file registered")
}

// Remove 删除单个已登记文件
func (r *Registry) Remove(path string) error {
	r.mu.Lock()
	for i, p := range r.paths {
		if p == path {
			r.paths = append(r.paths[:i], r.paths[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Paths 当前登记的文件
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// Cleanup 删除所有登记的文件，已不存在的文件忽略
func (r *Registry) Cleanup() error {
	r.mu.Lock()
	paths := r.paths
	r.paths = nil
	r.mu.Unlock()

	var errs []error
	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		removed++
	}

	r.logger.WithFields(logrus.Fields{
		"removed": removed,
		"failed":  len(errs),
	}).Info("Temp files cleaned up")

	return errors.Join(errs...)
}

func replaceStar(pattern, id string) string {
	for i := len(pattern) - 1; i >= 0; i-- {
		if pattern[i] == '*' {
			return pattern[:i] + id + pattern[i+1:]
		}
	}
	return pattern + id
}
