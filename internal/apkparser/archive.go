package apkparser

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/apk-analysis/apk-inspector-go/internal/packer"
)

// ManifestEntry 清单文件在归档中的固定名称
const ManifestEntry = "AndroidManifest.xml"

// Archive 以随机访问方式打开的 APK (ZIP) 容器
type Archive struct {
	path   string
	reader *zip.ReadCloser
	index  map[string]*zip.File
}

// OpenArchive 打开 APK 归档
// 文件不存在或不可读时返回 I/O 错误，不是 ZIP 时返回 ErrInvalidArchive
func OpenArchive(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat APK file: %w", err)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, path, err)
	}

	index := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		if _, exists := index[f.Name]; !exists {
			index[f.Name] = f
		}
	}

	return &Archive{
		path:   path,
		reader: reader,
		index:  index,
	}, nil
}

// Path 归档文件路径
func (a *Archive) Path() string {
	return a.path
}

// EntryCount 条目数量
func (a *Archive) EntryCount() int {
	return len(a.reader.File)
}

// Has 判断条目是否存在
func (a *Archive) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// ReadEntry 按精确名称读取条目
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	f, ok := a.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return readZipFile(f)
}

// Find 按归档枚举顺序返回第一个名称满足条件的条目
func (a *Archive) Find(match func(name string) bool) (string, bool) {
	for _, f := range a.reader.File {
		if match(f.Name) {
			return f.Name, true
		}
	}
	return "", false
}

// Names 按归档顺序列出所有条目名称
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.reader.File))
	for _, f := range a.reader.File {
		names = append(names, f.Name)
	}
	return names
}

// Entries 按归档顺序列出条目名称和解压后大小
func (a *Archive) Entries() []packer.Entry {
	entries := make([]packer.Entry, 0, len(a.reader.File))
	for _, f := range a.reader.File {
		entries = append(entries, packer.Entry{Name: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return entries
}

// Close 关闭归档
func (a *Archive) Close() error {
	return a.reader.Close()
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", f.Name, err)
	}
	return data, nil
}
