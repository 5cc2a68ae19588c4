package apkparser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// placeholderMaxSize 小于该字节数的解码器文件视为占位文件
const placeholderMaxSize = 1000

// 原生可执行文件头: PE, ELF, Mach-O (32/64 位, 两种字节序), Mach-O fat
var executableMagics = [][]byte{
	[]byte("MZ"),
	{0x7f, 'E', 'L', 'F'},
	{0xfe, 0xed, 0xfa, 0xce},
	{0xfe, 0xed, 0xfa, 0xcf},
	{0xce, 0xfa, 0xed, 0xfe},
	{0xcf, 0xfa, 0xed, 0xfe},
	{0xca, 0xfe, 0xba, 0xbe},
}

// Decoder 外部 manifest / badging 解码器
type Decoder interface {
	// DumpManifestTree 输出 AndroidManifest.xml 的文本形式
	DumpManifestTree(ctx context.Context, apkPath string) (string, error)
	// DumpBadging 输出整包 badging 信息
	DumpBadging(ctx context.Context, apkPath string) (string, error)
}

// DecoderBinaryName 当前平台下 aapt2 可执行文件名
func DecoderBinaryName() string {
	if runtime.GOOS == "windows" {
		return "aapt2.exe"
	}
	return "aapt2"
}

// DecoderLocator 在磁盘上查找并校验 aapt2
type DecoderLocator struct {
	explicitPath string
	exeDir       string
	extraDirs    []string
	logger       *logrus.Logger
}

// NewDecoderLocator 创建解码器定位器
// explicitPath 非空时只校验该路径; extraDirs 追加在默认候选路径之后
func NewDecoderLocator(explicitPath string, extraDirs []string, logger *logrus.Logger) *DecoderLocator {
	exeDir := ""
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}

	return &DecoderLocator{
		explicitPath: explicitPath,
		exeDir:       exeDir,
		extraDirs:    extraDirs,
		logger:       logger,
	}
}

// Candidates 按优先级列出候选路径
func (l *DecoderLocator) Candidates() []string {
	if l.explicitPath != "" {
		return []string{l.explicitPath}
	}

	name := DecoderBinaryName()
	var candidates []string
	if l.exeDir != "" {
		candidates = append(candidates, filepath.Join(l.exeDir, "resources", name))
	}
	candidates = append(candidates,
		filepath.Join("src-tauri", "resources", name),
		filepath.Join("resources", name),
	)
	for _, dir := range l.extraDirs {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	return candidates
}

// Locate 返回第一个存在且不是占位文件的候选路径
func (l *DecoderLocator) Locate() (string, error) {
	for _, candidate := range l.Candidates() {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}

		if IsPlaceholder(candidate) {
			l.logger.WithField("path", candidate).Warn("Skipping placeholder decoder binary")
			continue
		}

		l.logger.WithField("path", candidate).Debug("Found external decoder")
		return candidate, nil
	}

	return "", ErrDecoderUnavailable
}

// IsPlaceholder 判断解码器文件是否为占位文件
// 读取失败同样视为占位
func IsPlaceholder(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return true
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.Size() < placeholderMaxSize {
		return true
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(file, header); err != nil {
		return true
	}

	for _, magic := range executableMagics {
		if bytes.HasPrefix(header, magic) {
			return false
		}
	}
	return true
}

// Aapt2 通过子进程调用 aapt2
type Aapt2 struct {
	path   string
	logger *logrus.Logger
}

// NewAapt2 创建 aapt2 调用器
func NewAapt2(path string, logger *logrus.Logger) *Aapt2 {
	return &Aapt2{
		path:   path,
		logger: logger,
	}
}

// Path aapt2 路径
func (a *Aapt2) Path() string {
	return a.path
}

// DumpManifestTree 执行 dump xmltree --file AndroidManifest.xml
func (a *Aapt2) DumpManifestTree(ctx context.Context, apkPath string) (string, error) {
	return a.run(ctx, "dump", "xmltree", "--file", ManifestEntry, apkPath)
}

// DumpBadging 执行 dump badging
func (a *Aapt2) DumpBadging(ctx context.Context, apkPath string) (string, error) {
	return a.run(ctx, "dump", "badging", apkPath)
}

// run 阻塞等待子进程退出，没有超时，取消只通过 ctx
func (a *Aapt2) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, a.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		a.logger.WithFields(logrus.Fields{
			"decoder": a.path,
			"command": strings.Join(args[:2], " "),
			"stderr":  strings.TrimSpace(stderr.String()),
		}).Warn("External decoder failed")
		return "", fmt.Errorf("aapt2 %s failed: %w", strings.Join(args[:2], " "), err)
	}

	return stdout.String(), nil
}
