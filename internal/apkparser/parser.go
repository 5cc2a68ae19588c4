package apkparser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/packer"
	"github.com/sirupsen/logrus"
)

// Options 解析器配置
type Options struct {
	UseDecoder  bool     // 是否尝试外部解码器
	DecoderPath string   // 显式指定 aapt2 路径
	SearchDirs  []string // 额外的 aapt2 搜索目录
}

// Parser APK 元数据提取流水线
type Parser struct {
	decoder    Decoder
	manifests  *ManifestResolver
	signatures *SignatureExtractor
	icons      *IconResolver
	packers    *packer.Detector
	logger     *logrus.Logger
}

// New 根据配置定位外部解码器并创建解析器
func New(opts Options, logger *logrus.Logger) *Parser {
	var decoder Decoder
	if opts.UseDecoder {
		locator := NewDecoderLocator(opts.DecoderPath, opts.SearchDirs, logger)
		if path, err := locator.Locate(); err == nil {
			decoder = NewAapt2(path, logger)
			logger.WithField("decoder", path).Info("External decoder enabled")
		} else {
			logger.WithField("candidates", locator.Candidates()).Warn("aapt2 not available, will use internal pipeline only")
		}
	}
	return NewParser(decoder, logger)
}

// NewParser 使用给定的解码器创建解析器，decoder 为 nil 时只走内部流水线
func NewParser(decoder Decoder, logger *logrus.Logger) *Parser {
	return &Parser{
		decoder:    decoder,
		manifests:  NewManifestResolver(decoder, logger),
		signatures: NewSignatureExtractor(logger),
		icons:      NewIconResolver(logger),
		packers:    packer.NewDetector(logger),
		logger:     logger,
	}
}

// HasDecoder 是否配置了外部解码器
func (p *Parser) HasDecoder() bool {
	return p.decoder != nil
}

// Parse 解析 APK，返回一次性构建的完整结果
// 只有文件 I/O、ZIP 容器以及缺少 manifest 会返回错误
func (p *Parser) Parse(ctx context.Context, apkPath string) (*ApkInfo, error) {
	startTime := time.Now()

	if _, err := os.Stat(apkPath); err != nil {
		return nil, fmt.Errorf("failed to stat APK file: %w", err)
	}

	p.logger.WithField("apk_path", apkPath).Info("Starting APK parse")

	info, err := p.parseWithDecoder(ctx, apkPath)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info, err = p.parseInternal(ctx, apkPath)
		if err != nil {
			return nil, err
		}
	}

	// 哈希和图标总是直接从文件计算
	digests, err := HashFile(apkPath)
	if err != nil {
		return nil, err
	}
	info.FileInfo.MD5 = digests.MD5
	info.FileInfo.SHA1 = digests.SHA1
	info.FileInfo.SHA256 = digests.SHA256
	info.FileInfo.FileSize = digests.Size
	info.IconBase64 = p.extractIcon(ctx, apkPath)
	info.Packer = p.detectPacker(apkPath)

	p.logger.WithFields(logrus.Fields{
		"package_name": info.PackageName,
		"source":       info.Source,
		"permissions":  len(info.Permissions),
		"duration_ms":  time.Since(startTime).Milliseconds(),
	}).Info("APK parse completed")

	return info, nil
}

// parseWithDecoder 解码器 badging 路径，不可用或输出不可用时返回 (nil, nil)
func (p *Parser) parseWithDecoder(ctx context.Context, apkPath string) (*ApkInfo, error) {
	if p.decoder == nil {
		return nil, nil
	}

	output, err := p.decoder.DumpBadging(ctx, apkPath)
	if err != nil {
		p.logger.WithError(err).Info("Decoder badging unavailable, falling back to internal pipeline")
		return nil, nil
	}

	badging, ok := ParseBadging(output)
	if !ok {
		p.logger.Info("Decoder badging output has no package, falling back to internal pipeline")
		return nil, nil
	}

	archive, err := OpenArchive(apkPath)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	signature := badging.Signature
	if signature == nil {
		signature = p.signatures.Extract(archive)
	}

	return &ApkInfo{
		PackageInfo:   badging.PackageInfo,
		Permissions:   badging.Permissions,
		SignatureInfo: signature,
		FileInfo: &FileInfo{
			FileType:   ApkFileType,
			EntryCount: archive.EntryCount(),
		},
		Source: SourceDecoder,
	}, nil
}

// parseInternal manifest 文本 + 正则提取
func (p *Parser) parseInternal(ctx context.Context, apkPath string) (*ApkInfo, error) {
	archive, err := OpenArchive(apkPath)
	if err != nil {
		return nil, err
	}
	entryCount := archive.EntryCount()

	manifest, tier, err := p.manifests.Resolve(ctx, archive)
	archive.Close()
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"apk_path": apkPath,
		"tier":     tier,
	}).Debug("Manifest text obtained")

	return &ApkInfo{
		PackageInfo:    ExtractPackageInfo(manifest),
		Permissions:    ExtractPermissions(manifest),
		SignatureInfo:  p.extractSignature(apkPath),
		SecurityConfig: AnalyzeSecurity(manifest),
		FileInfo: &FileInfo{
			FileType:   ApkFileType,
			EntryCount: entryCount,
		},
		Source: SourceInternal,
	}, nil
}

// extractSignature 独立重新打开归档
func (p *Parser) extractSignature(apkPath string) *SignatureInfo {
	archive, err := OpenArchive(apkPath)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to reopen APK for signature extraction")
		return nil
	}
	defer archive.Close()

	return p.signatures.Extract(archive)
}

// extractIcon 独立重新打开归档
func (p *Parser) extractIcon(ctx context.Context, apkPath string) string {
	archive, err := OpenArchive(apkPath)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to reopen APK for icon extraction")
		return ""
	}
	defer archive.Close()

	manifest, _, err := p.manifests.Resolve(ctx, archive)
	if err != nil {
		manifest = ""
	}
	return p.icons.Resolve(archive, manifest)
}

// detectPacker 根据归档条目识别加固，打开失败时返回 nil
func (p *Parser) detectPacker(apkPath string) *packer.Info {
	archive, err := OpenArchive(apkPath)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to reopen APK for packer detection")
		return nil
	}
	defer archive.Close()

	return p.packers.Detect(archive.Entries())
}
