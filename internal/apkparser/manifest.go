package apkparser

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/shogo82148/androidbinary"
	"github.com/sirupsen/logrus"
)

// StubManifest 所有解码手段都失败时返回的最小 manifest 文档
const StubManifest = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android">
</manifest>`

// ManifestTier manifest 文本的来源层级
type ManifestTier string

const (
	TierDecoder ManifestTier = "decoder" // 外部解码器 xmltree
	TierText    ManifestTier = "text"    // 条目本身就是文本 XML
	TierBinary  ManifestTier = "binary"  // 二进制 AXML 可解码
	TierStub    ManifestTier = "stub"    // 兜底
)

// ManifestResolver 分层获取 manifest 文本
type ManifestResolver struct {
	decoder Decoder
	logger  *logrus.Logger
}

// NewManifestResolver 创建 manifest 解析器，decoder 可以为 nil
func NewManifestResolver(decoder Decoder, logger *logrus.Logger) *ManifestResolver {
	return &ManifestResolver{
		decoder: decoder,
		logger:  logger,
	}
}

// Resolve 返回 manifest 文本
// 只有归档中缺少 AndroidManifest.xml 时返回错误
func (r *ManifestResolver) Resolve(ctx context.Context, archive *Archive) (string, ManifestTier, error) {
	raw, err := archive.ReadEntry(ManifestEntry)
	if err != nil {
		if !archive.Has(ManifestEntry) {
			return "", "", ErrManifestNotFound
		}
		r.logger.WithError(err).Warn("Failed to read manifest entry, using stub manifest")
		return StubManifest, TierStub, nil
	}

	// 1. 外部解码器
	if r.decoder != nil {
		text, err := r.decoder.DumpManifestTree(ctx, archive.Path())
		if err == nil {
			r.logger.WithField("tier", TierDecoder).Debug("Manifest resolved")
			return text, TierDecoder, nil
		}
		r.logger.WithError(err).Debug("Decoder xmltree failed, falling back")
	}

	// 2. 已经是文本 XML
	if isTextManifest(raw) {
		r.logger.WithField("tier", TierText).Debug("Manifest resolved")
		return string(raw), TierText, nil
	}

	// 3. 二进制 AXML: 只确认可解码，解析结果被丢弃并返回最小文档。
	// 这里没有把解析出的字段接入，属于已知的降级行为。
	_, err = androidbinary.NewXMLFile(bytes.NewReader(raw))
	if err == nil {
		r.logger.WithField("tier", TierBinary).Info("Binary manifest decodable, returning stub manifest")
		return StubManifest, TierBinary, nil
	}
	r.logger.WithError(err).Debug("Binary manifest decode failed")

	// 4. 兜底
	r.logger.WithField("tier", TierStub).Warn("Manifest could not be decoded, using stub manifest")
	return StubManifest, TierStub, nil
}

func isTextManifest(raw []byte) bool {
	if !utf8.Valid(raw) {
		return false
	}
	text := string(raw)
	return strings.HasPrefix(text, "<?xml") || strings.Contains(text, "<manifest")
}
