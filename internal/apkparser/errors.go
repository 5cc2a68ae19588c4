package apkparser

import "errors"

var (
	// ErrManifestNotFound 归档中没有 AndroidManifest.xml，唯一不可恢复的结构性错误
	ErrManifestNotFound = errors.New("AndroidManifest.xml not found in APK")

	// ErrInvalidArchive 文件不是合法的 ZIP 容器
	ErrInvalidArchive = errors.New("invalid APK archive")

	// ErrEntryNotFound 归档条目不存在
	ErrEntryNotFound = errors.New("archive entry not found")

	// ErrDecoderUnavailable 没有可用的外部解码器
	ErrDecoderUnavailable = errors.New("external decoder unavailable")
)
