package apkparser

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	applicationIconRe = regexp.MustCompile(`<application\s+[^>]*android:icon\s*=\s*"([^"]+)"`)

	densities = []string{"xxxhdpi", "xxhdpi", "xhdpi", "hdpi", "mdpi"}

	iconNameMarkers    = []string{"/icon", "/ic_launcher", "/app_icon", "/logo"}
	iconExtensions     = []string{".png", ".webp", ".jpg", ".jpeg"}
	defaultIconEntries = buildDefaultIconEntries()
)

// buildDefaultIconEntries 固定优先级的候选图标路径
func buildDefaultIconEntries() []string {
	var paths []string
	perDensity := func(format string) {
		for _, d := range densities {
			paths = append(paths, fmt.Sprintf(format, d))
		}
	}

	perDensity("res/mipmap-%s/ic_launcher.png")
	perDensity("res/mipmap-%s/ic_launcher_round.png")
	perDensity("res/mipmap-%s/ic_launcher_foreground.png")

	paths = append(paths, "res/drawable/ic_launcher.png")
	perDensity("res/drawable-%s/ic_launcher.png")

	perDensity("res/mipmap-%s/icon.png")
	paths = append(paths, "res/drawable/icon.png")
	perDensity("res/drawable-%s/icon.png")

	paths = append(paths,
		"res/drawable/app_icon.png",
		"assets/icon.png",
		"assets/app_icon.png",
		"assets/icons/app_icon.png",
		"assets/images/icon.png",
	)

	perDensity("res/mipmap-%s/ic_launcher.webp")
	paths = append(paths,
		"res/drawable/ic_launcher.webp",
		"res/drawable/ic_launcher.jpg",
		"res/drawable/icon.jpg",
	)

	return paths
}

// DefaultIconEntries 返回固定候选列表的副本
func DefaultIconEntries() []string {
	return append([]string(nil), defaultIconEntries...)
}

// IconResolver 解析应用图标
type IconResolver struct {
	logger *logrus.Logger
}

// NewIconResolver 创建图标解析器
func NewIconResolver(logger *logrus.Logger) *IconResolver {
	return &IconResolver{logger: logger}
}

// Resolve 返回 base64 编码的图标，找不到时返回空串，从不报错
func (r *IconResolver) Resolve(archive *Archive, manifest string) string {
	candidates := append(ManifestIconCandidates(manifest), defaultIconEntries...)

	for _, entry := range candidates {
		if !archive.Has(entry) {
			continue
		}
		data, err := archive.ReadEntry(entry)
		if err != nil {
			r.logger.WithError(err).WithField("entry", entry).Debug("Failed to read icon candidate")
			continue
		}
		r.logger.WithField("entry", entry).Debug("Icon resolved from candidate list")
		return base64.StdEncoding.EncodeToString(data)
	}

	for _, entry := range archive.Names() {
		if !looksLikeIcon(entry) {
			continue
		}
		data, err := archive.ReadEntry(entry)
		if err != nil {
			continue
		}
		r.logger.WithField("entry", entry).Debug("Icon resolved from archive scan")
		return base64.StdEncoding.EncodeToString(data)
	}

	r.logger.Debug("No icon found in APK")
	return ""
}

// ManifestIconCandidates 根据 application 的 android:icon 引用构造候选路径
func ManifestIconCandidates(manifest string) []string {
	match := applicationIconRe.FindStringSubmatch(manifest)
	if len(match) < 2 {
		return nil
	}

	ref := match[1]
	switch {
	case strings.HasPrefix(ref, "@drawable/"):
		return []string{"res/drawable/" + strings.TrimPrefix(ref, "@drawable/") + ".png"}
	case strings.HasPrefix(ref, "@mipmap/"):
		name := strings.TrimPrefix(ref, "@mipmap/")
		candidates := make([]string, 0, len(densities))
		for _, d := range densities {
			candidates = append(candidates, fmt.Sprintf("res/mipmap-%s/%s.png", d, name))
		}
		return candidates
	}
	return nil
}

func looksLikeIcon(name string) bool {
	hasMarker := false
	for _, marker := range iconNameMarkers {
		if strings.Contains(name, marker) {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		return false
	}

	for _, ext := range iconExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
