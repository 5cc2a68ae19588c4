package apkparser

import (
	"regexp"
	"strings"
)

// 包信息默认值
const (
	DefaultPackageName = "unknown"
	DefaultVersionName = "1.0"
	DefaultVersionCode = "1"
	DefaultMinSDK      = "1"
)

var (
	packageNameRe = regexp.MustCompile(`package="([^"]+)"`)
	versionNameRe = regexp.MustCompile(`android:versionName="([^"]+)"`)
	versionCodeRe = regexp.MustCompile(`android:versionCode="([^"]+)"`)
	minSdkRe      = regexp.MustCompile(`android:minSdkVersion="([^"]+)"`)
	targetSdkRe   = regexp.MustCompile(`android:targetSdkVersion="([^"]+)"`)

	activityStartRe = regexp.MustCompile(`<activity(\s[^>]*)>`)
	activityNameRe  = regexp.MustCompile(`android:name="([^"]+)"`)

	// 只在单个 activity 块内匹配
	launcherFilterRe = regexp.MustCompile(`(?s)<intent-filter[^>]*>.*?<action android:name="android.intent.action.MAIN".*?>.*?<category android:name="android.intent.category.LAUNCHER".*?>.*?</intent-filter>`)
)

// ExtractPackageInfo 从 manifest 文本提取包信息，每个字段独立回落默认值
func ExtractPackageInfo(manifest string) PackageInfo {
	info := PackageInfo{
		PackageName: firstSubmatch(packageNameRe, manifest, DefaultPackageName),
		VersionName: firstSubmatch(versionNameRe, manifest, DefaultVersionName),
		VersionCode: firstSubmatch(versionCodeRe, manifest, DefaultVersionCode),
		MinSDK:      firstSubmatch(minSdkRe, manifest, DefaultMinSDK),
	}
	info.TargetSDK = firstSubmatch(targetSdkRe, manifest, info.MinSDK)

	if name := launcherActivity(manifest); name != "" {
		info.MainActivity = qualifyActivity(info.PackageName, name)
	}

	return info
}

// launcherActivity 第一个 body 内含 MAIN/LAUNCHER intent-filter 的 activity，自闭合标签没有 body
func launcherActivity(manifest string) string {
	for _, m := range activityStartRe.FindAllStringSubmatchIndex(manifest, -1) {
		attrs := manifest[m[2]:m[3]]
		if strings.HasSuffix(attrs, "/") {
			continue
		}
		name := activityNameRe.FindStringSubmatch(attrs)
		if name == nil {
			continue
		}

		body := manifest[m[1]:]
		if end := strings.Index(body, "</activity>"); end >= 0 {
			body = body[:end]
		}
		if launcherFilterRe.MatchString(body) {
			return name[1]
		}
	}
	return ""
}

// qualifyActivity 没有 "." 的 activity 名补全包名前缀
func qualifyActivity(packageName, activity string) string {
	if !strings.Contains(activity, ".") && !strings.HasPrefix(activity, packageName) {
		return packageName + "." + activity
	}
	return activity
}

func firstSubmatch(re *regexp.Regexp, text, fallback string) string {
	if match := re.FindStringSubmatch(text); len(match) > 1 {
		return match[1]
	}
	return fallback
}
