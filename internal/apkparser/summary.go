package apkparser

import (
	"fmt"
	"time"
)

// PermissionStats 权限计数
type PermissionStats struct {
	Total     int `json:"total" yaml:"total"`
	Dangerous int `json:"dangerous" yaml:"dangerous"`
}

// Summary 面向展示层的派生信息
type Summary struct {
	DangerousPermissions []Permission       `json:"dangerous_permissions" yaml:"dangerous_permissions"`
	PermissionStats      PermissionStats    `json:"permission_stats" yaml:"permission_stats"`
	PermissionAnalysis   PermissionAnalysis `json:"permission_analysis" yaml:"permission_analysis"`
	IsCertificateExpired bool               `json:"is_certificate_expired" yaml:"is_certificate_expired"`
	FormattedVersionInfo string             `json:"formatted_version_info" yaml:"formatted_version_info"`
	FormattedSDKInfo     string             `json:"formatted_sdk_info" yaml:"formatted_sdk_info"`
}

// Summarize 从解析结果计算展示信息
func Summarize(info *ApkInfo) *Summary {
	return summarizeAt(info, time.Now())
}

func summarizeAt(info *ApkInfo, now time.Time) *Summary {
	dangerous := []Permission{}
	for _, p := range info.Permissions {
		if p.IsDangerous {
			dangerous = append(dangerous, p)
		}
	}

	return &Summary{
		DangerousPermissions: dangerous,
		PermissionStats: PermissionStats{
			Total:     len(info.Permissions),
			Dangerous: len(dangerous),
		},
		PermissionAnalysis:   AnalyzePermissions(PermissionNames(info.Permissions)),
		IsCertificateExpired: IsCertificateExpired(info.SignatureInfo, now),
		FormattedVersionInfo: fmt.Sprintf("%s (%s)", info.VersionName, info.VersionCode),
		FormattedSDKInfo:     fmt.Sprintf("Min SDK: %s, Target SDK: %s", info.MinSDK, info.TargetSDK),
	}
}

// IsCertificateExpired valid_to 无法解析时视为未过期
func IsCertificateExpired(sig *SignatureInfo, now time.Time) bool {
	if sig == nil {
		return false
	}

	for _, layout := range []string{SignatureDateLayout, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700"} {
		if validTo, err := time.Parse(layout, sig.ValidTo); err == nil {
			return validTo.Before(now)
		}
	}
	return false
}
