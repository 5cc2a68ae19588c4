package apkparser

import (
	"regexp"
	"strings"
)

var (
	usesPermissionRe     = regexp.MustCompile(`<uses-permission[^>]*android:name="([^"]+)"[^>]*/?>`)
	declaredPermissionRe = regexp.MustCompile(`<permission[^>]*android:name="([^"]+)"[^>]*/?>`)
)

// dangerousPermissions Android 运行时危险权限
var dangerousPermissions = map[string]struct{}{
	"android.permission.READ_CALENDAR":                   {},
	"android.permission.WRITE_CALENDAR":                  {},
	"android.permission.CAMERA":                          {},
	"android.permission.READ_CONTACTS":                   {},
	"android.permission.WRITE_CONTACTS":                  {},
	"android.permission.GET_ACCOUNTS":                    {},
	"android.permission.ACCESS_FINE_LOCATION":            {},
	"android.permission.ACCESS_COARSE_LOCATION":          {},
	"android.permission.ACCESS_BACKGROUND_LOCATION":      {},
	"android.permission.RECORD_AUDIO":                    {},
	"android.permission.READ_PHONE_STATE":                {},
	"android.permission.READ_PHONE_NUMBERS":              {},
	"android.permission.CALL_PHONE":                      {},
	"android.permission.ANSWER_PHONE_CALLS":              {},
	"android.permission.READ_CALL_LOG":                   {},
	"android.permission.WRITE_CALL_LOG":                  {},
	"android.permission.ADD_VOICEMAIL":                   {},
	"android.permission.USE_SIP":                         {},
	"android.permission.PROCESS_OUTGOING_CALLS":          {},
	"android.permission.BODY_SENSORS":                    {},
	"android.permission.BODY_SENSORS_BACKGROUND":         {},
	"android.permission.ACTIVITY_RECOGNITION":            {},
	"android.permission.SEND_SMS":                        {},
	"android.permission.RECEIVE_SMS":                     {},
	"android.permission.READ_SMS":                        {},
	"android.permission.RECEIVE_WAP_PUSH":                {},
	"android.permission.RECEIVE_MMS":                     {},
	"android.permission.READ_EXTERNAL_STORAGE":           {},
	"android.permission.WRITE_EXTERNAL_STORAGE":          {},
	"android.permission.READ_MEDIA_IMAGES":               {},
	"android.permission.READ_MEDIA_VIDEO":                {},
	"android.permission.READ_MEDIA_AUDIO":                {},
	"android.permission.MANAGE_EXTERNAL_STORAGE":         {},
	"android.permission.READ_MEDIA_VISUAL_USER_SELECTED": {},
	"android.permission.USE_BIOMETRIC":                   {},
	"android.permission.USE_FINGERPRINT":                 {},
	"android.permission.BLUETOOTH_CONNECT":               {},
	"android.permission.BLUETOOTH_SCAN":                  {},
	"android.permission.BLUETOOTH_ADVERTISE":             {},
	"android.permission.POST_NOTIFICATIONS":              {},
	"android.permission.NEARBY_WIFI_DEVICES":             {},
}

// badgingDangerousPermissions 解码器路径使用的宽松分类器的固定列表
var badgingDangerousPermissions = []string{
	"android.permission.READ_CALENDAR",
	"android.permission.WRITE_CALENDAR",
	"android.permission.CAMERA",
	"android.permission.READ_CONTACTS",
	"android.permission.WRITE_CONTACTS",
	"android.permission.GET_ACCOUNTS",
	"android.permission.ACCESS_FINE_LOCATION",
	"android.permission.ACCESS_COARSE_LOCATION",
	"android.permission.RECORD_AUDIO",
}

// IsDangerousPermission 固定集合成员判断，不做模式匹配
func IsDangerousPermission(name string) bool {
	_, ok := dangerousPermissions[name]
	return ok
}

// IsDangerousBadgingPermission 解码器 badging 输出使用的宽松分类器
// 与 IsDangerousPermission 可能对同一权限给出不同结论
func IsDangerousBadgingPermission(name string) bool {
	for _, p := range badgingDangerousPermissions {
		if p == name {
			return true
		}
	}

	if strings.Contains(name, "_EXTERNAL_STORAGE") &&
		(strings.HasPrefix(name, "android.permission.READ_") || strings.HasPrefix(name, "android.permission.WRITE_")) {
		return true
	}

	return strings.Contains(name, "SMS") ||
		strings.Contains(name, "CALL") ||
		strings.Contains(name, "PHONE") ||
		strings.Contains(name, "STORAGE")
}

// ExtractPermissions 按文档顺序提取 uses-permission，未找到时改为提取 permission 声明
// 重复项原样保留
func ExtractPermissions(manifest string) []Permission {
	permissions := collectPermissions(usesPermissionRe, manifest)
	if len(permissions) == 0 {
		permissions = collectPermissions(declaredPermissionRe, manifest)
	}
	return permissions
}

func collectPermissions(re *regexp.Regexp, manifest string) []Permission {
	permissions := []Permission{}
	for _, match := range re.FindAllStringSubmatch(manifest, -1) {
		if len(match) < 2 {
			continue
		}
		permissions = append(permissions, Permission{
			Name:        match[1],
			IsDangerous: IsDangerousPermission(match[1]),
		})
	}
	return permissions
}

// RiskLevel 权限风险等级
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// PermissionAnalysis 权限统计与风险评估
type PermissionAnalysis struct {
	DangerousCount int       `json:"dangerous_count" yaml:"dangerous_count"`
	NormalCount    int       `json:"normal_count" yaml:"normal_count"`
	SignatureCount int       `json:"signature_count" yaml:"signature_count"`
	OtherCount     int       `json:"other_count" yaml:"other_count"`
	HighRisk       []string  `json:"high_risk_permissions" yaml:"high_risk_permissions"`
	RiskLevel      RiskLevel `json:"risk_level" yaml:"risk_level"`
}

// AnalyzePermissions 对权限名称分类计数
func AnalyzePermissions(names []string) PermissionAnalysis {
	analysis := PermissionAnalysis{HighRisk: []string{}}

	for _, name := range names {
		switch {
		case IsDangerousPermission(name):
			analysis.DangerousCount++
			analysis.HighRisk = append(analysis.HighRisk, name)
		case strings.HasPrefix(name, "android.permission.SIGNATURE"):
			analysis.SignatureCount++
		case strings.HasPrefix(name, "android.permission."):
			analysis.NormalCount++
		default:
			analysis.OtherCount++
		}
	}

	switch {
	case analysis.DangerousCount > 5:
		analysis.RiskLevel = RiskHigh
	case analysis.DangerousCount > 2:
		analysis.RiskLevel = RiskMedium
	default:
		analysis.RiskLevel = RiskLow
	}

	return analysis
}

// PermissionNames 提取权限名称列表
func PermissionNames(permissions []Permission) []string {
	names := make([]string, 0, len(permissions))
	for _, p := range permissions {
		names = append(names, p.Name)
	}
	return names
}
