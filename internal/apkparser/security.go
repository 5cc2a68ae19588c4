package apkparser

import "strings"

// AnalyzeSecurity 对 manifest 文本做独立的子串判断
func AnalyzeSecurity(manifest string) *SecurityConfig {
	has := func(s string) bool { return strings.Contains(manifest, s) }
	flag := func(s string) *bool {
		v := has(s)
		return &v
	}

	return &SecurityConfig{
		UsesCleartextTraffic:     has(`android:usesCleartextTraffic="true"`),
		Debuggable:               has(`android:debuggable="true"`),
		BackupAllowed:            !has(`android:allowBackup="false"`),
		AllowBackup:              has(`android:allowBackup="true"`),
		UsesPermissionFlags:      has(`android:protectionLevel=`),
		HasNetworkSecurityConfig: flag(`android:networkSecurityConfig=`),
		PreventsScreenshots:      flag(`android:preventScreenshots="true"`),
		UsesEncryption:           flag(`android:encryption="true"`),
	}
}
