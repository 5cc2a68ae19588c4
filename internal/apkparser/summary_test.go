package apkparser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	now := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)
	info := &ApkInfo{
		PackageInfo: PackageInfo{
			PackageName: "com.example.app",
			VersionName: "2.3",
			VersionCode: "7",
			MinSDK:      "21",
			TargetSDK:   "33",
		},
		Permissions: []Permission{
			{Name: "android.permission.INTERNET"},
			{Name: "android.permission.CAMERA", IsDangerous: true},
		},
		SignatureInfo: &SignatureInfo{ValidTo: "Mon, 01 Jan 2029 00:00:00 +0000"},
	}

	summary := summarizeAt(info, now)

	assert.Equal(t, "2.3 (7)", summary.FormattedVersionInfo)
	assert.Equal(t, "Min SDK: 21, Target SDK: 33", summary.FormattedSDKInfo)
	assert.Equal(t, PermissionStats{Total: 2, Dangerous: 1}, summary.PermissionStats)
	assert.Len(t, summary.DangerousPermissions, 1)
	assert.Equal(t, RiskLow, summary.PermissionAnalysis.RiskLevel)
	assert.True(t, summary.IsCertificateExpired)
}

func TestIsCertificateExpired(t *testing.T) {
	now := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

	assert.False(t, IsCertificateExpired(nil, now))
	assert.False(t, IsCertificateExpired(&SignatureInfo{ValidTo: UnknownValue}, now))
	assert.False(t, IsCertificateExpired(&SignatureInfo{ValidTo: "Tue, 10 Mar 2054 00:00:00 +0000"}, now))
	assert.True(t, IsCertificateExpired(&SignatureInfo{ValidTo: "Fri, 1 Mar 2024 00:00:00 +0000"}, now))
}
