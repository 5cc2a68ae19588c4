package apkparser

import (
	"regexp"
)

var (
	badgingPackageRe     = regexp.MustCompile(`package: name='([^']+)'`)
	badgingVersionNameRe = regexp.MustCompile(`versionName='([^']+)'`)
	badgingVersionCodeRe = regexp.MustCompile(`versionCode='(\d+)'`)
	badgingMinSdkRe      = regexp.MustCompile(`sdkVersion:'(\d+)'`)
	badgingTargetSdkRe   = regexp.MustCompile(`targetSdkVersion:'(\d+)'`)
	badgingPermissionRe  = regexp.MustCompile(`uses-permission: name='([^']+)'`)
	badgingActivityRe    = regexp.MustCompile(`(?m)^activity: name='([^']+)'`)
	badgingLaunchableRe  = regexp.MustCompile(`launchable-activity: name='([^']+)'`)
	badgingIssuerRe      = regexp.MustCompile(`Issuer: ([^\n]+)`)
	badgingSubjectRe     = regexp.MustCompile(`Subject: ([^\n]+)`)
)

// BadgingInfo 从 dump badging 输出解析出的信息
type BadgingInfo struct {
	PackageInfo
	Permissions []Permission
	// Signature 输出中没有 Issuer/Subject 时为 nil
	Signature *SignatureInfo
}

// ParseBadging 解析 badging 文本，未找到包名时第二个返回值为 false
func ParseBadging(output string) (*BadgingInfo, bool) {
	match := badgingPackageRe.FindStringSubmatch(output)
	if len(match) < 2 {
		return nil, false
	}

	info := &BadgingInfo{
		PackageInfo: PackageInfo{
			PackageName:  match[1],
			VersionName:  firstSubmatch(badgingVersionNameRe, output, UnknownValue),
			VersionCode:  firstSubmatch(badgingVersionCodeRe, output, "0"),
			MinSDK:       firstSubmatch(badgingMinSdkRe, output, UnknownValue),
			TargetSDK:    firstSubmatch(badgingTargetSdkRe, output, UnknownValue),
			MainActivity: badgingMainActivity(output),
		},
		Permissions: []Permission{},
		Signature:   badgingSignature(output),
	}

	for _, m := range badgingPermissionRe.FindAllStringSubmatch(output, -1) {
		info.Permissions = append(info.Permissions, Permission{
			Name:        m[1],
			IsDangerous: IsDangerousBadgingPermission(m[1]),
		})
	}

	return info, true
}

// badgingMainActivity 依次尝试 launchable-activity 行、带 MAIN/LAUNCHER 的 activity 块、第一个 activity
func badgingMainActivity(output string) string {
	if match := badgingLaunchableRe.FindStringSubmatch(output); len(match) > 1 {
		return match[1]
	}

	matches := badgingActivityRe.FindAllStringSubmatchIndex(output, -1)
	if len(matches) == 0 {
		return ""
	}

	for i, m := range matches {
		name := output[m[2]:m[3]]
		end := len(output)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		launcherRe, err := regexp.Compile(`^activity: name='` + regexp.QuoteMeta(name) +
			`'[\s\S]*?action: name='android.intent.action.MAIN'[\s\S]*?category: name='android.intent.category.LAUNCHER'`)
		if err != nil {
			continue
		}
		if launcherRe.MatchString(output[m[0]:end]) {
			return name
		}
	}

	return output[matches[0][2]:matches[0][3]]
}

func badgingSignature(output string) *SignatureInfo {
	issuer := firstSubmatch(badgingIssuerRe, output, "")
	subject := firstSubmatch(badgingSubjectRe, output, "")
	if issuer == "" && subject == "" {
		return nil
	}

	if issuer == "" {
		issuer = UnknownValue
	}
	if subject == "" {
		subject = UnknownValue
	}

	return &SignatureInfo{
		Issuer:    issuer,
		Subject:   subject,
		ValidFrom: UnknownValue,
		ValidTo:   UnknownValue,
	}
}
