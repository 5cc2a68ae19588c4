package apkparser

import "github.com/apk-analysis/apk-inspector-go/internal/packer"

// ApkFileType APK 文件的 MIME 类型
const ApkFileType = "application/vnd.android.package-archive"

// Source 包信息的来源
type Source string

const (
	SourceDecoder  Source = "decoder"  // aapt2 dump badging
	SourceInternal Source = "internal" // 内部流水线 (manifest 文本 + 正则)
)

// PackageInfo 包身份信息
type PackageInfo struct {
	PackageName  string `json:"package_name" yaml:"package_name"`
	VersionName  string `json:"version_name" yaml:"version_name"`
	VersionCode  string `json:"version_code" yaml:"version_code"`
	MinSDK       string `json:"min_sdk" yaml:"min_sdk"`
	TargetSDK    string `json:"target_sdk" yaml:"target_sdk"`
	MainActivity string `json:"main_activity,omitempty" yaml:"main_activity,omitempty"`
}

// Permission 权限条目
type Permission struct {
	Name            string `json:"name" yaml:"name"`
	IsDangerous     bool   `json:"is_dangerous" yaml:"is_dangerous"`
	ProtectionLevel string `json:"protection_level,omitempty" yaml:"protection_level,omitempty"`
	Group           string `json:"group,omitempty" yaml:"group,omitempty"`
	Description     string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SignatureInfo 签名证书信息
// ValidFrom / ValidTo 是展示用字符串，不保证可解析
type SignatureInfo struct {
	Issuer            string `json:"issuer" yaml:"issuer"`
	Subject           string `json:"subject" yaml:"subject"`
	ValidFrom         string `json:"valid_from" yaml:"valid_from"`
	ValidTo           string `json:"valid_to" yaml:"valid_to"`
	FingerprintSHA1   string `json:"fingerprint_sha1,omitempty" yaml:"fingerprint_sha1,omitempty"`
	FingerprintSHA256 string `json:"fingerprint_sha256,omitempty" yaml:"fingerprint_sha256,omitempty"`
}

// FileInfo 文件摘要信息
type FileInfo struct {
	MD5        string `json:"md5" yaml:"md5"`
	SHA1       string `json:"sha1" yaml:"sha1"`
	SHA256     string `json:"sha256" yaml:"sha256"`
	FileSize   int64  `json:"file_size" yaml:"file_size"`
	FileType   string `json:"file_type" yaml:"file_type"`
	EntryCount int    `json:"entry_count" yaml:"entry_count"`
}

// SecurityConfig 从 manifest 文本推导出的安全配置
// 每个字段都是独立的子串判断，互不校验
type SecurityConfig struct {
	UsesCleartextTraffic     bool  `json:"uses_cleartext_traffic" yaml:"uses_cleartext_traffic"`
	Debuggable               bool  `json:"debuggable" yaml:"debuggable"`
	BackupAllowed            bool  `json:"backup_allowed" yaml:"backup_allowed"`
	AllowBackup              bool  `json:"allow_backup" yaml:"allow_backup"`
	UsesPermissionFlags      bool  `json:"uses_permission_flags" yaml:"uses_permission_flags"`
	HasNetworkSecurityConfig *bool `json:"has_network_security_config,omitempty" yaml:"has_network_security_config,omitempty"`
	PreventsScreenshots      *bool `json:"prevents_screenshots,omitempty" yaml:"prevents_screenshots,omitempty"`
	UsesEncryption           *bool `json:"uses_encryption,omitempty" yaml:"uses_encryption,omitempty"`
}

// ApkInfo 一次解析的完整结果，构建后不再修改
type ApkInfo struct {
	PackageInfo    `yaml:",inline"`
	Permissions    []Permission    `json:"permissions" yaml:"permissions"`
	SignatureInfo  *SignatureInfo  `json:"signature_info,omitempty" yaml:"signature_info,omitempty"`
	FileInfo       *FileInfo       `json:"file_info,omitempty" yaml:"file_info,omitempty"`
	IconBase64     string          `json:"icon_base64,omitempty" yaml:"icon_base64,omitempty"`
	SecurityConfig *SecurityConfig `json:"security_config,omitempty" yaml:"security_config,omitempty"`
	Packer         *packer.Info    `json:"packer,omitempty" yaml:"packer,omitempty"`
	Source         Source          `json:"source" yaml:"source"`
}
