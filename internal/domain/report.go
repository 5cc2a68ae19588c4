package domain

import (
	"time"
)

// ReportSource 报告中包信息的来源
type ReportSource string

const (
	ReportSourceDecoder  ReportSource = "decoder"
	ReportSourceInternal ReportSource = "internal"
)

// ApkReport APK 解析报告表
type ApkReport struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FileName string `gorm:"type:varchar(255)" json:"file_name"`

	// 包信息（冗余存储，方便查询）
	PackageName  string `gorm:"type:varchar(255);index:idx_report_package_name" json:"package_name"`
	VersionName  string `gorm:"type:varchar(100)" json:"version_name"`
	VersionCode  string `gorm:"type:varchar(20)" json:"version_code"`
	MinSDK       string `gorm:"type:varchar(20)" json:"min_sdk"`
	TargetSDK    string `gorm:"type:varchar(20)" json:"target_sdk"`
	MainActivity string `gorm:"type:varchar(255)" json:"main_activity,omitempty"`

	// 文件摘要
	MD5        string `gorm:"type:varchar(32)" json:"md5"`
	SHA1       string `gorm:"type:varchar(40)" json:"sha1"`
	SHA256     string `gorm:"type:varchar(64);uniqueIndex:uk_report_sha256;not null" json:"sha256"`
	FileSize   int64  `json:"file_size"`
	EntryCount int    `gorm:"default:0" json:"entry_count"`

	// 权限统计
	PermissionCount int    `gorm:"default:0" json:"permission_count"`
	DangerousCount  int    `gorm:"default:0" json:"dangerous_count"`
	RiskLevel       string `gorm:"type:varchar(10)" json:"risk_level"`

	// 签名信息
	SignerIssuer  string `gorm:"type:varchar(500)" json:"signer_issuer,omitempty"`
	SignerSubject string `gorm:"type:varchar(500)" json:"signer_subject,omitempty"`
	CertExpired   bool   `gorm:"default:false" json:"cert_expired"`

	Source     ReportSource `gorm:"type:varchar(20)" json:"source"`
	HasIcon    bool         `gorm:"default:false" json:"has_icon"`
	PackerName string       `gorm:"type:varchar(100)" json:"packer_name,omitempty"` // 未检测到加固时为空
	DurationMs int64        `json:"duration_ms"`

	// 完整解析结果 JSON
	InfoJSON string `gorm:"type:mediumtext" json:"-"`

	Permissions []ReportPermission `gorm:"foreignKey:ReportID" json:"permissions,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ApkReport) TableName() string {
	return "apk_reports"
}

// ReportPermission 报告中声明的权限，按出现顺序保存
type ReportPermission struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	ReportID    string `gorm:"type:varchar(36);index:idx_permission_report_id;not null" json:"-"`
	Position    int    `gorm:"not null" json:"position"`
	Name        string `gorm:"type:varchar(255);index:idx_permission_name" json:"name"`
	IsDangerous bool   `json:"is_dangerous"`
}

func (ReportPermission) TableName() string {
	return "apk_report_permissions"
}
