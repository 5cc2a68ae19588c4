package domain

import (
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal 是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobOrigin 任务来源
type JobOrigin string

const (
	JobOriginUpload  JobOrigin = "upload"  // HTTP 上传
	JobOriginWatcher JobOrigin = "watcher" // 投递目录
)

// ParseJob 异步解析任务表
type ParseJob struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FileName     string     `gorm:"type:varchar(255)" json:"file_name"`
	APKPath      string     `gorm:"type:varchar(1024)" json:"-"`
	Origin       JobOrigin  `gorm:"type:varchar(20)" json:"origin"`
	Status       JobStatus  `gorm:"type:varchar(20);index:idx_job_status;default:'queued'" json:"status"`
	ReportID     string     `gorm:"type:varchar(36)" json:"report_id,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	Attempts     int        `gorm:"default:0" json:"attempts"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (ParseJob) TableName() string {
	return "apk_parse_jobs"
}
