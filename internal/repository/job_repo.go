package repository

import (
	"context"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// JobRepository 异步解析任务 Repository
type JobRepository interface {
	Create(ctx context.Context, job *domain.ParseJob) error
	FindByID(ctx context.Context, id string) (*domain.ParseJob, error)
	List(ctx context.Context, page int, pageSize int) ([]*domain.ParseJob, int64, error)
	ListQueued(ctx context.Context) ([]*domain.ParseJob, error)
	// RequeueRunning 把服务中断时仍在执行的任务改回排队状态
	RequeueRunning(ctx context.Context) (int64, error)
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, reportID string) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
}

type jobRepo struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewJobRepository 创建任务 Repository
func NewJobRepository(db *gorm.DB, logger *logrus.Logger) JobRepository {
	return &jobRepo{
		db:     db,
		logger: logger,
	}
}

func (r *jobRepo) Create(ctx context.Context, job *domain.ParseJob) error {
	job.CreatedAt = time.Now().UTC()
	if job.Status == "" {
		job.Status = domain.JobStatusQueued
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) FindByID(ctx context.Context, id string) (*domain.ParseJob, error) {
	var job domain.ParseJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) List(ctx context.Context, page int, pageSize int) ([]*domain.ParseJob, int64, error) {
	var jobs []*domain.ParseJob
	var total int64

	if err := r.db.WithContext(ctx).Model(&domain.ParseJob{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&jobs).Error

	return jobs, total, err
}

// ListQueued 所有排队中的任务，先进先出
func (r *jobRepo) ListQueued(ctx context.Context) ([]*domain.ParseJob, error) {
	var jobs []*domain.ParseJob
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.JobStatusQueued).
		Order("created_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepo) RequeueRunning(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.ParseJob{}).
		Where("status = ?", domain.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusQueued,
			"started_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		r.logger.WithField("count", result.RowsAffected).Warn("Interrupted parse jobs requeued")
	}
	return result.RowsAffected, nil
}

// MarkRunning 标记开始执行并增加尝试次数
func (r *jobRepo) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.update(ctx, id, map[string]interface{}{
		"status":     domain.JobStatusRunning,
		"started_at": &now,
		"attempts":   gorm.Expr("attempts + 1"),
	})
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id string, reportID string) error {
	now := time.Now().UTC()
	return r.update(ctx, id, map[string]interface{}{
		"status":        domain.JobStatusCompleted,
		"report_id":     reportID,
		"error_message": "",
		"completed_at":  &now,
	})
}

func (r *jobRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	now := time.Now().UTC()
	err := r.update(ctx, id, map[string]interface{}{
		"status":        domain.JobStatusFailed,
		"error_message": errorMessage,
		"completed_at":  &now,
	})
	if err == nil {
		r.logger.WithFields(logrus.Fields{
			"job_id": id,
			"error":  errorMessage,
		}).Warn("Parse job marked as failed")
	}
	return err
}

func (r *jobRepo) update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&domain.ParseJob{}).
		Where("id = ?", id).
		Updates(fields)

	if result.Error != nil {
		r.logger.WithError(result.Error).WithField("job_id", id).Error("Parse job update failed")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
