package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/apk-analysis/apk-inspector-go/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoDispatcher 尚未配置任务分发器
var ErrNoDispatcher = errors.New("job dispatcher not configured")

// JobDispatcher 把任务交给执行方（RabbitMQ 或进程内 worker 池）
type JobDispatcher interface {
	Dispatch(ctx context.Context, job *domain.ParseJob) error
}

// JobObserver 任务状态观察者
type JobObserver interface {
	RecordJobQueued()
	RecordJobStarted()
	RecordJobFinished(failed bool)
}

// JobService 异步解析任务服务接口
type JobService interface {
	// 创建任务并分发
	Submit(ctx context.Context, apkPath string, fileName string, origin domain.JobOrigin) (*domain.ParseJob, error)

	// 执行任务（worker / 消费者调用）
	Run(ctx context.Context, jobID string) error

	GetJob(ctx context.Context, id string) (*domain.ParseJob, error)
	ListJobs(ctx context.Context, page int, pageSize int) ([]*domain.ParseJob, int64, error)

	// 重新分发启动前遗留的排队任务
	ResumeQueued(ctx context.Context) (int, error)

	SetDispatcher(dispatcher JobDispatcher)
}

type jobService struct {
	jobRepo       repository.JobRepository
	reportService ReportService
	dispatcher    JobDispatcher
	observers     []JobObserver
	logger        *logrus.Logger
}

// NewJobService 创建任务服务实例
func NewJobService(jobRepo repository.JobRepository, reportService ReportService, logger *logrus.Logger, observers ...JobObserver) JobService {
	return &jobService{
		jobRepo:       jobRepo,
		reportService: reportService,
		observers:     observers,
		logger:        logger,
	}
}

func (s *jobService) SetDispatcher(dispatcher JobDispatcher) {
	s.dispatcher = dispatcher
}

func (s *jobService) Submit(ctx context.Context, apkPath string, fileName string, origin domain.JobOrigin) (*domain.ParseJob, error) {
	if s.dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	job := &domain.ParseJob{
		ID:       uuid.New().String(),
		FileName: fileName,
		APKPath:  apkPath,
		Origin:   origin,
		Status:   domain.JobStatusQueued,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		s.logger.WithError(err).Error("Failed to create parse job")
		return nil, fmt.Errorf("创建任务失败: %w", err)
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to dispatch parse job")
		if markErr := s.jobRepo.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			s.logger.WithError(markErr).WithField("job_id", job.ID).Warn("Failed to mark job as failed")
		}
		return nil, fmt.Errorf("分发任务失败: %w", err)
	}

	for _, o := range s.observers {
		o.RecordJobQueued()
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"file_name": fileName,
		"origin":    origin,
	}).Info("Parse job submitted")
	return job, nil
}

func (s *jobService) Run(ctx context.Context, jobID string) error {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("获取任务失败: %w", err)
	}
	if job.Status.IsTerminal() {
		s.logger.WithField("job_id", jobID).Info("Parse job already finished, skipping")
		return nil
	}

	if err := s.jobRepo.MarkRunning(ctx, jobID); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	for _, o := range s.observers {
		o.RecordJobStarted()
	}

	result, err := s.reportService.Analyze(ctx, job.APKPath, job.FileName)
	for _, o := range s.observers {
		o.RecordJobFinished(err != nil)
	}
	if err != nil {
		if markErr := s.jobRepo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.WithError(markErr).WithField("job_id", jobID).Warn("Failed to mark job as failed")
			return err
		}
		s.releaseUpload(job)
		return err
	}

	if err := s.jobRepo.MarkCompleted(ctx, jobID, result.Report.ID); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	s.releaseUpload(job)
	return nil
}

// releaseUpload 任务结束后删除上传副本，投递目录中的文件归用户所有
func (s *jobService) releaseUpload(job *domain.ParseJob) {
	if job.Origin != domain.JobOriginUpload {
		return
	}
	if err := os.Remove(job.APKPath); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"job_id": job.ID,
			"path":   job.APKPath,
		}).Warn("Failed to remove uploaded APK")
	}
}

func (s *jobService) GetJob(ctx context.Context, id string) (*domain.ParseJob, error) {
	job, err := s.jobRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("获取任务失败: %w", err)
	}
	return job, nil
}

func (s *jobService) ListJobs(ctx context.Context, page int, pageSize int) ([]*domain.ParseJob, int64, error) {
	jobs, total, err := s.jobRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("获取任务列表失败: %w", err)
	}
	return jobs, total, nil
}

func (s *jobService) ResumeQueued(ctx context.Context) (int, error) {
	if s.dispatcher == nil {
		return 0, ErrNoDispatcher
	}

	if _, err := s.jobRepo.RequeueRunning(ctx); err != nil {
		return 0, fmt.Errorf("重置中断任务失败: %w", err)
	}

	jobs, err := s.jobRepo.ListQueued(ctx)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, job := range jobs {
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to resume queued job")
			continue
		}
		resumed++
	}

	if resumed > 0 {
		s.logger.WithField("count", resumed).Info("Resumed queued parse jobs")
	}
	return resumed, nil
}
