package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/apk-analysis/apk-inspector-go/internal/repository"
	"github.com/apk-analysis/apk-inspector-go/internal/retry"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Parser APK 解析器
type Parser interface {
	Parse(ctx context.Context, apkPath string) (*apkparser.ApkInfo, error)
}

// ParseObserver 解析结果观察者（指标、实时推送）
type ParseObserver interface {
	ParseSucceeded(report *domain.ApkReport, duration time.Duration)
	ParseFailed(fileName string, err error, duration time.Duration)
}

// RetryRecorder 重试观察者，观察者同时实现该接口时会收到保存重试通知
type RetryRecorder interface {
	RecordRetryAttempt(operation string, attempt int, err error)
}

// AnalysisResult 一次解析的完整结果
type AnalysisResult struct {
	Report  *domain.ApkReport  `json:"report"`
	Info    *apkparser.ApkInfo `json:"info"`
	Summary *apkparser.Summary `json:"summary"`
}

// ReportService 报告服务接口
type ReportService interface {
	// 解析 APK 并保存报告
	Analyze(ctx context.Context, apkPath string, fileName string) (*AnalysisResult, error)

	// 获取报告
	GetReport(ctx context.Context, id string) (*domain.ApkReport, error)

	// 获取报告对应的完整解析结果
	GetInfo(ctx context.Context, id string) (*apkparser.ApkInfo, error)

	// 获取报告列表（分页）
	ListReports(ctx context.Context, page int, pageSize int, search string) ([]*domain.ApkReport, int64, error)

	// 删除报告
	DeleteReport(ctx context.Context, id string) error

	// 各风险等级报告数量
	GetRiskCounts(ctx context.Context) (map[string]int64, int64, error)
}

type reportService struct {
	parser     Parser
	reportRepo repository.ReportRepository
	observers  []ParseObserver
	retryCfg   *retry.Config
	logger     *logrus.Logger
}

// NewReportService 创建报告服务实例
func NewReportService(parser Parser, reportRepo repository.ReportRepository, logger *logrus.Logger, observers ...ParseObserver) ReportService {
	retryCfg := retry.DefaultConfig()
	retryCfg.InitialInterval = 200 * time.Millisecond
	retryCfg.MaxInterval = 2 * time.Second
	retryCfg.Timeout = 30 * time.Second
	retryCfg.Logger = logger
	retryCfg.Operation = "save_report"

	var recorders []RetryRecorder
	for _, o := range observers {
		if r, ok := o.(RetryRecorder); ok {
			recorders = append(recorders, r)
		}
	}
	if len(recorders) > 0 {
		retryCfg.OnRetry = func(operation string, attempt int, err error) {
			for _, r := range recorders {
				r.RecordRetryAttempt(operation, attempt, err)
			}
		}
	}

	return &reportService{
		parser:     parser,
		reportRepo: reportRepo,
		observers:  observers,
		retryCfg:   retryCfg,
		logger:     logger,
	}
}

func (s *reportService) Analyze(ctx context.Context, apkPath string, fileName string) (*AnalysisResult, error) {
	startTime := time.Now()

	info, err := s.parser.Parse(ctx, apkPath)
	if err != nil {
		s.notifyFailed(fileName, err, time.Since(startTime))
		return nil, fmt.Errorf("解析 APK 失败: %w", err)
	}

	summary := apkparser.Summarize(info)
	report, err := buildReport(info, summary, fileName)
	if err != nil {
		s.notifyFailed(fileName, err, time.Since(startTime))
		return nil, err
	}
	report.DurationMs = time.Since(startTime).Milliseconds()

	// 同一文件重复上传只保留一份报告
	err = retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		return s.reportRepo.Upsert(ctx, report)
	})
	if err != nil {
		s.logger.WithError(err).WithField("file_name", fileName).Error("Failed to save report")
		s.notifyFailed(fileName, err, time.Since(startTime))
		return nil, fmt.Errorf("保存报告失败: %w", err)
	}

	duration := time.Since(startTime)
	s.logger.WithFields(logrus.Fields{
		"report_id":    report.ID,
		"package_name": report.PackageName,
		"risk_level":   report.RiskLevel,
		"duration_ms":  duration.Milliseconds(),
	}).Info("APK analyzed successfully")

	for _, o := range s.observers {
		o.ParseSucceeded(report, duration)
	}

	return &AnalysisResult{
		Report:  report,
		Info:    info,
		Summary: summary,
	}, nil
}

func (s *reportService) notifyFailed(fileName string, err error, duration time.Duration) {
	for _, o := range s.observers {
		o.ParseFailed(fileName, err, duration)
	}
}

// buildReport 将解析结果展开为可查询的报告行
func buildReport(info *apkparser.ApkInfo, summary *apkparser.Summary, fileName string) (*domain.ApkReport, error) {
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("序列化解析结果失败: %w", err)
	}

	report := &domain.ApkReport{
		ID:              uuid.New().String(),
		FileName:        fileName,
		PackageName:     info.PackageName,
		VersionName:     info.VersionName,
		VersionCode:     info.VersionCode,
		MinSDK:          info.MinSDK,
		TargetSDK:       info.TargetSDK,
		MainActivity:    info.MainActivity,
		PermissionCount: summary.PermissionStats.Total,
		DangerousCount:  summary.PermissionStats.Dangerous,
		RiskLevel:       string(summary.PermissionAnalysis.RiskLevel),
		CertExpired:     summary.IsCertificateExpired,
		Source:          domain.ReportSource(info.Source),
		HasIcon:         info.IconBase64 != "",
		InfoJSON:        string(infoJSON),
	}

	if info.FileInfo != nil {
		report.MD5 = info.FileInfo.MD5
		report.SHA1 = info.FileInfo.SHA1
		report.SHA256 = info.FileInfo.SHA256
		report.FileSize = info.FileInfo.FileSize
		report.EntryCount = info.FileInfo.EntryCount
	}

	if info.Packer != nil && info.Packer.Packed {
		report.PackerName = info.Packer.Name
	}

	if info.SignatureInfo != nil {
		report.SignerIssuer = info.SignatureInfo.Issuer
		report.SignerSubject = info.SignatureInfo.Subject
	}

	for _, p := range info.Permissions {
		report.Permissions = append(report.Permissions, domain.ReportPermission{
			Name:        p.Name,
			IsDangerous: p.IsDangerous,
		})
	}

	return report, nil
}

func (s *reportService) GetReport(ctx context.Context, id string) (*domain.ApkReport, error) {
	report, err := s.reportRepo.FindByID(ctx, id)
	if err != nil {
		s.logger.WithError(err).WithField("report_id", id).Warn("Failed to get report")
		return nil, fmt.Errorf("获取报告失败: %w", err)
	}
	return report, nil
}

func (s *reportService) GetInfo(ctx context.Context, id string) (*apkparser.ApkInfo, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	var info apkparser.ApkInfo
	if err := json.Unmarshal([]byte(report.InfoJSON), &info); err != nil {
		return nil, fmt.Errorf("解析报告数据失败: %w", err)
	}
	return &info, nil
}

func (s *reportService) ListReports(ctx context.Context, page int, pageSize int, search string) ([]*domain.ApkReport, int64, error) {
	reports, total, err := s.reportRepo.List(ctx, page, pageSize, search)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list reports")
		return nil, 0, fmt.Errorf("获取报告列表失败: %w", err)
	}
	return reports, total, nil
}

func (s *reportService) DeleteReport(ctx context.Context, id string) error {
	if err := s.reportRepo.Delete(ctx, id); err != nil {
		s.logger.WithError(err).WithField("report_id", id).Warn("Failed to delete report")
		return fmt.Errorf("删除报告失败: %w", err)
	}

	s.logger.WithField("report_id", id).Info("Report deleted successfully")
	return nil
}

func (s *reportService) GetRiskCounts(ctx context.Context) (map[string]int64, int64, error) {
	return s.reportRepo.CountByRiskLevel(ctx)
}
