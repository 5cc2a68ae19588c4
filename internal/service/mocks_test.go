package service

import (
	"context"
	"io"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// MockParser Mock 解析器
type MockParser struct {
	mock.Mock
}

func (m *MockParser) Parse(ctx context.Context, apkPath string) (*apkparser.ApkInfo, error) {
	args := m.Called(ctx, apkPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apkparser.ApkInfo), args.Error(1)
}

// MockReportRepository Mock Repository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *domain.ApkReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) Upsert(ctx context.Context, report *domain.ApkReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) FindByID(ctx context.Context, id string) (*domain.ApkReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApkReport), args.Error(1)
}

func (m *MockReportRepository) FindBySHA256(ctx context.Context, sha256 string) (*domain.ApkReport, error) {
	args := m.Called(ctx, sha256)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApkReport), args.Error(1)
}

func (m *MockReportRepository) List(ctx context.Context, page int, pageSize int, search string) ([]*domain.ApkReport, int64, error) {
	args := m.Called(ctx, page, pageSize, search)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.ApkReport), args.Get(1).(int64), args.Error(2)
}

func (m *MockReportRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockReportRepository) CountByRiskLevel(ctx context.Context) (map[string]int64, int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(map[string]int64), args.Get(1).(int64), args.Error(2)
}

// MockJobRepository Mock Repository
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.ParseJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id string) (*domain.ParseJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParseJob), args.Error(1)
}

func (m *MockJobRepository) List(ctx context.Context, page int, pageSize int) ([]*domain.ParseJob, int64, error) {
	args := m.Called(ctx, page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.ParseJob), args.Get(1).(int64), args.Error(2)
}

func (m *MockJobRepository) ListQueued(ctx context.Context) ([]*domain.ParseJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ParseJob), args.Error(1)
}

func (m *MockJobRepository) RequeueRunning(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) MarkRunning(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockJobRepository) MarkCompleted(ctx context.Context, id string, reportID string) error {
	return m.Called(ctx, id, reportID).Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	return m.Called(ctx, id, errorMessage).Error(0)
}

// MockObserver Mock 观察者
type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) ParseSucceeded(report *domain.ApkReport, duration time.Duration) {
	m.Called(report, duration)
}

func (m *MockObserver) ParseFailed(fileName string, err error, duration time.Duration) {
	m.Called(fileName, err, duration)
}

// MockDispatcher Mock 分发器
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, job *domain.ParseJob) error {
	return m.Called(ctx, job).Error(0)
}

// MockReportService Mock 报告服务
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Analyze(ctx context.Context, apkPath string, fileName string) (*AnalysisResult, error) {
	args := m.Called(ctx, apkPath, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AnalysisResult), args.Error(1)
}

func (m *MockReportService) GetReport(ctx context.Context, id string) (*domain.ApkReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApkReport), args.Error(1)
}

func (m *MockReportService) GetInfo(ctx context.Context, id string) (*apkparser.ApkInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apkparser.ApkInfo), args.Error(1)
}

func (m *MockReportService) ListReports(ctx context.Context, page int, pageSize int, search string) ([]*domain.ApkReport, int64, error) {
	args := m.Called(ctx, page, pageSize, search)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.ApkReport), args.Get(1).(int64), args.Error(2)
}

func (m *MockReportService) DeleteReport(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockReportService) GetRiskCounts(ctx context.Context) (map[string]int64, int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(map[string]int64), args.Get(1).(int64), args.Error(2)
}

// MockJobObserver 任务观察者 Mock
type MockJobObserver struct {
	mock.Mock
}

func (m *MockJobObserver) RecordJobQueued() {
	m.Called()
}

func (m *MockJobObserver) RecordJobStarted() {
	m.Called()
}

func (m *MockJobObserver) RecordJobFinished(failed bool) {
	m.Called(failed)
}

// retryCountingObserver 同时记录解析结果与重试次数
type retryCountingObserver struct {
	succeeded  int
	failed     int
	operations []string
}

func (o *retryCountingObserver) ParseSucceeded(report *domain.ApkReport, duration time.Duration) {
	o.succeeded++
}

func (o *retryCountingObserver) ParseFailed(fileName string, err error, duration time.Duration) {
	o.failed++
}

func (o *retryCountingObserver) RecordRetryAttempt(operation string, attempt int, err error) {
	o.operations = append(o.operations, operation)
}
