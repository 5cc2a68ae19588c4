package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/apk-analysis/apk-inspector-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReportService Mock Service
type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) Analyze(ctx context.Context, apkPath string, fileName string) (*service.AnalysisResult, error) {
	args := m.Called(apkPath, fileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnalysisResult), args.Error(1)
}

func (m *MockReportService) GetReport(ctx context.Context, id string) (*domain.ApkReport, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApkReport), args.Error(1)
}

func (m *MockReportService) GetInfo(ctx context.Context, id string) (*apkparser.ApkInfo, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apkparser.ApkInfo), args.Error(1)
}

func (m *MockReportService) ListReports(ctx context.Context, page int, pageSize int, search string) ([]*domain.ApkReport, int64, error) {
	args := m.Called(page, pageSize, search)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.ApkReport), args.Get(1).(int64), args.Error(2)
}

func (m *MockReportService) DeleteReport(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockReportService) GetRiskCounts(ctx context.Context) (map[string]int64, int64, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(map[string]int64), args.Get(1).(int64), args.Error(2)
}

// MockJobService Mock Service
type MockJobService struct {
	mock.Mock
}

func (m *MockJobService) Submit(ctx context.Context, apkPath string, fileName string, origin domain.JobOrigin) (*domain.ParseJob, error) {
	args := m.Called(apkPath, fileName, origin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParseJob), args.Error(1)
}

func (m *MockJobService) Run(ctx context.Context, jobID string) error {
	args := m.Called(jobID)
	return args.Error(0)
}

func (m *MockJobService) GetJob(ctx context.Context, id string) (*domain.ParseJob, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParseJob), args.Error(1)
}

func (m *MockJobService) ListJobs(ctx context.Context, page int, pageSize int) ([]*domain.ParseJob, int64, error) {
	args := m.Called(page, pageSize)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.ParseJob), args.Get(1).(int64), args.Error(2)
}

func (m *MockJobService) ResumeQueued(ctx context.Context) (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *MockJobService) SetDispatcher(dispatcher service.JobDispatcher) {
	m.Called(dispatcher)
}

// setupTestRouter 设置测试路由
func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newUploadRequest 构造 multipart 上传请求
func newUploadRequest(t *testing.T, target string, fileName string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
