package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/apk-analysis/apk-inspector-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// JobHandler 异步解析任务处理器
type JobHandler struct {
	jobService service.JobService
	uploadDir  string
	maxSize    int64
	logger     *logrus.Logger
}

// NewJobHandler 创建任务处理器实例
// 任务文件保存在 uploadDir 中，服务重启后排队任务仍可继续执行
func NewJobHandler(jobService service.JobService, uploadDir string, maxSize int64, logger *logrus.Logger) *JobHandler {
	return &JobHandler{
		jobService: jobService,
		uploadDir:  uploadDir,
		maxSize:    maxSize,
		logger:     logger,
	}
}

// SubmitJob 上传 APK 并创建异步解析任务
// POST /api/jobs
func (h *JobHandler) SubmitJob(c *gin.Context) {
	path, fileName, ok := saveUpload(c, h.maxSize, uploadDest{
		create: func() (*os.File, error) {
			if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
				return nil, err
			}
			return os.Create(filepath.Join(h.uploadDir, uuid.New().String()+".apk"))
		},
		remove: removeFile,
	}, h.logger)
	if !ok {
		return
	}

	job, err := h.jobService.Submit(c.Request.Context(), path, fileName, domain.JobOriginUpload)
	if err != nil {
		if rmErr := removeFile(path); rmErr != nil {
			h.logger.WithError(rmErr).WithField("path", path).Warn("Failed to remove uploaded file")
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "创建解析任务失败",
		})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// ListJobs 获取任务列表
// GET /api/jobs?page=1&page_size=20
func (h *JobHandler) ListJobs(c *gin.Context) {
	page, pageSize := pagination(c)

	jobs, total, err := h.jobService.ListJobs(c.Request.Context(), page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "获取任务列表失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":        jobs,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages(total, pageSize),
	})
}

// GetJob 获取任务状态
// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobService.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error": "任务不存在",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}
