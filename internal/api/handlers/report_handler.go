package handlers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/report"
	"github.com/apk-analysis/apk-inspector-go/internal/service"
	"github.com/apk-analysis/apk-inspector-go/internal/tempfiles"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ReportHandler 解析报告处理器
type ReportHandler struct {
	reportService service.ReportService
	uploads       *tempfiles.Registry
	maxSize       int64
	pdfOptions    report.Options
	logger        *logrus.Logger
}

// NewReportHandler 创建报告处理器实例
func NewReportHandler(reportService service.ReportService, uploads *tempfiles.Registry, maxSize int64, logger *logrus.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		uploads:       uploads,
		maxSize:       maxSize,
		pdfOptions:    report.Options{FontPath: os.Getenv(report.FontEnv)},
		logger:        logger,
	}
}

// Parse 上传并同步解析 APK
// POST /api/parse
func (h *ReportHandler) Parse(c *gin.Context) {
	path, fileName, ok := saveUpload(c, h.maxSize, uploadDest{
		create: func() (*os.File, error) { return h.uploads.Create("upload-*.apk") },
		remove: h.uploads.Remove,
	}, h.logger)
	if !ok {
		return
	}
	defer func() {
		if err := h.uploads.Remove(path); err != nil {
			h.logger.WithError(err).WithField("path", path).Warn("Failed to remove uploaded file")
		}
	}()

	result, err := h.reportService.Analyze(c.Request.Context(), path, fileName)
	if err != nil {
		h.logger.WithError(err).WithField("file_name", fileName).Warn("APK parse failed")
		c.JSON(errorStatus(err), gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListReports 获取报告列表
// GET /api/reports?page=1&page_size=20&search=关键词
func (h *ReportHandler) ListReports(c *gin.Context) {
	page, pageSize := pagination(c)

	reports, total, err := h.reportService.ListReports(c.Request.Context(), page, pageSize, c.Query("search"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "获取报告列表失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reports":     reports,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages(total, pageSize),
	})
}

// GetReport 获取报告详情（含完整解析结果）
// GET /api/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	id := c.Param("id")

	rep, err := h.reportService.GetReport(c.Request.Context(), id)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error": "报告不存在",
		})
		return
	}

	info, err := h.reportService.GetInfo(c.Request.Context(), id)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error": "读取解析结果失败",
		})
		return
	}

	c.JSON(http.StatusOK, service.AnalysisResult{
		Report:  rep,
		Info:    info,
		Summary: apkparser.Summarize(info),
	})
}

// DeleteReport 删除报告
// DELETE /api/reports/:id
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	id := c.Param("id")

	if err := h.reportService.DeleteReport(c.Request.Context(), id); err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error": "删除报告失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "报告已删除",
	})
}

// GetIcon 返回应用图标原始字节
// GET /api/reports/:id/icon
func (h *ReportHandler) GetIcon(c *gin.Context) {
	info, err := h.reportService.GetInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error": "报告不存在",
		})
		return
	}

	if info.IconBase64 == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "该 APK 没有可用图标",
		})
		return
	}

	data, err := base64.StdEncoding.DecodeString(info.IconBase64)
	if err != nil {
		h.logger.WithError(err).WithField("report_id", c.Param("id")).Error("Failed to decode stored icon")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "图标数据损坏",
		})
		return
	}

	c.Header("Cache-Control", "max-age=3600")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// GetPDF 导出 PDF 检查报告
// GET /api/reports/:id/pdf
func (h *ReportHandler) GetPDF(c *gin.Context) {
	id := c.Param("id")

	rep, err := h.reportService.GetReport(c.Request.Context(), id)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error": "报告不存在",
		})
		return
	}

	info, err := h.reportService.GetInfo(c.Request.Context(), id)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error": "读取解析结果失败",
		})
		return
	}

	opts := h.pdfOptions
	opts.GeneratedAt = time.Now()

	var buf bytes.Buffer
	if err := report.Render(&buf, rep.FileName, info, nil, opts); err != nil {
		h.logger.WithError(err).WithField("report_id", id).Error("Failed to render PDF report")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "生成 PDF 失败",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.pdf"`, rep.PackageName, rep.VersionName))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// GetStats 各风险等级报告统计
// GET /api/stats
func (h *ReportHandler) GetStats(c *gin.Context) {
	counts, total, err := h.reportService.GetRiskCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "获取统计信息失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":         total,
		"by_risk_level": counts,
	})
}
