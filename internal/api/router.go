package api

import (
	"net/http"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/api/handlers"
	"github.com/apk-analysis/apk-inspector-go/internal/config"
	"github.com/apk-analysis/apk-inspector-go/internal/events"
	"github.com/apk-analysis/apk-inspector-go/internal/middleware"
	"github.com/apk-analysis/apk-inspector-go/internal/service"
	"github.com/apk-analysis/apk-inspector-go/internal/tempfiles"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Version 服务版本
const Version = "1.0.0"

// Dependencies 路由依赖，可选组件为 nil 时对应路由不注册
type Dependencies struct {
	ReportService service.ReportService
	JobService    service.JobService
	Uploads       *tempfiles.Registry
	Hub           *events.Hub
	MemMonitor    *middleware.MemoryMonitor
	PromMetrics   *middleware.PrometheusMetrics
}

func SetupRouter(cfg *config.Config, logger *logrus.Logger, deps Dependencies) *gin.Engine {
	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	// Prometheus 监控中间件
	if deps.PromMetrics != nil {
		r.Use(deps.PromMetrics.HTTPMiddleware())
		r.GET("/metrics", deps.PromMetrics.Handler())
	}

	// 内存监控端点
	if deps.MemMonitor != nil {
		r.GET("/debug/memory", deps.MemMonitor.MetricsEndpoint())
	}

	maxSize := cfg.Upload.MaxSizeMB * 1024 * 1024
	reportHandler := handlers.NewReportHandler(deps.ReportService, deps.Uploads, maxSize, logger)

	// 实时报告推送
	if deps.Hub != nil {
		r.GET("/ws/reports", middleware.AuthMiddleware(cfg.Server.APIToken), deps.Hub.HandleWebSocket)
	}

	// 健康检查（无需认证）
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": Version,
		})
	})

	v1 := r.Group("/api")
	v1.Use(middleware.AuthMiddleware(cfg.Server.APIToken))
	{
		v1.POST("/parse", reportHandler.Parse)
		v1.GET("/stats", reportHandler.GetStats)

		// 报告管理
		v1.GET("/reports", reportHandler.ListReports)
		v1.GET("/reports/:id", reportHandler.GetReport)
		v1.DELETE("/reports/:id", reportHandler.DeleteReport)
		v1.GET("/reports/:id/icon", reportHandler.GetIcon)
		v1.GET("/reports/:id/pdf", reportHandler.GetPDF)

		// 异步任务
		if deps.JobService != nil {
			jobHandler := handlers.NewJobHandler(deps.JobService, cfg.Upload.Dir, maxSize, logger)
			v1.POST("/jobs", jobHandler.SubmitJob)
			v1.GET("/jobs", jobHandler.ListJobs)
			v1.GET("/jobs/:id", jobHandler.GetJob)
		}
	}

	return r
}

// LoggerMiddleware 日志中间件
func LoggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		method := c.Request.Method
		path := c.Request.URL.Path

		logger.WithFields(logrus.Fields{
			"status":  statusCode,
			"method":  method,
			"path":    path,
			"latency": latency.Milliseconds(),
		}).Info("HTTP Request")
	}
}

// CORSMiddleware CORS 中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.TokenHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
