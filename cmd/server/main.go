package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/api"
	"github.com/apk-analysis/apk-inspector-go/internal/apkparser"
	"github.com/apk-analysis/apk-inspector-go/internal/config"
	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/apk-analysis/apk-inspector-go/internal/events"
	"github.com/apk-analysis/apk-inspector-go/internal/middleware"
	"github.com/apk-analysis/apk-inspector-go/internal/queue"
	"github.com/apk-analysis/apk-inspector-go/internal/repository"
	"github.com/apk-analysis/apk-inspector-go/internal/service"
	"github.com/apk-analysis/apk-inspector-go/internal/tempfiles"
	"github.com/apk-analysis/apk-inspector-go/internal/watcher"
	"github.com/apk-analysis/apk-inspector-go/internal/worker"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 1. 打印版本信息
	fmt.Printf("APK Inspector - Go Version\n")
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n\n", GitCommit)

	// 2. 加载配置
	configPath := "./configs/config.yaml"
	if len(os.Args) > 1 && os.Args[1] == "--config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 3. 初始化日志
	logger := config.InitLogger(&cfg.Log)
	logger.Infof("Starting APK Inspector %s", Version)
	logger.Infof("Config loaded from: %s", configPath)

	// 4. 初始化数据库
	db, err := repository.InitDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to init database: %v", err)
	}
	logger.Info("Database connected successfully")

	// 5. 监控：Prometheus 指标、内存监控、实时推送
	promMetrics := middleware.NewPrometheusMetrics(logger, cfg.Metrics.Namespace)

	memMonitor := middleware.NewMemoryMonitor(logger, 30*time.Second, promMetrics.UpdateMemoryStats)
	memMonitor.Start()
	defer memMonitor.Stop()
	logger.Info("Memory monitor started")

	stopDBStats := startDBStatsLoop(db, promMetrics, 10*time.Second)
	defer stopDBStats()

	hub := events.NewHub(logger)
	hub.Start()
	defer hub.Stop()

	// 6. 解析器与服务
	parser := apkparser.New(apkparser.Options{
		UseDecoder:  cfg.Parser.UseDecoder,
		DecoderPath: cfg.Parser.DecoderPath,
		SearchDirs:  cfg.Parser.SearchDirs,
	}, logger)

	reportRepo := repository.NewReportRepository(db, logger)
	jobRepo := repository.NewJobRepository(db, logger)
	reportService := service.NewReportService(parser, reportRepo, logger, promMetrics, hub)
	jobService := service.NewJobService(jobRepo, reportService, logger, promMetrics)

	// 7. 任务分发：启用 RabbitMQ 时走消息队列，否则使用进程内 Worker 池
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerPool := worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize, jobService.Run, logger)
	workerPool.SetStatsHook(promMetrics.UpdateWorkerPoolStats)

	if cfg.RabbitMQ.Enabled {
		mq, err := queue.NewRabbitMQ(queue.ConfigFrom(cfg.RabbitMQ), cfg.Worker.Concurrency, logger)
		if err != nil {
			logger.Fatalf("Failed to connect RabbitMQ: %v", err)
		}
		defer mq.Close()

		producer := queue.NewProducer(mq, logger)
		producer.SetRetryHook(promMetrics.RecordRetryAttempt)
		jobService.SetDispatcher(producer)

		consumer := queue.NewConsumer(mq, createJobHandler(jobService, logger), cfg.Worker.Concurrency, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatalf("Failed to start consumer: %v", err)
		}
		defer consumer.Stop()
		logger.Infof("Job consumer started with %d workers", cfg.Worker.Concurrency)
	} else {
		workerPool.Start(ctx)
		defer workerPool.Stop()
		jobService.SetDispatcher(workerPool)
		logger.Infof("Worker pool started with %d workers", cfg.Worker.Concurrency)
	}

	// 服务重启后以数据库为准重新分发排队任务
	if _, err := jobService.ResumeQueued(ctx); err != nil {
		logger.WithError(err).Warn("Failed to resume queued jobs")
	}

	// 8. 启动投递目录监控
	if cfg.Watcher.Enabled {
		fileWatcher, err := watcher.NewFileWatcher(cfg.Watcher.Dir, watcher.Options{Pattern: cfg.Watcher.Pattern, ScanExisting: cfg.Watcher.ScanExisting}, createFileHandler(jobService, logger), logger)
		if err != nil {
			logger.Fatalf("Failed to create file watcher: %v", err)
		}
		defer fileWatcher.Stop()

		if err := fileWatcher.Start(ctx); err != nil {
			logger.Fatalf("Failed to start file watcher: %v", err)
		}
		logger.Infof("File watcher started for directory: %s", cfg.Watcher.Dir)
	}

	// 9. 上传临时文件
	uploads, err := tempfiles.New(filepath.Join(cfg.Upload.Dir, "tmp"), logger)
	if err != nil {
		logger.Fatalf("Failed to init upload dir: %v", err)
	}
	defer func() {
		if err := uploads.Cleanup(); err != nil {
			logger.WithError(err).Warn("Failed to clean up temp files")
		}
	}()

	// 10. 设置 HTTP Server
	router := api.SetupRouter(cfg, logger, api.Dependencies{
		ReportService: reportService,
		JobService:    jobService,
		Uploads:       uploads,
		Hub:           hub,
		MemMonitor:    memMonitor,
		PromMetrics:   promMetrics,
	})
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Minute, // 支持大文件上传
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// 11. 启动 HTTP Server
	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	// 12. 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")

	// 13. 优雅关闭 (30秒超时)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
	}

	logger.Info("Server stopped")
}

// createJobHandler 消费 RabbitMQ 中的任务消息
func createJobHandler(jobService service.JobService, logger *logrus.Logger) queue.JobHandler {
	return func(ctx context.Context, msg *queue.ParseJobMessage) error {
		logger.WithFields(logrus.Fields{
			"job_id":    msg.JobID,
			"file_name": msg.FileName,
		}).Info("Received parse job from RabbitMQ")

		return jobService.Run(ctx, msg.JobID)
	}
}

// createFileHandler 投递目录中出现新 APK 时创建任务
func createFileHandler(jobService service.JobService, logger *logrus.Logger) watcher.FileHandler {
	return func(ctx context.Context, filePath string) error {
		fileName := filepath.Base(filePath)
		logger.WithFields(logrus.Fields{
			"file_path": filePath,
			"file_name": fileName,
		}).Info("New APK file detected")

		if _, err := jobService.Submit(ctx, filePath, fileName, domain.JobOriginWatcher); err != nil {
			return fmt.Errorf("failed to submit job: %w", err)
		}
		return nil
	}
}

// startDBStatsLoop 定期上报数据库连接池状态，返回停止函数
func startDBStatsLoop(db *gorm.DB, promMetrics *middleware.PrometheusMetrics, interval time.Duration) func() {
	sqlDB, err := db.DB()
	if err != nil {
		return func() {}
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := sqlDB.Stats()
				promMetrics.UpdateDBStats(stats.OpenConnections, stats.Idle, stats.InUse)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		sqlDB.Close()
	}
}
