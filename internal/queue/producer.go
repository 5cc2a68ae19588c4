package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/domain"
	"github.com/apk-analysis/apk-inspector-go/internal/retry"
	"github.com/sirupsen/logrus"
)

// ParseJobMessage 解析任务消息
type ParseJobMessage struct {
	JobID    string `json:"job_id"`
	FileName string `json:"file_name"`
	APKPath  string `json:"apk_path"`
}

// Publisher 消息发布方，由 *RabbitMQ 实现
type Publisher interface {
	Publish(ctx context.Context, messageID string, body []byte) error
}

// Producer 消息生产者
type Producer struct {
	publisher Publisher
	retryCfg  *retry.Config
	logger    *logrus.Logger
}

// NewProducer 创建生产者
func NewProducer(publisher Publisher, logger *logrus.Logger) *Producer {
	retryCfg := retry.DefaultConfig()
	retryCfg.Operation = "publish_job"
	retryCfg.InitialInterval = 500 * time.Millisecond
	retryCfg.MaxInterval = 5 * time.Second
	retryCfg.Timeout = 30 * time.Second
	retryCfg.Logger = logger

	return &Producer{
		publisher: publisher,
		retryCfg:  retryCfg,
		logger:    logger,
	}
}

// SetRetryHook 设置发布重试回调（指标）
func (p *Producer) SetRetryHook(hook func(operation string, attempt int, err error)) {
	p.retryCfg.OnRetry = hook
}

// Dispatch 发布解析任务，实现 service.JobDispatcher
func (p *Producer) Dispatch(ctx context.Context, job *domain.ParseJob) error {
	msg := &ParseJobMessage{
		JobID:    job.ID,
		FileName: job.FileName,
		APKPath:  job.APKPath,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = retry.Do(ctx, p.retryCfg, func(ctx context.Context) error {
		return p.publisher.Publish(ctx, msg.JobID, body)
	})
	if err != nil {
		p.logger.WithError(err).WithField("job_id", msg.JobID).Error("Failed to publish parse job")
		return fmt.Errorf("failed to publish: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"job_id":    msg.JobID,
		"file_name": msg.FileName,
	}).Info("Parse job published to queue")

	return nil
}
