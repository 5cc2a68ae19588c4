package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apk-analysis/apk-inspector-go/internal/retry"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// JobHandler 解析任务处理函数
type JobHandler func(ctx context.Context, msg *ParseJobMessage) error

// Broker 消费端依赖的连接能力，由 *RabbitMQ 实现
type Broker interface {
	Consume() (<-chan amqp.Delivery, error)
	StartConnectionWatcher()
	GetReconnectChan() <-chan bool
	Reconnect() error
}

// ErrInvalidMessage 消息体无法解析或缺少任务 ID
var ErrInvalidMessage = errors.New("invalid parse job message")

// Consumer 解析任务消费者
// 一个监督协程管理一组 worker，连接断开后重连并换一组新的 worker
type Consumer struct {
	mq        Broker
	handler   JobHandler
	workers   int
	reconnect *retry.Config
	logger    *logrus.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	active atomic.Int32
}

// NewConsumer 创建消费者
func NewConsumer(mq Broker, handler JobHandler, workers int, logger *logrus.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}

	reconnectCfg := retry.DefaultConfig()
	reconnectCfg.Operation = "reconnect_consumer"
	reconnectCfg.MaxAttempts = 10
	reconnectCfg.Timeout = 0
	reconnectCfg.Logger = logger

	return &Consumer{
		mq:        mq,
		handler:   handler,
		workers:   workers,
		reconnect: reconnectCfg,
		logger:    logger,
	}
}

// Start 开始消费，重复调用无副作用
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		c.logger.Warn("Consumer already running, skipping start")
		return nil
	}

	msgs, err := c.mq.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	c.mq.StartConnectionWatcher()
	go c.supervise(runCtx, msgs, c.done)

	c.logger.WithField("workers", c.workers).Info("Consumer started")
	return nil
}

// supervise 每轮启动一组 worker，直到上下文结束或无法重连
func (c *Consumer) supervise(ctx context.Context, msgs <-chan amqp.Delivery, done chan struct{}) {
	defer close(done)
	defer c.markStopped()

	for {
		roundCtx, stopRound := context.WithCancel(ctx)
		var wg sync.WaitGroup
		for i := 0; i < c.workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				c.worker(roundCtx, id, msgs)
			}(i)
		}

		lost := false
		select {
		case <-ctx.Done():
		case _, ok := <-c.mq.GetReconnectChan():
			lost = ok
		}

		// 等待当前任务处理完再切换连接
		stopRound()
		wg.Wait()

		if !lost || ctx.Err() != nil {
			return
		}

		c.logger.Warn("Connection lost, reconnecting consumer")
		next, err := c.resubscribe(ctx)
		if err != nil {
			c.logger.WithError(err).Error("Consumer could not reconnect, stopping")
			return
		}
		msgs = next
	}
}

// resubscribe 重连并重新订阅队列
func (c *Consumer) resubscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var msgs <-chan amqp.Delivery
	err := retry.Do(ctx, c.reconnect, func(ctx context.Context) error {
		if err := c.mq.Reconnect(); err != nil {
			return err
		}
		var err error
		msgs, err = c.mq.Consume()
		return err
	})
	return msgs, err
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	c.active.Add(1)
	defer c.active.Add(-1)

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-msgs:
			if !ok {
				c.logger.WithField("worker_id", id).Warn("Message channel closed")
				return
			}
			c.processMessage(ctx, id, delivery)
		}
	}
}

// decodeMessage 反序列化任务消息
func decodeMessage(body []byte) (*ParseJobMessage, error) {
	var msg ParseJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.JobID == "" {
		return nil, fmt.Errorf("%w: missing job_id", ErrInvalidMessage)
	}
	return &msg, nil
}

// processMessage 处理单条消息
// 失败的任务已在数据库中标记为 failed，消息不重新入队
func (c *Consumer) processMessage(ctx context.Context, workerID int, delivery amqp.Delivery) {
	startTime := time.Now()
	log := c.logger.WithField("worker_id", workerID)

	msg, err := decodeMessage(delivery.Body)
	if err != nil {
		log.WithError(err).Error("Failed to decode message")
		c.settle(delivery, err)
		return
	}

	log = log.WithField("job_id", msg.JobID)
	log.WithField("file_name", msg.FileName).Info("Processing parse job")

	err = c.handler(ctx, msg)
	if err != nil {
		log.WithError(err).Error("Parse job failed")
	} else {
		log.WithField("duration_ms", time.Since(startTime).Milliseconds()).Info("Parse job completed")
	}
	c.settle(delivery, err)
}

// settle 成功 ack，失败 nack 且不重新入队
func (c *Consumer) settle(delivery amqp.Delivery, err error) {
	if err == nil {
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.WithError(ackErr).Error("Failed to acknowledge message")
		}
		return
	}
	if nackErr := delivery.Nack(false, false); nackErr != nil {
		c.logger.WithError(nackErr).Error("Failed to reject message")
	}
}

func (c *Consumer) markStopped() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.running = false
	c.mu.Unlock()
}

// Stop 停止消费并等待进行中的任务结束
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	c.logger.Info("Stopping consumer...")
	cancel()
	<-done
	c.logger.Info("Consumer stopped")
}

// ActiveWorkers 当前运行中的 worker 数量
func (c *Consumer) ActiveWorkers() int {
	return int(c.active.Load())
}

// IsRunning 消费者是否在运行
func (c *Consumer) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
