package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Strategy 退避策略
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyLinear      Strategy = "linear"
	StrategyExponential Strategy = "exponential"
)

// Config 重试配置，零值字段由 DefaultConfig 补齐
type Config struct {
	Operation       string // 写入日志和重试指标的操作名
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Strategy        Strategy
	Timeout         time.Duration // 所有尝试加等待的总时长，0 表示不限制

	// Permanent 与其中任意一个 errors.Is 匹配的错误直接返回
	Permanent []error
	// OnRetry 每次等待前调用，attempt 为刚失败的那一次
	OnRetry func(operation string, attempt int, err error)
	Logger  *logrus.Logger
}

// DefaultConfig 3 次尝试，1s 起步的指数退避，上限 30s
func DefaultConfig() *Config {
	return &Config{
		Operation:       "operation",
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Strategy:        StrategyExponential,
		Timeout:         5 * time.Minute,
		Logger:          logrus.New(),
	}
}

// permanentError 标记不再重试的错误
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 包装一个错误，使 Do 立即放弃
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 判断错误是否被 Permanent 包装，或者是上下文取消/超时
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (c *Config) stop(err error) bool {
	if IsPermanent(err) {
		return true
	}
	for _, target := range c.Permanent {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Backoff 第 attempt 次失败后的等待时间
func (c *Config) Backoff(attempt int) time.Duration {
	var d time.Duration
	switch c.Strategy {
	case StrategyLinear:
		d = c.InitialInterval * time.Duration(attempt)
	case StrategyExponential:
		d = c.InitialInterval << (attempt - 1)
	default:
		d = c.InitialInterval
	}
	if c.MaxInterval > 0 && (d > c.MaxInterval || d <= 0) {
		d = c.MaxInterval
	}
	return d
}

// Func 可重试的操作
type Func func(ctx context.Context) error

// Do 执行 fn 直到成功、遇到不可重试错误、用尽次数或上下文结束
func Do(ctx context.Context, config *Config, fn Func) error {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	log := config.Logger.WithField("operation", config.Operation)

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry canceled: %w", err)
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.WithField("attempt", attempt).Info("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if config.stop(err) {
			log.WithError(err).Warn("Error is not retryable, aborting")
			return fmt.Errorf("non-retryable error: %w", err)
		}
		if attempt == config.MaxAttempts {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(config.Operation, attempt, err)
		}

		wait := config.Backoff(attempt)
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     config.MaxAttempts,
			"wait":    wait,
		}).WithError(err).Warn("Operation failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled during wait: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("max attempts (%d) reached: %w", config.MaxAttempts, lastErr)
}
