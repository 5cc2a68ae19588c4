package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietConfig 间隔很短的测试配置
func quietConfig(attempts int) *Config {
	config := DefaultConfig()
	config.MaxAttempts = attempts
	config.InitialInterval = 5 * time.Millisecond
	config.Logger = logrus.New()
	config.Logger.SetOutput(io.Discard)
	return config
}

// failing 前 n 次调用返回 err
func failing(n int, err error, calls *int) Func {
	return func(ctx context.Context) error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestDo(t *testing.T) {
	locked := errors.New("database is locked")

	tests := []struct {
		name      string
		attempts  int
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{"first try", 3, 0, 1, false},
		{"after retries", 5, 2, 3, false},
		{"exhausted", 3, 10, 3, true},
		{"single attempt", 1, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), quietConfig(tt.attempts), failing(tt.failures, locked, &calls))

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, locked)
				assert.Contains(t, err.Error(), "max attempts")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := quietConfig(10)
	config.InitialInterval = 50 * time.Millisecond

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, config, failing(100, errors.New("busy"), &calls))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 10)
}

func TestDo_Timeout(t *testing.T) {
	config := quietConfig(100)
	config.InitialInterval = 20 * time.Millisecond
	config.Strategy = StrategyFixed
	config.Timeout = 50 * time.Millisecond

	calls := 0
	start := time.Now()
	err := Do(context.Background(), config, failing(1000, errors.New("busy"), &calls))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_PermanentWrapper(t *testing.T) {
	invalid := errors.New("not a valid zip")

	calls := 0
	err := Do(context.Background(), quietConfig(5), failing(5, Permanent(invalid), &calls))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, invalid)
	assert.Contains(t, err.Error(), "non-retryable")
}

func TestDo_PermanentList(t *testing.T) {
	invalid := errors.New("not a valid zip")
	config := quietConfig(5)
	config.Permanent = []error{invalid}

	calls := 0
	err := Do(context.Background(), config, failing(5, fmt.Errorf("open apk: %w", invalid), &calls))

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, invalid)
}

func TestDo_OnRetryHook(t *testing.T) {
	config := quietConfig(3)
	config.Operation = "save_report"

	var seen []int
	config.OnRetry = func(operation string, attempt int, err error) {
		assert.Equal(t, "save_report", operation)
		seen = append(seen, attempt)
	}

	calls := 0
	err := Do(context.Background(), config, failing(10, errors.New("locked"), &calls))

	assert.Error(t, err)
	assert.Equal(t, []int{1, 2}, seen, "no hook after the final attempt")
}

func TestDo_NilConfig(t *testing.T) {
	calls := 0
	assert.NoError(t, Do(context.Background(), nil, failing(0, nil, &calls)))
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	config := &Config{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}

	config.Strategy = StrategyFixed
	assert.Equal(t, 100*time.Millisecond, config.Backoff(1))
	assert.Equal(t, 100*time.Millisecond, config.Backoff(4))

	config.Strategy = StrategyLinear
	assert.Equal(t, 100*time.Millisecond, config.Backoff(1))
	assert.Equal(t, 300*time.Millisecond, config.Backoff(3))

	config.Strategy = StrategyExponential
	assert.Equal(t, 100*time.Millisecond, config.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, config.Backoff(3))
	assert.Equal(t, time.Second, config.Backoff(5), "capped at MaxInterval")
	assert.Equal(t, time.Second, config.Backoff(80), "overflow is capped too")
}

func TestIsPermanent(t *testing.T) {
	assert.False(t, IsPermanent(errors.New("busy")))
	assert.True(t, IsPermanent(Permanent(errors.New("fatal"))))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", Permanent(io.ErrUnexpectedEOF))))
	assert.True(t, IsPermanent(context.Canceled))
	assert.True(t, IsPermanent(context.DeadlineExceeded))
	assert.Nil(t, Permanent(nil))
	assert.ErrorIs(t, Permanent(io.EOF), io.EOF)
}

func BenchmarkDo_Success(b *testing.B) {
	config := quietConfig(3)
	for i := 0; i < b.N; i++ {
		_ = Do(context.Background(), config, func(ctx context.Context) error { return nil })
	}
}
