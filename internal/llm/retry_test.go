package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleep 记录延迟序列而不真正等待
type fakeSleep struct {
	delays []time.Duration
	err    error
}

func (f *fakeSleep) sleep(ctx context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return f.err
}

func TestRetrierSucceedsFirstAttempt(t *testing.T) {
	sleeper := &fakeSleep{}
	r := NewRetrier(4, 500*time.Millisecond)
	r.sleep = sleeper.sleep

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays, "no delay before the first attempt")
}

func TestRetrierRecoversWithinBudget(t *testing.T) {
	sleeper := &fakeSleep{}
	r := NewRetrier(4, 500*time.Millisecond)
	r.sleep = sleeper.sleep

	// 前三次503，第四次成功
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls <= 3 {
			return ClassifyHTTPStatus(503, "service unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	// 每次可重试失败后延迟翻倍
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
	}, sleeper.delays)
}

func TestRetrierExhaustionReturnsLastError(t *testing.T) {
	sleeper := &fakeSleep{}
	r := NewRetrier(3, 100*time.Millisecond)
	r.sleep = sleeper.sleep

	lastAttempt := NewRetryableError(503, "attempt 3", nil)
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewRetryableError(503, "earlier attempt", nil)
		}
		return lastAttempt
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// 最后一个错误原样透传，不被包装
	assert.Same(t, lastAttempt, err)
}

func TestRetrierTerminalErrorNotRetried(t *testing.T) {
	sleeper := &fakeSleep{}
	r := NewRetrier(4, 100*time.Millisecond)
	r.sleep = sleeper.sleep

	terminal := ClassifyHTTPStatus(400, "bad request")
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return terminal
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not be retried")
	assert.Empty(t, sleeper.delays)
	assert.Same(t, terminal, err)
}

func TestRetrierUnclassifiedErrorTerminal(t *testing.T) {
	r := NewRetrier(4, 100*time.Millisecond)
	r.sleep = (&fakeSleep{}).sleep

	plain := errors.New("something unexpected")
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return plain
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, plain, err)
}

func TestRetrierContextCancelledDuringDelay(t *testing.T) {
	sleeper := &fakeSleep{err: context.Canceled}
	r := NewRetrier(4, 100*time.Millisecond)
	r.sleep = sleeper.sleep

	retryable := NewRetryableError(502, "bad gateway", nil)
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return retryable
	})

	// 延迟被取消时返回最后一次的错误，不再发起新尝试
	assert.Equal(t, 1, calls)
	assert.Same(t, retryable, err)
}

func TestClassifyHTTPStatus(t *testing.T) {
	assert.True(t, ClassifyHTTPStatus(500, "").Retryable)
	assert.True(t, ClassifyHTTPStatus(503, "").Retryable)
	assert.False(t, ClassifyHTTPStatus(400, "").Retryable)
	assert.False(t, ClassifyHTTPStatus(404, "").Retryable)
	assert.False(t, ClassifyHTTPStatus(422, "").Retryable)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(503, "x", nil)))
	assert.False(t, IsRetryable(NewTerminalError(400, "x", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))

	// 包装后的传输错误也能识别
	wrapped := &TransportError{StatusCode: 503, Message: "x", Retryable: true}
	assert.True(t, IsRetryable(wrapped))
}
