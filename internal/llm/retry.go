package llm

import (
	"context"
	"time"
)

// retryState 重试状态机的状态
type retryState int

const (
	stateIdle retryState = iota
	stateAttempting
	stateSucceeded
	stateFailedRetryable
	stateFailedTerminal
)

// Retrier 客户端重试协调器
// 纯状态机：Idle → Attempting → {成功 | 可重试失败 → 延迟 → Attempting | 终止失败}。
// 每次可重试失败后延迟翻倍；尝试次数到达上限后原样返回最后一个错误，
// 不吞错误也不二次包装。延迟期间不持有任何锁，挂起的只是当前请求。
type Retrier struct {
	// MaxAttempts 最大尝试次数（含首次）
	MaxAttempts int
	// InitialDelay 首次重试前的延迟
	InitialDelay time.Duration

	// sleep 可注入的延迟函数，测试中记录延迟序列而不真正等待
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier 创建重试协调器
func NewRetrier(maxAttempts int, initialDelay time.Duration) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}
	return &Retrier{
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		sleep:        sleepContext,
	}
}

// Do 执行操作并按分类策略重试
// fn返回的错误经IsRetryable分类：可重试则延迟后再试，终止则立即返回
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	state := stateIdle
	delay := r.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if state == stateFailedRetryable {
			if err := r.sleep(ctx, delay); err != nil {
				// 上下文取消视为终止
				return lastErr
			}
			delay *= 2
		}

		state = stateAttempting
		lastErr = fn(ctx)
		if lastErr == nil {
			state = stateSucceeded
			return nil
		}

		if !IsRetryable(lastErr) {
			state = stateFailedTerminal
			return lastErr
		}
		state = stateFailedRetryable
	}

	// 尝试耗尽，向调用方透传最后一个错误
	return lastErr
}

// sleepContext 可被上下文取消的延迟，不忙等
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
