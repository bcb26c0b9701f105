package llm

import (
	"errors"
	"fmt"
	"net"
)

// TransportError 模型服务调用的传输层错误
// Retryable标记决定重试协调器是否重试：网络故障和5xx可以重试，
// 4xx是请求本身的问题，重试也不会变好
type TransportError struct {
	StatusCode int    // HTTP状态码，网络层错误时为0
	Message    string // 错误描述
	Retryable  bool   // 是否可重试
	Err        error  // 底层错误
}

// Error 实现error接口
func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model server error (status %d): %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("model server unreachable: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("model server error: %s", e.Message)
}

// Unwrap 返回底层错误
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewRetryableError 创建可重试的传输错误
func NewRetryableError(statusCode int, message string, err error) *TransportError {
	return &TransportError{StatusCode: statusCode, Message: message, Retryable: true, Err: err}
}

// NewTerminalError 创建终止性的传输错误
func NewTerminalError(statusCode int, message string, err error) *TransportError {
	return &TransportError{StatusCode: statusCode, Message: message, Retryable: false, Err: err}
}

// ClassifyHTTPStatus 按状态码分类传输错误
// 5xx可重试；4xx终止；其余非2xx按服务端异常处理，可重试
func ClassifyHTTPStatus(statusCode int, message string) *TransportError {
	switch {
	case statusCode >= 500:
		return NewRetryableError(statusCode, message, nil)
	case statusCode >= 400:
		return NewTerminalError(statusCode, message, nil)
	default:
		return NewRetryableError(statusCode, message, nil)
	}
}

// ClassifyNetworkError 把网络层错误分类成传输错误
// 连接拒绝和超时都视为暂时性故障
func ClassifyNetworkError(err error) *TransportError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewRetryableError(0, "request timed out", err)
	}
	return NewRetryableError(0, "connection failed", err)
}

// IsRetryable 判断错误是否可重试
// 未分类的错误一律视为终止性，避免对未知故障做无谓重试
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}
