package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bearchat/bearchat-server/api/model"
	"github.com/bearchat/bearchat-server/internal/document"
	"github.com/bearchat/bearchat-server/internal/llm"
	"github.com/bearchat/bearchat-server/internal/models"
)

// 定义应用中的错误类型常量
const (
	ErrorTypeValidation = "VALIDATION_ERROR" // 输入验证错误
	ErrorTypeNotFound   = "NOT_FOUND_ERROR"  // 资源不存在错误
	ErrorTypeDocument   = "DOCUMENT_ERROR"   // 文档不可读错误
	ErrorTypeUpstream   = "UPSTREAM_ERROR"   // 模型服务不可用错误
	ErrorTypeInternal   = "INTERNAL_ERROR"   // 内部服务器错误
)

// AppError 应用错误结构体
type AppError struct {
	Type    string // 错误类型
	Message string // 错误消息
	Details string // 详细错误信息
	Code    int    // HTTP状态码
}

// Error 实现error接口的方法
func (e AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewValidationError 创建输入验证错误
func NewValidationError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) AppError {
	return AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewDocumentError 创建文档不可读错误
func NewDocumentError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeDocument,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusUnprocessableEntity,
	}
}

// NewUpstreamError 创建模型服务不可用错误
func NewUpstreamError(message string) AppError {
	return AppError{
		Type:    ErrorTypeUpstream,
		Message: message,
		Code:    http.StatusBadGateway,
	}
}

// NewInternalError 创建内部服务器错误
func NewInternalError(message string, details ...string) AppError {
	return AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Details: strings.Join(details, "; "),
		Code:    http.StatusInternalServerError,
	}
}

// MapError 把各阶段的领域错误映射为API错误
// 文档不可读（格式、转换、提取失败）是客户端问题，返回4xx；
// 模型服务的传输失败返回502，两类错误绝不混淆
func MapError(err error) AppError {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var formatErr *document.FormatError
	if errors.As(err, &formatErr) {
		return AppError{
			Type:    ErrorTypeDocument,
			Message: "unsupported document format",
			Details: formatErr.Error(),
			Code:    http.StatusBadRequest,
		}
	}

	var convErr *document.ConversionError
	if errors.As(err, &convErr) {
		return NewDocumentError("failed to convert image", convErr.Error())
	}

	var extractErr *document.ExtractionError
	if errors.As(err, &extractErr) {
		return NewDocumentError("failed to extract text from document", extractErr.Error())
	}

	var transportErr *llm.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.StatusCode >= 400 && transportErr.StatusCode < 500 {
			// 模型服务判定请求本身有问题
			return AppError{
				Type:    ErrorTypeUpstream,
				Message: "model server rejected the request",
				Details: transportErr.Error(),
				Code:    http.StatusBadGateway,
			}
		}
		return NewUpstreamError("model server is unavailable: " + transportErr.Message)
	}

	if errors.Is(err, models.ErrSessionNotFound) {
		return NewNotFoundError("chat session not found")
	}

	return NewInternalError("internal server error", err.Error())
}

// ErrorMiddleware 统一错误处理中间件
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 捕获 panic
		defer func() {
			if err := recover(); err != nil {
				stack := string(debug.Stack())

				log.WithFields(logrus.Fields{
					"error": err,
					"stack": stack,
					"path":  c.Request.URL.Path,
				}).Error("Panic recovered in API request")

				errorResponse := model.NewErrorResponse(
					http.StatusInternalServerError,
					"An unexpected error occurred",
				)

				// 在开发环境中可以返回详细错误
				if gin.Mode() == gin.DebugMode {
					errorResponse.Message = fmt.Sprintf("Panic: %v", err)
				}

				if traceID, exists := c.Get("TraceID"); exists {
					errorResponse.TraceID = traceID.(string)
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse)
			}
		}()

		c.Next()

		// 处理请求过程中登记的错误
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			traceID := ""
			if traceIDValue, exists := c.Get("TraceID"); exists {
				traceID = traceIDValue.(string)
			}

			appErr := MapError(err)

			log.WithFields(logrus.Fields{
				"error_type": appErr.Type,
				"trace_id":   traceID,
				"path":       c.Request.URL.Path,
			}).Error(appErr.Error())

			errResp := model.NewErrorResponse(appErr.Code, appErr.Message)
			errResp.TraceID = traceID

			c.AbortWithStatusJSON(appErr.Code, errResp)
		}
	}
}

// HandleError 在处理器中使用的错误处理辅助函数
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
}
