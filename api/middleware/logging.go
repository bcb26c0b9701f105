package middleware

import (
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

// 初始化日志配置
func init() {
	log.SetOutput(os.Stdout)
	// JSON格式，方便日志采集
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	// 根据环境变量设置日志级别
	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetupLogger 配置全局日志输出
// filename非空时同时写入滚动日志文件
func SetupLogger(level string, filename string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}

	if filename != "" {
		rotator := &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}
}

// GetLogger 返回全局日志记录器
func GetLogger() *logrus.Logger {
	return log
}

// Logger 请求日志中间件
// 记录每个请求的方法、路径、状态码和耗时
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)

		entry := log.WithFields(logrus.Fields{
			"status_code": c.Writer.Status(),
			"latency":     latency.String(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
			"user_agent":  c.Request.UserAgent(),
		})
		if traceID, exists := c.Get("TraceID"); exists {
			entry = entry.WithField("trace_id", traceID)
		}
		entry.Info("HTTP request")
	}
}

// SetTraceID 将追踪ID设置到上下文和响应头中
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}

		c.Set("TraceID", traceID)
		c.Header("X-Trace-ID", traceID)

		c.Next()
	}
}
