package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bearchat/bearchat-server/api/handler"
	"github.com/bearchat/bearchat-server/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	chatHandler *handler.ChatHandler,
	docHandler *handler.DocumentHandler,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	// 创建API分组
	api := router.Group("/api")
	{
		// 问答API
		api.POST("/chat", chatHandler.Chat)
		api.POST("/chat/batch", chatHandler.BatchChat)

		// 文档问答API
		docGroup := api.Group("/documents")
		{
			// 上传文档并提问 - POST /api/documents/ask
			docGroup.POST("/ask", docHandler.AskDocument)
		}

		// 会话管理API
		sessionGroup := api.Group("/sessions")
		{
			sessionGroup.POST("", chatHandler.CreateSession)
			sessionGroup.GET("", chatHandler.ListSessions)
			sessionGroup.GET("/:id/messages", chatHandler.GetSessionHistory)
			sessionGroup.DELETE("/:id", chatHandler.DeleteSession)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 前端部署在不同域名时启用
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
