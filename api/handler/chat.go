package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bearchat/bearchat-server/api/middleware"
	"github.com/bearchat/bearchat-server/api/model"
	"github.com/bearchat/bearchat-server/internal/services"
)

// ChatHandler 处理问答和会话相关的API请求
type ChatHandler struct {
	qaService   *services.QAService   // 问答服务
	chatService *services.ChatService // 聊天会话服务
	logger      *logrus.Logger        // 日志记录器
}

// NewChatHandler 创建新的问答处理器
func NewChatHandler(qaService *services.QAService, chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		qaService:   qaService,
		chatService: chatService,
		logger:      middleware.GetLogger(),
	}
}

// generationOptions 把请求里的可选生成参数转换成服务层选项
// 未提供的字段不生成选项，沿用服务端默认值
func generationOptions(temperature, topP *float32, maxLength *int) []services.AnswerOption {
	var opts []services.AnswerOption
	if temperature != nil {
		opts = append(opts, services.WithTemperature(*temperature))
	}
	if topP != nil {
		opts = append(opts, services.WithTopP(*topP))
	}
	if maxLength != nil {
		opts = append(opts, services.WithMaxLength(*maxLength))
	}
	return opts
}

// Chat 处理问答请求
// POST /api/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid chat request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"question is required",
		))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"question":   req.Question,
		"session_id": req.SessionID,
	}).Info("Chat question received")

	opts := generationOptions(req.Temperature, req.TopP, req.MaxLength)
	result, err := h.qaService.Answer(c.Request.Context(), req.Question, req.SessionID, opts...)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewChatResponse(result, req.SessionID)))
}

// BatchChat 处理批量问答请求
// POST /api/chat/batch
func (h *ChatHandler) BatchChat(c *gin.Context) {
	var req model.BatchChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid batch chat request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"questions must contain between 1 and 20 items",
		))
		return
	}

	h.logger.WithField("count", len(req.Questions)).Info("Batch chat received")

	opts := generationOptions(req.Temperature, req.TopP, req.MaxLength)
	answers, err := h.qaService.AnswerBatch(c.Request.Context(), req.Questions, opts...)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.BatchChatResponse{
		Answers: answers,
		Total:   len(answers),
	}))
}

// CreateSession 创建聊天会话
// POST /api/sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"invalid request body",
		))
		return
	}

	session, err := h.chatService.CreateSession(c.Request.Context(), req.Title)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewSessionInfo(session)))
}

// ListSessions 列出聊天会话
// GET /api/sessions
func (h *ChatHandler) ListSessions(c *gin.Context) {
	var req model.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"invalid pagination parameters",
		))
		return
	}

	offset := (req.Page - 1) * req.PageSize
	sessions, total, err := h.chatService.ListSessions(c.Request.Context(), offset, req.PageSize)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	infos := make([]model.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, model.NewSessionInfo(session))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.SessionListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Sessions: infos,
	}))
}

// GetSessionHistory 获取会话历史消息
// GET /api/sessions/:id/messages
func (h *ChatHandler) GetSessionHistory(c *gin.Context) {
	sessionID := c.Param("id")

	// 先确认会话存在
	if _, err := h.chatService.GetSession(c.Request.Context(), sessionID); err != nil {
		middleware.HandleError(c, err)
		return
	}

	messages, err := h.chatService.RecentHistory(c.Request.Context(), sessionID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewSessionHistoryResponse(sessionID, messages)))
}

// DeleteSession 删除聊天会话
// DELETE /api/sessions/:id
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.chatService.DeleteSession(c.Request.Context(), sessionID); err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"session_id": sessionID,
		"deleted":    true,
	}))
}
