package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bearchat/bearchat-server/api/middleware"
	"github.com/bearchat/bearchat-server/api/model"
	"github.com/bearchat/bearchat-server/internal/services"
)

// DocumentHandler 处理文档问答相关的API请求
type DocumentHandler struct {
	docService *services.DocumentService // 文档处理服务
	qaService  *services.QAService       // 问答服务
	logger     *logrus.Logger            // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(docService *services.DocumentService, qaService *services.QAService) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		qaService:  qaService,
		logger:     middleware.GetLogger(),
	}
}

// AskDocument 上传文档并针对其内容提问
// POST /api/documents/ask (multipart/form-data: file + question [+ session_id])
// 文档只在本次请求内处理，回答返回后即销毁
func (h *DocumentHandler) AskDocument(c *gin.Context) {
	var req model.DocumentAskRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid document ask request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"question is required",
		))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"file is required",
		))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"filename": fileHeader.Filename,
		"size":     len(data),
		"question": req.Question,
	}).Info("Document question received")

	// 提取和分块；文档不可读的错误在这里变成4xx
	processResult, err := h.docService.Process(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	// 基于文档内容回答；模型服务故障在这里变成502
	opts := generationOptions(req.Temperature, req.TopP, req.MaxLength)
	answer, err := h.qaService.AnswerDocument(c.Request.Context(), req.Question, processResult.Chunks, req.SessionID, opts...)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp := model.DocumentAskResponse{
		ChatResponse: model.NewChatResponse(answer, req.SessionID),
		Filename:     fileHeader.Filename,
		Method:       string(processResult.Method),
		CharCount:    processResult.CharCount,
		PageCount:    processResult.PageCount,
		ChunkCount:   processResult.ChunkCount,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
