package model

import (
	"time"

	"github.com/bearchat/bearchat-server/internal/models"
	"github.com/bearchat/bearchat-server/internal/services"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ChatResponse 问答响应
type ChatResponse struct {
	Question    string `json:"question"`             // 用户问题
	Answer      string `json:"answer"`               // 生成的回答
	Topic       string `json:"topic"`                // 检测到的话题
	ContentType string `json:"content_type"`         // 内容分类
	FromCache   bool   `json:"from_cache"`           // 是否命中缓存
	Model       string `json:"model"`                // 模型名称
	SessionID   string `json:"session_id,omitempty"` // 会话ID
}

// NewChatResponse 从问答结果构建响应
func NewChatResponse(result *services.AnswerResult, sessionID string) ChatResponse {
	return ChatResponse{
		Question:    result.Question,
		Answer:      result.Answer,
		Topic:       result.Topic,
		ContentType: result.ContentType,
		FromCache:   result.FromCache,
		Model:       result.Model,
		SessionID:   sessionID,
	}
}

// BatchChatResponse 批量问答响应
type BatchChatResponse struct {
	Answers []*services.BatchAnswer `json:"answers"` // 各问题的回答
	Total   int                     `json:"total"`   // 问题总数
}

// DocumentAskResponse 文档问答响应
// 附带文档处理的元信息，方便客户端展示提取方式
type DocumentAskResponse struct {
	ChatResponse
	Filename   string `json:"filename"`    // 上传的文件名
	Method     string `json:"method"`      // 提取方式：direct或ocr
	CharCount  int    `json:"char_count"`  // 提取出的字符数
	PageCount  int    `json:"page_count"`  // 文档页数
	ChunkCount int    `json:"chunk_count"` // 分块数量
}

// SessionInfo 会话信息
type SessionInfo struct {
	ID        string    `json:"id"`         // 会话ID
	Title     string    `json:"title"`      // 会话标题
	Topic     string    `json:"topic"`      // 最近话题
	CreatedAt time.Time `json:"created_at"` // 创建时间
	UpdatedAt time.Time `json:"updated_at"` // 更新时间
}

// NewSessionInfo 从会话模型构建响应
func NewSessionInfo(session *models.ChatSession) SessionInfo {
	return SessionInfo{
		ID:        session.ID,
		Title:     session.Title,
		Topic:     session.Topic,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

// SessionListResponse 会话列表响应
type SessionListResponse struct {
	Total    int64         `json:"total"`     // 总数量
	Page     int           `json:"page"`      // 当前页码
	PageSize int           `json:"page_size"` // 每页大小
	Sessions []SessionInfo `json:"sessions"`  // 会话列表
}

// MessageInfo 消息信息
type MessageInfo struct {
	Role        string    `json:"role"`                   // 消息角色
	Content     string    `json:"content"`                // 消息内容
	Topic       string    `json:"topic,omitempty"`        // 话题
	ContentType string    `json:"content_type,omitempty"` // 内容分类
	FromCache   bool      `json:"from_cache"`             // 是否来自缓存
	CreatedAt   time.Time `json:"created_at"`             // 创建时间
}

// SessionHistoryResponse 会话历史响应
type SessionHistoryResponse struct {
	SessionID string        `json:"session_id"` // 会话ID
	Messages  []MessageInfo `json:"messages"`   // 消息列表，按时间正序
}

// NewSessionHistoryResponse 从消息模型构建历史响应
func NewSessionHistoryResponse(sessionID string, messages []*models.ChatMessage) SessionHistoryResponse {
	infos := make([]MessageInfo, 0, len(messages))
	for _, msg := range messages {
		infos = append(infos, MessageInfo{
			Role:        string(msg.Role),
			Content:     msg.Content,
			Topic:       msg.Topic,
			ContentType: msg.ContentType,
			FromCache:   msg.FromCache,
			CreatedAt:   msg.CreatedAt,
		})
	}
	return SessionHistoryResponse{
		SessionID: sessionID,
		Messages:  infos,
	}
}
