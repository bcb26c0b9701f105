package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bearchat/bearchat-server/internal/models"
	"github.com/bearchat/bearchat-server/internal/repository"
)

// DefaultHistoryWindow 参与上下文和缓存指纹的最近消息条数
const DefaultHistoryWindow = 10

// ChatService 聊天会话服务
// 负责会话和消息的管理，并为问答服务提供对话历史
type ChatService struct {
	repo          repository.ChatRepository // 聊天仓储接口
	historyWindow int                       // 历史消息窗口大小
	logger        *logrus.Logger            // 日志记录器
}

// ChatOption 聊天服务配置选项
type ChatOption func(*ChatService)

// NewChatService 创建聊天服务实例
func NewChatService(repo repository.ChatRepository, opts ...ChatOption) *ChatService {
	// 创建服务实例
	service := &ChatService{
		repo:          repo,
		historyWindow: DefaultHistoryWindow,
		logger:        logrus.New(),
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithChatLogger 设置日志记录器
func WithChatLogger(logger *logrus.Logger) ChatOption {
	return func(s *ChatService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHistoryWindow 设置历史消息窗口大小
func WithHistoryWindow(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// CreateSession 创建新的聊天会话
func (s *ChatService) CreateSession(ctx context.Context, title string) (*models.ChatSession, error) {
	if title == "" {
		title = "New conversation " + time.Now().Format("2006-01-02 15:04:05")
	}

	// 创建会话对象
	session := &models.ChatSession{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// 保存到数据库
	if err := s.repo.CreateSession(session); err != nil {
		s.logger.WithError(err).Error("Failed to create chat session")
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	s.logger.WithField("session_id", session.ID).Info("Chat session created")
	return session, nil
}

// GetSession 获取聊天会话详情
func (s *ChatService) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	if sessionID == "" {
		return nil, errors.New("session ID cannot be empty")
	}

	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			s.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to get chat session")
		}
		return nil, err
	}

	return session, nil
}

// ListSessions 分页列出聊天会话
func (s *ChatService) ListSessions(ctx context.Context, offset, limit int) ([]*models.ChatSession, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	sessions, total, err := s.repo.ListSessions(offset, limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list chat sessions")
		return nil, 0, fmt.Errorf("failed to list chat sessions: %w", err)
	}

	return sessions, total, nil
}

// DeleteSession 删除聊天会话及其全部消息
func (s *ChatService) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	if err := s.repo.DeleteSession(sessionID); err != nil {
		if !errors.Is(err, models.ErrSessionNotFound) {
			s.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to delete chat session")
		}
		return err
	}

	s.logger.WithField("session_id", sessionID).Info("Chat session deleted")
	return nil
}

// AppendExchange 向会话追加一轮问答
// 同时更新会话的话题和更新时间
func (s *ChatService) AppendExchange(ctx context.Context, sessionID, question, answer, topic, contentType string, fromCache bool) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}

	session, err := s.repo.GetSession(sessionID)
	if err != nil {
		return err
	}

	userMsg := &models.ChatMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   question,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateMessage(userMsg); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to save user message")
		return fmt.Errorf("failed to save user message: %w", err)
	}

	assistantMsg := &models.ChatMessage{
		SessionID:   sessionID,
		Role:        models.RoleAssistant,
		Content:     answer,
		Topic:       topic,
		ContentType: contentType,
		FromCache:   fromCache,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.CreateMessage(assistantMsg); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to save assistant message")
		return fmt.Errorf("failed to save assistant message: %w", err)
	}

	session.Topic = topic
	session.UpdatedAt = time.Now()
	if err := s.repo.UpdateSession(session); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to update chat session")
	}

	return nil
}

// RecentHistory 获取会话最近的消息，按时间正序
// 空会话ID视作无历史，返回空切片
func (s *ChatService) RecentHistory(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	if sessionID == "" {
		return nil, nil
	}

	messages, err := s.repo.GetRecentMessages(sessionID, s.historyWindow)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to get chat history")
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}

	return messages, nil
}

// HistoryLines 把历史消息转成"role: content"文本行
// 这些行既用于拼装提示词，也用于计算缓存指纹
func HistoryLines(messages []*models.ChatMessage) []string {
	if len(messages) == 0 {
		return nil
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, string(msg.Role)+": "+msg.Content)
	}
	return lines
}
