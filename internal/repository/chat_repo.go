package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/bearchat/bearchat-server/internal/models"
)

// ChatRepository 聊天会话和消息的存储库接口
type ChatRepository interface {
	// CreateSession 创建会话
	CreateSession(session *models.ChatSession) error
	// GetSession 根据ID获取会话
	GetSession(sessionID string) (*models.ChatSession, error)
	// UpdateSession 更新会话
	UpdateSession(session *models.ChatSession) error
	// DeleteSession 删除会话及其消息
	DeleteSession(sessionID string) error
	// ListSessions 分页列出会话，按更新时间倒序
	ListSessions(offset, limit int) ([]*models.ChatSession, int64, error)

	// CreateMessage 追加一条消息
	CreateMessage(message *models.ChatMessage) error
	// GetRecentMessages 获取会话最近的N条消息，按时间正序返回
	GetRecentMessages(sessionID string, limit int) ([]*models.ChatMessage, error)
	// CountMessages 统计会话消息数
	CountMessages(sessionID string) (int64, error)
}

// chatRepository 基于GORM的存储库实现
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天存储库
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateSession 创建会话
func (r *chatRepository) CreateSession(session *models.ChatSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

// GetSession 根据ID获取会话
func (r *chatRepository) GetSession(sessionID string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.Where("id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}
	return &session, nil
}

// UpdateSession 更新会话
func (r *chatRepository) UpdateSession(session *models.ChatSession) error {
	result := r.db.Model(&models.ChatSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"title":      session.Title,
			"topic":      session.Topic,
			"metadata":   session.Metadata,
			"updated_at": session.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update chat session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// DeleteSession 删除会话及其消息
func (r *chatRepository) DeleteSession(sessionID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to delete chat messages: %w", err)
		}

		result := tx.Where("id = ?", sessionID).Delete(&models.ChatSession{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete chat session: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return models.ErrSessionNotFound
		}
		return nil
	})
}

// ListSessions 分页列出会话，按更新时间倒序
func (r *chatRepository) ListSessions(offset, limit int) ([]*models.ChatSession, int64, error) {
	var sessions []*models.ChatSession
	var total int64

	if err := r.db.Model(&models.ChatSession{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count chat sessions: %w", err)
	}

	err := r.db.Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list chat sessions: %w", err)
	}

	return sessions, total, nil
}

// CreateMessage 追加一条消息
func (r *chatRepository) CreateMessage(message *models.ChatMessage) error {
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

// GetRecentMessages 获取会话最近的N条消息，按时间正序返回
// 先倒序取limit条再反转，保证拿到的是末尾的消息
func (r *chatRepository) GetRecentMessages(sessionID string, limit int) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage
	err := r.db.Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get chat messages: %w", err)
	}

	// 反转为时间正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// CountMessages 统计会话消息数
func (r *chatRepository) CountMessages(sessionID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count chat messages: %w", err)
	}
	return count, nil
}
