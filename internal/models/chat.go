package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// ChatSession 聊天会话模型
// 会话历史参与缓存指纹计算，所以必须持久化
type ChatSession struct {
	ID        string         `gorm:"primaryKey"`        // 会话ID，主键
	Title     string         `gorm:"not null"`          // 会话标题
	Topic     string         `gorm:"type:varchar(128)"` // 最近一次检测到的话题
	CreatedAt time.Time      `gorm:"not null"`          // 创建时间
	UpdatedAt time.Time      `gorm:"not null"`          // 更新时间
	Metadata  datatypes.JSON `gorm:"type:json"`         // 元数据，JSON格式
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (cs *ChatSession) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if cs.CreatedAt.IsZero() {
		cs.CreatedAt = now
	}
	cs.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (cs *ChatSession) BeforeUpdate(tx *gorm.DB) (err error) {
	cs.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage 聊天消息模型
type ChatMessage struct {
	ID          uint        `gorm:"primaryKey;autoIncrement"`  // 主键ID
	SessionID   string      `gorm:"not null;index"`            // 所属会话ID
	Role        MessageRole `gorm:"not null;type:varchar(20)"` // 消息角色
	Content     string      `gorm:"type:text;not null"`        // 消息内容
	Topic       string      `gorm:"type:varchar(128)"`         // 回答时检测到的话题
	ContentType string      `gorm:"type:varchar(64)"`          // 内容分类
	FromCache   bool        // 回答是否命中缓存
	CreatedAt   time.Time   `gorm:"not null"` // 创建时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (cm *ChatMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if cm.CreatedAt.IsZero() {
		cm.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (ChatMessage) TableName() string {
	return "chat_messages"
}
