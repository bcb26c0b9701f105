package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Cache 响应缓存接口
// Get/Set必须在多goroutine并发调用下安全
type Cache interface {
	// Get 获取缓存内容；过期条目等同于不存在
	Get(key string) (value string, found bool, err error)
	// Set 写入缓存内容
	Set(key string, value string, ttl time.Duration) error
	// Delete 删除缓存项
	Delete(key string) error
	// Len 当前存活条目数（信息性）
	Len() int
	// Clear 清空所有缓存
	Clear() error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

// 注册的缓存实现
var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 创建缓存实例
// 缓存对象在服务启动时创建一次并注入，不使用包级共享状态
func NewCache(config Config) (Cache, error) {
	if factory, ok := registry[config.Type]; ok {
		return factory(config)
	}
	// 默认使用带容量上限的LRU缓存
	return NewLRUCache(config)
}

// Config 缓存配置
type Config struct {
	// 缓存类型: "lru", "memory", "redis"
	Type string
	// 最大条目数 (LRU缓存使用)
	Capacity int
	// Redis连接地址 (仅Redis缓存使用)
	RedisAddr string
	// Redis密码 (仅Redis缓存使用)
	RedisPassword string
	// Redis数据库编号 (仅Redis缓存使用)
	RedisDB int
	// 默认缓存过期时间
	DefaultTTL time.Duration
	// 自动清理间隔时间 (仅go-cache内存缓存使用)
	CleanupInterval time.Duration
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "lru",
		Capacity:        200,
		DefaultTTL:      2 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// GenerateCacheKey 生成标准化的缓存键
// 可以基于不同参数生成一致的键
func GenerateCacheKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}

	key := prefix
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

// Fingerprint 计算一次问答请求的缓存指纹
// 对影响回答的全部输入做确定性摘要：规范化后的问题文本、
// 生成参数、对话历史摘要；任何一项变化都会改变指纹。
// 漏掉historyDigest会让不同会话的相同问题串上下文。
func Fingerprint(question string, temperature, topP float32, historyDigest string) string {
	h := sha256.New()
	h.Write([]byte(NormalizeQuestion(question)))
	h.Write([]byte{0x1f})
	fmt.Fprintf(h, "t=%.4f", temperature)
	h.Write([]byte{0x1f})
	fmt.Fprintf(h, "p=%.4f", topP)
	h.Write([]byte{0x1f})
	h.Write([]byte(historyDigest))
	return hex.EncodeToString(h.Sum(nil))
}

// HistoryDigest 计算对话历史的摘要
// 空历史返回空串，保持无历史请求的指纹稳定
func HistoryDigest(messages []string) string {
	if len(messages) == 0 {
		return ""
	}
	h := sha256.New()
	for _, msg := range messages {
		h.Write([]byte(msg))
		h.Write([]byte{0x1e})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeQuestion 规范化问题文本：小写、去首尾空白、压缩连续空白
func NormalizeQuestion(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}
