package llm

import (
	"context"
	"time"
)

// Client 答案生成服务客户端接口
// 流水线把它当作一次不透明的同步调用，调用本身可能很慢（秒级），
// 所以缓存包在它外面
type Client interface {
	// Generate 根据问题生成回答
	Generate(ctx context.Context, question string, options ...GenerateOption) (*Response, error)

	// Name 返回模型名称
	Name() string
}

// Config 模型客户端配置
type Config struct {
	BaseURL      string        // 模型服务基础URL
	Model        string        // 模型名称
	Timeout      time.Duration // 单次请求超时时间
	MaxAttempts  int           // 最大尝试次数（含首次）
	InitialDelay time.Duration // 首次重试前的延迟
	MaxTokens    int           // 最大生成Token数
	Temperature  float32       // 采样温度(0.0-2.0)
	TopP         float32       // 核采样概率阈值(0.0-1.0)
}

// 微调模型的推荐生成参数
const (
	// DefaultTemperature 默认采样温度
	DefaultTemperature float32 = 0.3
	// DefaultTopP 默认核采样概率阈值
	DefaultTopP float32 = 0.85
	// DefaultMaxTokens 默认最大生成Token数
	DefaultMaxTokens = 512
)

// DefaultConfig 返回默认配置
// 默认温度和top_p沿用微调模型的推荐值
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "http://localhost:8000",
		Model:        "llama-3.2-3b-bearchat",
		Timeout:      60 * time.Second,
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
	}
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithBaseURL 设置模型服务URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置模型名称
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout 设置请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxAttempts 设置最大尝试次数
func WithMaxAttempts(attempts int) Option {
	return func(c *Config) {
		c.MaxAttempts = attempts
	}
}

// WithInitialDelay 设置重试初始延迟
func WithInitialDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = delay
	}
}

// WithMaxTokens 设置最大生成Token数
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature 设置采样温度
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithTopP 设置核采样概率阈值
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// GenerateOption 生成请求的选项
type GenerateOption func(*GenerateOptions)

// GenerateOptions 生成请求的选项集合
type GenerateOptions struct {
	MaxTokens   *int     // 最大生成Token数
	Temperature *float32 // 采样温度
	TopP        *float32 // 核采样概率阈值
	Topic       string   // 话题提示，引导模型聚焦
	Context     string   // 文档上下文（已分块的文本）
	History     string   // 对话历史
}

// WithGenerateMaxTokens 设置生成请求的最大Token数
func WithGenerateMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = &tokens
	}
}

// WithGenerateTemperature 设置生成请求的采样温度
func WithGenerateTemperature(temp float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = &temp
	}
}

// WithGenerateTopP 设置生成请求的核采样概率阈值
func WithGenerateTopP(topP float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = &topP
	}
}

// WithTopic 设置话题提示
func WithTopic(topic string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Topic = topic
	}
}

// WithDocumentContext 设置文档上下文
func WithDocumentContext(text string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Context = text
	}
}

// WithHistory 设置对话历史
func WithHistory(history string) GenerateOption {
	return func(o *GenerateOptions) {
		o.History = history
	}
}

// Factory 模型客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的模型客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册模型客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建模型客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewTerminalError(0, "llm client type not registered: "+name, nil)
	}
	return factory(opts...)
}
