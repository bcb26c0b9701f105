package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Document DocumentConfig `mapstructure:"document"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`          // 服务器主机
	Port         int           `mapstructure:"port"`          // 服务器端口
	Mode         string        `mapstructure:"mode"`          // 运行模式 (debug/release)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读取超时
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写入超时
}

// DocumentConfig 文档处理配置
type DocumentConfig struct {
	MaxFileSizeMB    int `mapstructure:"max_file_size_mb"`   // 上传文件大小上限（MB）
	MinTextThreshold int `mapstructure:"min_text_threshold"` // 单页最小文本阈值（字符数），低于则走OCR
	ChunkSize        int `mapstructure:"chunk_size"`         // 分块大小（字符数）
}

// OCRConfig OCR配置
type OCRConfig struct {
	Enabled  bool   `mapstructure:"enabled"`  // 是否启用OCR兜底
	DPI      int    `mapstructure:"dpi"`      // 页面栅格化DPI
	Language string `mapstructure:"language"` // tesseract语言包
}

// LLMConfig 模型服务配置
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`      // 客户端类型，目前为boomer
	BaseURL      string        `mapstructure:"base_url"`      // 模型服务地址
	Model        string        `mapstructure:"model"`         // 模型名称
	Timeout      time.Duration `mapstructure:"timeout"`       // 单次请求超时时间
	MaxAttempts  int           `mapstructure:"max_attempts"`  // 最大尝试次数（含首次）
	InitialDelay time.Duration `mapstructure:"initial_delay"` // 首次重试前的延迟
	MaxTokens    int           `mapstructure:"max_tokens"`    // 最大生成token数量
	Temperature  float32       `mapstructure:"temperature"`   // 采样温度
	TopP         float32       `mapstructure:"top_p"`         // 核采样概率阈值
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"`     // 缓存类型：lru、memory 或 redis
	Capacity int    `mapstructure:"capacity"` // 最大条目数（LRU缓存）
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前支持sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"` // 日志级别
	File  string `mapstructure:"file"`  // 日志文件路径，为空只输出到标准输出
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// .env文件存在时先加载，方便本地开发
	_ = godotenv.Load()

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml"
	}

	// 初始化viper
	v := viper.New()
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if notFound || os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			// 创建默认配置文件
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖，例如BEARCHAT_LLM_BASE_URL
	v.SetEnvPrefix("bearchat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	return &config, nil
}

// MaxFileSize 上传文件大小上限（字节）
func (c *DocumentConfig) MaxFileSize() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "120s")

	// 文档处理默认配置
	v.SetDefault("document.max_file_size_mb", 50)
	v.SetDefault("document.min_text_threshold", 50)
	v.SetDefault("document.chunk_size", 12000)

	// OCR默认配置
	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.language", "eng")

	// 模型服务默认配置
	v.SetDefault("llm.provider", "boomer")
	v.SetDefault("llm.base_url", "http://localhost:8000")
	v.SetDefault("llm.model", "llama-3.2-3b-bearchat")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.max_attempts", 4)
	v.SetDefault("llm.initial_delay", "500ms")
	v.SetDefault("llm.max_tokens", 512)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.top_p", 0.85)

	// 缓存默认配置
	v.SetDefault("cache.type", "lru")
	v.SetDefault("cache.capacity", 200)
	v.SetDefault("cache.ttl", 7200) // 2小时
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.db", 0)

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/bearchat.db")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}
