package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bearchat/bearchat-server/api"
	"github.com/bearchat/bearchat-server/api/handler"
	"github.com/bearchat/bearchat-server/api/middleware"
	appconfig "github.com/bearchat/bearchat-server/config"
	"github.com/bearchat/bearchat-server/internal/cache"
	"github.com/bearchat/bearchat-server/internal/database"
	"github.com/bearchat/bearchat-server/internal/document"
	"github.com/bearchat/bearchat-server/internal/llm"
	"github.com/bearchat/bearchat-server/internal/repository"
	"github.com/bearchat/bearchat-server/internal/services"
)

func main() {
	// 解析命令行参数
	configFile := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	mode := flag.String("mode", "", "Run mode (debug/release, overrides config)")
	flag.Parse()

	// 加载配置
	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *mode != "" {
		cfg.Server.Mode = *mode
	}

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化日志
	middleware.SetupLogger(cfg.Log.Level, cfg.Log.File)
	logger := middleware.GetLogger()
	logger.Info("Starting BearChat server...")

	// 初始化数据库
	dbConfig := database.DefaultConfig()
	dbConfig.Type = cfg.Database.Type
	dbConfig.DSN = cfg.Database.DSN
	if err := database.Setup(dbConfig, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// 创建缓存服务
	cacheService, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	// 创建模型客户端
	llmClient, err := setupLLM(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize model client: %v", err)
	}

	// 创建文档处理流水线
	docService := setupDocumentService(cfg, logger)

	// 初始化业务服务
	chatService := services.NewChatService(
		repository.NewChatRepository(database.MustDB()),
		services.WithChatLogger(logger),
	)

	qaService := services.NewQAService(
		llmClient,
		cacheService,
		services.WithChatService(chatService),
		services.WithCacheTTL(time.Duration(cfg.Cache.TTL)*time.Second),
		services.WithGenerationParams(cfg.LLM.Temperature, cfg.LLM.TopP),
		services.WithQALogger(logger),
	)

	// 初始化API处理器
	chatHandler := handler.NewChatHandler(qaService, chatService)
	docHandler := handler.NewDocumentHandler(docService, qaService)

	// 设置路由
	r := api.SetupRouter(chatHandler, docHandler)

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupCache 设置缓存服务
func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:       cfg.Cache.Type,
		Capacity:   cfg.Cache.Capacity,
		DefaultTTL: time.Duration(cfg.Cache.TTL) * time.Second,
	}

	// 如果配置了Redis，添加Redis配置
	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupLLM 设置模型客户端
func setupLLM(cfg *appconfig.Config) (llm.Client, error) {
	return llm.NewClient(cfg.LLM.Provider,
		llm.WithBaseURL(cfg.LLM.BaseURL),
		llm.WithModel(cfg.LLM.Model),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithMaxAttempts(cfg.LLM.MaxAttempts),
		llm.WithInitialDelay(cfg.LLM.InitialDelay),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithTopP(cfg.LLM.TopP),
	)
}

// setupDocumentService 组装文档处理流水线
func setupDocumentService(cfg *appconfig.Config, logger *logrus.Logger) *services.DocumentService {
	extractorOpts := []document.ExtractorOption{
		document.WithExtractorLogger(logger),
	}

	// OCR兜底可用时挂上引擎，缺少外部工具只降级不报错
	if cfg.OCR.Enabled {
		engine := document.NewTesseractEngine(document.TesseractConfig{
			DPI:      cfg.OCR.DPI,
			Language: cfg.OCR.Language,
		})
		if engine.Available() {
			extractorOpts = append(extractorOpts, document.WithOCREngine(engine))
		} else {
			logger.Warn("OCR tools (pdftoppm/tesseract) not found, OCR fallback disabled")
		}
	}

	extractor := document.NewExtractor(document.ExtractorConfig{
		MinTextThreshold: cfg.Document.MinTextThreshold,
	}, extractorOpts...)

	chunker := document.NewChunker(document.ChunkerConfig{
		MaxChunkSize: cfg.Document.ChunkSize,
	})

	return services.NewDocumentService(
		extractor,
		document.NewNormalizer(),
		chunker,
		services.WithMaxFileSize(cfg.Document.MaxFileSize()),
		services.WithDocumentLogger(logger),
	)
}
