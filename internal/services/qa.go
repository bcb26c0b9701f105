package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bearchat/bearchat-server/internal/cache"
	"github.com/bearchat/bearchat-server/internal/document"
	"github.com/bearchat/bearchat-server/internal/llm"
)

// AnswerResult 一次问答的结果
type AnswerResult struct {
	Question    string // 原始问题
	Answer      string // 回答内容
	Topic       string // 检测到的话题
	ContentType string // 内容分类
	FromCache   bool   // 是否命中缓存
	Model       string // 模型名称
}

// QAService 问答服务
// 负责协调缓存、对话历史和模型客户端生成答案。
// 缓存键由规范化问题、生成参数和历史摘要共同决定
type QAService struct {
	llm         llm.Client     // 模型客户端
	cache       cache.Cache    // 响应缓存
	chat        *ChatService   // 聊天服务，可为nil（无历史模式）
	cacheTTL    time.Duration  // 缓存有效期
	temperature float32        // 生成温度
	topP        float32        // 核采样参数
	logger      *logrus.Logger // 日志记录器
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// NewQAService 创建问答服务实例
func NewQAService(llmClient llm.Client, responseCache cache.Cache, opts ...QAOption) *QAService {
	// 创建服务实例
	service := &QAService{
		llm:         llmClient,
		cache:       responseCache,
		cacheTTL:    2 * time.Hour,
		temperature: llm.DefaultTemperature,
		topP:        llm.DefaultTopP,
		logger:      logrus.New(),
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithCacheTTL 设置缓存有效期
func WithCacheTTL(ttl time.Duration) QAOption {
	return func(s *QAService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithChatService 设置聊天服务，启用对话历史
func WithChatService(chat *ChatService) QAOption {
	return func(s *QAService) {
		s.chat = chat
	}
}

// WithGenerationParams 设置生成参数
// 参数参与缓存指纹计算，改动后旧缓存自动失效
func WithGenerationParams(temperature, topP float32) QAOption {
	return func(s *QAService) {
		s.temperature = temperature
		s.topP = topP
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// answerParams 单次请求实际生效的生成参数
// 未覆盖的字段沿用服务的默认值；参数参与缓存指纹
type answerParams struct {
	temperature float32
	topP        float32
	maxTokens   int
}

// AnswerOption 单次问答的参数覆盖选项
type AnswerOption func(*answerParams)

// WithTemperature 本次请求使用指定的生成温度
func WithTemperature(temperature float32) AnswerOption {
	return func(p *answerParams) {
		p.temperature = temperature
	}
}

// WithTopP 本次请求使用指定的核采样参数
func WithTopP(topP float32) AnswerOption {
	return func(p *answerParams) {
		p.topP = topP
	}
}

// WithMaxLength 本次请求的回答长度上限
func WithMaxLength(maxTokens int) AnswerOption {
	return func(p *answerParams) {
		if maxTokens > 0 {
			p.maxTokens = maxTokens
		}
	}
}

// genParams 合并服务默认值和本次请求的覆盖项
func (s *QAService) genParams(opts []AnswerOption) answerParams {
	params := answerParams{
		temperature: s.temperature,
		topP:        s.topP,
	}
	for _, opt := range opts {
		opt(&params)
	}
	return params
}

// Answer 回答问题
// sessionID非空时带上该会话的最近历史，并把这轮问答写回会话
func (s *QAService) Answer(ctx context.Context, question string, sessionID string, opts ...AnswerOption) (*AnswerResult, error) {
	if question == "" {
		return nil, errors.New("question cannot be empty")
	}

	topic, contentType := llm.DetectTopic(question)

	// 收集对话历史，历史参与缓存指纹
	historyLines, err := s.historyLines(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.answer(ctx, question, topic, contentType, historyLines, "", s.genParams(opts))
	if err != nil {
		return nil, err
	}

	s.recordExchange(ctx, sessionID, question, result)
	return result, nil
}

// AnswerDocument 基于文档内容回答问题
// 逐块询问模型，多块时按顺序合并各块的回答。
// 文档内容和对话历史一起参与缓存指纹，避免不同文档的相同问题互相污染
func (s *QAService) AnswerDocument(ctx context.Context, question string, chunks []document.Chunk, sessionID string, opts ...AnswerOption) (*AnswerResult, error) {
	if question == "" {
		return nil, errors.New("question cannot be empty")
	}
	if len(chunks) == 0 {
		return nil, errors.New("document produced no content to answer from")
	}

	topic, contentType := llm.DetectTopic(question)
	params := s.genParams(opts)

	historyLines, err := s.historyLines(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// 指纹里混入文档内容摘要
	digestInput := make([]string, 0, len(historyLines)+len(chunks))
	digestInput = append(digestInput, historyLines...)
	for _, chunk := range chunks {
		digestInput = append(digestInput, chunk.Text)
	}
	key := cache.Fingerprint(question, params.temperature, params.topP, cache.HistoryDigest(digestInput))

	cached, found, cacheErr := s.cache.Get(key)
	if cacheErr != nil {
		// 缓存故障按未命中处理，但要在日志里留痕
		s.logger.WithError(cacheErr).WithField("cache_key", key).Warn("Cache lookup failed")
	} else if found {
		s.logger.WithField("cache_key", key).Debug("Document answer cache hit")
		result := &AnswerResult{
			Question:    question,
			Answer:      cached,
			Topic:       topic,
			ContentType: contentType,
			FromCache:   true,
			Model:       s.llm.Name(),
		}
		s.recordExchange(ctx, sessionID, question, result)
		return result, nil
	}

	history := joinHistory(historyLines)

	var answer string
	for _, chunk := range chunks {
		genOpts := []llm.GenerateOption{
			llm.WithTopic(topic),
			llm.WithDocumentContext(chunk.Text),
			llm.WithGenerateTemperature(params.temperature),
			llm.WithGenerateTopP(params.topP),
		}
		if params.maxTokens > 0 {
			genOpts = append(genOpts, llm.WithGenerateMaxTokens(params.maxTokens))
		}
		if history != "" {
			genOpts = append(genOpts, llm.WithHistory(history))
		}

		resp, genErr := s.llm.Generate(ctx, question, genOpts...)
		if genErr != nil {
			return nil, genErr
		}

		if answer == "" {
			answer = resp.Answer
		} else {
			answer = answer + "\n\n" + resp.Answer
		}
	}

	if err := s.cache.Set(key, answer, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache document answer")
	}

	result := &AnswerResult{
		Question:    question,
		Answer:      answer,
		Topic:       topic,
		ContentType: contentType,
		Model:       s.llm.Name(),
	}

	s.recordExchange(ctx, sessionID, question, result)
	return result, nil
}

// AnswerBatch 批量回答问题
// 单个问题失败不影响其余问题，失败项带错误信息
func (s *QAService) AnswerBatch(ctx context.Context, questions []string, opts ...AnswerOption) ([]*BatchAnswer, error) {
	if len(questions) == 0 {
		return nil, errors.New("questions cannot be empty")
	}

	params := s.genParams(opts)
	answers := make([]*BatchAnswer, 0, len(questions))
	for _, question := range questions {
		result, err := s.answer(ctx, question, "", "", nil, "", params)
		if err != nil {
			answers = append(answers, &BatchAnswer{
				Question: question,
				Error:    err.Error(),
			})
			continue
		}
		answers = append(answers, &BatchAnswer{
			Question:  question,
			Answer:    result.Answer,
			Topic:     result.Topic,
			FromCache: result.FromCache,
		})
	}

	return answers, nil
}

// BatchAnswer 批量问答中单个问题的结果
type BatchAnswer struct {
	Question  string `json:"question"`
	Answer    string `json:"answer,omitempty"`
	Topic     string `json:"topic,omitempty"`
	FromCache bool   `json:"from_cache"`
	Error     string `json:"error,omitempty"`
}

// answer 核心问答流程：查缓存 -> 调模型 -> 写缓存
func (s *QAService) answer(ctx context.Context, question, topic, contentType string, historyLines []string, docContext string, params answerParams) (*AnswerResult, error) {
	if question == "" {
		return nil, errors.New("question cannot be empty")
	}
	if topic == "" {
		topic, contentType = llm.DetectTopic(question)
	}

	key := cache.Fingerprint(question, params.temperature, params.topP, cache.HistoryDigest(historyLines))

	// 命中缓存直接返回，不触发任何生成调用
	cached, found, cacheErr := s.cache.Get(key)
	if cacheErr != nil {
		// 缓存故障按未命中处理，但要在日志里留痕
		s.logger.WithError(cacheErr).WithField("cache_key", key).Warn("Cache lookup failed")
	} else if found {
		s.logger.WithField("cache_key", key).Debug("Answer cache hit")
		return &AnswerResult{
			Question:    question,
			Answer:      cached,
			Topic:       topic,
			ContentType: contentType,
			FromCache:   true,
			Model:       s.llm.Name(),
		}, nil
	}

	opts := []llm.GenerateOption{
		llm.WithTopic(topic),
		llm.WithGenerateTemperature(params.temperature),
		llm.WithGenerateTopP(params.topP),
	}
	if params.maxTokens > 0 {
		opts = append(opts, llm.WithGenerateMaxTokens(params.maxTokens))
	}
	if docContext != "" {
		opts = append(opts, llm.WithDocumentContext(docContext))
	}
	if history := joinHistory(historyLines); history != "" {
		opts = append(opts, llm.WithHistory(history))
	}

	resp, err := s.llm.Generate(ctx, question, opts...)
	if err != nil {
		s.logger.WithError(err).WithField("question", question).Error("Failed to generate answer")
		return nil, err
	}

	if err := s.cache.Set(key, resp.Answer, s.cacheTTL); err != nil {
		// 缓存失败不影响回答
		s.logger.WithError(err).Warn("Failed to cache answer")
	}

	// 模型返回了话题时以模型为准
	if resp.Topic != "" {
		topic = resp.Topic
	}
	if resp.ContentType != "" {
		contentType = resp.ContentType
	}

	return &AnswerResult{
		Question:    question,
		Answer:      resp.Answer,
		Topic:       topic,
		ContentType: contentType,
		Model:       s.llm.Name(),
	}, nil
}

// historyLines 获取会话历史文本行
func (s *QAService) historyLines(ctx context.Context, sessionID string) ([]string, error) {
	if s.chat == nil || sessionID == "" {
		return nil, nil
	}

	messages, err := s.chat.RecentHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	return HistoryLines(messages), nil
}

// recordExchange 把这轮问答写回会话，失败只记日志
func (s *QAService) recordExchange(ctx context.Context, sessionID string, question string, result *AnswerResult) {
	if s.chat == nil || sessionID == "" {
		return
	}

	err := s.chat.AppendExchange(ctx, sessionID, question, result.Answer, result.Topic, result.ContentType, result.FromCache)
	if err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to record chat exchange")
	}
}

// joinHistory 把历史行拼成提示词用的文本
func joinHistory(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	history := lines[0]
	for _, line := range lines[1:] {
		history += "\n" + line
	}
	return history
}
