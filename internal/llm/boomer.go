package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BoomerClient 微调Llama模型服务的HTTP客户端
// 模型服务是校外协作方（Flask服务的/chat接口），这里只负责传输、
// 错误分类和重试；提取阶段的错误绝不会走到这里重试
type BoomerClient struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	retrier     *Retrier
	maxTokens   int
	temperature float32
	topP        float32
}

// NewBoomerClient 创建模型服务客户端
func NewBoomerClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.BaseURL == "" {
		return nil, NewTerminalError(0, "model server base URL is required", nil)
	}

	return &BoomerClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retrier:     NewRetrier(cfg.MaxAttempts, cfg.InitialDelay),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name 返回模型名称
func (c *BoomerClient) Name() string {
	return c.model
}

// Generate 根据问题生成回答
func (c *BoomerClient) Generate(ctx context.Context, question string, options ...GenerateOption) (*Response, error) {
	if strings.TrimSpace(question) == "" {
		return nil, NewTerminalError(0, "question cannot be empty", nil)
	}

	opts := &GenerateOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := chatRequest{
		Question:    buildQuestion(question, opts),
		MaxLength:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	if opts.MaxTokens != nil {
		req.MaxLength = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewTerminalError(0, fmt.Sprintf("failed to marshal request: %v", err), err)
	}

	// 经重试协调器发送，只有传输层的可重试错误会触发重试
	var resp *Response
	err = c.retrier.Do(ctx, func(ctx context.Context) error {
		result, attemptErr := c.doChat(ctx, body)
		if attemptErr != nil {
			return attemptErr
		}
		resp = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// doChat 执行单次/chat请求并分类失败
func (c *BoomerClient) doChat(ctx context.Context, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, NewTerminalError(0, fmt.Sprintf("failed to create request: %v", err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// 连接拒绝和超时都是暂时性故障
		return nil, ClassifyNetworkError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewRetryableError(httpResp.StatusCode, fmt.Sprintf("failed to read response: %v", err), err)
	}

	if httpResp.StatusCode != http.StatusOK {
		message := strings.TrimSpace(string(respBody))
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		return nil, ClassifyHTTPStatus(httpResp.StatusCode, message)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, NewRetryableError(httpResp.StatusCode, fmt.Sprintf("failed to parse response: %v", err), err)
	}
	if !chatResp.Success {
		return nil, NewTerminalError(httpResp.StatusCode, "model server reported failure: "+chatResp.Error, nil)
	}

	return &Response{
		Answer:      chatResp.Answer,
		Topic:       chatResp.Topic,
		ContentType: chatResp.ContentType,
		ModelName:   c.model,
		FinishTime:  time.Now(),
	}, nil
}

// buildQuestion 组装发给模型的最终问题
// 文档上下文、话题提示和对话历史都拼进问题文本，
// 模型服务自己负责提示词模板
func buildQuestion(question string, opts *GenerateOptions) string {
	var sb strings.Builder

	if opts.Topic != "" {
		sb.WriteString("### Topic: ")
		sb.WriteString(opts.Topic)
		sb.WriteString("\n")
	}
	if opts.Context != "" {
		sb.WriteString("### Document:\n")
		sb.WriteString(opts.Context)
		sb.WriteString("\n\n")
	}
	if opts.History != "" {
		sb.WriteString("### Conversation so far:\n")
		sb.WriteString(opts.History)
		sb.WriteString("\n\n")
	}
	sb.WriteString(question)

	return sb.String()
}

// 在包初始化时注册模型客户端
func init() {
	RegisterClient("boomer", NewBoomerClient)
}
