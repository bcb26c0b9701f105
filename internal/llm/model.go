package llm

import "time"

// Response 模型生成的回答
type Response struct {
	Answer      string    // 回答文本
	Topic       string    // 检测到的话题
	ContentType string    // 内容分类
	ModelName   string    // 模型名称
	FinishTime  time.Time // 完成时间
}

// chatRequest 模型服务/chat接口的请求体
type chatRequest struct {
	Question    string  `json:"question"`
	MaxLength   int     `json:"max_length,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
}

// chatResponse 模型服务/chat接口的响应体
type chatResponse struct {
	Success     bool   `json:"success"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Topic       string `json:"topic"`
	ContentType string `json:"content_type"`
	Error       string `json:"error,omitempty"`
}
