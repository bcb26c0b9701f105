package model

// ChatRequest 问答请求
// 生成参数可选，缺省时使用服务端配置的默认值；
// 参数参与缓存指纹，不同参数的相同问题各自缓存
type ChatRequest struct {
	Question    string   `json:"question" binding:"required"`                  // 用户问题
	SessionID   string   `json:"session_id"`                                   // 会话ID，可选；提供后带上对话历史
	Temperature *float32 `json:"temperature" binding:"omitempty,gte=0,lte=2"`  // 生成温度，可选
	TopP        *float32 `json:"top_p" binding:"omitempty,gt=0,lte=1"`         // 核采样参数，可选
	MaxLength   *int     `json:"max_length" binding:"omitempty,gt=0,lte=4096"` // 回答长度上限，可选
}

// BatchChatRequest 批量问答请求
// 生成参数对整批问题生效
type BatchChatRequest struct {
	Questions   []string `json:"questions" binding:"required,min=1,max=20"`    // 问题列表
	Temperature *float32 `json:"temperature" binding:"omitempty,gte=0,lte=2"`  // 生成温度，可选
	TopP        *float32 `json:"top_p" binding:"omitempty,gt=0,lte=1"`         // 核采样参数，可选
	MaxLength   *int     `json:"max_length" binding:"omitempty,gt=0,lte=4096"` // 回答长度上限，可选
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Title string `json:"title"` // 会话标题，可选
}

// ListSessionsRequest 会话列表查询参数
type ListSessionsRequest struct {
	Page     int `form:"page,default=1" binding:"min=1"`                // 页码，从1开始
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"` // 每页大小
}

// DocumentAskRequest 文档问答请求（multipart表单的文本字段部分）
// 文件本身通过表单的file字段上传；生成参数可选
type DocumentAskRequest struct {
	Question    string   `form:"question" binding:"required"`                  // 针对文档的问题
	SessionID   string   `form:"session_id"`                                   // 会话ID，可选
	Temperature *float32 `form:"temperature" binding:"omitempty,gte=0,lte=2"`  // 生成温度，可选
	TopP        *float32 `form:"top_p" binding:"omitempty,gt=0,lte=1"`         // 核采样参数，可选
	MaxLength   *int     `form:"max_length" binding:"omitempty,gt=0,lte=4096"` // 回答长度上限，可选
}
