package document

import "fmt"

// FormatError 不支持的文档格式错误
// 在流水线入口处快速失败，避免后续无意义的处理
type FormatError struct {
	Filename string // 上传的文件名
	Detected string // 嗅探到的MIME类型
}

// Error 实现error接口
func (e *FormatError) Error() string {
	if e.Detected != "" {
		return fmt.Sprintf("unsupported document format: %s (detected %s)", e.Filename, e.Detected)
	}
	return fmt.Sprintf("unsupported document format: %s", e.Filename)
}

// ConversionError 图片转换错误
// 图片数据损坏或无法解码时返回，向调用方明确报告而不是静默跳过
type ConversionError struct {
	Reason string // 失败原因
	Err    error  // 底层错误
}

// Error 实现error接口
func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("image conversion failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("image conversion failed: %s", e.Reason)
}

// Unwrap 返回底层错误
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ExtractionError 文本提取错误
// 直接提取和OCR兜底都无法得到文本时返回
// 空回答比显式错误更糟糕，所以这里绝不默认为空字符串
type ExtractionError struct {
	Reason string // 失败原因
	Err    error  // 底层错误
}

// Error 实现error接口
func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("text extraction failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("text extraction failed: %s", e.Reason)
}

// Unwrap 返回底层错误
func (e *ExtractionError) Unwrap() error {
	return e.Err
}
