package document

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

// ExtractionMethod 每一页文本的提取方式
type ExtractionMethod string

const (
	// MethodDirect 直接从PDF文本层提取
	MethodDirect ExtractionMethod = "direct"
	// MethodOCR 光学字符识别提取
	MethodOCR ExtractionMethod = "ocr"
)

// Page 单页的提取结果
type Page struct {
	Number int              // 页码，从1开始严格递增
	Text   string           // 该页文本
	Method ExtractionMethod // 提取方式
}

// ExtractedText 整篇文档的提取结果
// 页码从1开始严格递增，每页单独标记提取方式
type ExtractedText struct {
	Pages []Page
}

// Text 按页序拼接全文
func (e ExtractedText) Text() string {
	var sb strings.Builder
	for _, p := range e.Pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// CharCount 全文字符数
func (e ExtractedText) CharCount() int {
	return len(e.Text())
}

// PageCount 页数
func (e ExtractedText) PageCount() int {
	return len(e.Pages)
}

// UsedOCR 是否有页面走了OCR兜底
func (e ExtractedText) UsedOCR() bool {
	for _, p := range e.Pages {
		if p.Method == MethodOCR {
			return true
		}
	}
	return false
}

// ExtractorConfig 文本提取器配置
type ExtractorConfig struct {
	// 单页最小文本阈值（字符数），低于该值的页面判定为直接提取失败并路由到OCR
	// 阈值按页应用而不是按文档，混合了原生页和扫描页的PDF才能正确处理
	MinTextThreshold int
	// 整篇文档的最低字符数，OCR之后仍低于该值则报ExtractionError
	MinDocumentChars int
}

// DefaultExtractorConfig 返回默认提取器配置
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MinTextThreshold: 50,
		MinDocumentChars: 10,
	}
}

// Extractor PDF文本提取器
// 逐页直接提取，不足阈值的页面交给OCR引擎兜底
type Extractor struct {
	config ExtractorConfig
	ocr    Engine // OCR引擎，可为nil（禁用兜底）
	logger *logrus.Logger
}

// ExtractorOption 提取器配置选项
type ExtractorOption func(*Extractor)

// WithOCREngine 设置OCR引擎
func WithOCREngine(engine Engine) ExtractorOption {
	return func(e *Extractor) {
		e.ocr = engine
	}
}

// WithExtractorLogger 设置日志记录器
func WithExtractorLogger(logger *logrus.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor 创建文本提取器
func NewExtractor(config ExtractorConfig, opts ...ExtractorOption) *Extractor {
	if config.MinTextThreshold <= 0 {
		config.MinTextThreshold = DefaultExtractorConfig().MinTextThreshold
	}
	if config.MinDocumentChars <= 0 {
		config.MinDocumentChars = DefaultExtractorConfig().MinDocumentChars
	}

	extractor := &Extractor{
		config: config,
		logger: logrus.New(),
	}
	for _, opt := range opts {
		opt(extractor)
	}
	return extractor
}

// ExtractFile 提取PDF文件的全部文本
// 对每一页先尝试直接提取；低于阈值的页面逐页OCR；
// OCR之后全文仍然没有可用文本时返回ExtractionError
func (e *Extractor) ExtractFile(path string) (ExtractedText, error) {
	var result ExtractedText

	if _, err := os.Stat(path); err != nil {
		return result, &ExtractionError{Reason: "document file not accessible", Err: err}
	}

	// 先用pdfcpu做结构校验，损坏的PDF在这里直接失败
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return result, &ExtractionError{Reason: "invalid pdf document", Err: err}
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return result, &ExtractionError{Reason: "failed to open pdf", Err: err}
	}
	defer f.Close()

	numPages := reader.NumPage()
	if numPages == 0 {
		return result, &ExtractionError{Reason: "pdf has no pages"}
	}

	// 第一步：逐页直接提取
	pages := make([]Page, 0, numPages)
	var lowYield []int
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		text := e.extractPage(reader, pageNum)
		page := Page{Number: pageNum, Text: text, Method: MethodDirect}

		if len(strings.TrimSpace(text)) < e.config.MinTextThreshold {
			lowYield = append(lowYield, pageNum)
		}
		pages = append(pages, page)
	}

	// 第二步：对低产出页面做OCR兜底，阈值判断是显式分支而不是异常控制流
	if len(lowYield) > 0 && e.ocr != nil && e.ocr.Available() {
		e.logger.WithFields(logrus.Fields{
			"pages":     lowYield,
			"threshold": e.config.MinTextThreshold,
		}).Info("Low direct extraction yield, falling back to OCR")

		for _, pageNum := range lowYield {
			ocrText, err := e.ocr.RecognizePage(path, pageNum)
			if err != nil {
				e.logger.WithError(err).WithField("page", pageNum).Warn("OCR failed for page")
				continue
			}
			// 只有OCR产出比直接提取更多时才替换
			if len(strings.TrimSpace(ocrText)) > len(strings.TrimSpace(pages[pageNum-1].Text)) {
				pages[pageNum-1].Text = ocrText
				pages[pageNum-1].Method = MethodOCR
			}
		}
	}

	result.Pages = pages

	// 第三步：校验确实拿到了有意义的文本
	if result.CharCount() < e.config.MinDocumentChars {
		return ExtractedText{}, &ExtractionError{
			Reason: fmt.Sprintf("no text could be extracted from document (%d pages)", numPages),
		}
	}

	return result, nil
}

// extractPage 直接提取单页文本，失败时返回空串交给阈值判断
func (e *Extractor) extractPage(reader *pdf.Reader, pageNum int) string {
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		e.logger.WithError(err).WithField("page", pageNum).Debug("Direct extraction failed for page")
		return ""
	}
	return text
}
