package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bearchat/bearchat-server/internal/document"
)

// DefaultMaxFileSize 上传文件的默认大小上限（50MB）
const DefaultMaxFileSize = 50 * 1024 * 1024

// ProcessResult 文档处理结果
type ProcessResult struct {
	Text       string                    // 提取出的全部文本
	Method     document.ExtractionMethod // 主要提取方式：direct或ocr
	CharCount  int                       // 字符总数
	PageCount  int                       // 页数
	Chunks     []document.Chunk          // 分块结果
	ChunkCount int                       // 分块数量
	Duration   time.Duration             // 处理耗时
}

// DocumentService 文档处理服务
// 负责上传文档的完整处理流水线：格式检测、图片转换、文本提取和分块。
// 文档只在请求生命周期内存在，处理完即销毁
type DocumentService struct {
	extractor   *document.Extractor
	normalizer  *document.Normalizer
	chunker     *document.Chunker
	maxFileSize int64
	tmpDir      string
	logger      *logrus.Logger
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建文档处理服务实例
func NewDocumentService(
	extractor *document.Extractor,
	normalizer *document.Normalizer,
	chunker *document.Chunker,
	opts ...DocumentOption,
) *DocumentService {
	// 创建服务实例
	service := &DocumentService{
		extractor:   extractor,
		normalizer:  normalizer,
		chunker:     chunker,
		maxFileSize: DefaultMaxFileSize,
		tmpDir:      os.TempDir(),
		logger:      logrus.New(),
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithMaxFileSize 设置文件大小上限
func WithMaxFileSize(size int64) DocumentOption {
	return func(s *DocumentService) {
		if size > 0 {
			s.maxFileSize = size
		}
	}
}

// WithTempDir 设置临时文件目录
func WithTempDir(dir string) DocumentOption {
	return func(s *DocumentService) {
		if dir != "" {
			s.tmpDir = dir
		}
	}
}

// WithDocumentLogger 设置日志记录器
func WithDocumentLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Process 处理上传的文档内容
// 流程：大小校验 -> 格式检测 -> 图片归一化为PDF -> 文本提取 -> 分块。
// 不认识的格式返回FormatError，完全提取不出文本返回ExtractionError
func (s *DocumentService) Process(ctx context.Context, data []byte, filename string) (*ProcessResult, error) {
	start := time.Now()

	if int64(len(data)) > s.maxFileSize {
		return nil, &document.FormatError{
			Filename: filename,
			Detected: fmt.Sprintf("file too large: %d bytes (limit %d)", len(data), s.maxFileSize),
		}
	}
	if len(data) == 0 {
		return nil, &document.FormatError{
			Filename: filename,
			Detected: "empty file",
		}
	}

	// 格式检测基于文件内容，扩展名只作兜底
	format, err := document.DetectFormat(data, filename)
	if err != nil {
		s.logger.WithError(err).WithField("filename", filename).Warn("Unsupported document format")
		return nil, err
	}

	pdfData := data
	if format == document.FormatImage {
		// 栅格图片先转成单页PDF，之后与原生PDF走同一条提取路径
		pdfData, err = s.normalizer.ToPDF(data)
		if err != nil {
			s.logger.WithError(err).WithField("filename", filename).Error("Failed to convert image to PDF")
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"filename": filename,
			"pdf_size": len(pdfData),
		}).Debug("Image normalized to single-page PDF")
	}

	// 提取器按文件路径工作，落一个临时文件并确保清理
	tmpPath, cleanup, err := s.writeTempPDF(pdfData)
	if err != nil {
		return nil, fmt.Errorf("failed to stage document: %w", err)
	}
	defer cleanup()

	extracted, err := s.extractor.ExtractFile(tmpPath)
	if err != nil {
		return nil, err
	}

	chunks := s.chunker.Split(extracted)

	result := &ProcessResult{
		Text:       extracted.Text(),
		Method:     document.MethodDirect,
		CharCount:  extracted.CharCount(),
		PageCount:  extracted.PageCount(),
		Chunks:     chunks,
		ChunkCount: len(chunks),
		Duration:   time.Since(start),
	}
	if extracted.UsedOCR() {
		result.Method = document.MethodOCR
	}

	s.logger.WithFields(logrus.Fields{
		"filename":    filename,
		"method":      result.Method,
		"char_count":  result.CharCount,
		"page_count":  result.PageCount,
		"chunk_count": result.ChunkCount,
		"duration":    result.Duration.String(),
	}).Info("Document processed")

	return result, nil
}

// writeTempPDF 把PDF内容写到临时文件，返回路径和清理函数
func (s *DocumentService) writeTempPDF(data []byte) (string, func(), error) {
	f, err := os.CreateTemp(s.tmpDir, "bearchat-doc-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	path := f.Name()
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("path", path).Warn("Failed to remove temp document")
		}
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	return filepath.Clean(path), cleanup, nil
}
