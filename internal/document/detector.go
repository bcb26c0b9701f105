package document

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format 表示上传文档的格式分类
type Format string

const (
	// FormatPDF PDF文档
	FormatPDF Format = "pdf"
	// FormatImage 栅格图片
	FormatImage Format = "image"
	// FormatUnsupported 不支持的格式
	FormatUnsupported Format = "unsupported"
)

// 支持的图片扩展名集合
var supportedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".gif":  true,
}

// 支持的图片MIME类型集合
var supportedImageMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/gif":  true,
	// mimetype库对bmp的识别结果
	"image/x-ms-bmp": true,
}

// DetectFormat 根据内容和文件名判断文档格式
// 纯分类操作，没有副作用；不支持的类型返回FormatError
func DetectFormat(data []byte, filename string) (Format, error) {
	// 优先按内容嗅探
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is("application/pdf"):
		return FormatPDF, nil
	case supportedImageMimes[normalizeMime(mtype.String())]:
		return FormatImage, nil
	}

	// 内容无法识别时回退到扩展名判断
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return FormatPDF, nil
	case supportedImageExts[ext]:
		return FormatImage, nil
	}

	return FormatUnsupported, &FormatError{
		Filename: filename,
		Detected: mtype.String(),
	}
}

// normalizeMime 去掉MIME类型中的参数部分
func normalizeMime(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}
