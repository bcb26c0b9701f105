package document

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Engine OCR引擎接口
// 对扫描页做光学字符识别；抽象成接口方便测试时注入mock
type Engine interface {
	// RecognizePage 对PDF的指定页做OCR，返回识别出的文本
	RecognizePage(pdfPath string, pageNum int) (string, error)

	// Available 引擎依赖是否就绪
	Available() bool
}

// TesseractConfig tesseract OCR引擎配置
type TesseractConfig struct {
	// 栅格化分辨率(DPI)
	DPI int
	// 识别语言，默认eng
	Language string
}

// DefaultTesseractConfig 返回默认OCR配置
func DefaultTesseractConfig() TesseractConfig {
	return TesseractConfig{
		DPI:      300,
		Language: "eng",
	}
}

// TesseractEngine 基于tesseract命令行的OCR引擎
// 先用pdftoppm(poppler)把页面栅格化成PNG，再交给tesseract识别
type TesseractEngine struct {
	config       TesseractConfig
	tesseractBin string
	pdftoppmBin  string
}

// NewTesseractEngine 创建tesseract OCR引擎
// 二进制不存在时引擎仍可创建，只是Available()返回false
func NewTesseractEngine(config TesseractConfig) *TesseractEngine {
	if config.DPI <= 0 {
		config.DPI = DefaultTesseractConfig().DPI
	}
	if config.Language == "" {
		config.Language = DefaultTesseractConfig().Language
	}

	engine := &TesseractEngine{config: config}
	if path, err := exec.LookPath("tesseract"); err == nil {
		engine.tesseractBin = path
	}
	if path, err := exec.LookPath("pdftoppm"); err == nil {
		engine.pdftoppmBin = path
	}
	return engine
}

// Available 检查tesseract和pdftoppm是否都在PATH上
func (t *TesseractEngine) Available() bool {
	return t.tesseractBin != "" && t.pdftoppmBin != ""
}

// RecognizePage 栅格化指定页并做OCR
func (t *TesseractEngine) RecognizePage(pdfPath string, pageNum int) (string, error) {
	if !t.Available() {
		return "", fmt.Errorf("ocr engine not available: tesseract or pdftoppm missing")
	}

	tmpDir, err := os.MkdirTemp("", "bearchat-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// 第一步：只栅格化目标页
	imagePrefix := filepath.Join(tmpDir, "page")
	pageArg := strconv.Itoa(pageNum)
	cmd := exec.Command(t.pdftoppmBin,
		"-png",
		"-r", strconv.Itoa(t.config.DPI),
		"-f", pageArg,
		"-l", pageArg,
		pdfPath, imagePrefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm failed for page %d: %v (%s)", pageNum, err, stderr.String())
	}

	imagePath, err := findPageImage(tmpDir)
	if err != nil {
		return "", err
	}

	// 第二步：tesseract识别，结果输出到stdout
	ocrCmd := exec.Command(t.tesseractBin, imagePath, "stdout", "-l", t.config.Language)
	var out, ocrErr bytes.Buffer
	ocrCmd.Stdout = &out
	ocrCmd.Stderr = &ocrErr
	if err := ocrCmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed for page %d: %v (%s)", pageNum, err, ocrErr.String())
	}

	return strings.TrimSpace(out.String()), nil
}

// findPageImage 在临时目录中找到pdftoppm生成的页面图片
func findPageImage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read ocr temp dir: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".png") {
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	if len(images) == 0 {
		return "", fmt.Errorf("pdftoppm produced no page image")
	}

	sort.Strings(images)
	return images[0], nil
}
