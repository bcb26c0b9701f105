package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOCREngine 测试用OCR引擎，记录被调用的页码
type mockOCREngine struct {
	text  string
	err   error
	calls []int
}

func (m *mockOCREngine) RecognizePage(pdfPath string, pageNum int) (string, error) {
	m.calls = append(m.calls, pageNum)
	return m.text, m.err
}

func (m *mockOCREngine) Available() bool {
	return true
}

// createTestPDF 用gofpdf生成多页PDF夹具，空串表示无文本的空白页
func createTestPDF(t *testing.T, pages ...string) string {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		if text != "" {
			pdf.MultiCell(180, 8, text, "", "L", false)
		}
	}

	path := filepath.Join(t.TempDir(), "fixture.pdf")
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

// writeTempFile 把字节落成临时文件
func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

const richPageText = "Missouri State University offers a Bachelor of Science in Computer Science. " +
	"The program covers algorithms, data structures, operating systems and software engineering."

func TestExtractDirectText(t *testing.T) {
	path := createTestPDF(t, richPageText, richPageText)

	extractor := NewExtractor(ExtractorConfig{})
	extracted, err := extractor.ExtractFile(path)
	require.NoError(t, err)

	require.Equal(t, 2, extracted.PageCount())
	assert.False(t, extracted.UsedOCR())
	assert.Greater(t, extracted.CharCount(), 100)

	// 页码从1开始严格递增，每页标记提取方式
	for i, page := range extracted.Pages {
		assert.Equal(t, i+1, page.Number)
		assert.Equal(t, MethodDirect, page.Method)
	}
	assert.Contains(t, extracted.Text(), "Computer")
}

func TestExtractOCRFallbackPerPage(t *testing.T) {
	// 第一页有文本层，第二页是空白（模拟扫描页）
	path := createTestPDF(t, richPageText, "")

	ocr := &mockOCREngine{text: "MSU CS Program scanned content recovered by OCR"}
	extractor := NewExtractor(ExtractorConfig{}, WithOCREngine(ocr))

	extracted, err := extractor.ExtractFile(path)
	require.NoError(t, err)

	// 只有低产出的页被送去OCR
	assert.Equal(t, []int{2}, ocr.calls)

	require.Equal(t, 2, extracted.PageCount())
	assert.Equal(t, MethodDirect, extracted.Pages[0].Method)
	assert.Equal(t, MethodOCR, extracted.Pages[1].Method)
	assert.Contains(t, extracted.Pages[1].Text, "MSU CS Program")
	assert.True(t, extracted.UsedOCR())
}

func TestExtractOCRNotInvokedWhenTextSufficient(t *testing.T) {
	path := createTestPDF(t, richPageText, richPageText, richPageText)

	ocr := &mockOCREngine{text: "should never be used"}
	extractor := NewExtractor(ExtractorConfig{}, WithOCREngine(ocr))

	extracted, err := extractor.ExtractFile(path)
	require.NoError(t, err)

	assert.Empty(t, ocr.calls, "OCR must not run when direct extraction meets the threshold")
	assert.False(t, extracted.UsedOCR())
}

func TestExtractThresholdConfigurable(t *testing.T) {
	shortText := "Short page."
	path := createTestPDF(t, shortText)

	// 阈值调低后短文本页不再走OCR
	ocr := &mockOCREngine{text: "ocr text"}
	extractor := NewExtractor(ExtractorConfig{MinTextThreshold: 5}, WithOCREngine(ocr))

	extracted, err := extractor.ExtractFile(path)
	require.NoError(t, err)
	assert.Empty(t, ocr.calls)
	assert.False(t, extracted.UsedOCR())
}

func TestExtractFailsWhenNoText(t *testing.T) {
	// 空白页且没有OCR引擎
	path := createTestPDF(t, "")

	extractor := NewExtractor(ExtractorConfig{})
	_, err := extractor.ExtractFile(path)
	require.Error(t, err)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestExtractFailsWhenOCRAlsoEmpty(t *testing.T) {
	path := createTestPDF(t, "")

	// OCR也识别不出任何文本，必须显式报错而不是静默返回空串
	ocr := &mockOCREngine{text: ""}
	extractor := NewExtractor(ExtractorConfig{}, WithOCREngine(ocr))

	_, err := extractor.ExtractFile(path)
	require.Error(t, err)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.NotEmpty(t, ocr.calls)
}

func TestExtractOCRKeepsBetterDirectText(t *testing.T) {
	path := createTestPDF(t, "A short but present line of text here.")

	// OCR产出比直接提取少时保留直接提取的结果
	ocr := &mockOCREngine{text: "x"}
	extractor := NewExtractor(ExtractorConfig{MinTextThreshold: 100}, WithOCREngine(ocr))

	extracted, err := extractor.ExtractFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, ocr.calls)
	assert.Equal(t, MethodDirect, extracted.Pages[0].Method)
	assert.Contains(t, extracted.Pages[0].Text, "present")
}

func TestExtractMissingFile(t *testing.T) {
	extractor := NewExtractor(ExtractorConfig{})

	_, err := extractor.ExtractFile(filepath.Join(t.TempDir(), "nope.pdf"))
	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestExtractCorruptPDF(t *testing.T) {
	path := writeTempFile(t, []byte("%PDF-1.4 this is not a real pdf body"))

	extractor := NewExtractor(ExtractorConfig{})
	_, err := extractor.ExtractFile(path)

	var extractErr *ExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestExtractedTextHelpers(t *testing.T) {
	extracted := ExtractedText{Pages: []Page{
		{Number: 1, Text: "  first page  ", Method: MethodDirect},
		{Number: 2, Text: "", Method: MethodDirect},
		{Number: 3, Text: "third page", Method: MethodOCR},
	}}

	// 空页在拼接时被跳过
	assert.Equal(t, "first page\n\nthird page", extracted.Text())
	assert.Equal(t, 3, extracted.PageCount())
	assert.True(t, extracted.UsedOCR())
	assert.Equal(t, len("first page\n\nthird page"), extracted.CharCount())
	assert.False(t, strings.Contains(extracted.Text(), "  "))
}
