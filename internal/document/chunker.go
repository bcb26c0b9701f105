package document

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk 有界的连续文本片段，交给答案生成器的基本单位
type Chunk struct {
	Text      string // 片段文本
	CharCount int    // 字符数，不超过配置的上限
	StartPage int    // 起始页码
	EndPage   int    // 结束页码
	Index     int    // 片段序号
}

// ChunkerConfig 分块器配置
type ChunkerConfig struct {
	// 单个分块的最大字符数
	MaxChunkSize int
}

// DefaultChunkerConfig 返回默认分块器配置
// 约3000个token，按每token约4字符估算（给提示词留出余量）
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkSize: 12000,
	}
}

// Chunker 文本分块器
// 按段落累积到预算上限，段落边界优先；分块之间不重叠，
// 避免重复内容进入下游生成器
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建文本分块器
func NewChunker(config ChunkerConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkerConfig().MaxChunkSize
	}
	return &Chunker{config: config}
}

// paragraph 带页码的段落
type paragraph struct {
	text string
	page int
}

// Split 把提取结果分成有界的分块序列
// 纯函数：对同一输入重复调用得到相同的分块序列，
// 下游调用失败后可以直接重取而不必重新提取
func (c *Chunker) Split(extracted ExtractedText) []Chunk {
	paragraphs := c.collectParagraphs(extracted)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []Chunk
	var buf []string
	bufLen := 0
	startPage, endPage := 0, 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		text := strings.Join(buf, "\n\n")
		chunks = append(chunks, Chunk{
			Text:      text,
			CharCount: len(text),
			StartPage: startPage,
			EndPage:   endPage,
			Index:     len(chunks),
		})
		buf = buf[:0]
		bufLen = 0
		startPage, endPage = 0, 0
	}

	for _, para := range paragraphs {
		// 超长段落单独处理：先关闭当前分块，再按句子边界硬切
		if len(para.text) > c.config.MaxChunkSize {
			flush()
			for _, piece := range c.splitOversized(para.text) {
				chunks = append(chunks, Chunk{
					Text:      piece,
					CharCount: len(piece),
					StartPage: para.page,
					EndPage:   para.page,
					Index:     len(chunks),
				})
			}
			continue
		}

		// 加入该段落会超出预算时关闭当前分块
		next := bufLen + len(para.text)
		if len(buf) > 0 {
			next += 2 // 段落分隔符
		}
		if next > c.config.MaxChunkSize {
			flush()
		}

		if len(buf) == 0 {
			startPage = para.page
		}
		endPage = para.page
		buf = append(buf, para.text)
		bufLen += len(para.text)
		if len(buf) > 1 {
			bufLen += 2
		}
	}
	flush()

	return chunks
}

// collectParagraphs 按页序收集非空段落
// 段落以空行分隔，页边界本身也是段落边界
func (c *Chunker) collectParagraphs(extracted ExtractedText) []paragraph {
	var result []paragraph
	for _, page := range extracted.Pages {
		text := strings.ReplaceAll(page.Text, "\r\n", "\n")
		for _, p := range strings.Split(text, "\n\n") {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, paragraph{text: p, page: page.Number})
			}
		}
	}
	return result
}

// splitOversized 把超长段落按句子边界切成不超过预算的片段
func (c *Chunker) splitOversized(text string) []string {
	sentences := splitSentences(text)

	var pieces []string
	var buf strings.Builder
	for _, sentence := range sentences {
		// 单个句子仍然超长时退化到空白边界切分
		if len(sentence) > c.config.MaxChunkSize {
			if buf.Len() > 0 {
				pieces = append(pieces, strings.TrimSpace(buf.String()))
				buf.Reset()
			}
			pieces = append(pieces, c.splitByLength(sentence)...)
			continue
		}

		if buf.Len() > 0 && buf.Len()+1+len(sentence) > c.config.MaxChunkSize {
			pieces = append(pieces, strings.TrimSpace(buf.String()))
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sentence)
	}
	if buf.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(buf.String()))
	}
	return pieces
}

// splitSentences 按句子分隔符切分文本
func splitSentences(text string) []string {
	delimiters := map[rune]bool{'.': true, '!': true, '?': true, '；': true, '。': true, '！': true, '？': true}

	var sentences []string
	var current strings.Builder
	for _, char := range text {
		current.WriteRune(char)
		if delimiters[char] {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}
	if last := strings.TrimSpace(current.String()); last != "" {
		sentences = append(sentences, last)
	}
	return sentences
}

// splitByLength 按固定长度切分，尽量在空白处断开避免截断单词
// 切点始终落在rune边界上，多字节字符不会被切出非法UTF-8
func (c *Chunker) splitByLength(text string) []string {
	var pieces []string

	for i := 0; i < len(text); {
		end := i + c.config.MaxChunkSize
		if end >= len(text) {
			pieces = append(pieces, strings.TrimSpace(text[i:]))
			break
		}

		// 先退到rune边界
		for end > i && !utf8.RuneStart(text[end]) {
			end--
		}

		// 回退到最近的空白边界
		cut := end
		for cut > i {
			r, _ := utf8.DecodeRuneInString(text[cut:])
			if unicode.IsSpace(r) {
				break
			}
			cut--
			for cut > i && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		if cut == i {
			cut = end
		}
		if cut == i {
			// 预算装不下一个rune时至少前进一个，保证循环推进
			_, size := utf8.DecodeRuneInString(text[i:])
			cut = i + size
		}

		piece := strings.TrimSpace(text[i:cut])
		if piece != "" {
			pieces = append(pieces, piece)
		}
		i = cut
		// 跳过边界处的空白
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
	}

	return pieces
}
