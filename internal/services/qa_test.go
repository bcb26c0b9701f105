package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearchat/bearchat-server/internal/cache"
	"github.com/bearchat/bearchat-server/internal/document"
	"github.com/bearchat/bearchat-server/internal/llm"
)

// mockLLM 测试用模型客户端，记录调用次数
type mockLLM struct {
	answer string
	err    error
	calls  int32
}

func (m *mockLLM) Generate(ctx context.Context, question string, options ...llm.GenerateOption) (*llm.Response, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{
		Answer:     m.answer,
		ModelName:  m.Name(),
		FinishTime: time.Now(),
	}, nil
}

func (m *mockLLM) Name() string {
	return "mock-model"
}

func (m *mockLLM) callCount() int {
	return int(atomic.LoadInt32(&m.calls))
}

// newTestCache 创建测试用LRU缓存
func newTestCache(t *testing.T) cache.Cache {
	t.Helper()

	c, err := cache.NewCache(cache.Config{Type: "lru", Capacity: 50, DefaultTTL: time.Hour})
	require.NoError(t, err)
	return c
}

func TestQAServiceAnswer(t *testing.T) {
	mock := &mockLLM{answer: "The deadline is March 1."}
	qa := NewQAService(mock, newTestCache(t))

	result, err := qa.Answer(context.Background(), "When is the admission deadline?", "")
	require.NoError(t, err)

	assert.Equal(t, "The deadline is March 1.", result.Answer)
	assert.False(t, result.FromCache)
	assert.Equal(t, "mock-model", result.Model)
	// 话题检测在服务端完成
	assert.Equal(t, "Admissions", result.Topic)
	assert.Equal(t, "admissions", result.ContentType)
}

func TestQAServiceCacheHitSkipsGeneration(t *testing.T) {
	mock := &mockLLM{answer: "answer"}
	qa := NewQAService(mock, newTestCache(t))

	first, err := qa.Answer(context.Background(), "What is the CS degree plan?", "")
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, mock.callCount())

	// 问题只是大小写和空白不同，命中缓存，不触发第二次生成
	second, err := qa.Answer(context.Background(), "  what is THE cs degree plan?  ", "")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, 1, mock.callCount(), "cache hit must not invoke the generator")
}

func TestQAServiceParamsChangeCacheKey(t *testing.T) {
	mock := &mockLLM{answer: "answer"}
	responseCache := newTestCache(t)

	qa1 := NewQAService(mock, responseCache, WithGenerationParams(0.3, 0.85))
	_, err := qa1.Answer(context.Background(), "same question", "")
	require.NoError(t, err)

	// 温度不同，指纹不同，不会命中旧缓存
	qa2 := NewQAService(mock, responseCache, WithGenerationParams(0.7, 0.85))
	result, err := qa2.Answer(context.Background(), "same question", "")
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 2, mock.callCount())
}

func TestQAServicePerRequestParamsChangeCacheKey(t *testing.T) {
	mock := &mockLLM{answer: "answer"}
	qa := NewQAService(mock, newTestCache(t))

	first, err := qa.Answer(context.Background(), "same question", "")
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	// 只有温度不同的请求不会命中彼此的缓存
	second, err := qa.Answer(context.Background(), "same question", "", WithTemperature(0.9))
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	assert.Equal(t, 2, mock.callCount())

	// 相同覆盖参数的重复请求正常命中
	third, err := qa.Answer(context.Background(), "same question", "", WithTemperature(0.9))
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, 2, mock.callCount())

	// top_p覆盖同样改变指纹
	fourth, err := qa.Answer(context.Background(), "same question", "", WithTopP(0.5))
	require.NoError(t, err)
	assert.False(t, fourth.FromCache)
	assert.Equal(t, 3, mock.callCount())
}

// failingCache 后端总是报错的缓存，模拟Redis故障
type failingCache struct{}

func (f *failingCache) Get(key string) (string, bool, error) {
	return "", false, errors.New("cache backend down")
}

func (f *failingCache) Set(key string, value string, ttl time.Duration) error {
	return errors.New("cache backend down")
}

func (f *failingCache) Delete(key string) error { return nil }
func (f *failingCache) Len() int                { return 0 }
func (f *failingCache) Clear() error            { return nil }

func TestQAServiceCacheFailureDegradesGracefully(t *testing.T) {
	mock := &mockLLM{answer: "still answered"}
	logger, hook := logrustest.NewNullLogger()
	qa := NewQAService(mock, &failingCache{}, WithQALogger(logger))

	result, err := qa.Answer(context.Background(), "any question", "")
	require.NoError(t, err)
	assert.Equal(t, "still answered", result.Answer)
	assert.False(t, result.FromCache)

	// 缓存故障退化为未命中，但日志里必须可见
	var lookupWarned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "Cache lookup failed" {
			lookupWarned = true
		}
	}
	assert.True(t, lookupWarned, "cache lookup failure must be logged")
}

func TestQAServiceGenerationErrorSurfaced(t *testing.T) {
	transportErr := llm.NewRetryableError(503, "service unavailable", nil)
	mock := &mockLLM{err: transportErr}
	qa := NewQAService(mock, newTestCache(t))

	_, err := qa.Answer(context.Background(), "hello", "")
	require.Error(t, err)
	// 传输错误原样上浮，边界层靠类型分类状态码
	assert.Same(t, transportErr, err)
}

func TestQAServiceEmptyQuestion(t *testing.T) {
	qa := NewQAService(&mockLLM{}, newTestCache(t))

	_, err := qa.Answer(context.Background(), "", "")
	require.Error(t, err)
}

func TestQAServiceAnswerDocument(t *testing.T) {
	mock := &mockLLM{answer: "chunk answer"}
	qa := NewQAService(mock, newTestCache(t))

	chunks := []document.Chunk{
		{Text: "First chunk about the CS program.", CharCount: 33, StartPage: 1, EndPage: 1, Index: 0},
		{Text: "Second chunk about electives.", CharCount: 29, StartPage: 2, EndPage: 2, Index: 1},
	}

	result, err := qa.AnswerDocument(context.Background(), "What are the requirements?", chunks, "")
	require.NoError(t, err)

	// 每个分块各调一次生成
	assert.Equal(t, 2, mock.callCount())
	assert.Contains(t, result.Answer, "chunk answer")
	assert.False(t, result.FromCache)
}

func TestQAServiceAnswerDocumentCached(t *testing.T) {
	mock := &mockLLM{answer: "doc answer"}
	qa := NewQAService(mock, newTestCache(t))

	chunks := []document.Chunk{{Text: "Some document content.", CharCount: 22, StartPage: 1, EndPage: 1}}

	_, err := qa.AnswerDocument(context.Background(), "question", chunks, "")
	require.NoError(t, err)
	require.Equal(t, 1, mock.callCount())

	// 相同文档相同问题命中缓存
	second, err := qa.AnswerDocument(context.Background(), "question", chunks, "")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 1, mock.callCount())

	// 文档内容不同则指纹不同
	other := []document.Chunk{{Text: "Different document content.", CharCount: 27, StartPage: 1, EndPage: 1}}
	third, err := qa.AnswerDocument(context.Background(), "question", other, "")
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Equal(t, 2, mock.callCount())

	// 覆盖生成参数后指纹也不同
	fourth, err := qa.AnswerDocument(context.Background(), "question", chunks, "", WithTemperature(0.9))
	require.NoError(t, err)
	assert.False(t, fourth.FromCache)
	assert.Equal(t, 3, mock.callCount())
}

func TestQAServiceAnswerDocumentNoChunks(t *testing.T) {
	qa := NewQAService(&mockLLM{}, newTestCache(t))

	_, err := qa.AnswerDocument(context.Background(), "question", nil, "")
	require.Error(t, err)
}

func TestQAServiceAnswerBatch(t *testing.T) {
	mock := &mockLLM{answer: "batch answer"}
	qa := NewQAService(mock, newTestCache(t))

	answers, err := qa.AnswerBatch(context.Background(), []string{
		"What about scholarships?",
		"What about housing?",
	})
	require.NoError(t, err)
	require.Len(t, answers, 2)

	assert.Equal(t, "batch answer", answers[0].Answer)
	assert.Equal(t, "Scholarships and Financial Aid", answers[0].Topic)
	assert.Equal(t, "Housing and Residence Life", answers[1].Topic)
	assert.Empty(t, answers[0].Error)
}

func TestQAServiceAnswerBatchPartialFailure(t *testing.T) {
	// 空问题失败但不影响其余问题
	mock := &mockLLM{answer: "ok"}
	qa := NewQAService(mock, newTestCache(t))

	answers, err := qa.AnswerBatch(context.Background(), []string{"valid question", ""})
	require.NoError(t, err)
	require.Len(t, answers, 2)

	assert.Equal(t, "ok", answers[0].Answer)
	assert.Empty(t, answers[0].Error)
	assert.NotEmpty(t, answers[1].Error)
	assert.Empty(t, answers[1].Answer)
}

func TestQAServiceHistoryChangesCacheKey(t *testing.T) {
	mock := &mockLLM{answer: "answer"}
	chatSvc := newTestChatService(t)
	qa := NewQAService(mock, newTestCache(t), WithChatService(chatSvc))

	session, err := chatSvc.CreateSession(context.Background(), "test")
	require.NoError(t, err)

	// 第一轮问答写入会话历史
	first, err := qa.Answer(context.Background(), "what next?", session.ID)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, 1, mock.callCount())

	// 历史变了，同一个问题的指纹随之改变，不会命中上一轮的缓存
	second, err := qa.Answer(context.Background(), "what next?", session.ID)
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	assert.Equal(t, 2, mock.callCount())

	// 无会话的相同问题也有独立指纹
	third, err := qa.Answer(context.Background(), "what next?", "")
	require.NoError(t, err)
	assert.False(t, third.FromCache)
	assert.Equal(t, 3, mock.callCount())
}

func TestQAServiceRecordsExchange(t *testing.T) {
	mock := &mockLLM{answer: "recorded answer"}
	chatSvc := newTestChatService(t)
	qa := NewQAService(mock, newTestCache(t), WithChatService(chatSvc))

	session, err := chatSvc.CreateSession(context.Background(), "test")
	require.NoError(t, err)

	_, err = qa.Answer(context.Background(), "any question", session.ID)
	require.NoError(t, err)

	messages, err := chatSvc.RecentHistory(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "any question", messages[0].Content)
	assert.Equal(t, "recorded answer", messages[1].Content)
}

func TestQAServiceAnswerBatchEmpty(t *testing.T) {
	qa := NewQAService(&mockLLM{}, newTestCache(t))

	_, err := qa.AnswerBatch(context.Background(), nil)
	require.Error(t, err)
}
