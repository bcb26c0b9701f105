package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBoomer 创建指向测试服务器的客户端，重试延迟不真正等待
func newTestBoomer(t *testing.T, serverURL string, maxAttempts int) *BoomerClient {
	t.Helper()

	client, err := NewBoomerClient(
		WithBaseURL(serverURL),
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(time.Millisecond),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)

	boomer := client.(*BoomerClient)
	boomer.retrier.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return boomer
}

func TestBoomerGenerateSuccess(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(chatResponse{
			Success:     true,
			Question:    gotReq.Question,
			Answer:      "The CS program requires 120 credit hours.",
			Topic:       "BS Computer Science Degree Plan",
			ContentType: "academic_program",
		})
	}))
	defer server.Close()

	client := newTestBoomer(t, server.URL, 4)

	resp, err := client.Generate(context.Background(), "What does the CS degree require?")
	require.NoError(t, err)
	assert.Equal(t, "The CS program requires 120 credit hours.", resp.Answer)
	assert.Equal(t, "BS Computer Science Degree Plan", resp.Topic)
	assert.Equal(t, "academic_program", resp.ContentType)

	// 默认生成参数随请求发出
	assert.Equal(t, DefaultMaxTokens, gotReq.MaxLength)
	assert.InDelta(t, float64(DefaultTemperature), float64(gotReq.Temperature), 0.0001)
	assert.InDelta(t, float64(DefaultTopP), float64(gotReq.TopP), 0.0001)
}

func TestBoomerGenerateRetriesOn503(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(chatResponse{Success: true, Answer: "recovered"})
	}))
	defer server.Close()

	client := newTestBoomer(t, server.URL, 4)

	resp, err := client.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Answer)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls), "three 503s then success within four attempts")
}

func TestBoomerGenerate400NotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "question too long"})
	}))
	defer server.Close()

	client := newTestBoomer(t, server.URL, 4)

	_, err := client.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx is terminal")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.False(t, te.Retryable)
	// 服务端的错误描述原样带出
	assert.Contains(t, te.Message, "question too long")
}

func TestBoomerGenerateExhaustsAttempts(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestBoomer(t, server.URL, 3)

	_, err := client.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.True(t, te.Retryable)
}

func TestBoomerGenerateServerFailureFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Success: false, Error: "model not loaded"})
	}))
	defer server.Close()

	client := newTestBoomer(t, server.URL, 4)

	_, err := client.Generate(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestBoomerGenerateEmptyQuestion(t *testing.T) {
	client := newTestBoomer(t, "http://localhost:1", 1)

	_, err := client.Generate(context.Background(), "   ")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestBoomerGenerateConnectionRefusedRetryable(t *testing.T) {
	// 无人监听的端口，连接被拒
	client := newTestBoomer(t, "http://127.0.0.1:1", 2)

	_, err := client.Generate(context.Background(), "hello")
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Retryable, "connection failures are transient")
}

func TestBuildQuestion(t *testing.T) {
	opts := &GenerateOptions{
		Topic:   "Admissions",
		Context: "Application deadline is March 1.",
		History: "user: hi\nassistant: hello",
	}

	q := buildQuestion("When is the deadline?", opts)
	assert.Contains(t, q, "### Topic: Admissions")
	assert.Contains(t, q, "### Document:\nApplication deadline is March 1.")
	assert.Contains(t, q, "### Conversation so far:\nuser: hi\nassistant: hello")
	assert.True(t, strings.HasSuffix(q, "When is the deadline?"))

	// 没有附加信息时问题原样发出
	assert.Equal(t, "When is the deadline?", buildQuestion("When is the deadline?", &GenerateOptions{}))
}

func TestDetectTopic(t *testing.T) {
	tests := []struct {
		question string
		topic    string
		category string
	}{
		{"Tell me about the computer science degree", "BS Computer Science Degree Plan", "academic_program"},
		{"How do I apply for a scholarship?", "Scholarships and Financial Aid", "financial_aid"},
		{"What are the admission requirements?", "Admissions", "admissions"},
		{"Is dorm housing available?", "Housing and Residence Life", "housing"},
		{"What time does the library open?", "Missouri State University", "general_info"},
	}

	for _, tt := range tests {
		topic, category := DetectTopic(tt.question)
		assert.Equal(t, tt.topic, topic, tt.question)
		assert.Equal(t, tt.category, category, tt.question)
	}
}

func TestNewClientFactory(t *testing.T) {
	client, err := NewClient("boomer", WithBaseURL("http://localhost:8000"))
	require.NoError(t, err)
	assert.Equal(t, "llama-3.2-3b-bearchat", client.Name())

	_, err = NewClient("unknown")
	require.Error(t, err)
}
