package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClient_CompleteOllama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, false, req["stream"])

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Hello!"}}`))
	}))
	defer server.Close()

	client := NewClient(
		New(Config{Provider: "ollama", Model: "llama3", Endpoint: server.URL}),
		WithLogger(zaptest.NewLogger(t)),
	)

	text, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", text)
}

func TestClient_CompleteOpenAISendsAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"pong"}}]}`))
	}))
	defer server.Close()

	client := NewClient(New(Config{Provider: "openai", Model: "gpt-5", APIKey: "sk-123", Endpoint: server.URL}))

	text, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "ping"}})
	require.NoError(t, err)
	assert.Equal(t, "pong", text)
}

func TestClient_CompleteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := NewClient(New(Config{Provider: "anthropic", Model: "claude", Endpoint: server.URL}))

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindAnthropic, perr.Provider)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Contains(t, perr.Body, "invalid api key")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, `LLM API error 401: {"error":{"message":"invalid api key"}}`, err.Error())
	assert.False(t, IsRetryable(err))
}

func TestClient_CompleteMalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(New(Config{Provider: "openai", Model: "gpt-5", Endpoint: server.URL}))

	_, err := client.Complete(context.Background(), nil)
	require.ErrorIs(t, err, ErrMalformedReply)
	assert.Contains(t, err.Error(), "not json")
}

func TestClient_CompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(
		New(Config{Provider: "ollama", Model: "llama3", Endpoint: server.URL}),
		WithTimeout(50*time.Millisecond),
	)

	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Zero(t, perr.StatusCode)
	assert.True(t, IsRetryable(err))
}

func TestClient_CompleteContextCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 본문을 읽어야 연결 종료가 감지됩니다
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(New(Config{Provider: "ollama", Model: "llama3", Endpoint: server.URL}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, []Message{{Role: RoleUser, Content: "Hi"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(&Error{StatusCode: http.StatusTooManyRequests, Err: ErrUnexpectedStatus}))
	assert.True(t, IsRetryable(&Error{StatusCode: http.StatusBadGateway, Err: ErrUnexpectedStatus}))
	assert.False(t, IsRetryable(&Error{StatusCode: http.StatusBadRequest, Err: ErrUnexpectedStatus}))
	assert.True(t, IsRetryable(&Error{Err: context.DeadlineExceeded}))
	assert.False(t, IsRetryable(&Error{Err: ErrMalformedReply}))
}

func TestNewClient_TimeoutDoesNotMutateSharedClient(t *testing.T) {
	before := http.DefaultClient.Timeout

	client := NewClient(
		New(Config{Provider: "ollama", Model: "llama3"}),
		WithHTTPClient(http.DefaultClient),
		WithTimeout(5*time.Second),
	)

	assert.Equal(t, before, http.DefaultClient.Timeout)
	assert.NotSame(t, http.DefaultClient, client.httpClient)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
}

func TestNewClient_TimeoutIndependentOfOptionOrder(t *testing.T) {
	custom := &http.Client{}

	client := NewClient(
		New(Config{Provider: "ollama", Model: "llama3"}),
		WithTimeout(3*time.Second),
		WithHTTPClient(custom),
	)

	assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
	assert.Zero(t, custom.Timeout)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(New(Config{Provider: "anthropic", Model: "claude"}))
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, KindAnthropic, client.Adapter().Kind())

	custom := &http.Client{Timeout: 7 * time.Second}
	client = NewClient(New(Config{Provider: "ollama", Model: "llama3"}), WithHTTPClient(custom))
	assert.Same(t, custom, client.httpClient)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	// "가"는 3바이트이므로 4바이트에서 자르면 두 번째 글자 앞으로 물러납니다
	assert.Equal(t, "가", truncate("가나다", 4))
	assert.Equal(t, "", truncate("가나다", 2))
	assert.True(t, utf8.ValidString(truncate("에러 응답 본문", 8)))
}

func TestClient_ErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxErrorBodyLen-1) + "한글"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient(New(Config{Provider: "openai", Model: "gpt-5", Endpoint: server.URL}))
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "Hi"}})

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.True(t, utf8.ValidString(perr.Body))
	assert.Equal(t, strings.Repeat("a", maxErrorBodyLen-1), perr.Body)
}
