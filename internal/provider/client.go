package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultTimeout은 제공자 호출 하나에 허용되는 최대 시간입니다.
const DefaultTimeout = 120 * time.Second

// 응답 본문 최대 크기 (8 MiB)
const maxReplyBytes = 8 << 20

// 에러 메시지에 남길 응답 본문 최대 길이
const maxErrorBodyLen = 2048

// Completer는 메시지 목록에 대한 단일 LLM 응답을 돌려줍니다.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Client는 Adapter로 만든 요청을 실제로 전송하는 HTTP 클라이언트입니다.
// 재시도는 하지 않습니다.
type Client struct {
	adapter    Adapter
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// ClientOption은 Client 옵션입니다.
type ClientOption func(*Client)

// WithHTTPClient는 HTTP 클라이언트를 설정합니다.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout은 호출 타임아웃을 설정합니다.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger는 로거를 설정합니다.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient는 새 제공자 클라이언트를 생성합니다.
func NewClient(adapter Adapter, opts ...ClientOption) *Client {
	c := &Client{
		adapter: adapter,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	// 전달받은 http.Client는 변경하지 않고 복사본에 타임아웃을 적용합니다
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

// ensure Client implements Completer interface
var _ Completer = (*Client)(nil)

// Adapter는 선택된 어댑터를 반환합니다.
func (c *Client) Adapter() Adapter {
	return c.adapter
}

// Complete는 제공자를 한 번 호출하고 답변 텍스트를 반환합니다.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	kind := c.adapter.Kind()

	req, err := c.adapter.BuildRequest(messages)
	if err != nil {
		return "", &Error{Provider: kind, Err: fmt.Errorf("요청 생성 실패: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return "", &Error{Provider: kind, Err: err}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("Provider request failed",
			zap.String("provider", string(kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", &Error{Provider: kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", &Error{Provider: kind, Err: fmt.Errorf("응답 읽기 실패: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Provider returned error status",
			zap.String("provider", string(kind)),
			zap.Int("status", resp.StatusCode),
			zap.Int("body_length", len(body)),
		)
		return "", &Error{
			Provider:   kind,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), maxErrorBodyLen),
			Err:        ErrUnexpectedStatus,
		}
	}

	text, err := c.adapter.ParseReply(body)
	if err != nil {
		return "", &Error{Provider: kind, Body: truncate(string(body), 200), Err: err}
	}

	c.logger.Debug("Provider reply received",
		zap.String("provider", string(kind)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("reply_length", len(text)),
	)

	return text, nil
}

// truncate는 s를 n바이트 이하로 자르되 UTF-8 문자 중간에서 자르지 않습니다.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
