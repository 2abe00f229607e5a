// Package client는 실행 중인 에이전트 프로세스에 A2A 요청을 보내는 클라이언트입니다.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/connector"
	"go.uber.org/zap"
)

// DefaultTimeout은 요청 하나의 기본 대기 시간입니다. tasks/send는 제공자 호출이 끝날 때까지 응답하지 않습니다.
const DefaultTimeout = 300 * time.Second

// ErrEmptyResult는 에러도 결과도 없는 JSON-RPC 응답을 받았을 때 반환됩니다.
var ErrEmptyResult = errors.New("empty JSON-RPC result")

// HTTPError는 2xx가 아닌 HTTP 응답입니다.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client는 A2A JSON-RPC 클라이언트입니다.
type Client struct {
	baseURL    string
	rpcPath    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
	nextID     atomic.Int64
}

// Option은 Client 옵션입니다.
type Option func(*Client)

// WithHTTPClient는 HTTP 클라이언트를 설정합니다.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout은 요청 타임아웃을 설정합니다.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger는 로거를 설정합니다.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRPCPath는 JSON-RPC 경로를 설정합니다. 기본값은 "/"입니다.
func WithRPCPath(path string) Option {
	return func(c *Client) {
		c.rpcPath = path
	}
}

// New는 baseURL (예: http://localhost:9000)에 대한 클라이언트를 생성합니다.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		rpcPath:    "/",
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
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

// SendTask는 텍스트 메시지 하나로 tasks/send를 호출합니다. taskID가 비어있으면 서버가 생성합니다.
func (c *Client) SendTask(ctx context.Context, taskID, text string) (*a2a.Task, error) {
	part, err := json.Marshal(a2a.NewTextPart(text))
	if err != nil {
		return nil, fmt.Errorf("요청 바디 직렬화 실패: %w", err)
	}

	params := a2a.SendTaskParams{
		ID: taskID,
		Message: a2a.SendTaskMessage{
			Role:  a2a.RoleUser,
			Parts: []json.RawMessage{part},
		},
	}

	var task a2a.Task
	if err := c.call(ctx, a2a.MethodSendTask, params, &task); err != nil {
		return nil, err
	}

	c.logger.Info("Task sent",
		zap.String("task_id", task.ID),
		zap.String("state", string(task.Status.State)),
	)
	return &task, nil
}

// GetTask는 tasks/get을 호출합니다. historyLength가 0이면 전체 이력을 받습니다.
func (c *Client) GetTask(ctx context.Context, taskID string, historyLength int) (*a2a.Task, error) {
	var task a2a.Task
	params := a2a.GetTaskParams{ID: taskID, HistoryLength: historyLength}
	if err := c.call(ctx, a2a.MethodGetTask, params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask는 tasks/cancel을 호출합니다.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	var task a2a.Task
	if err := c.call(ctx, a2a.MethodCancelTask, a2a.CancelTaskParams{ID: taskID}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// AgentCard는 에이전트 카드를 조회합니다.
func (c *Client) AgentCard(ctx context.Context) (*a2a.AgentCard, error) {
	var card a2a.AgentCard
	if err := c.getJSON(ctx, "/.well-known/agent-card.json", &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// Health는 헬스 상태를 조회합니다.
func (c *Client) Health(ctx context.Context) (*connector.HealthStatus, error) {
	var health connector.HealthStatus
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// call은 JSON-RPC 요청을 보내고 result를 out에 해석합니다.
// 서버가 error를 반환하면 *a2a.Error를 그대로 반환합니다.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("요청 바디 직렬화 실패: %w", err)
	}

	id := strconv.FormatInt(c.nextID.Add(1), 10)
	req := a2a.Request{
		JSONRPC: a2a.JSONRPCVersion,
		ID:      json.RawMessage(id),
		Method:  method,
		Params:  rawParams,
	}

	c.logger.Debug("Sending JSON-RPC request", zap.String("method", method), zap.String("id", id))

	resp, err := c.doRequest(ctx, http.MethodPost, c.rpcPath, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *a2a.Error      `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("응답 파싱 실패: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return ErrEmptyResult
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("응답 파싱 실패: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("응답 파싱 실패: %w", err)
	}
	return nil
}

// doRequest는 HTTP 요청을 실행합니다. 2xx가 아니면 *HTTPError를 반환합니다.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("요청 바디 직렬화 실패: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("요청 생성 실패: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("요청 실패: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}
