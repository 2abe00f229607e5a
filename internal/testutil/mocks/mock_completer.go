package mocks

import (
	"context"
	"sync"

	"github.com/cnap-oss/agent-runner/internal/provider"
)

// MockCompleter는 테스트용 provider.Completer 구현입니다.
// 응답은 마지막 user 메시지 내용으로 찾습니다.
type MockCompleter struct {
	mu sync.Mutex

	// Responses는 user 텍스트별 응답을 정의합니다.
	Responses map[string]string

	// Errors는 user 텍스트별 에러를 정의합니다.
	Errors map[string]error

	// DefaultResponse는 Responses에 없는 경우 사용할 기본 응답입니다.
	DefaultResponse string

	// FailFirst만큼의 첫 호출은 FailErr를 반환합니다.
	FailFirst int
	FailErr   error

	// PanicWith가 nil이 아니면 호출 시 panic을 일으킵니다.
	PanicWith interface{}

	// Block이 설정되면 닫히거나 ctx가 끝날 때까지 대기합니다.
	Block chan struct{}

	// Started는 호출이 시작될 때마다 신호를 받습니다 (nil이면 생략).
	Started chan struct{}

	calls [][]provider.Message
}

// ensure MockCompleter implements Completer
var _ provider.Completer = (*MockCompleter)(nil)

// NewMockCompleter는 새로운 MockCompleter를 생성합니다.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		Responses:       make(map[string]string),
		Errors:          make(map[string]error),
		DefaultResponse: "Mock response",
	}
}

// Complete implements provider.Completer.
func (m *MockCompleter) Complete(ctx context.Context, messages []provider.Message) (string, error) {
	m.mu.Lock()
	call := append([]provider.Message(nil), messages...)
	m.calls = append(m.calls, call)
	attempt := len(m.calls)
	block, started, panicWith := m.Block, m.Started, m.PanicWith
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}

	if panicWith != nil {
		panic(panicWith)
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if attempt <= m.FailFirst && m.FailErr != nil {
		return "", m.FailErr
	}

	text := lastUserContent(messages)
	if err, ok := m.Errors[text]; ok {
		return "", err
	}
	if resp, ok := m.Responses[text]; ok {
		return resp, nil
	}
	return m.DefaultResponse, nil
}

// SetResponse는 특정 user 텍스트에 대한 응답을 설정합니다.
func (m *MockCompleter) SetResponse(text, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[text] = response
}

// SetError는 특정 user 텍스트에 대한 에러를 설정합니다.
func (m *MockCompleter) SetError(text string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[text] = err
}

// GetCallCount는 Complete 호출 횟수를 반환합니다.
func (m *MockCompleter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// GetLastCall은 마지막 호출의 메시지 목록을 반환합니다.
func (m *MockCompleter) GetLastCall() []provider.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Reset은 호출 기록을 초기화합니다.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func lastUserContent(messages []provider.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
