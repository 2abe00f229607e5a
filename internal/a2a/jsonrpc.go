package a2a

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion은 지원하는 JSON-RPC 버전입니다.
const JSONRPCVersion = "2.0"

// 태스크 메서드 이름
const (
	MethodSendTask   = "tasks/send"
	MethodGetTask    = "tasks/get"
	MethodCancelTask = "tasks/cancel"
)

// 표준 JSON-RPC 에러 코드
const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request는 JSON-RPC 2.0 요청 envelope입니다.
// ID는 문자열, 숫자, null 모두 가능하므로 원본 그대로 보관합니다.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error는 JSON-RPC 에러 객체입니다.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error는 error 인터페이스를 구현합니다.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response는 JSON-RPC 2.0 응답 envelope입니다.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult는 성공 응답을 생성합니다.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewError는 에러 응답을 생성합니다.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: &Error{Code: code, Message: message}}
}

// SendTaskMessage는 tasks/send의 message 파라미터입니다.
// parts는 형식이 제각각일 수 있어 개별적으로 해석합니다.
type SendTaskMessage struct {
	Role  Role              `json:"role,omitempty"`
	Parts []json.RawMessage `json:"parts"`
}

// SendTaskParams는 tasks/send 파라미터입니다.
type SendTaskParams struct {
	ID      string          `json:"id,omitempty"`
	Message SendTaskMessage `json:"message"`
}

// TextContent는 message의 parts 중 텍스트를 가진 객체 파트의 text를 순서대로 이어 붙입니다.
// 객체가 아니거나 text가 없는 파트는 건너뜁니다.
func (m SendTaskMessage) TextContent() string {
	var text string
	for _, raw := range m.Parts {
		var part struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &part); err != nil {
			continue
		}
		text += part.Text
	}
	return text
}

// GetTaskParams는 tasks/get 파라미터입니다.
type GetTaskParams struct {
	ID            string `json:"id"`
	HistoryLength int    `json:"historyLength,omitempty"`
}

// CancelTaskParams는 tasks/cancel 파라미터입니다.
type CancelTaskParams struct {
	ID string `json:"id"`
}
