package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/storage"
	"go.uber.org/zap"
)

// ErrInvalidJSON은 요청 본문이 JSON 객체로 해석되지 않을 때 반환됩니다.
// 이 경우 JSON-RPC envelope 없이 HTTP 400으로 응답합니다.
var ErrInvalidJSON = errors.New("invalid JSON")

// Dispatcher는 JSON-RPC 요청 하나를 태스크 연산으로 라우팅합니다. 상태를 갖지 않습니다.
type Dispatcher struct {
	logger *zap.Logger
	tasks  TaskService
}

// NewDispatcher는 새로운 Dispatcher를 생성합니다.
func NewDispatcher(logger *zap.Logger, tasks TaskService) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger, tasks: tasks}
}

// Dispatch는 요청 본문을 해석하고 응답 envelope을 반환합니다.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) (*a2a.Response, error) {
	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, ErrInvalidJSON
	}
	return d.Handle(ctx, &req), nil
}

// Handle은 해석된 요청을 처리합니다.
func (d *Dispatcher) Handle(ctx context.Context, req *a2a.Request) *a2a.Response {
	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	if req.JSONRPC != "" && req.JSONRPC != a2a.JSONRPCVersion {
		return a2a.NewError(id, a2a.CodeInvalidRequest, fmt.Sprintf("Unsupported jsonrpc version '%s'", req.JSONRPC))
	}

	d.logger.Debug("Dispatching request", zap.String("method", req.Method), zap.ByteString("id", id))

	switch req.Method {
	case a2a.MethodSendTask:
		return d.sendTask(ctx, id, req.Params)
	case a2a.MethodGetTask:
		return d.getTask(ctx, id, req.Params)
	case a2a.MethodCancelTask:
		return d.cancelTask(ctx, id, req.Params)
	default:
		return a2a.NewError(id, a2a.CodeMethodNotFound, fmt.Sprintf("Method '%s' not found", req.Method))
	}
}

func (d *Dispatcher) sendTask(ctx context.Context, id json.RawMessage, raw json.RawMessage) *a2a.Response {
	var params a2a.SendTaskParams
	if err := decodeParams(raw, &params); err != nil {
		return a2a.NewError(id, a2a.CodeInvalidParams, "Invalid params: "+err.Error())
	}

	text := params.Message.TextContent()
	if text == "" {
		return a2a.NewError(id, a2a.CodeInvalidParams, "No text content in message")
	}

	task, err := d.tasks.SubmitTask(ctx, params.ID, text)
	if err != nil {
		if errors.Is(err, storage.ErrTaskExists) {
			return a2a.NewError(id, a2a.CodeInvalidParams, fmt.Sprintf("Task '%s' already exists", params.ID))
		}
		return d.internalError(id, a2a.MethodSendTask, err)
	}
	return a2a.NewResult(id, task)
}

func (d *Dispatcher) getTask(ctx context.Context, id json.RawMessage, raw json.RawMessage) *a2a.Response {
	var params a2a.GetTaskParams
	if err := decodeParams(raw, &params); err != nil {
		return a2a.NewError(id, a2a.CodeInvalidParams, "Invalid params: "+err.Error())
	}

	task, err := d.tasks.GetTask(ctx, params.ID, params.HistoryLength)
	if err != nil {
		if errors.Is(err, storage.ErrTaskNotFound) {
			return a2a.NewError(id, a2a.CodeInvalidParams, fmt.Sprintf("Task '%s' not found", params.ID))
		}
		return d.internalError(id, a2a.MethodGetTask, err)
	}
	return a2a.NewResult(id, task)
}

func (d *Dispatcher) cancelTask(ctx context.Context, id json.RawMessage, raw json.RawMessage) *a2a.Response {
	var params a2a.CancelTaskParams
	if err := decodeParams(raw, &params); err != nil {
		return a2a.NewError(id, a2a.CodeInvalidParams, "Invalid params: "+err.Error())
	}

	task, err := d.tasks.CancelTask(ctx, params.ID)
	if err != nil {
		return d.internalError(id, a2a.MethodCancelTask, err)
	}
	return a2a.NewResult(id, task)
}

func (d *Dispatcher) internalError(id json.RawMessage, method string, err error) *a2a.Response {
	d.logger.Error("Task operation failed", zap.String("method", method), zap.Error(err))
	return a2a.NewError(id, a2a.CodeInternalError, "Internal error: "+err.Error())
}

// decodeParams는 params를 해석합니다. 없거나 null이면 빈 객체로 취급합니다.
func decodeParams(raw json.RawMessage, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, out)
}
