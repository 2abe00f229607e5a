// Package connector는 A2A JSON-RPC 요청과 디스커버리/헬스 조회를 HTTP로 노출합니다.
package connector

import (
	"context"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/controller"
)

// ReadyLine은 listener가 바인드된 직후 표준 출력에 기록되는 줄입니다.
const ReadyLine = "AGENT_READY"

// 요청 본문 최대 크기 (4 MiB)
const maxRequestBytes = 4 << 20

// TaskService는 dispatcher가 사용하는 태스크 생명주기 연산입니다.
type TaskService interface {
	SubmitTask(ctx context.Context, taskID, userText string) (*a2a.Task, error)
	GetTask(ctx context.Context, taskID string, historyLength int) (*a2a.Task, error)
	CancelTask(ctx context.Context, taskID string) (*a2a.Task, error)
}

// MetricsSource는 헬스 응답에 포함될 실행 메트릭을 제공합니다.
type MetricsSource interface {
	Metrics() controller.MetricsSnapshot
}

// ensure Controller satisfies connector interfaces
var (
	_ TaskService   = (*controller.Controller)(nil)
	_ MetricsSource = (*controller.Controller)(nil)
)
