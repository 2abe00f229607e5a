// Package a2a는 A2A 태스크 프로토콜의 와이어 타입을 정의합니다.
package a2a

import "time"

// TaskState는 태스크의 생명주기 상태입니다.
type TaskState string

const (
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
)

// IsTerminal은 더 이상 실행 결과로 덮어쓸 수 없는 상태인지 반환합니다.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled:
		return true
	default:
		return false
	}
}

// Role은 메시지 작성 주체입니다.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// PartTypeText는 텍스트 파트의 type 값입니다.
const PartTypeText = "text"

// Part는 메시지 또는 아티팩트를 구성하는 콘텐츠 조각입니다.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextPart는 텍스트 파트를 생성합니다.
func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// Message는 history와 실패 상태에 기록되는 하나의 턴입니다.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage는 텍스트 파트 하나로 구성된 메시지를 생성합니다.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{NewTextPart(text)}}
}

// Artifact는 태스크가 생성한 결과물입니다.
type Artifact struct {
	Parts []Part `json:"parts"`
}

// TaskStatus는 태스크 상태와 실패 메시지를 담습니다.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// NewStatus는 현재 시각이 기록된 상태를 생성합니다.
func NewStatus(state TaskState) TaskStatus {
	return TaskStatus{State: state, Timestamp: time.Now().UTC().Format(time.RFC3339)}
}

// NewFailedStatus는 실패 사유를 agent 메시지로 담은 failed 상태를 생성합니다.
func NewFailedStatus(reason string) TaskStatus {
	status := NewStatus(TaskStateFailed)
	msg := NewTextMessage(RoleAgent, reason)
	status.Message = &msg
	return status
}

// Task는 하나의 사용자 턴 요청과 그 결과입니다.
type Task struct {
	ID        string     `json:"id"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts"`
	History   []Message  `json:"history"`
}

// NewTask는 빈 artifacts/history를 가진 태스크를 생성합니다.
func NewTask(id string, status TaskStatus) *Task {
	return &Task{
		ID:        id,
		Status:    status,
		Artifacts: []Artifact{},
		History:   []Message{},
	}
}

// Clone은 슬라이스까지 복사한 깊은 사본을 반환합니다.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := &Task{
		ID:        t.ID,
		Status:    t.Status,
		Artifacts: make([]Artifact, 0, len(t.Artifacts)),
		History:   make([]Message, 0, len(t.History)),
	}
	if t.Status.Message != nil {
		msg := cloneMessage(*t.Status.Message)
		out.Status.Message = &msg
	}
	for _, a := range t.Artifacts {
		out.Artifacts = append(out.Artifacts, Artifact{Parts: append([]Part(nil), a.Parts...)})
	}
	for _, m := range t.History {
		out.History = append(out.History, cloneMessage(m))
	}
	return out
}

// FirstArtifactText는 첫 번째 아티팩트의 텍스트 파트를 이어 붙여 반환합니다.
func (t *Task) FirstArtifactText() string {
	if t == nil || len(t.Artifacts) == 0 {
		return ""
	}
	var text string
	for _, p := range t.Artifacts[0].Parts {
		text += p.Text
	}
	return text
}

func cloneMessage(m Message) Message {
	return Message{Role: m.Role, Parts: append([]Part(nil), m.Parts...)}
}

// AgentCapabilities는 에이전트가 지원하는 선택 기능입니다.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications"`
}

// AgentSkill은 에이전트 카드에 노출되는 스킬입니다.
type AgentSkill struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AgentCard는 디스커버리용 에이전트 메타데이터입니다.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
}
