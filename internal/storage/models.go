package storage

import (
	"time"

	"github.com/cnap-oss/agent-runner/internal/a2a"
)

// TaskRecord는 tasks 테이블 레코드를 나타냅니다.
type TaskRecord struct {
	ID              int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID          string         `gorm:"column:task_id;type:varchar(128);not null;uniqueIndex:idx_tasks_task_id"`
	State           string         `gorm:"column:state;type:varchar(32);not null;index:idx_tasks_state"`
	StatusMessage   *a2a.Message   `gorm:"column:status_message;serializer:json"`
	StatusTimestamp string         `gorm:"column:status_timestamp;type:varchar(64)"`
	Artifacts       []a2a.Artifact `gorm:"column:artifacts;serializer:json"`
	History         []a2a.Message  `gorm:"column:history;serializer:json"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;not null;autoUpdateTime"`
}

// TableName은 gorm Tabler 인터페이스를 구현합니다.
func (TaskRecord) TableName() string {
	return "tasks"
}

// toTask는 레코드를 와이어 태스크로 변환합니다.
func (r *TaskRecord) toTask() *a2a.Task {
	task := a2a.NewTask(r.TaskID, a2a.TaskStatus{
		State:     a2a.TaskState(r.State),
		Timestamp: r.StatusTimestamp,
	})
	if r.StatusMessage != nil {
		msg := *r.StatusMessage
		task.Status.Message = &msg
	}
	if r.Artifacts != nil {
		task.Artifacts = r.Artifacts
	}
	if r.History != nil {
		task.History = r.History
	}
	return task.Clone()
}

// apply는 태스크 내용을 레코드에 기록합니다. ID와 시각 컬럼은 유지됩니다.
func (r *TaskRecord) apply(task *a2a.Task) {
	r.TaskID = task.ID
	r.State = string(task.Status.State)
	r.StatusMessage = task.Status.Message
	r.StatusTimestamp = task.Status.Timestamp
	r.Artifacts = task.Artifacts
	r.History = task.History
}
