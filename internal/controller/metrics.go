package controller

import (
	"sync/atomic"
	"time"
)

// Metrics는 태스크 실행 메트릭을 수집합니다.
type Metrics struct {
	// Task 메트릭
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	TasksCanceled  int64
	TasksRejected  int64
	TasksInFlight  int64

	// 타이밍 메트릭
	TasksExecuted      int64
	TotalExecutionTime int64 // 나노초

	// 에러 메트릭
	PanicsRecovered int64
	RetriesTotal    int64
}

// RecordSubmitted는 접수된 Task 수를 증가시킵니다.
func (m *Metrics) RecordSubmitted() {
	atomic.AddInt64(&m.TasksSubmitted, 1)
}

// RecordRejected는 중복 ID 등으로 거부된 Task 수를 증가시킵니다.
func (m *Metrics) RecordRejected() {
	atomic.AddInt64(&m.TasksRejected, 1)
}

// RecordCanceled는 취소된 Task 수를 증가시킵니다.
func (m *Metrics) RecordCanceled() {
	atomic.AddInt64(&m.TasksCanceled, 1)
}

// RecordStart는 실행 중인 Task 수를 증가시킵니다.
func (m *Metrics) RecordStart() {
	atomic.AddInt64(&m.TasksInFlight, 1)
}

// RecordTaskExecution은 Task 실행을 기록합니다.
// discarded는 실행 도중 취소되어 결과를 버린 경우입니다.
func (m *Metrics) RecordTaskExecution(success, discarded bool, duration time.Duration) {
	atomic.AddInt64(&m.TasksInFlight, -1)
	atomic.AddInt64(&m.TasksExecuted, 1)
	atomic.AddInt64(&m.TotalExecutionTime, int64(duration))

	switch {
	case discarded:
	case success:
		atomic.AddInt64(&m.TasksCompleted, 1)
	default:
		atomic.AddInt64(&m.TasksFailed, 1)
	}
}

// RecordPanic은 복구된 panic을 기록합니다.
func (m *Metrics) RecordPanic() {
	atomic.AddInt64(&m.PanicsRecovered, 1)
}

// RecordRetry는 재시도를 기록합니다.
func (m *Metrics) RecordRetry() {
	atomic.AddInt64(&m.RetriesTotal, 1)
}

// GetSnapshot은 현재 메트릭 스냅샷을 반환합니다.
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		TasksSubmitted:     atomic.LoadInt64(&m.TasksSubmitted),
		TasksCompleted:     atomic.LoadInt64(&m.TasksCompleted),
		TasksFailed:        atomic.LoadInt64(&m.TasksFailed),
		TasksCanceled:      atomic.LoadInt64(&m.TasksCanceled),
		TasksRejected:      atomic.LoadInt64(&m.TasksRejected),
		TasksInFlight:      atomic.LoadInt64(&m.TasksInFlight),
		AvgExecutionTimeMs: m.calculateAvgExecutionTime(),
		PanicsRecovered:    atomic.LoadInt64(&m.PanicsRecovered),
		RetriesTotal:       atomic.LoadInt64(&m.RetriesTotal),
	}
}

// Reset은 모든 메트릭을 초기화합니다.
func (m *Metrics) Reset() {
	atomic.StoreInt64(&m.TasksSubmitted, 0)
	atomic.StoreInt64(&m.TasksCompleted, 0)
	atomic.StoreInt64(&m.TasksFailed, 0)
	atomic.StoreInt64(&m.TasksCanceled, 0)
	atomic.StoreInt64(&m.TasksRejected, 0)
	atomic.StoreInt64(&m.TasksInFlight, 0)
	atomic.StoreInt64(&m.TasksExecuted, 0)
	atomic.StoreInt64(&m.TotalExecutionTime, 0)
	atomic.StoreInt64(&m.PanicsRecovered, 0)
	atomic.StoreInt64(&m.RetriesTotal, 0)
}

func (m *Metrics) calculateAvgExecutionTime() float64 {
	executed := atomic.LoadInt64(&m.TasksExecuted)
	if executed == 0 {
		return 0
	}
	totalNs := atomic.LoadInt64(&m.TotalExecutionTime)
	return float64(totalNs) / float64(executed) / 1e6 // 나노초 -> 밀리초
}

// MetricsSnapshot은 메트릭 스냅샷입니다.
type MetricsSnapshot struct {
	TasksSubmitted     int64   `json:"submitted"`
	TasksCompleted     int64   `json:"completed"`
	TasksFailed        int64   `json:"failed"`
	TasksCanceled      int64   `json:"canceled"`
	TasksRejected      int64   `json:"rejected"`
	TasksInFlight      int64   `json:"in_flight"`
	AvgExecutionTimeMs float64 `json:"avg_execution_time_ms"`
	PanicsRecovered    int64   `json:"panics_recovered"`
	RetriesTotal       int64   `json:"retries"`
}
