package storage

import (
	"context"
	"sync"

	"github.com/cnap-oss/agent-runner/internal/a2a"
)

// MemoryStore는 프로세스 메모리에 태스크를 보관합니다.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

// ensure MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore는 빈 MemoryStore를 생성합니다.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*a2a.Task)}
}

// Create는 새 태스크를 저장합니다.
func (s *MemoryStore) Create(_ context.Context, task *a2a.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return ErrTaskExists
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Get은 태스크 사본을 반환합니다.
func (s *MemoryStore) Get(_ context.Context, taskID string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// Update는 잠금을 쥔 채 fn을 적용합니다.
func (s *MemoryStore) Update(_ context.Context, taskID string, fn UpdateFunc) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = taskID
	s.tasks[taskID] = working
	return working.Clone(), nil
}

// Len은 저장된 태스크 수를 반환합니다.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Close는 아무것도 하지 않습니다.
func (s *MemoryStore) Close() error {
	return nil
}
