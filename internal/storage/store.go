package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/common"
	"go.uber.org/zap"
)

// 기본 에러 타입
var (
	// ErrTaskNotFound는 식별자에 해당하는 태스크가 없을 때 반환됩니다.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskExists는 이미 존재하는 식별자로 태스크를 생성하려 할 때 반환됩니다.
	ErrTaskExists = errors.New("task already exists")
)

// UpdateFunc는 저장된 태스크의 작업 사본을 수정합니다.
// 에러를 반환하면 변경 사항은 버려집니다.
type UpdateFunc func(task *a2a.Task) error

// Store는 태스크 레코드를 소유하는 저장소입니다.
// 호출자는 항상 깊은 사본만 받습니다.
type Store interface {
	// Create는 새 태스크를 저장합니다. 같은 ID가 있으면 ErrTaskExists를 반환합니다.
	Create(ctx context.Context, task *a2a.Task) error
	// Get은 태스크 사본을 반환합니다. 없으면 ErrTaskNotFound를 반환합니다.
	Get(ctx context.Context, taskID string) (*a2a.Task, error)
	// Update는 read-modify-write를 원자적으로 수행하고 갱신된 사본을 반환합니다.
	Update(ctx context.Context, taskID string, fn UpdateFunc) (*a2a.Task, error)
	// Close는 저장소 자원을 해제합니다.
	Close() error
}

// NewStore는 설정된 드라이버에 맞는 Store를 생성합니다.
func NewStore(cfg common.StoreConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case "", common.StoreDriverMemory:
		logger.Info("Using in-memory task store")
		return NewMemoryStore(), nil
	case common.StoreDriverSQL:
		db, err := Open(ConfigFromStore(cfg), logger)
		if err != nil {
			return nil, err
		}
		return NewRepository(db)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
