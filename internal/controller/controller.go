package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/cnap-oss/agent-runner/internal/provider"
	"github.com/cnap-oss/agent-runner/internal/storage"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Controller는 태스크 생명주기를 관리합니다.
// 접수된 태스크를 저장하고 제공자를 호출한 뒤 결과를 기록합니다.
type Controller struct {
	logger    *zap.Logger
	cfg       Config
	store     storage.Store
	completer provider.Completer
	recovery  *RecoveryManager
	slots     *semaphore.Weighted
	metrics   *Metrics
	newID     func() string

	taskContexts map[string]*TaskContext
	mu           sync.RWMutex
}

// Option은 Controller 옵션입니다.
type Option func(*Controller)

// WithIDGenerator는 태스크 ID 생성기를 설정합니다.
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithRecoveryConfig는 재시도 정책을 덮어씁니다.
func WithRecoveryConfig(rc RecoveryConfig) Option {
	return func(c *Controller) {
		c.recovery = c.newRecoveryManager(rc)
	}
}

// NewController는 새로운 Controller를 생성합니다.
func NewController(logger *zap.Logger, cfg Config, store storage.Store, completer provider.Completer, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("controller: store is not configured")
	}
	if completer == nil {
		return nil, fmt.Errorf("controller: completer is not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg = cfg.withDefaults()
	c := &Controller{
		logger:       logger,
		cfg:          cfg,
		store:        store,
		completer:    completer,
		slots:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		metrics:      &Metrics{},
		newID:        func() string { return ulid.Make().String() },
		taskContexts: make(map[string]*TaskContext),
	}

	rc := DefaultRecoveryConfig()
	rc.MaxRetries = cfg.MaxRetries
	rc.InitialBackoff = cfg.InitialBackoff
	c.recovery = c.newRecoveryManager(rc)

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Controller) newRecoveryManager(rc RecoveryConfig) *RecoveryManager {
	if rc.Retryable == nil {
		rc.Retryable = provider.IsRetryable
	}
	onRetry := rc.OnRetry
	rc.OnRetry = func(attempt int, err error) {
		c.metrics.RecordRetry()
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return NewRecoveryManager(c.logger.Named("recovery"), rc)
}

// Metrics는 실행 메트릭 스냅샷을 반환합니다.
func (c *Controller) Metrics() MetricsSnapshot {
	return c.metrics.GetSnapshot()
}

// Stop은 진행 중인 모든 제공자 호출을 취소합니다.
// 각 태스크는 canceled가 아닌 이상 failed로 기록됩니다.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.RLock()
	count := len(c.taskContexts)
	for _, taskCtx := range c.taskContexts {
		taskCtx.cancel()
	}
	c.mu.RUnlock()

	c.logger.Info("Controller stopped", zap.Int("aborted_tasks", count))
	return ctx.Err()
}

func (c *Controller) track(ctx context.Context, taskID string, cancel context.CancelFunc) {
	c.mu.Lock()
	c.taskContexts[taskID] = &TaskContext{ctx: ctx, cancel: cancel}
	c.mu.Unlock()
}

func (c *Controller) untrack(taskID string) {
	c.mu.Lock()
	delete(c.taskContexts, taskID)
	c.mu.Unlock()
}

// InFlight는 제공자 호출이 진행 중인 태스크인지 반환합니다.
func (c *Controller) InFlight(taskID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.taskContexts[taskID]
	return ok
}
