package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/provider"
	"github.com/cnap-oss/agent-runner/internal/storage"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// SubmitTask는 태스크를 생성하고 제공자 호출이 끝날 때까지 실행합니다.
// 제공자 에러는 태스크의 failed 상태로 기록되며 에러로 반환되지 않습니다.
func (c *Controller) SubmitTask(ctx context.Context, taskID, userText string) (*a2a.Task, error) {
	if taskID == "" {
		taskID = c.newID()
	}
	c.metrics.RecordSubmitted()

	task := a2a.NewTask(taskID, a2a.NewStatus(a2a.TaskStateWorking))
	task.History = append(task.History, a2a.NewTextMessage(a2a.RoleUser, userText))

	if err := c.store.Create(ctx, task); err != nil {
		if errors.Is(err, storage.ErrTaskExists) {
			c.metrics.RecordRejected()
			c.logger.Warn("Duplicate task id rejected", zap.String("task_id", taskID))
		}
		return nil, err
	}

	c.logger.Info("Task submitted",
		zap.String("task_id", taskID),
		zap.Int("text_length", len(userText)),
	)

	// 요청 취소와 분리된 실행 컨텍스트
	detached := context.WithoutCancel(ctx)
	runCtx, cancel := context.WithTimeout(detached, c.cfg.Timeout)
	defer cancel()

	c.track(runCtx, taskID, cancel)
	defer c.untrack(taskID)

	c.metrics.RecordStart()
	start := time.Now()
	reply, runErr := c.execute(runCtx, taskID, c.buildMessages(userText))
	elapsed := time.Since(start)

	discarded := false
	final, err := c.store.Update(detached, taskID, func(t *a2a.Task) error {
		if t.Status.State.IsTerminal() {
			// 실행 중 취소된 태스크는 결과를 버립니다
			discarded = true
			return nil
		}
		if runErr != nil {
			t.Status = a2a.NewFailedStatus(runErr.Error())
			return nil
		}
		t.Artifacts = append(t.Artifacts, a2a.Artifact{Parts: []a2a.Part{a2a.NewTextPart(reply)}})
		t.History = append(t.History, a2a.NewTextMessage(a2a.RoleAgent, reply))
		t.Status = a2a.NewStatus(a2a.TaskStateCompleted)
		return nil
	})
	c.metrics.RecordTaskExecution(runErr == nil, discarded, elapsed)
	if err != nil {
		c.logger.Error("Failed to record task outcome",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("record task outcome: %w", err)
	}

	switch {
	case discarded:
		c.logger.Info("Task outcome discarded",
			zap.String("task_id", taskID),
			zap.String("state", string(final.Status.State)),
		)
	case runErr != nil:
		c.logger.Warn("Task failed",
			zap.String("task_id", taskID),
			zap.Duration("elapsed", elapsed),
			zap.Error(runErr),
		)
	default:
		c.logger.Info("Task completed",
			zap.String("task_id", taskID),
			zap.Duration("elapsed", elapsed),
			zap.Int("reply_length", len(reply)),
		)
	}

	return final, nil
}

// GetTask는 태스크를 조회합니다. historyLength가 양수면 최근 턴만 남깁니다.
func (c *Controller) GetTask(ctx context.Context, taskID string, historyLength int) (*a2a.Task, error) {
	task, err := c.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if historyLength > 0 && len(task.History) > historyLength {
		task.History = task.History[len(task.History)-historyLength:]
	}
	return task, nil
}

// CancelTask는 태스크를 canceled로 표시하고 진행 중인 제공자 호출을 취소합니다.
// 없는 태스크는 저장하지 않은 canceled 응답을 반환합니다.
func (c *Controller) CancelTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	c.logger.Info("Canceling task", zap.String("task_id", taskID))

	task, err := c.store.Update(ctx, taskID, func(t *a2a.Task) error {
		t.Status = a2a.NewStatus(a2a.TaskStateCanceled)
		return nil
	})
	if errors.Is(err, storage.ErrTaskNotFound) {
		c.logger.Debug("Cancel for unknown task", zap.String("task_id", taskID))
		return a2a.NewTask(taskID, a2a.NewStatus(a2a.TaskStateCanceled)), nil
	}
	if err != nil {
		return nil, err
	}
	c.metrics.RecordCanceled()

	// TaskContext에서 cancel 호출
	c.mu.RLock()
	taskCtx, ok := c.taskContexts[taskID]
	c.mu.RUnlock()
	if ok {
		taskCtx.cancel()
		c.logger.Info("In-flight provider call canceled", zap.String("task_id", taskID))
	}

	return task, nil
}

func (c *Controller) buildMessages(userText string) []provider.Message {
	messages := make([]provider.Message, 0, 2)
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: c.cfg.SystemPrompt})
	}
	return append(messages, provider.Message{Role: provider.RoleUser, Content: userText})
}

// execute는 슬롯을 얻은 뒤 재시도 정책에 따라 제공자를 호출합니다.
func (c *Controller) execute(ctx context.Context, taskID string, messages []provider.Message) (string, error) {
	if err := c.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("worker slot unavailable: %w", err)
	}
	defer c.slots.Release(1)

	var reply string
	err := c.recovery.RetryOperation(ctx, "complete:"+taskID, func() error {
		text, err := c.complete(ctx, taskID, messages)
		if err != nil {
			return err
		}
		reply = text
		return nil
	})
	return reply, err
}

// complete는 제공자 호출 중 발생한 panic을 에러로 바꿉니다.
func (c *Controller) complete(ctx context.Context, taskID string, messages []provider.Message) (reply string, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		reply, err = c.completer.Complete(ctx, messages)
	})
	if r := pc.Recovered(); r != nil {
		c.metrics.RecordPanic()
		c.logger.Error("Provider call panicked",
			zap.String("task_id", taskID),
			zap.Any("panic", r.Value),
		)
		return "", fmt.Errorf("provider call panicked: %v", r.Value)
	}
	return reply, err
}
