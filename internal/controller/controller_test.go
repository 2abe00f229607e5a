package controller_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cnap-oss/agent-runner/internal/a2a"
	"github.com/cnap-oss/agent-runner/internal/controller"
	"github.com/cnap-oss/agent-runner/internal/provider"
	"github.com/cnap-oss/agent-runner/internal/storage"
	"github.com/cnap-oss/agent-runner/internal/testutil/mocks"
	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestController(t *testing.T, completer provider.Completer, cfg controller.Config, opts ...controller.Option) (*controller.Controller, storage.Store) {
	t.Helper()

	store := storage.NewMemoryStore()
	ctrl, err := controller.NewController(zaptest.NewLogger(t), cfg, store, completer, opts...)
	require.NoError(t, err)
	return ctrl, store
}

func TestNewController_RequiresDependencies(t *testing.T) {
	_, err := controller.NewController(nil, controller.Config{}, nil, mocks.NewMockCompleter())
	require.Error(t, err)

	_, err = controller.NewController(nil, controller.Config{}, storage.NewMemoryStore(), nil)
	require.Error(t, err)
}

func TestSubmitTask_Completed(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.SetResponse("Hi", "Hello!")
	ctrl, _ := newTestController(t, mock, controller.Config{SystemPrompt: "You are terse."})

	task, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)

	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	assert.Nil(t, task.Status.Message)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, []a2a.Part{a2a.NewTextPart("Hello!")}, task.Artifacts[0].Parts)
	require.Len(t, task.History, 2)
	assert.Equal(t, a2a.NewTextMessage(a2a.RoleUser, "Hi"), task.History[0])
	assert.Equal(t, a2a.NewTextMessage(a2a.RoleAgent, "Hello!"), task.History[1])

	assert.Equal(t, []provider.Message{
		{Role: provider.RoleSystem, Content: "You are terse."},
		{Role: provider.RoleUser, Content: "Hi"},
	}, mock.GetLastCall())

	stored, err := ctrl.GetTask(context.Background(), "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, task, stored)

	snapshot := ctrl.Metrics()
	assert.Equal(t, int64(1), snapshot.TasksSubmitted)
	assert.Equal(t, int64(1), snapshot.TasksCompleted)
	assert.Equal(t, int64(0), snapshot.TasksInFlight)
}

func TestSubmitTask_NoSystemPrompt(t *testing.T) {
	mock := mocks.NewMockCompleter()
	ctrl, _ := newTestController(t, mock, controller.Config{})

	_, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, []provider.Message{{Role: provider.RoleUser, Content: "Hi"}}, mock.GetLastCall())
}

func TestSubmitTask_GeneratesID(t *testing.T) {
	ctrl, _ := newTestController(t, mocks.NewMockCompleter(), controller.Config{})

	first, err := ctrl.SubmitTask(context.Background(), "", "Hi")
	require.NoError(t, err)
	second, err := ctrl.SubmitTask(context.Background(), "", "Hi")
	require.NoError(t, err)

	assert.Len(t, first.ID, 26)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSubmitTask_CustomIDGenerator(t *testing.T) {
	ctrl, _ := newTestController(t, mocks.NewMockCompleter(), controller.Config{},
		controller.WithIDGenerator(func() string { return "fixed-id" }))

	task, err := ctrl.SubmitTask(context.Background(), "", "Hi")
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", task.ID)
}

func TestSubmitTask_ProviderFailure(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.SetError("Hi", &provider.Error{
		Provider:   provider.KindOpenAI,
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error":"bad key"}`,
		Err:        provider.ErrUnexpectedStatus,
	})
	ctrl, _ := newTestController(t, mock, controller.Config{})

	task, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)

	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	require.NotNil(t, task.Status.Message)
	assert.Equal(t, a2a.RoleAgent, task.Status.Message.Role)
	assert.Equal(t, `LLM API error 401: {"error":"bad key"}`, task.Status.Message.Parts[0].Text)
	assert.Empty(t, task.Artifacts)
	require.Len(t, task.History, 1)
	assert.Equal(t, a2a.RoleUser, task.History[0].Role)

	snapshot := ctrl.Metrics()
	assert.Equal(t, int64(1), snapshot.TasksFailed)
	assert.Equal(t, int64(0), snapshot.TasksCompleted)
}

func TestSubmitTask_DuplicateID(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.SetResponse("first", "one")
	ctrl, _ := newTestController(t, mock, controller.Config{})
	ctx := context.Background()

	_, err := ctrl.SubmitTask(ctx, "dup", "first")
	require.NoError(t, err)

	_, err = ctrl.SubmitTask(ctx, "dup", "second")
	require.ErrorIs(t, err, storage.ErrTaskExists)
	assert.Equal(t, 1, mock.GetCallCount())

	stored, err := ctrl.GetTask(ctx, "dup", 0)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, stored.Status.State)
	assert.Equal(t, "one", stored.FirstArtifactText())
	assert.Equal(t, "first", stored.History[0].Parts[0].Text)
	assert.Equal(t, int64(1), ctrl.Metrics().TasksRejected)
}

func TestSubmitTask_DetachedFromRequestContext(t *testing.T) {
	ctrl, _ := newTestController(t, mocks.NewMockCompleter(), controller.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task, err := ctrl.SubmitTask(ctx, "t1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
}

func TestSubmitTask_Timeout(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Block = make(chan struct{})
	defer close(mock.Block)
	ctrl, _ := newTestController(t, mock, controller.Config{Timeout: 50 * time.Millisecond})

	task, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message.Parts[0].Text, "deadline exceeded")
}

func TestSubmitTask_PanicBecomesFailure(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.PanicWith = "adapter exploded"
	ctrl, _ := newTestController(t, mock, controller.Config{})

	task, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Contains(t, task.Status.Message.Parts[0].Text, "adapter exploded")
	assert.Equal(t, int64(1), ctrl.Metrics().PanicsRecovered)

	// 이후 요청은 정상 처리됩니다
	mock.PanicWith = nil
	next, err := ctrl.SubmitTask(context.Background(), "t2", "Hi")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, next.Status.State)
}

func TestSubmitTask_RetriesRetryableErrors(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.SetResponse("Hi", "finally")
	mock.FailFirst = 2
	mock.FailErr = &provider.Error{StatusCode: http.StatusServiceUnavailable, Err: provider.ErrUnexpectedStatus}
	ctrl, _ := newTestController(t, mock, controller.Config{MaxRetries: 2, InitialBackoff: time.Millisecond})

	task, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	assert.Equal(t, "finally", task.FirstArtifactText())
	assert.Equal(t, 3, mock.GetCallCount())
	assert.Equal(t, int64(2), ctrl.Metrics().RetriesTotal)
}

func TestSubmitTask_DoesNotRetryPermanentErrors(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.FailFirst = 5
	mock.FailErr = &provider.Error{StatusCode: http.StatusBadRequest, Body: "bad", Err: provider.ErrUnexpectedStatus}
	ctrl, _ := newTestController(t, mock, controller.Config{MaxRetries: 3, InitialBackoff: time.Millisecond})

	task, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Equal(t, 1, mock.GetCallCount())
	assert.Equal(t, int64(0), ctrl.Metrics().RetriesTotal)
}

func TestSubmitTask_NoRetriesByDefault(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.FailFirst = 1
	mock.FailErr = &provider.Error{StatusCode: http.StatusTooManyRequests, Err: provider.ErrUnexpectedStatus}
	ctrl, _ := newTestController(t, mock, controller.Config{})

	task, err := ctrl.SubmitTask(context.Background(), "t1", "Hi")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestSubmitTask_ConcurrentDistinctIDs(t *testing.T) {
	mock := mocks.NewMockCompleter()
	const tasks = 50
	for i := 0; i < tasks; i++ {
		mock.SetResponse(fmt.Sprintf("q-%d", i), fmt.Sprintf("a-%d", i))
	}
	ctrl, _ := newTestController(t, mock, controller.Config{MaxConcurrent: 4})

	var wg conc.WaitGroup
	for i := 0; i < tasks; i++ {
		i := i
		wg.Go(func() {
			task, err := ctrl.SubmitTask(context.Background(), fmt.Sprintf("t-%d", i), fmt.Sprintf("q-%d", i))
			assert.NoError(t, err)
			assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
			assert.Equal(t, fmt.Sprintf("a-%d", i), task.FirstArtifactText())
		})
	}
	wg.Wait()

	for i := 0; i < tasks; i++ {
		task, err := ctrl.GetTask(context.Background(), fmt.Sprintf("t-%d", i), 0)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("a-%d", i), task.FirstArtifactText())
		assert.Equal(t, fmt.Sprintf("q-%d", i), task.History[0].Parts[0].Text)
	}
	assert.Equal(t, int64(tasks), ctrl.Metrics().TasksCompleted)
}

func TestSubmitTask_BoundedConcurrency(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Block = make(chan struct{})
	mock.Started = make(chan struct{}, 4)
	ctrl, _ := newTestController(t, mock, controller.Config{MaxConcurrent: 1})
	ctx := context.Background()

	var wg conc.WaitGroup
	wg.Go(func() { _, _ = ctrl.SubmitTask(ctx, "a", "Hi") })
	<-mock.Started

	wg.Go(func() { _, _ = ctrl.SubmitTask(ctx, "b", "Hi") })
	require.Eventually(t, func() bool {
		task, err := ctrl.GetTask(ctx, "b", 0)
		return err == nil && task.Status.State == a2a.TaskStateWorking
	}, time.Second, 5*time.Millisecond)

	// 슬롯이 하나뿐이므로 두 번째 호출은 아직 시작되지 않았습니다
	assert.Equal(t, 1, mock.GetCallCount())

	close(mock.Block)
	wg.Wait()

	assert.Equal(t, 2, mock.GetCallCount())
	for _, id := range []string{"a", "b"} {
		task, err := ctrl.GetTask(ctx, id, 0)
		require.NoError(t, err)
		assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	}
}

func TestGetTask(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.SetResponse("Hi", "Hello!")
	ctrl, _ := newTestController(t, mock, controller.Config{})
	ctx := context.Background()

	_, err := ctrl.GetTask(ctx, "missing", 0)
	require.ErrorIs(t, err, storage.ErrTaskNotFound)

	_, err = ctrl.SubmitTask(ctx, "t1", "Hi")
	require.NoError(t, err)

	full, err := ctrl.GetTask(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Len(t, full.History, 2)

	trimmed, err := ctrl.GetTask(ctx, "t1", 1)
	require.NoError(t, err)
	require.Len(t, trimmed.History, 1)
	assert.Equal(t, a2a.RoleAgent, trimmed.History[0].Role)

	wide, err := ctrl.GetTask(ctx, "t1", 10)
	require.NoError(t, err)
	assert.Len(t, wide.History, 2)
}

func TestCancelTask_UnknownReturnsStub(t *testing.T) {
	ctrl, _ := newTestController(t, mocks.NewMockCompleter(), controller.Config{})
	ctx := context.Background()

	task, err := ctrl.CancelTask(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "ghost", task.ID)
	assert.Equal(t, a2a.TaskStateCanceled, task.Status.State)
	assert.NotNil(t, task.Artifacts)
	assert.Empty(t, task.Artifacts)
	assert.NotNil(t, task.History)
	assert.Empty(t, task.History)

	_, err = ctrl.GetTask(ctx, "ghost", 0)
	require.ErrorIs(t, err, storage.ErrTaskNotFound)
	assert.Equal(t, int64(0), ctrl.Metrics().TasksCanceled)
}

func TestCancelTask_CompletedTask(t *testing.T) {
	ctrl, _ := newTestController(t, mocks.NewMockCompleter(), controller.Config{})
	ctx := context.Background()

	_, err := ctrl.SubmitTask(ctx, "t1", "Hi")
	require.NoError(t, err)

	task, err := ctrl.CancelTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, task.Status.State)
	// 기존 결과는 유지됩니다
	assert.Len(t, task.Artifacts, 1)

	stored, err := ctrl.GetTask(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, stored.Status.State)
}

func TestCancelTask_InFlight(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Block = make(chan struct{})
	defer close(mock.Block)
	mock.Started = make(chan struct{}, 1)
	ctrl, _ := newTestController(t, mock, controller.Config{})
	ctx := context.Background()

	type result struct {
		task *a2a.Task
		err  error
	}
	done := make(chan result, 1)
	go func() {
		task, err := ctrl.SubmitTask(ctx, "t1", "Hi")
		done <- result{task, err}
	}()

	select {
	case <-mock.Started:
	case <-time.After(time.Second):
		t.Fatal("provider call did not start")
	}

	working, err := ctrl.GetTask(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateWorking, working.Status.State)
	assert.True(t, ctrl.InFlight("t1"))

	canceled, err := ctrl.CancelTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, a2a.TaskStateCanceled, res.task.Status.State)
		assert.Empty(t, res.task.Artifacts)
	case <-time.After(time.Second):
		t.Fatal("submit did not return after cancel")
	}

	stored, err := ctrl.GetTask(ctx, "t1", 0)
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, stored.Status.State)
	assert.False(t, ctrl.InFlight("t1"))

	snapshot := ctrl.Metrics()
	assert.Equal(t, int64(1), snapshot.TasksCanceled)
	assert.Equal(t, int64(0), snapshot.TasksFailed)
	assert.Equal(t, int64(0), snapshot.TasksCompleted)
}

func TestStop_AbortsInFlightCalls(t *testing.T) {
	mock := mocks.NewMockCompleter()
	mock.Block = make(chan struct{})
	defer close(mock.Block)
	mock.Started = make(chan struct{}, 1)
	ctrl, _ := newTestController(t, mock, controller.Config{})

	done := make(chan *a2a.Task, 1)
	go func() {
		task, _ := ctrl.SubmitTask(context.Background(), "t1", "Hi")
		done <- task
	}()
	<-mock.Started

	require.NoError(t, ctrl.Stop(context.Background()))

	select {
	case task := <-done:
		require.NotNil(t, task)
		assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
		assert.Contains(t, task.Status.Message.Parts[0].Text, "context canceled")
	case <-time.After(time.Second):
		t.Fatal("submit did not return after stop")
	}
}
