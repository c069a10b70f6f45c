package hosting_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/autowire/hosting"
	"github.com/gocrud/autowire/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	started atomic.Int64
	fail    error
}

func (s *stubService) Start() error {
	s.started.Add(1)
	return s.fail
}

func TestRunnerStartAll(t *testing.T) {
	logger, _ := logging.NewMemoryLogger()
	runner := hosting.NewRunner(logger)

	first := &stubService{}
	second := &stubService{}
	runner.Add("first", first)
	runner.Add("second", second)

	require.NoError(t, runner.StartAll())
	assert.Equal(t, int64(1), first.started.Load())
	assert.Equal(t, int64(1), second.started.Load())
}

func TestRunnerStartAllStopsOnFailure(t *testing.T) {
	logger, _ := logging.NewMemoryLogger()
	runner := hosting.NewRunner(logger)

	broken := &stubService{fail: errors.New("bind: address already in use")}
	after := &stubService{}
	runner.Add("broken", broken)
	runner.Add("after", after)

	err := runner.StartAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	// 失败后不再启动后续服务
	assert.Equal(t, int64(0), after.started.Load())
}

func TestRunnerWaitHonorsContext(t *testing.T) {
	logger, _ := logging.NewMemoryLogger()
	runner := hosting.NewRunner(logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Wait(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after context cancellation")
	}
}

func TestWorkerRunsPeriodically(t *testing.T) {
	logger, _ := logging.NewMemoryLogger()

	var runs atomic.Int64
	worker := hosting.NewWorker("counter", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, logger)

	require.NoError(t, worker.Start())

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, runs.Load(), int64(3))

	worker.Stop()
	stopped := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())
}

func TestWorkerTaskErrorsAreLogged(t *testing.T) {
	logger, provider := logging.NewMemoryLogger()

	worker := hosting.NewWorker("flaky", 10*time.Millisecond, func(ctx context.Context) error {
		return errors.New("boom")
	}, logger)
	require.NoError(t, worker.Start())

	deadline := time.Now().Add(2 * time.Second)
	for provider.CountAtLevel(logging.LogLevelError) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	worker.Stop()
	assert.Greater(t, provider.CountAtLevel(logging.LogLevelError), 0)
}

func TestWorkerStopWithoutStart(t *testing.T) {
	logger, _ := logging.NewMemoryLogger()
	worker := hosting.NewWorker("idle", time.Second, func(ctx context.Context) error { return nil }, logger)

	// 未启动时 Stop 直接返回
	worker.Stop()
	worker.Stop()
}

func TestWorkerRejectsInvalidInterval(t *testing.T) {
	logger, _ := logging.NewMemoryLogger()
	worker := hosting.NewWorker("bad", 0, func(ctx context.Context) error { return nil }, logger)
	assert.Error(t, worker.Start())
}
