package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
)

type mockPipeline struct {
	mu      sync.Mutex
	runAlls int
	result  *RunAllResult
	runErr  error
}

func (m *mockPipeline) ProcessSource(ctx context.Context, sourceID uuid.UUID) (*RunResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockPipeline) RunAll(ctx context.Context) (*RunAllResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runAlls++
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.result, nil
}

func (m *mockPipeline) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runAlls
}

func TestScheduler_RunsSweepOnCadence(t *testing.T) {
	pipeline := &mockPipeline{result: &RunAllResult{Scanned: 1}}
	sched := NewScheduler(pipeline, &config.SchedulerConfig{CronSpec: "@every 10ms"}, zap.NewNop())

	require.NoError(t, sched.Start())
	defer sched.Stop(context.Background())

	require.Eventually(t, func() bool { return pipeline.calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_InvalidCronSpec(t *testing.T) {
	pipeline := &mockPipeline{result: &RunAllResult{}}
	sched := NewScheduler(pipeline, &config.SchedulerConfig{CronSpec: "not a cron spec"}, zap.NewNop())

	err := sched.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron spec")
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	pipeline := &mockPipeline{result: &RunAllResult{}}
	sched := NewScheduler(pipeline, &config.SchedulerConfig{CronSpec: "0 3 * * *"}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		sched.Stop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return for an idle scheduler")
	}
}

func TestScheduler_StopWaitsForInFlightSweep(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	pipeline := &mockPipeline{result: &RunAllResult{}}
	sched := NewScheduler(pipeline, &config.SchedulerConfig{CronSpec: "@every 10ms"}, zap.NewNop())

	impl := sched.(*cronScheduler)
	blockingPipeline := &blockingRunAll{inner: pipeline, started: started, release: release}
	impl.pipeline = blockingPipeline

	require.NoError(t, sched.Start())
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	stopReturned := make(chan struct{})
	go func() {
		sched.Stop(stopCtx)
		close(stopReturned)
	}()

	select {
	case <-stopReturned:
		// Stop gave up at the context deadline while the sweep was blocked.
	case <-time.After(time.Second):
		t.Fatal("Stop did not respect its context deadline")
	}
	close(release)
}

func TestScheduler_SweepFailureDoesNotStopCron(t *testing.T) {
	pipeline := &mockPipeline{runErr: errors.New("database unavailable")}
	sched := NewScheduler(pipeline, &config.SchedulerConfig{CronSpec: "@every 10ms"}, zap.NewNop())

	require.NoError(t, sched.Start())
	defer sched.Stop(context.Background())

	require.Eventually(t, func() bool { return pipeline.calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

type blockingRunAll struct {
	inner   *mockPipeline
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingRunAll) ProcessSource(ctx context.Context, sourceID uuid.UUID) (*RunResult, error) {
	return b.inner.ProcessSource(ctx, sourceID)
}

func (b *blockingRunAll) RunAll(ctx context.Context) (*RunAllResult, error) {
	b.once.Do(func() { b.started <- struct{}{} })
	<-b.release
	return b.inner.RunAll(ctx)
}
