package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockService struct {
	name    string
	started atomic.Bool
	stopped atomic.Bool
	startFn func(ctx context.Context) error
	order   *stopOrder
}

type stopOrder struct {
	mu    sync.Mutex
	names []string
}

func (o *stopOrder) add(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func (m *mockService) Start(ctx context.Context) error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn(ctx)
	}
	<-ctx.Done()
	return nil
}

func (m *mockService) Stop() {
	m.stopped.Store(true)
	if m.order != nil {
		m.order.add(m.name)
	}
}

func runAsync(ctx context.Context, lc *Lifecycle) <-chan error {
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	return done
}

func TestLifecycleStartsAndStopsServicesInReverse(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	order := &stopOrder{}
	svc1 := &mockService{name: "svc1", order: order}
	svc2 := &mockService{name: "svc2", order: order}
	lc.Add("svc1", svc1)
	lc.Add("svc2", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, lc)

	require.Eventually(t, func() bool {
		return svc1.started.Load() && svc2.started.Load()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"svc2", "svc1"}, order.names)
}

func TestLifecycleServiceFailureStopsAll(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	boom := errors.New("boom")
	healthy := &mockService{}
	failing := &mockService{startFn: func(context.Context) error { return boom }}
	lc.Add("healthy", healthy)
	lc.Add("failing", failing)

	select {
	case err := <-runAsync(context.Background(), lc):
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "service failing")
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not react to a failing service")
	}
	assert.True(t, healthy.stopped.Load())
	assert.True(t, failing.stopped.Load())
}

func TestLifecycleFinishedServiceIsNotAFailure(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t))
	oneShot := &mockService{startFn: func(context.Context) error { return nil }}
	lc.Add("one-shot", oneShot)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, lc)
	require.Eventually(t, oneShot.started.Load, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestFuncService(t *testing.T) {
	started := false
	stopped := false

	svc := &FuncService{
		StartFn: func(context.Context) error {
			started = true
			return nil
		},
		StopFn: func() {
			stopped = true
		},
	}

	err := svc.Start(context.Background())
	assert.NoError(t, err)
	assert.True(t, started)

	svc.Stop()
	assert.True(t, stopped)

	assert.NotPanics(t, (&FuncService{StartFn: svc.StartFn}).Stop)
}
