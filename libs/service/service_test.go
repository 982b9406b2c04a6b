package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testService struct {
	BaseService

	startErr error
	stops    int
}

func newTestService(name string) *testService {
	ts := &testService{}
	ts.BaseService = *NewBaseService(nil, name, ts)
	return ts
}

func (ts *testService) OnStart(context.Context) error { return ts.startErr }
func (ts *testService) OnStop()                       { ts.stops++ }

func TestBaseServiceWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := newTestService("TestService")
	err := ts.Start(ctx)
	require.NoError(t, err)

	waitFinished := make(chan struct{})
	go func() {
		ts.Wait()
		waitFinished <- struct{}{}
	}()

	go ts.Stop() //nolint:errcheck // ignore for tests

	select {
	case <-waitFinished:
		// all good
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected Wait() to finish within 100 ms.")
	}
}

func TestBaseServiceStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := newTestService("TestService")
	require.ErrorIs(t, ts.Stop(), ErrNotStarted)

	require.NoError(t, ts.Start(ctx))
	require.True(t, ts.IsRunning())
	require.ErrorIs(t, ts.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, ts.Stop())
	require.False(t, ts.IsRunning())
	require.ErrorIs(t, ts.Stop(), ErrAlreadyStopped)
	require.Equal(t, 1, ts.stops)
}

func TestBaseServiceStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ts := newTestService("TestService")
	require.NoError(t, ts.Start(ctx))

	cancel()

	done := make(chan struct{})
	go func() {
		ts.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("service did not stop after context cancellation")
	}
}

func TestGroupUnwindsOnStartFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newTestService("first")
	second := newTestService("second")
	second.startErr = errors.New("listen failed")

	group := NewGroup(nil, "group", first, second)
	err := group.Start(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "listen failed")
	require.False(t, first.IsRunning())
	require.False(t, group.IsRunning())
}

func TestGroupStopsChildren(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newTestService("first")
	second := newTestService("second")

	group := NewGroup(nil, "group", first, second)
	require.NoError(t, group.Start(ctx))
	require.True(t, first.IsRunning())
	require.True(t, second.IsRunning())

	require.NoError(t, group.Stop())
	require.False(t, first.IsRunning())
	require.False(t, second.IsRunning())
}
