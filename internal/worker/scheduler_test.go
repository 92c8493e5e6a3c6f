package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/insights/internal/runlock"
)

type countingDispatcher struct {
	calls atomic.Int32
	err   error
}

func (d *countingDispatcher) Dispatch(context.Context) error {
	d.calls.Add(1)

	return d.err
}

type fakeReaper struct {
	maxAge time.Duration
	calls  int
	err    error
}

func (r *fakeReaper) FailStaleRuns(_ context.Context, maxAge time.Duration) (int64, error) {
	r.calls++
	r.maxAge = maxAge

	return 1, r.err
}

type fakeJobMetrics struct {
	ticks atomic.Int32
	skips atomic.Int32
}

func (f *fakeJobMetrics) RecordEnqueued(context.Context, string) {}

func (f *fakeJobMetrics) RecordOutcome(context.Context, string) {}

func (f *fakeJobMetrics) RecordSchedulerTick(context.Context) { f.ticks.Add(1) }

func (f *fakeJobMetrics) RecordLockSkip(context.Context) { f.skips.Add(1) }

func newLocker(t *testing.T) (*runlock.Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return runlock.New(client, runlock.WithTTL(time.Minute)), mr
}

func TestScheduler_Tick_withoutLocker(t *testing.T) {
	d := &countingDispatcher{}
	reaper := &fakeReaper{}
	metrics := &fakeJobMetrics{}

	s := NewScheduler(d, time.Hour, WithStaleRunReaper(reaper, 90*time.Minute), WithJobMetrics(metrics))
	s.Tick(context.Background())

	assert.Equal(t, int32(1), d.calls.Load())
	assert.Equal(t, 1, reaper.calls)
	assert.Equal(t, 90*time.Minute, reaper.maxAge)
	assert.Equal(t, int32(1), metrics.ticks.Load())
}

func TestScheduler_Tick_releasesLockAfterDispatch(t *testing.T) {
	locker, mr := newLocker(t)
	d := &countingDispatcher{}

	s := NewScheduler(d, time.Hour, WithLocker(locker))
	s.Tick(context.Background())
	s.Tick(context.Background())

	assert.Equal(t, int32(2), d.calls.Load())
	assert.False(t, mr.Exists(runlock.DefaultKey))
}

func TestScheduler_Tick_skipsWhenLockHeld(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx)
	require.NoError(t, err)

	d := &countingDispatcher{}
	metrics := &fakeJobMetrics{}

	NewScheduler(d, time.Hour, WithLocker(locker), WithJobMetrics(metrics)).Tick(ctx)

	assert.Equal(t, int32(0), d.calls.Load())
	assert.Equal(t, int32(1), metrics.skips.Load())

	require.NoError(t, lease.Release(ctx))
}

func TestScheduler_Tick_dispatchErrorIsLogged(t *testing.T) {
	locker, mr := newLocker(t)
	d := &countingDispatcher{err: errors.New("queue unavailable")}
	reaper := &fakeReaper{err: errors.New("db down")}

	NewScheduler(d, time.Hour, WithLocker(locker), WithStaleRunReaper(reaper, time.Hour)).Tick(context.Background())

	assert.Equal(t, int32(1), d.calls.Load())
	assert.False(t, mr.Exists(runlock.DefaultKey))
}

func TestScheduler_Tick_redisDown(t *testing.T) {
	locker, mr := newLocker(t)
	mr.Close()

	d := &countingDispatcher{}
	metrics := &fakeJobMetrics{}

	NewScheduler(d, time.Hour, WithLocker(locker), WithJobMetrics(metrics)).Tick(context.Background())

	assert.Equal(t, int32(0), d.calls.Load())
	assert.Equal(t, int32(0), metrics.skips.Load())
}

func TestScheduler_Start_runsImmediatelyAndStops(t *testing.T) {
	d := &countingDispatcher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		NewScheduler(d, 10*time.Millisecond).Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return d.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestDispatcherFunc(t *testing.T) {
	called := false
	err := DispatcherFunc(func(context.Context) error {
		called = true

		return nil
	}).Dispatch(context.Background())

	require.NoError(t, err)
	assert.True(t, called)
}

type fakeRescorer struct {
	calls atomic.Int32
	err   error
}

func (r *fakeRescorer) Rescore(context.Context) (int, error) {
	r.calls.Add(1)

	return 3, r.err
}

func TestRescoreWorker_Start(t *testing.T) {
	r := &fakeRescorer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go NewRescoreWorker(r, 10*time.Millisecond).Start(ctx)

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestRescoreWorker_runOnce_error(t *testing.T) {
	r := &fakeRescorer{err: errors.New("db down")}

	NewRescoreWorker(r, 0).runOnce(context.Background())

	assert.Equal(t, int32(1), r.calls.Load())
}
