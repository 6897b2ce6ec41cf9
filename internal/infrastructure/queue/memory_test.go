package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/bookcatalog/internal/domain/recalc"
	"github.com/xiebiao/bookcatalog/pkg/logger"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestMemory_DrainFIFO(t *testing.T) {
	q := NewMemory(fastPolicy(1), logger.Nop())
	ctx := context.Background()

	var order []uint
	handler := recalc.HandlerFunc(func(ctx context.Context, job recalc.Job) error {
		order = append(order, job.CategoryID)
		// 执行中投递的任务排在队尾
		if job.CategoryID == 1 {
			return q.Enqueue(ctx, recalc.NewCategoryJob(3))
		}
		return nil
	})

	require.NoError(t, q.Enqueue(ctx, recalc.NewCategoryJob(1)))
	require.NoError(t, q.Enqueue(ctx, recalc.NewCategoryJob(2)))
	require.NoError(t, q.Drain(ctx, handler))

	assert.Equal(t, []uint{1, 2, 3}, order)
	assert.Zero(t, q.Len())
}

func TestMemory_RetriesUntilSuccess(t *testing.T) {
	q := NewMemory(fastPolicy(5), logger.Nop())
	ctx := context.Background()

	calls := 0
	handler := recalc.HandlerFunc(func(context.Context, recalc.Job) error {
		calls++
		if calls < 3 {
			return errors.New("deadlock found when trying to get lock")
		}
		return nil
	})

	require.NoError(t, q.Enqueue(ctx, recalc.NewBookJob(1, nil)))
	require.NoError(t, q.Drain(ctx, handler))
	assert.Equal(t, 3, calls)
}

func TestMemory_GivesUpAfterMaxAttempts(t *testing.T) {
	q := NewMemory(fastPolicy(3), logger.Nop())
	ctx := context.Background()

	calls := 0
	handler := recalc.HandlerFunc(func(context.Context, recalc.Job) error {
		calls++
		return errors.New("connection refused")
	})

	require.NoError(t, q.Enqueue(ctx, recalc.NewBookJob(1, nil)))
	require.NoError(t, q.Drain(ctx, handler))
	assert.Equal(t, 3, calls)
}

func TestMemory_PermanentErrorNotRetried(t *testing.T) {
	q := NewMemory(fastPolicy(5), logger.Nop())
	ctx := context.Background()

	calls := 0
	handler := recalc.HandlerFunc(func(context.Context, recalc.Job) error {
		calls++
		return backoff.Permanent(errors.New("未知任务"))
	})

	require.NoError(t, q.Enqueue(ctx, recalc.Job{Name: "recalc.unknown"}))
	require.NoError(t, q.Drain(ctx, handler))
	assert.Equal(t, 1, calls)
}

func TestMemory_DeferredRunsDoNotCountAsAttempts(t *testing.T) {
	q := NewMemory(fastPolicy(1), logger.Nop())
	ctx := context.Background()

	calls := 0
	handler := recalc.HandlerFunc(func(context.Context, recalc.Job) error {
		calls++
		if calls <= 3 {
			return recalc.Defer(errors.New("circuit breaker is open"), time.Millisecond)
		}
		return nil
	})

	require.NoError(t, q.Enqueue(ctx, recalc.NewBookJob(1, nil)))
	require.NoError(t, q.Drain(ctx, handler))
	assert.Equal(t, 4, calls)
}

func TestMemory_DeferredStopsOnCancel(t *testing.T) {
	q := NewMemory(fastPolicy(1), logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	handler := recalc.HandlerFunc(func(context.Context, recalc.Job) error {
		cancel()
		return recalc.Defer(errors.New("circuit breaker is open"), time.Hour)
	})

	require.NoError(t, q.Enqueue(context.Background(), recalc.NewBookJob(1, nil)))
	done := make(chan struct{})
	go func() {
		_ = q.Drain(ctx, handler)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("取消后仍在等待")
	}
}

func TestMemory_Workers(t *testing.T) {
	q := NewMemory(fastPolicy(1), logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var done atomic.Int32
	var wg sync.WaitGroup
	wg.Add(20)
	handler := recalc.HandlerFunc(func(context.Context, recalc.Job) error {
		done.Add(1)
		wg.Done()
		return nil
	})

	q.Start(ctx, handler, 4)
	for i := 1; i <= 20; i++ {
		require.NoError(t, q.Enqueue(context.Background(), recalc.NewCategoryJob(uint(i))))
	}

	waitCh := make(chan struct{})
	go func() { wg.Wait(); close(waitCh) }()
	select {
	case <-waitCh:
	case <-time.After(5 * time.Second):
		t.Fatal("worker未在超时内执行完所有任务")
	}

	cancel()
	assert.Equal(t, 0, q.Close())
	assert.EqualValues(t, 20, done.Load())
	assert.ErrorIs(t, q.Enqueue(context.Background(), recalc.NewCategoryJob(1)), ErrQueueClosed)
}

func TestMemoryDeduper(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	ok, err := d.Claim(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.Claim(ctx, "k")
	assert.False(t, ok, "未释放前不能重复登记")

	require.NoError(t, d.Release(ctx, "k"))
	ok, _ = d.Claim(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = d.Claim(ctx, "k")
	assert.True(t, ok, "过期的登记应视为不存在")
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 200 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 150*time.Millisecond, p.Delay(2))
	assert.Equal(t, 200*time.Millisecond, p.Delay(3), "不超过MaxBackoff")
	assert.Equal(t, 200*time.Millisecond, p.Delay(10))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(backoff.Permanent(errors.New("bad"))))
	assert.False(t, IsPermanent(errors.New("timeout")))
}
