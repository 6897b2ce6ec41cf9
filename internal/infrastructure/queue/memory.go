package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xiebiao/bookcatalog/internal/domain/recalc"
	"github.com/xiebiao/bookcatalog/pkg/metrics"
	"github.com/xiebiao/bookcatalog/pkg/tracing"
)

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("任务队列已关闭")

type envelope struct {
	job     recalc.Job
	headers map[string]string // Trace Context
}

// Memory 进程内任务队列
// 缓冲区不设上限，Enqueue永不阻塞写路径
type Memory struct {
	policy RetryPolicy
	logger *slog.Logger

	mu      sync.Mutex
	pending []envelope
	closed  bool
	wake    chan struct{}
	wg      sync.WaitGroup
}

// NewMemory 创建进程内队列
func NewMemory(policy RetryPolicy, logger *slog.Logger) *Memory {
	return &Memory{
		policy: policy.normalized(),
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue 投递任务
func (q *Memory) Enqueue(ctx context.Context, job recalc.Job) error {
	headers := map[string]string{}
	tracing.Inject(ctx, headers)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, envelope{job: job, headers: headers})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len 待执行任务数
func (q *Memory) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Memory) pop() (envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return envelope{}, false
	}
	env := q.pending[0]
	q.pending[0] = envelope{}
	q.pending = q.pending[1:]
	return env, true
}

// Start 启动workers个goroutine执行任务，ctx取消后退出
func (q *Memory) Start(ctx context.Context, handler recalc.Handler, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.work(ctx, handler)
		}()
	}
	q.logger.Info("重算任务worker已启动", "workers", workers)
}

func (q *Memory) work(ctx context.Context, handler recalc.Handler) {
	for {
		for {
			if ctx.Err() != nil {
				return
			}
			env, ok := q.pop()
			if !ok {
				break
			}
			q.run(ctx, handler, env)
		}

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
			// 唤醒其他可能在等待的worker
			if q.Len() > 1 {
				select {
				case q.wake <- struct{}{}:
				default:
				}
			}
		}
	}
}

// Drain 在当前goroutine中按先进先出顺序执行任务，直到队列为空（包括执行中新投递的任务）
func (q *Memory) Drain(ctx context.Context, handler recalc.Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		env, ok := q.pop()
		if !ok {
			return nil
		}
		q.run(ctx, handler, env)
	}
}

// Close 停止接收新任务并等待worker退出（worker随Start的ctx取消而退出）
// 剩余未执行的任务数通过返回值告知调用方
func (q *Memory) Close() int {
	q.mu.Lock()
	q.closed = true
	left := len(q.pending)
	q.mu.Unlock()

	q.wg.Wait()
	return left
}

// run 执行单个任务，失败按退避策略重试
// 返回recalc.DeferredError的执行不消耗重试次数
func (q *Memory) run(ctx context.Context, handler recalc.Handler, env envelope) {
	jobCtx := tracing.Extract(ctx, env.headers)
	job := env.job

	attempt := 0
	op := func() error {
		for {
			attempt++
			err := handler.Run(jobCtx, job)
			d, ok := recalc.AsDeferred(err)
			if !ok {
				return err
			}
			// 延后不算一次失败，等待后原地重新执行
			attempt--
			if werr := sleep(ctx, d.After); werr != nil {
				return backoff.Permanent(werr)
			}
		}
	}
	notify := func(err error, wait time.Duration) {
		metrics.RecordRetry(job.Name)
		q.logger.WarnContext(jobCtx, "重算任务失败，稍后重试",
			"job", job.String(), "attempt", attempt, "retry_in", wait, "error", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(q.policy.newBackOff(true), uint64(q.policy.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.RecordDead(job.Name)
		q.logger.ErrorContext(jobCtx, "重算任务放弃",
			"job", job.String(), "attempts", attempt, "error", err)
	}
}

// sleep 等待d，ctx取消时提前返回
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MemoryDeduper 进程内的任务合并登记，仅适用于单进程部署
type MemoryDeduper struct {
	ttl  time.Duration
	now  func() time.Time
	mu   sync.Mutex
	keys map[string]time.Time
}

// NewMemoryDeduper ttl<=0表示登记不过期
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, now: time.Now, keys: map[string]time.Time{}}
}

func (d *MemoryDeduper) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.keys[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if d.ttl > 0 {
		exp = now.Add(d.ttl)
	}
	d.keys[key] = exp
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
	return nil
}
