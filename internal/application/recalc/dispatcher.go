// Package recalc 价格与分类统计的异步重算
//
// 写路径只投递任务(Triggers)，任务由Scheduler在worker中执行：
//
//	图书变更   → recalc.book ─(link)→ recalc.book_categories → recalc.category × N
//	图书删除   → recalc.book_categories(删除前捕获的分类) → recalc.category × N
//	分类更新   → recalc.category
//	折扣组变更 → 每本引用它的图书各一个 recalc.book ─(link)→ ...
//
// 所有任务都从存储读取当前输入重新计算并整体写回，重复、乱序执行都收敛到同一结果。
package recalc

import (
	"context"
	"log/slog"

	domain "github.com/xiebiao/bookcatalog/internal/domain/recalc"
	"github.com/xiebiao/bookcatalog/pkg/metrics"
)

// Dispatcher 投递任务，分类重算任务在待执行期间只投递一次
type Dispatcher struct {
	queue  domain.Queue
	dedup  domain.Deduper
	logger *slog.Logger
}

// NewDispatcher 创建Dispatcher，dedup为空时不合并任务
func NewDispatcher(queue domain.Queue, dedup domain.Deduper, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{queue: queue, dedup: dedup, logger: logger}
}

// Dispatch 投递任务
// 合并登记失败时仍然投递（多执行一次是安全的，漏执行则统计会一直过期）
func (d *Dispatcher) Dispatch(ctx context.Context, job domain.Job) error {
	key, coalescable := job.DedupKey()
	claimed := false

	if coalescable && d.dedup != nil {
		ok, err := d.dedup.Claim(ctx, key)
		switch {
		case err != nil:
			d.logger.WarnContext(ctx, "任务合并登记失败，直接投递", "job", job.String(), "error", err)
		case !ok:
			metrics.RecordEnqueue(job.Name, metrics.ResultCoalesced)
			d.logger.DebugContext(ctx, "已有待执行的相同任务，跳过投递", "job", job.String())
			return nil
		default:
			claimed = true
		}
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		metrics.RecordEnqueue(job.Name, metrics.ResultFailure)
		if claimed {
			// 任务没有投递出去，释放登记，后续变更才能重新投递
			if rerr := d.dedup.Release(ctx, key); rerr != nil {
				d.logger.WarnContext(ctx, "释放任务合并登记失败", "key", key, "error", rerr)
			}
		}
		return err
	}

	metrics.RecordEnqueue(job.Name, metrics.ResultEnqueued)
	d.logger.DebugContext(ctx, "重算任务已投递", "job", job.String())
	return nil
}
