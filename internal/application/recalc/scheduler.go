package recalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xiebiao/bookcatalog/internal/domain/book"
	"github.com/xiebiao/bookcatalog/internal/domain/category"
	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
	domain "github.com/xiebiao/bookcatalog/internal/domain/recalc"
	"github.com/xiebiao/bookcatalog/pkg/circuitbreaker"
	"github.com/xiebiao/bookcatalog/pkg/metrics"
	"github.com/xiebiao/bookcatalog/pkg/tracing"
)

const tracerName = "bookcatalog/recalc"

// minDeferral 熔断器半开且探测请求占满时的最短延后时间
const minDeferral = 100 * time.Millisecond

// BookStore 重算图书售价所需的存储访问
// 图书不存在时返回book.ErrBookNotFound
type BookStore interface {
	LoadPriceInputs(ctx context.Context, id uint) (book.PriceInputs, error)
	SavePrice(ctx context.Context, id uint, price pricing.Price) error
	CategoryIDs(ctx context.Context, id uint) ([]uint, error)
}

// CategoryStore 重算分类统计所需的存储访问
// 分类不存在时返回category.ErrCategoryNotFound
type CategoryStore interface {
	BookPrices(ctx context.Context, id uint) ([]decimal.NullDecimal, error)
	SaveStats(ctx context.Context, id uint, stats pricing.CategoryStats) error
}

// Scheduler 执行重算任务
type Scheduler struct {
	books      BookStore
	categories CategoryStore
	dispatcher *Dispatcher
	dedup      domain.Deduper
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewScheduler 创建Scheduler
// breaker为空时使用默认配置：连续5次存储失败后熔断30秒
func NewScheduler(
	books BookStore,
	categories CategoryStore,
	dispatcher *Dispatcher,
	dedup domain.Deduper,
	breaker *circuitbreaker.CircuitBreaker,
	logger *slog.Logger,
) *Scheduler {
	if breaker == nil {
		cfg := circuitbreaker.DefaultConfig()
		cfg.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
		breaker = circuitbreaker.NewCircuitBreaker("recalc-store", cfg)
	}
	breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		logger.Warn("熔断器状态变化", "name", name, "from", from.String(), "to", to.String())
	})

	return &Scheduler{
		books:      books,
		categories: categories,
		dispatcher: dispatcher,
		dedup:      dedup,
		breaker:    breaker,
		logger:     logger,
	}
}

// Run 执行任务，成功后投递链式任务
// 实现domain.Handler，由队列worker调用；返回error时队列按退避策略重试，
// 熔断器拒绝时返回domain.DeferredError，队列等待后重新执行且不计入重试次数
func (s *Scheduler) Run(ctx context.Context, job domain.Job) error {
	if err := job.Validate(); err != nil {
		// 参数错误重试也不会成功
		return backoff.Permanent(err)
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, job.Name, trace.WithAttributes(
		attribute.Int64("recalc.book_id", int64(job.BookID)),
		attribute.Int64("recalc.category_id", int64(job.CategoryID)),
	))
	defer span.End()

	start := time.Now()
	var noop bool
	err := s.breaker.Execute(func() error {
		var err error
		noop, err = s.execute(ctx, job)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpenState) {
		// 存储熔断中，任务没有真正执行，延后到熔断器半开之后
		after := s.breaker.RetryAfter()
		if after < minDeferral {
			after = minDeferral
		}
		metrics.ObserveJob(job.Name, metrics.ResultRejected, time.Since(start))
		s.logger.DebugContext(ctx, "存储熔断中，任务延后执行", "job", job.String(), "retry_in", after)
		return domain.Defer(err, after)
	}
	if err == nil && job.Link != nil {
		err = s.dispatcher.Dispatch(ctx, *job.Link)
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultFailure
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "重算任务失败", "job", job.String(), "error", err)
	case noop:
		result = metrics.ResultNoop
		s.logger.DebugContext(ctx, "重算目标已不存在，跳过", "job", job.String())
	default:
		s.logger.DebugContext(ctx, "重算任务完成", "job", job.String(), "elapsed", time.Since(start))
	}
	metrics.ObserveJob(job.Name, result, time.Since(start))
	return err
}

func (s *Scheduler) execute(ctx context.Context, job domain.Job) (bool, error) {
	switch job.Name {
	case domain.JobRecomputeBook:
		return s.recomputeBook(ctx, job.BookID)
	case domain.JobFanOutCategories:
		return s.fanOutCategories(ctx, job.BookID, job.CategoryIDs)
	case domain.JobRecomputeCategory:
		return s.recomputeCategory(ctx, job.CategoryID)
	default:
		return false, fmt.Errorf("未知任务: %s", job.Name)
	}
}

// RecomputeBook 按当前输入重算图书的总折扣与售价
// 图书已删除时什么也不做
func (s *Scheduler) RecomputeBook(ctx context.Context, bookID uint) error {
	_, err := s.recomputeBook(ctx, bookID)
	return err
}

// FanOutCategories 为图书的分类投递分类重算任务
// 分类集合为捕获的分类与图书当前分类的并集；图书已删除时只使用捕获的分类
func (s *Scheduler) FanOutCategories(ctx context.Context, bookID uint, captured []uint) error {
	_, err := s.fanOutCategories(ctx, bookID, captured)
	return err
}

// RecomputeCategory 按分类下当前图书的售价重算数量与平均售价
// 分类已删除时什么也不做
func (s *Scheduler) RecomputeCategory(ctx context.Context, categoryID uint) error {
	_, err := s.recomputeCategory(ctx, categoryID)
	return err
}

func (s *Scheduler) recomputeBook(ctx context.Context, bookID uint) (bool, error) {
	in, err := s.books.LoadPriceInputs(ctx, bookID)
	if errors.Is(err, book.ErrBookNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	price := pricing.ComputePrice(in.PriceOriginal, in.Discount, in.GroupDiscount)
	if err := s.books.SavePrice(ctx, bookID, price); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Scheduler) fanOutCategories(ctx context.Context, bookID uint, captured []uint) (bool, error) {
	current, err := s.books.CategoryIDs(ctx, bookID)
	vanished := errors.Is(err, book.ErrBookNotFound)
	if err != nil && !vanished {
		return false, err
	}

	for _, id := range book.UnionIDs(captured, current) {
		if err := s.dispatcher.Dispatch(ctx, domain.NewCategoryJob(id)); err != nil {
			return false, err
		}
	}
	return vanished && len(captured) == 0, nil
}

func (s *Scheduler) recomputeCategory(ctx context.Context, categoryID uint) (bool, error) {
	// 读取输入之前释放合并登记，此后的任何变更都会重新投递
	if s.dedup != nil {
		if err := s.dedup.Release(ctx, domain.CategoryDedupKey(categoryID)); err != nil {
			s.logger.WarnContext(ctx, "释放任务合并登记失败", "category_id", categoryID, "error", err)
		}
	}

	prices, err := s.categories.BookPrices(ctx, categoryID)
	if errors.Is(err, category.ErrCategoryNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	stats := pricing.ComputeCategoryStats(prices)
	if err := s.categories.SaveStats(ctx, categoryID, stats); err != nil {
		return false, err
	}
	return false, nil
}
