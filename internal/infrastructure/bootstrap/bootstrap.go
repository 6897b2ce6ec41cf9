// Package bootstrap 组装api与worker共用的基础设施
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	apprecalc "github.com/xiebiao/bookcatalog/internal/application/recalc"
	"github.com/xiebiao/bookcatalog/internal/domain/recalc"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/config"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/queue"
	"github.com/xiebiao/bookcatalog/pkg/logger"
	"github.com/xiebiao/bookcatalog/pkg/metrics"
	"github.com/xiebiao/bookcatalog/pkg/mq"
	"github.com/xiebiao/bookcatalog/pkg/tracing"
)

// Observability 按配置初始化日志、追踪与指标
// 返回的cleanup按相反顺序释放资源
func Observability(cfg *config.Config) (*slog.Logger, func(), error) {
	log, closeLog, err := logger.New(logger.Options{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	slog.SetDefault(log)

	shutdownTracer, err := tracing.InitTracer(tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		_ = closeLog()
		return nil, nil, fmt.Errorf("初始化追踪失败: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitMetrics()
	}

	cleanup := func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("关闭追踪失败", "error", err)
		}
		_ = closeLog()
	}
	return log, cleanup, nil
}

// Pipeline 重算任务运行时
//
// memory驱动：进程内队列与去重表，Scheduler在本进程执行
// rabbitmq驱动：任务发布到RabbitMQ，Redis负责分类任务去重；
// 只有worker进程创建Scheduler并消费
type Pipeline struct {
	Dispatcher *apprecalc.Dispatcher
	Scheduler  *apprecalc.Scheduler // 未要求执行任务时为nil
	Memory     *queue.Memory        // 仅memory驱动
	RabbitMQ   *queue.RabbitMQ      // 仅rabbitmq驱动

	publisher *mq.Publisher
	logger    *slog.Logger
}

// PipelineOptions 组装选项
type PipelineOptions struct {
	Books      apprecalc.BookStore
	Categories apprecalc.CategoryStore
	Redis      goredis.Cmdable // rabbitmq驱动必填
	Execute    bool            // 是否创建Scheduler
}

// NewPipeline 按recalc.driver组装队列、去重表、Dispatcher与Scheduler
func NewPipeline(cfg *config.Config, opts PipelineOptions, log *slog.Logger) (*Pipeline, error) {
	policy := queue.RetryPolicy{
		MaxAttempts:    cfg.Recalc.MaxAttempts,
		InitialBackoff: cfg.Recalc.InitialBackoff,
		MaxBackoff:     cfg.Recalc.MaxBackoff,
	}
	p := &Pipeline{logger: log}

	var (
		q     recalc.Queue
		dedup recalc.Deduper
	)
	switch cfg.Recalc.Driver {
	case config.RecalcDriverMemory:
		p.Memory = queue.NewMemory(policy, log)
		q = p.Memory
		dedup = queue.NewMemoryDeduper(cfg.Recalc.DedupTTL)
		// 进程内队列只能在本进程执行
		opts.Execute = true

	case config.RecalcDriverRabbitMQ:
		if opts.Redis == nil {
			return nil, fmt.Errorf("rabbitmq驱动需要Redis做任务去重")
		}
		publisher, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, "direct", log)
		if err != nil {
			return nil, err
		}
		rq, err := queue.NewRabbitMQ(publisher, cfg.RabbitMQ.Queue, policy, log)
		if err != nil {
			_ = publisher.Close()
			return nil, err
		}
		p.publisher = publisher
		p.RabbitMQ = rq
		q = rq
		dedup = redis.NewDeduper(opts.Redis, cfg.Recalc.DedupTTL)

	default:
		return nil, fmt.Errorf("未知的重算驱动: %s", cfg.Recalc.Driver)
	}

	p.Dispatcher = apprecalc.NewDispatcher(q, dedup, log)
	if opts.Execute {
		p.Scheduler = apprecalc.NewScheduler(opts.Books, opts.Categories, p.Dispatcher, dedup, nil, log)
	}
	return p, nil
}

// Start memory驱动下启动worker，rabbitmq驱动下为空操作
func (p *Pipeline) Start(ctx context.Context, workers int) {
	if p.Memory != nil && p.Scheduler != nil {
		p.Memory.Start(ctx, p.Scheduler, workers)
	}
}

// Close 释放队列资源
func (p *Pipeline) Close() {
	if p.Memory != nil {
		if dropped := p.Memory.Close(); dropped > 0 {
			p.logger.Warn("进程内队列关闭时仍有未执行的任务", "dropped", dropped)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.Close(); err != nil {
			p.logger.Warn("关闭RabbitMQ发布者失败", "error", err)
		}
	}
}
