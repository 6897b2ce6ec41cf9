package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiebiao/bookcatalog/internal/infrastructure/bootstrap"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/config"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/queue"
	"github.com/xiebiao/bookcatalog/pkg/metrics"
	"github.com/xiebiao/bookcatalog/pkg/mq"
	"github.com/xiebiao/bookcatalog/pkg/response"
)

// main 重算任务worker
// 消费RabbitMQ中的重算任务，失败的任务经延迟队列重试；/metrics单独监听
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Recalc.Driver != config.RecalcDriverRabbitMQ {
		log.Fatalf("worker需要recalc.driver=%s，当前为%s", config.RecalcDriverRabbitMQ, cfg.Recalc.Driver)
	}
	// worker总是暴露指标
	cfg.Metrics.Enabled = true

	logger, cleanup, err := bootstrap.Observability(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("worker异常退出", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := mysql.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	redisClient, err := redis.NewClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("初始化Redis失败: %w", err)
	}
	defer redisClient.Close()

	pipeline, err := bootstrap.NewPipeline(cfg, bootstrap.PipelineOptions{
		Books:      mysql.NewBookRepository(db),
		Categories: mysql.NewCategoryRepository(db),
		Redis:      redisClient,
		Execute:    true,
	}, logger)
	if err != nil {
		return fmt.Errorf("初始化重算任务失败: %w", err)
	}
	defer pipeline.Close()

	// 拓扑已由NewPipeline声明，这里只绑定并消费
	consumer, err := mq.NewConsumer(
		cfg.RabbitMQ.URL,
		cfg.RabbitMQ.Exchange,
		"direct",
		cfg.RabbitMQ.Queue,
		[]string{queue.RoutingKey},
		logger,
	)
	if err != nil {
		return err
	}
	defer consumer.Close()

	metricsSrv := newMetricsServer(cfg.Metrics.Addr)
	go func() {
		logger.Info("指标服务启动", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("指标服务异常", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	handler := pipeline.RabbitMQ.Handler(pipeline.Scheduler)
	if err := consumer.Consume(ctx, cfg.RabbitMQ.Prefetch, handler); err != nil {
		return err
	}
	logger.Info("worker已退出")
	return nil
}

func newMetricsServer(addr string) *http.Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong", "metrics": metrics.Enabled()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return &http.Server{Addr: addr, Handler: r}
}
