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

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	appbook "github.com/xiebiao/bookcatalog/internal/application/book"
	apprecalc "github.com/xiebiao/bookcatalog/internal/application/recalc"
	appuser "github.com/xiebiao/bookcatalog/internal/application/user"
	"github.com/xiebiao/bookcatalog/internal/domain/author"
	"github.com/xiebiao/bookcatalog/internal/domain/book"
	"github.com/xiebiao/bookcatalog/internal/domain/category"
	"github.com/xiebiao/bookcatalog/internal/domain/discountgroup"
	"github.com/xiebiao/bookcatalog/internal/domain/publisher"
	"github.com/xiebiao/bookcatalog/internal/domain/relation"
	"github.com/xiebiao/bookcatalog/internal/domain/user"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/bootstrap"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/config"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/bookcatalog/internal/interface/http/handler"
	"github.com/xiebiao/bookcatalog/internal/interface/http/middleware"
	"github.com/xiebiao/bookcatalog/internal/interface/http/router"
	"github.com/xiebiao/bookcatalog/pkg/jwt"
)

// @title           图书目录服务API
// @version         1.0
// @description     图书目录管理，售价与分类统计由后台任务异步重算
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization

// main 主程序入口
// 手动依赖注入：Repository ← Service ← UseCase ← Handler
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger, cleanup, err := bootstrap.Observability(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer cleanup()

	logger.Info("配置加载成功",
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"database", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName),
		"redis", cfg.Redis.Addr(),
		"recalc_driver", cfg.Recalc.Driver,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("服务异常退出", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 初始化数据库与Redis
	db, err := mysql.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	redisClient, err := redis.NewClient(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("初始化Redis失败: %w", err)
	}
	defer redisClient.Close()

	// 3. 依赖注入
	app, err := build(cfg, db, redisClient, logger)
	if err != nil {
		return err
	}
	defer app.pipeline.Close()

	// memory驱动下worker在本进程运行，HTTP服务关闭后再停止
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	app.pipeline.Start(workerCtx, cfg.Recalc.Workers)

	// 4. 启动HTTP服务
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务启动成功", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("收到退出信号，开始优雅关闭")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务失败: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP服务关闭超时", "error", err)
	}
	stopWorkers()
	return nil
}

type application struct {
	engine   http.Handler
	pipeline *bootstrap.Pipeline
}

// build 组装全部依赖
func build(cfg *config.Config, db *gorm.DB, redisClient *goredis.Client, logger *slog.Logger) (*application, error) {
	// 基础设施层
	txManager := mysql.NewTxManager(db)
	userRepo := mysql.NewUserRepository(db)
	bookRepo := mysql.NewBookRepository(db)
	categoryRepo := mysql.NewCategoryRepository(db)
	groupRepo := mysql.NewDiscountGroupRepository(db)
	authorRepo := mysql.NewAuthorRepository(db)
	publisherRepo := mysql.NewPublisherRepository(db)
	relationRepo := mysql.NewRelationRepository(db)
	sessionStore := redis.NewSessionStore(redisClient)
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)

	pipeline, err := bootstrap.NewPipeline(cfg, bootstrap.PipelineOptions{
		Books:      bookRepo,
		Categories: categoryRepo,
		Redis:      redisClient,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化重算任务失败: %w", err)
	}
	triggers := apprecalc.NewTriggers(pipeline.Dispatcher, logger)

	// 领域层
	userService := user.NewService(userRepo, cfg.Auth.IsStaffEmail)
	bookService := book.NewService(bookRepo, txManager, triggers)
	categoryService := category.NewService(categoryRepo, triggers)
	groupService := discountgroup.NewService(groupRepo, bookRepo, txManager, triggers)
	authorService := author.NewService(authorRepo, bookService)
	publisherService := publisher.NewService(publisherRepo)
	relationService := relation.NewService(relationRepo, bookRepo)

	// 应用层
	registerUseCase := appuser.NewRegisterUseCase(userService)
	loginUseCase := appuser.NewLoginUseCase(userService, jwtManager, sessionStore, cfg.JWT.RefreshTokenExpire, logger)
	refreshUseCase := appuser.NewRefreshUseCase(userService, jwtManager)
	logoutUseCase := appuser.NewLogoutUseCase(sessionStore, jwtManager)
	queryBooks := appbook.NewQueryBooksUseCase(bookService, authorService, categoryService, relationService)

	// 接口层
	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	engine := router.New(router.Options{
		Mode:          cfg.Server.Mode,
		EnableMetrics: cfg.Metrics.Enabled,
		EnableSwagger: cfg.Server.Mode != "release",
		CORS:          cfg.CORS,
	}, router.Handlers{
		User:          handler.NewUserHandler(registerUseCase, loginUseCase, refreshUseCase, logoutUseCase),
		Book:          handler.NewBookHandler(bookService, queryBooks),
		Category:      handler.NewCategoryHandler(categoryService),
		DiscountGroup: handler.NewDiscountGroupHandler(groupService),
		Author:        handler.NewAuthorHandler(authorService),
		Publisher:     handler.NewPublisherHandler(publisherService),
		Relation:      handler.NewRelationHandler(relationService),
		Auth:          middleware.NewAuthMiddleware(jwtManager, sessionStore),
		RateLimiter:   limiter,
	}, logger)

	return &application{engine: engine, pipeline: pipeline}, nil
}
