//go:build wireinject
// +build wireinject

// Wire依赖注入配置
//
// 生成：wire gen ./cmd/api
// main.go中的build()是与本文件等价的手动组装，两处需保持同步

package main

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
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

// ========================================
// Wire Provider Sets
// ========================================

// infrastructureSet 配置、数据库、Redis、事务
var infrastructureSet = wire.NewSet(
	config.Load,
	mysql.NewDB,
	redis.NewClient,
	mysql.NewTxManager,
	wire.Bind(new(book.Transactor), new(*mysql.TxManager)),
	wire.Bind(new(discountgroup.Transactor), new(*mysql.TxManager)),
)

// repositorySet 仓储实现为包内私有类型，通过repositories按接口导出
var repositorySet = wire.NewSet(
	provideRepositories,
	wire.FieldsOf(new(repositories),
		"Users", "Books", "Categories", "Groups", "Authors", "Publishers", "Relations",
		"BookStore", "CategoryStore", "BookFinder", "BookChecker",
	),
)

// recalcSet 重算任务运行时与变更触发器
var recalcSet = wire.NewSet(
	providePipeline,
	provideTriggers,
	wire.Bind(new(book.ChangeListener), new(*apprecalc.Triggers)),
	wire.Bind(new(category.ChangeListener), new(*apprecalc.Triggers)),
	wire.Bind(new(discountgroup.ChangeListener), new(*apprecalc.Triggers)),
)

// domainSet 领域服务
var domainSet = wire.NewSet(
	provideStaffPolicy,
	wire.Value([]user.Option(nil)),
	provideUserService,
	book.NewService,
	category.NewService,
	discountgroup.NewService,
	author.NewService,
	wire.Bind(new(author.BookRemover), new(book.Service)),
	publisher.NewService,
	relation.NewService,
)

// applicationSet 应用层用例
var applicationSet = wire.NewSet(
	appuser.NewRegisterUseCase,
	provideLoginUseCase,
	appuser.NewRefreshUseCase,
	appuser.NewLogoutUseCase,
	appbook.NewQueryBooksUseCase,
	wire.Bind(new(appbook.BookReader), new(book.Service)),
	wire.Bind(new(appbook.AuthorReader), new(*author.Service)),
	wire.Bind(new(appbook.CategoryReader), new(*category.Service)),
	wire.Bind(new(appbook.BookmarkReader), new(*relation.Service)),
)

// middlewareSet JWT、会话、限流
var middlewareSet = wire.NewSet(
	provideJWTManager,
	provideSessionStore,
	wire.Bind(new(appuser.SessionStore), new(*redis.SessionStore)),
	wire.Bind(new(middleware.Blacklist), new(*redis.SessionStore)),
	middleware.NewAuthMiddleware,
	provideRateLimiter,
)

// handlerSet HTTP处理器
var handlerSet = wire.NewSet(
	handler.NewUserHandler,
	handler.NewBookHandler,
	handler.NewCategoryHandler,
	handler.NewDiscountGroupHandler,
	handler.NewAuthorHandler,
	handler.NewPublisherHandler,
	handler.NewRelationHandler,
	wire.Struct(new(router.Handlers), "*"),
	provideGinEngine,
)

// ========================================
// Custom Providers
// ========================================

type repositories struct {
	Users      user.Repository
	Books      book.Repository
	Categories category.Repository
	Groups     discountgroup.Repository
	Authors    author.Repository
	Publishers publisher.Repository
	Relations  relation.Repository

	BookStore     apprecalc.BookStore
	CategoryStore apprecalc.CategoryStore
	BookFinder    discountgroup.BookFinder
	BookChecker   relation.BookChecker
}

func provideRepositories(db *gorm.DB) repositories {
	books := mysql.NewBookRepository(db)
	categories := mysql.NewCategoryRepository(db)
	return repositories{
		Users:         mysql.NewUserRepository(db),
		Books:         books,
		Categories:    categories,
		Groups:        mysql.NewDiscountGroupRepository(db),
		Authors:       mysql.NewAuthorRepository(db),
		Publishers:    mysql.NewPublisherRepository(db),
		Relations:     mysql.NewRelationRepository(db),
		BookStore:     books,
		CategoryStore: categories,
		BookFinder:    books,
		BookChecker:   books,
	}
}

func providePipeline(cfg *config.Config, books apprecalc.BookStore, categories apprecalc.CategoryStore, client *goredis.Client, log *slog.Logger) (*bootstrap.Pipeline, error) {
	return bootstrap.NewPipeline(cfg, bootstrap.PipelineOptions{
		Books:      books,
		Categories: categories,
		Redis:      client,
	}, log)
}

func provideTriggers(p *bootstrap.Pipeline, log *slog.Logger) *apprecalc.Triggers {
	return apprecalc.NewTriggers(p.Dispatcher, log)
}

func provideStaffPolicy(cfg *config.Config) user.StaffPolicy {
	return cfg.Auth.IsStaffEmail
}

func provideUserService(repo user.Repository, policy user.StaffPolicy, opts []user.Option) user.Service {
	return user.NewService(repo, policy, opts...)
}

// provideLoginUseCase 会话有效期与Refresh Token一致
func provideLoginUseCase(cfg *config.Config, svc user.Service, m *jwt.Manager, store appuser.SessionStore, log *slog.Logger) *appuser.LoginUseCase {
	return appuser.NewLoginUseCase(svc, m, store, cfg.JWT.RefreshTokenExpire, log)
}

func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)
}

func provideSessionStore(client *goredis.Client) *redis.SessionStore {
	return redis.NewSessionStore(client)
}

func provideRateLimiter(cfg *config.Config) *middleware.IPRateLimiter {
	if cfg.RateLimit.RPS <= 0 {
		return nil
	}
	return middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

func provideGinEngine(cfg *config.Config, h router.Handlers, log *slog.Logger) *gin.Engine {
	return router.New(router.Options{
		Mode:          cfg.Server.Mode,
		EnableMetrics: cfg.Metrics.Enabled,
		EnableSwagger: cfg.Server.Mode != "release",
		CORS:          cfg.CORS,
	}, h, log)
}

func provideApplication(engine *gin.Engine, p *bootstrap.Pipeline) *application {
	return &application{engine: engine, pipeline: p}
}

// ========================================
// Wire Injector
// ========================================

// InitializeApp 初始化整个应用
func InitializeApp(ctx context.Context, log *slog.Logger) (*application, error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		recalcSet,
		domainSet,
		applicationSet,
		middlewareSet,
		handlerSet,
		provideApplication,
	)
	return nil, nil
}
