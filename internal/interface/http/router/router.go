package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/xiebiao/bookcatalog/internal/infrastructure/config"
	"github.com/xiebiao/bookcatalog/internal/interface/http/dto"
	"github.com/xiebiao/bookcatalog/internal/interface/http/handler"
	"github.com/xiebiao/bookcatalog/internal/interface/http/middleware"
	"github.com/xiebiao/bookcatalog/pkg/response"
)

// Handlers 路由依赖的全部处理器与中间件
type Handlers struct {
	User          *handler.UserHandler
	Book          *handler.BookHandler
	Category      *handler.CategoryHandler
	DiscountGroup *handler.DiscountGroupHandler
	Author        *handler.AuthorHandler
	Publisher     *handler.PublisherHandler
	Relation      *handler.RelationHandler

	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.IPRateLimiter // 为nil时不限流
}

// Options 引擎选项
type Options struct {
	Mode          string // debug | release | test
	EnableMetrics bool   // 是否暴露/metrics
	EnableSwagger bool
	CORS          config.CORSConfig
}

// New 创建Gin引擎并注册所有路由
func New(opts Options, h Handlers, log *slog.Logger) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	dto.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics(), middleware.CORS(opts.CORS))
	if h.RateLimiter != nil {
		r.Use(h.RateLimiter.Middleware())
	}

	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})
	if opts.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if opts.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := h.Auth.RequireAuth()
	staff := []gin.HandlerFunc{auth, middleware.RequireStaff()}

	v1 := r.Group("/api/v1")
	{
		users := v1.Group("/users")
		{
			users.POST("/register", h.User.Register)
			users.POST("/login", h.User.Login)
			users.POST("/refresh", h.User.Refresh)
			users.POST("/logout", auth, h.User.Logout)
		}

		books := v1.Group("/books")
		{
			// 匿名可读,登录用户附带书签状态,管理员可见定价输入
			books.GET("", h.Auth.OptionalAuth(), h.Book.ListBooks)
			books.GET("/:id", h.Auth.OptionalAuth(), h.Book.GetBook)

			books.POST("", append(staff, h.Book.CreateBook)...)
			books.PUT("/:id", append(staff, h.Book.UpdateBook)...)
			books.DELETE("/:id", append(staff, h.Book.DeleteBook)...)

			books.POST("/:id/bookmark", auth, h.Relation.AddBookmark)
			books.DELETE("/:id/bookmark", auth, h.Relation.RemoveBookmark)
			books.POST("/:id/wishlist", auth, h.Relation.AddWishlist)
			books.DELETE("/:id/wishlist", auth, h.Relation.RemoveWishlist)
			books.PUT("/:id/rating", auth, h.Relation.Rate)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", h.Category.List)
			categories.GET("/:id", h.Category.Get)
			categories.POST("", append(staff, h.Category.Create)...)
			categories.PUT("/:id", append(staff, h.Category.Update)...)
			categories.DELETE("/:id", append(staff, h.Category.Delete)...)
		}

		groups := v1.Group("/discount-groups", staff...)
		{
			groups.GET("", h.DiscountGroup.List)
			groups.GET("/:id", h.DiscountGroup.Get)
			groups.POST("", h.DiscountGroup.Create)
			groups.PUT("/:id", h.DiscountGroup.Update)
			groups.DELETE("/:id", h.DiscountGroup.Delete)
		}

		authors := v1.Group("/authors")
		{
			authors.GET("", h.Author.List)
			authors.GET("/:id", h.Author.Get)
			authors.POST("", append(staff, h.Author.Create)...)
			authors.PUT("/:id", append(staff, h.Author.Update)...)
			authors.DELETE("/:id", append(staff, h.Author.Delete)...)
		}

		publishers := v1.Group("/publishers")
		{
			publishers.GET("", h.Publisher.List)
			publishers.GET("/:id", h.Publisher.Get)
			publishers.POST("", append(staff, h.Publisher.Create)...)
			publishers.PUT("/:id", append(staff, h.Publisher.Update)...)
			publishers.DELETE("/:id", append(staff, h.Publisher.Delete)...)
		}

		v1.GET("/relations", auth, h.Relation.List)
	}

	return r
}
