package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ChillFish8/lust/internal/adapter/handler"
	"github.com/ChillFish8/lust/internal/infrastructure/middleware"
)

type Router struct {
	engine       *gin.Engine
	imageHandler *handler.ImageHandler
	servingPath  string
	logger       *zap.Logger
}

type RouterConfig struct {
	ImageHandler *handler.ImageHandler
	ServingPath  string
	Logger       *zap.Logger
	Environment  string
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:       gin.New(),
		imageHandler: cfg.ImageHandler,
		servingPath:  cfg.ServingPath,
		logger:       cfg.Logger,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Metrics())
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	base := r.engine.Group(r.servingPath)
	{
		admin := base.Group("/admin")
		{
			admin.POST("/:bucket/create", r.imageHandler.Upload)
			admin.DELETE("/:bucket/delete/:image_id", r.imageHandler.Delete)
			admin.POST("/:bucket/list", r.imageHandler.List)
		}

		base.GET("/:bucket/:image_id", r.imageHandler.Fetch)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
