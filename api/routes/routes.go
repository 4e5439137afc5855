package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/feichai0017/tender-processor/api/handlers"
	"github.com/feichai0017/tender-processor/api/middleware"
	"github.com/feichai0017/tender-processor/pkg/logger"
)

type Options struct {
	AllowedOrigins []string
	// RateLimiter guards submissions; nil disables it.
	RateLimiter gin.HandlerFunc
	Logger      logger.Logger
}

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options) {
	// 全局中间件
	if opts.Logger != nil {
		r.Use(middleware.RequestLogger(opts.Logger))
	}
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	// API 版本组
	v1 := r.Group("/api/v1")

	submit := v1.Group("")
	if opts.RateLimiter != nil {
		submit.Use(opts.RateLimiter)
	}
	{
		submit.POST("/extract-single", h.Job.SubmitSingle)
		submit.POST("/extract-batch", h.Job.SubmitBatch)
	}

	v1.GET("/status/:jobId", h.Job.GetStatus)
	v1.GET("/status/:jobId/task", h.Job.GetTaskStatus)
	v1.GET("/export/:jobId", h.Job.Export)
	v1.GET("/jobs", h.Job.ListJobs)
}
