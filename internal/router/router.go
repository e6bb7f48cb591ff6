// Package router 提供路由注册
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hostpulse/airbnb-sync/internal/handler"
	"github.com/hostpulse/airbnb-sync/internal/middleware"
)

// Router 路由管理器
type Router struct {
	engine *gin.Engine
}

// New 创建路由管理器
func New(engine *gin.Engine) *Router {
	return &Router{engine: engine}
}

// Engine 暴露底层 gin 引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// RegisterMiddleware 注册全局中间件
func (r *Router) RegisterMiddleware() {
	// 中间件链: Recovery → Trace → Logger → Metrics
	r.engine.Use(
		middleware.Recovery(),
		middleware.Trace(),
		middleware.Logger(),
		middleware.Metrics(),
	)
}

// RegisterRoutes 注册路由
func (r *Router) RegisterRoutes(
	healthHandler *handler.HealthHandler,
	accountHandler *handler.AccountHandler,
	syncHandler *handler.SyncHandler,
) {
	// ========== 健康检查 ==========
	r.engine.GET("/health/live", healthHandler.Live)
	r.engine.GET("/health/ready", healthHandler.Ready)

	// ========== Prometheus 监控端点 ==========
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ========== API v1 ==========
	v1 := r.engine.Group("/api/v1")

	accounts := v1.Group("/accounts")
	{
		accounts.POST("", accountHandler.Create)
		accounts.GET("", accountHandler.List)
		accounts.GET("/:id", accountHandler.Get)
		accounts.PUT("/:id", accountHandler.Update)
		accounts.DELETE("/:id", accountHandler.Delete)
		accounts.POST("/:id/restore", accountHandler.Restore)
		accounts.GET("/:id/stats", accountHandler.Stats)

		accounts.POST("/:id/sync", syncHandler.Trigger)
		accounts.GET("/:id/runs", syncHandler.ListRuns)
		accounts.GET("/:id/runs/latest", syncHandler.LatestRun)
	}
}
