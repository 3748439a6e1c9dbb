package router

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"shop_insight_v1/internal/controller"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/pkg/metrics"

	_ "shop_insight_v1/docs"
)

// Controllers 路由依赖的全部控制器
type Controllers struct {
	Auth      *controller.AuthController
	Tenant    *controller.TenantController
	Store     *controller.StoreController
	Sync      *controller.SyncController
	Analytics *controller.AnalyticsController
	Health    *controller.HealthController
}

// Options 路由级配置
type Options struct {
	// JWT 必填，签发与校验使用同一个实例
	JWT    *middleware.JWTManager
	Logger *zap.Logger
	// HideInternal 为 true 时 500 不返回错误细节
	HideInternal bool
	SyncLimiter  *middleware.SyncRateLimiter
	SyncCooldown time.Duration
}

// New 创建 gin 引擎并注册全局中间件与路由
func New(ctrls *Controllers, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SyncLimiter == nil {
		opts.SyncLimiter = middleware.NewSyncRateLimiter()
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(opts.Logger),
		middleware.RequestLogger(opts.Logger),
		middleware.ErrorHandler(opts.Logger, opts.HideInternal),
	)
	InitRoutes(r, ctrls, opts)
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctrls *Controllers, opts Options) {
	// 访问 http://localhost:8080/swagger/index.html 查看文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/health", ctrls.Health.Health)

	api := r.Group("/api")

	// auth 公开接口
	auth := api.Group("/auth")
	{
		auth.POST("/signup", ctrls.Auth.Signup)
		auth.POST("/verify-email", ctrls.Auth.VerifyEmail)
		auth.POST("/resend-otp", ctrls.Auth.ResendOTP)
		auth.POST("/login", ctrls.Auth.Login)
		auth.POST("/refresh", ctrls.Auth.RefreshToken)
		auth.POST("/forgot-password", ctrls.Auth.ForgotPassword)
		auth.POST("/reset-password", ctrls.Auth.ResetPassword)
	}

	// 以下接口需要登录
	secured := api.Group("", middleware.JWTAuth(opts.JWT), middleware.AuditContext())

	secured.GET("/auth/me", ctrls.Auth.Me)

	tenants := secured.Group("/tenants")
	{
		tenants.POST("", ctrls.Tenant.Create)
		tenants.GET("/me", ctrls.Tenant.GetMine)
		tenants.PUT("/me", middleware.RequireRole(model.RoleOwner), ctrls.Tenant.UpdateMine)
		tenants.DELETE("/me", middleware.RequireRole(model.RoleOwner), ctrls.Tenant.DeleteMine)
	}

	stores := secured.Group("/stores")
	{
		stores.POST("", ctrls.Store.Connect)
		stores.GET("", ctrls.Store.List)
		stores.GET("/:id", ctrls.Store.Get)
		stores.PUT("/:id", ctrls.Store.Update)
		stores.DELETE("/:id", ctrls.Store.Delete)
	}

	// 手动同步按 店铺+范围 冷却，先校验归属再计冷却
	cooldown := func(entity string) gin.HandlerFunc {
		return middleware.SyncRateLimit(opts.SyncLimiter, entity, opts.SyncCooldown)
	}
	sync := secured.Group("/sync")
	{
		sync.POST("/store/:id", ctrls.Sync.LoadStore, cooldown(model.SyncEntityAll), ctrls.Sync.SyncStore)
		sync.POST("/store/:id/products", ctrls.Sync.LoadStore, cooldown(model.SyncEntityProducts), ctrls.Sync.SyncProducts)
		sync.POST("/store/:id/customers", ctrls.Sync.LoadStore, cooldown(model.SyncEntityCustomers), ctrls.Sync.SyncCustomers)
		sync.POST("/store/:id/orders", ctrls.Sync.LoadStore, cooldown(model.SyncEntityOrders), ctrls.Sync.SyncOrders)
		sync.GET("/store/:id/status", ctrls.Sync.Status)
		sync.GET("/jobs/:jobId", ctrls.Sync.GetJob)
	}

	analytics := secured.Group("/analytics/store/:id")
	{
		analytics.GET("/overview", ctrls.Analytics.Overview)
		analytics.GET("/sales-by-day", ctrls.Analytics.SalesByDay)
		analytics.GET("/top-products", ctrls.Analytics.TopProducts)
		analytics.GET("/top-customers", ctrls.Analytics.TopCustomers)
		analytics.GET("/customer-split", ctrls.Analytics.CustomerSplit)
		analytics.GET("/traffic-heatmap", ctrls.Analytics.TrafficHeatmap)
		analytics.GET("/discounts", ctrls.Analytics.Discounts)
	}
}
