package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_insight_v1/internal/config"
	"shop_insight_v1/internal/controller"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/internal/router"
	"shop_insight_v1/internal/service"
	"shop_insight_v1/internal/task"
	"shop_insight_v1/pkg/database"
	"shop_insight_v1/pkg/kv"
	"shop_insight_v1/pkg/logger"
	"shop_insight_v1/pkg/mailer"
	"shop_insight_v1/pkg/shopify"
	"shop_insight_v1/pkg/tracing"
)

// @title Shop Insight API
// @version 1.0
// @description 多租户店铺数据同步与分析服务
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.App.Name, cfg.App.Env)
	if err != nil {
		return fmt.Errorf("初始化 tracing 失败: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("flush tracing failed", zap.Error(err))
		}
	}()

	// 1. 初始化数据库
	db, err := initDatabase(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	// 2. 初始化依赖
	deps, err := initDependencies(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	// 3. 开发环境预置店铺
	if cfg.App.IsDevelopment() {
		if n, err := deps.Services.Store.AutoProvision(ctx, cfg.Shopify.ParseDevStores()); err != nil {
			log.Warn("auto provision dev stores failed", zap.Error(err))
		} else if n > 0 {
			log.Info("dev stores provisioned", zap.Int("count", n))
		}
	}

	// 4. 启动同步任务
	if err := deps.Tasks.Start(ctx); err != nil {
		return fmt.Errorf("启动同步任务失败: %w", err)
	}
	defer deps.Tasks.Stop()

	// 5. 初始化路由并启动服务
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := controller.RegisterValidators(); err != nil {
		return err
	}
	r := router.New(deps.Controllers, router.Options{
		JWT:          deps.JWT,
		Logger:       log,
		HideInternal: cfg.App.IsProduction(),
		SyncCooldown: cfg.Sync.Cooldown,
	})

	return startServer(ctx, cfg, r, log)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	KV          kv.Store
	JWT         *middleware.JWTManager
	Repos       *Repositories
	Services    *Services
	Tasks       *task.TaskManager
	Controllers *router.Controllers
}

// Repositories 仓库集合
type Repositories struct {
	User      repository.UserRepository
	Tenant    repository.TenantRepository
	Store     repository.StoreRepository
	Product   repository.ProductRepository
	Customer  repository.CustomerRepository
	Order     repository.OrderRepository
	SyncJob   repository.SyncJobRepository
	Analytics repository.AnalyticsRepository
}

// Services 服务集合
type Services struct {
	Auth      *service.AuthService
	Tenant    *service.TenantService
	Store     *service.StoreService
	Sync      *service.SyncService
	Analytics *service.AnalyticsService
}

// ==================== 初始化函数 ====================

// initDatabase 连接数据库、迁移并注册审计回调
func initDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := database.InitDB(cfg.Database.DSN, database.Options{
		LogLevel:        cfg.Database.LogLevel,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, model.AllModels()...)
	if err != nil {
		return nil, err
	}

	if err := middleware.RegisterAuditCallbacks(db, log, "tenants", "stores", "users"); err != nil {
		return nil, fmt.Errorf("注册审计回调失败: %w", err)
	}
	log.Info("database ready")
	return db, nil
}

// initKV 配置了 Redis 时使用 Redis，否则使用进程内存储
func initKV(ctx context.Context, cfg *config.Config, log *zap.Logger) (kv.Store, error) {
	if cfg.Redis.URL == "" {
		log.Info("redis not configured, using in-memory kv")
		return kv.NewMemoryStore(), nil
	}
	store, err := kv.NewRedisStore(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 redis 失败: %w", err)
	}
	return store, nil
}

// initDependencies 初始化所有依赖
func initDependencies(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*Dependencies, error) {
	store, err := initKV(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	jwtManager, err := middleware.NewJWTManager(middleware.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenTTL:  cfg.JWT.AccessTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTTL,
		Issuer:          cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 JWT 失败: %w", err)
	}

	// -------- Repo 层 --------
	repos := initRepositories(db)

	// -------- 外部依赖 --------
	mail := mailer.New(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log)

	shopClient := shopify.NewClient(shopify.Config{
		APIVersion: cfg.Shopify.APIVersion,
		Timeout:    cfg.Shopify.Timeout,
		RatePerSec: cfg.Shopify.RatePerSec,
		Burst:      cfg.Shopify.Burst,
	}, log.Named("shopify"))

	// 接口变量不能持有 nil 指针
	var verifier service.StoreVerifier
	if cfg.Shopify.VerifyOnConnect {
		verifier = shopify.NewVerifier(cfg.Shopify.APIKey, cfg.Shopify.APISecret, cfg.Shopify.APIVersion)
	}

	// -------- 业务服务 --------
	services := &Services{}
	services.Auth = service.NewAuthService(
		repos.User,
		service.NewOTPStore(store, cfg.Auth.OTPTTL, cfg.Auth.OTPMaxAttempts),
		jwtManager, mail, log,
	)
	services.Tenant = service.NewTenantService(repos.Tenant, repos.User, repos.Store, log)
	services.Store = service.NewStoreService(repos.Store, repos.Tenant, services.Tenant, verifier, log)
	services.Sync = service.NewSyncService(
		shopClient, repos.Store, repos.Product, repos.Customer, repos.Order,
		service.SyncConfig{
			PageSize:        cfg.Sync.PageSize,
			BatchSize:       cfg.Sync.BatchSize,
			MaxPageFailures: cfg.Sync.MaxPageFailures,
		}, log,
	)
	services.Analytics = service.NewAnalyticsService(
		repos.Analytics, repos.Product, repos.Customer,
		store, cfg.Analytics.CacheTTL, log,
	)

	// -------- 同步任务 --------
	tasks := task.NewTaskManager(&task.TaskManagerDeps{
		Syncer:    services.Sync,
		StoreRepo: repos.Store,
		JobRepo:   repos.SyncJob,
		OnFinish: []task.FinishHook{
			// 数据变化后分析缓存失效
			func(ctx context.Context, storeID int64) {
				if err := services.Analytics.Invalidate(ctx, storeID); err != nil {
					log.Warn("invalidate analytics cache failed", zap.Int64("store_id", storeID), zap.Error(err))
				}
			},
		},
		Logger: log,
	}, task.TaskManagerConfig{
		Runner: task.RunnerConfig{
			Workers:    cfg.Sync.Workers,
			QueueSize:  cfg.Sync.QueueSize,
			JobTimeout: cfg.Sync.JobTimeout,
		},
		Schedule: cfg.Sync.Schedule,
	})

	// -------- Controller 层 --------
	controllers := &router.Controllers{
		Auth:      controller.NewAuthController(services.Auth),
		Tenant:    controller.NewTenantController(services.Tenant),
		Store:     controller.NewStoreController(services.Store),
		Sync:      controller.NewSyncController(services.Store, tasks),
		Analytics: controller.NewAnalyticsController(services.Store, services.Analytics),
		Health:    controller.NewHealthController(db),
	}

	return &Dependencies{
		DB:          db,
		KV:          store,
		JWT:         jwtManager,
		Repos:       repos,
		Services:    services,
		Tasks:       tasks,
		Controllers: controllers,
	}, nil
}

// initRepositories 初始化所有仓库
func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:      repository.NewUserRepository(db),
		Tenant:    repository.NewTenantRepository(db),
		Store:     repository.NewStoreRepository(db),
		Product:   repository.NewProductRepository(db),
		Customer:  repository.NewCustomerRepository(db),
		Order:     repository.NewOrderRepository(db),
		SyncJob:   repository.NewSyncJobRepository(db),
		Analytics: repository.NewAnalyticsRepository(db),
	}
}

// ==================== 服务启动 ====================

// startServer 启动 HTTP 服务，ctx 结束后优雅关闭
func startServer(ctx context.Context, cfg *config.Config, r *gin.Engine, log *zap.Logger) error {
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: otelhttp.NewHandler(r, cfg.App.Name),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("服务启动失败: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("服务强制关闭: %w", err)
	}
	log.Info("server stopped")
	return nil
}
