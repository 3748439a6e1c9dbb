package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shop_insight_v1/internal/apperr"
	"shop_insight_v1/internal/controller"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/internal/router"
	"shop_insight_v1/internal/service"
	"shop_insight_v1/internal/task"
	"shop_insight_v1/pkg/kv"
	"shop_insight_v1/pkg/mailer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := controller.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// ==================== 测试辅助 ====================

type emptySyncer struct{}

func (emptySyncer) SyncStore(_ context.Context, _ *model.Store, _ string) (*service.SyncResult, error) {
	return &service.SyncResult{}, nil
}

type testApp struct {
	db     *gorm.DB
	engine *gin.Engine
	jwt    *middleware.JWTManager
	tasks  *task.TaskManager
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.AllModels()...))

	log := zap.NewNop()
	store := kv.NewMemoryStore()

	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	storeRepo := repository.NewStoreRepository(db)
	jobRepo := repository.NewSyncJobRepository(db)

	jwt, err := middleware.NewJWTManager(middleware.JWTConfig{SecretKey: "controller-test-secret"})
	require.NoError(t, err)

	authSvc := service.NewAuthService(userRepo, service.NewOTPStore(store, 0, 0), jwt, mailer.NewLogMailer(log), log)
	tenantSvc := service.NewTenantService(tenantRepo, userRepo, storeRepo, log)
	storeSvc := service.NewStoreService(storeRepo, tenantRepo, tenantSvc, nil, log)
	analyticsSvc := service.NewAnalyticsService(
		repository.NewAnalyticsRepository(db),
		repository.NewProductRepository(db),
		repository.NewCustomerRepository(db),
		store, time.Minute, log,
	)

	tm := task.NewTaskManager(&task.TaskManagerDeps{
		Syncer:    emptySyncer{},
		StoreRepo: storeRepo,
		JobRepo:   jobRepo,
		Logger:    log,
	}, task.TaskManagerConfig{Runner: task.RunnerConfig{Workers: 1, QueueSize: 10, JobTimeout: time.Minute}})
	require.NoError(t, tm.Start(context.Background()))
	t.Cleanup(tm.Stop)

	engine := router.New(&router.Controllers{
		Auth:      controller.NewAuthController(authSvc),
		Tenant:    controller.NewTenantController(tenantSvc),
		Store:     controller.NewStoreController(storeSvc),
		Sync:      controller.NewSyncController(storeSvc, tm),
		Analytics: controller.NewAnalyticsController(storeSvc, analyticsSvc),
		Health:    controller.NewHealthController(db),
	}, router.Options{JWT: jwt, Logger: log, SyncCooldown: time.Minute})

	return &testApp{db: db, engine: engine, jwt: jwt, tasks: tm}
}

// newUser 直接落库一个已验证用户并签发 access token
func (a *testApp) newUser(t *testing.T, email string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &model.User{Email: email, PasswordHash: string(hash), Role: model.RoleOwner, IsVerified: true}
	require.NoError(t, a.db.Create(user).Error)

	access, _, err := a.jwt.GenerateTokenPair(user.ID, user.Email, user.Role)
	require.NoError(t, err)
	return access
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (a *testApp) connectStore(t *testing.T, token, domain string) int64 {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/stores", token, map[string]string{
		"domain":       domain,
		"access_token": "shpat_0123456789",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var info struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &info))
	return info.ID
}

// ==================== 认证 ====================

func TestAuthFlow(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "Owner@Example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "success", decode(t, w).Status)

	login := map[string]string{"email": "owner@example.com", "password": "password123"}

	w = app.do(t, http.MethodPost, "/api/auth/login", "", login)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperr.CodeForbidden, decode(t, w).Code)

	require.NoError(t, app.db.Model(&model.User{}).Where("email = ?", "owner@example.com").
		Update("is_verified", true).Error)

	w = app.do(t, http.MethodPost, "/api/auth/login", "", login)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &tokens))
	require.NotEmpty(t, tokens.AccessToken)

	w = app.do(t, http.MethodGet, "/api/auth/me", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), "owner@example.com")

	// refresh token 不能当 access token 用
	w = app.do(t, http.MethodGet, "/api/auth/me", tokens.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignup_Validation(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env := decode(t, w)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, apperr.CodeValidation, env.Code)
	assert.NotEmpty(t, env.Message)
}

func TestSecuredRoutes_RequireToken(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodGet, "/api/stores", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", decode(t, w).Status)
}

func TestSecuredRoutes_RejectTokenFromOtherSecret(t *testing.T) {
	app := setupApp(t)

	other, err := middleware.NewJWTManager(middleware.JWTConfig{SecretKey: "shop-insight-secret-change-in-production"})
	require.NoError(t, err)
	forged, _, err := other.GenerateTokenPair(1, "x@example.com", model.RoleOwner)
	require.NoError(t, err)

	w := app.do(t, http.MethodGet, "/api/auth/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ==================== 店铺 ====================

func TestConnectStore_DomainValidation(t *testing.T) {
	app := setupApp(t)
	token := app.newUser(t, "a@example.com")

	w := app.do(t, http.MethodPost, "/api/stores", token, map[string]string{
		"domain":       "https://bad domain!",
		"access_token": "shpat_0123456789",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeValidation, decode(t, w).Code)
}

func TestStore_TenantIsolation(t *testing.T) {
	app := setupApp(t)
	alice := app.newUser(t, "alice@example.com")
	bob := app.newUser(t, "bob@example.com")

	id := app.connectStore(t, alice, "alice-shop")

	w := app.do(t, http.MethodGet, fmt.Sprintf("/api/stores/%d", id), alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/stores/%d", id), bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.CodeNotFound, decode(t, w).Code)

	w = app.do(t, http.MethodPost, fmt.Sprintf("/api/sync/store/%d", id), bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/analytics/store/%d/overview", id), bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 重复接入同一域名
	w = app.do(t, http.MethodPost, "/api/stores", bob, map[string]string{
		"domain":       "alice-shop.myshopify.com",
		"access_token": "shpat_0123456789",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

// ==================== 同步 ====================

func TestSyncTrigger_AcceptedThenCooldown(t *testing.T) {
	app := setupApp(t)
	token := app.newUser(t, "sync@example.com")
	id := app.connectStore(t, token, "sync-shop")

	path := fmt.Sprintf("/api/sync/store/%d/products", id)
	w := app.do(t, http.MethodPost, path, token, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Stats   struct {
			JobID  string `json:"job_id"`
			Entity string `json:"entity"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Stats.JobID)
	assert.Equal(t, model.SyncEntityProducts, resp.Stats.Entity)

	w = app.do(t, http.MethodPost, path, token, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, apperr.CodeRateLimited, decode(t, w).Code)

	// 冷却按范围区分，status 查询不受影响
	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/sync/store/%d/status", id), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/sync/jobs/"+resp.Stats.JobID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/sync/jobs/"+uuid.NewString(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncTrigger_OtherTenantDoesNotConsumeCooldown(t *testing.T) {
	app := setupApp(t)
	owner := app.newUser(t, "owner@example.com")
	other := app.newUser(t, "other@example.com")
	app.connectStore(t, other, "other-shop")
	id := app.connectStore(t, owner, "owner-shop")

	path := fmt.Sprintf("/api/sync/store/%d", id)
	w := app.do(t, http.MethodPost, path, other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodPost, path, owner, nil)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestSyncTrigger_FailedEnqueueReleasesCooldown(t *testing.T) {
	app := setupApp(t)
	token := app.newUser(t, "stopped@example.com")
	id := app.connectStore(t, token, "stopped-shop")
	app.tasks.Stop()

	path := fmt.Sprintf("/api/sync/store/%d/orders", id)
	for i := 0; i < 2; i++ {
		w := app.do(t, http.MethodPost, path, token, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	}
}

// ==================== 分析 ====================

func TestAnalyticsOverview_EmptyStore(t *testing.T) {
	app := setupApp(t)
	token := app.newUser(t, "stats@example.com")
	id := app.connectStore(t, token, "stats-shop")

	w := app.do(t, http.MethodGet, fmt.Sprintf("/api/analytics/store/%d/overview", id), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var overview struct {
		Orders int64 `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &overview))
	assert.Zero(t, overview.Orders)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/analytics/store/%d/sales-by-day?from=2025-02-10&to=2025-01-01", id), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/analytics/store/%d/sales-by-day?from=yesterday", id), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	app := setupApp(t)

	w := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w).Status)
}
