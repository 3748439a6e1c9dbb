package service

import "shop_insight_v1/internal/apperr"

// ==================== 业务错误 ====================

var (
	// 认证
	ErrInvalidCredentials = apperr.Unauthorized("invalid email or password")
	ErrEmailNotVerified   = apperr.Forbidden("email not verified")
	ErrEmailExists        = apperr.Conflict("email already registered")
	ErrAlreadyVerified    = apperr.Conflict("email already verified")
	ErrInvalidOTP         = apperr.BadRequest("invalid or expired code")
	ErrTooManyAttempts    = apperr.TooManyRequests("too many attempts, request a new code")
	ErrInvalidToken       = apperr.Unauthorized("token invalid or expired")
	ErrUserNotFound       = apperr.NotFound("user not found")

	// 租户
	ErrNoTenant       = apperr.NotFound("user has no tenant")
	ErrTenantExists   = apperr.Conflict("user already belongs to a tenant")
	ErrTenantNotFound = apperr.NotFound("tenant not found")
	ErrNotTenantOwner = apperr.Forbidden("only the tenant owner can do this")

	// 店铺
	ErrStoreNotFound     = apperr.NotFound("store not found")
	ErrStoreExists       = apperr.Conflict("store already connected")
	ErrInvalidDomain     = apperr.BadRequest("invalid shop domain")
	ErrStoreVerifyFailed = apperr.BadRequest("could not verify store credentials")

	// 同步 / 分析
	ErrInvalidSyncEntity = apperr.BadRequest("unknown sync entity")
	ErrSyncJobNotFound   = apperr.NotFound("sync job not found")
	ErrInvalidDateRange  = apperr.BadRequest("invalid date range")
)
