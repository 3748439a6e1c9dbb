package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/pkg/kv"
)

const testOTP = "123456"

type authFixture struct {
	db   *gorm.DB
	svc  *AuthService
	jwt  *middleware.JWTManager
	mail *recordingMailer
}

func newTestJWT(t *testing.T) *middleware.JWTManager {
	t.Helper()
	m, err := middleware.NewJWTManager(middleware.JWTConfig{SecretKey: "service-test-secret"})
	require.NoError(t, err)
	return m
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := setupServiceDB(t)
	otp := NewOTPStore(kv.NewMemoryStore(), 10*time.Minute, 5)
	otp.generate = func() (string, error) { return testOTP, nil }
	mail := &recordingMailer{}
	jwt := newTestJWT(t)
	svc := NewAuthService(repository.NewUserRepository(db), otp, jwt, mail, nopLogger())
	return &authFixture{db: db, svc: svc, jwt: jwt, mail: mail}
}

func (f *authFixture) signupVerified(t *testing.T, email, password string) *dto.UserInfo {
	t.Helper()
	ctx := context.Background()
	user, err := f.svc.Signup(ctx, &dto.SignupRequest{Email: email, Password: password, Name: "Ann"})
	require.NoError(t, err)
	require.NoError(t, f.svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: email, OTP: testOTP}))
	return user
}

// ==================== 注册 / 验证 ====================

func TestAuthService_SignupSendsOTP(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Signup(ctx, &dto.SignupRequest{
		Email:      "  Ann@Example.com ",
		Password:   "password123",
		TenantName: "Ann's Shop",
	})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.False(t, user.IsVerified)
	require.NotNil(t, user.TenantID)
	assert.Equal(t, 1, f.mail.count())
	assert.Contains(t, f.mail.sent[0].HTMLBody, testOTP)

	var stored model.User
	require.NoError(t, f.db.First(&stored, user.ID).Error)
	assert.NotEqual(t, "password123", stored.PasswordHash)

	_, err = f.svc.Signup(ctx, &dto.SignupRequest{Email: "ann@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestAuthService_SignupRollsBackUserWhenTenantFails(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	errTenant := errors.New("tenant insert failed")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_tenant", func(tx *gorm.DB) {
		if tx.Statement.Table == "tenants" {
			_ = tx.AddError(errTenant)
		}
	}))

	_, err := f.svc.Signup(ctx, &dto.SignupRequest{Email: "ann@example.com", Password: "password123", TenantName: "Ann's Shop"})
	require.ErrorIs(t, err, errTenant)

	var users int64
	require.NoError(t, f.db.Model(&model.User{}).Where("email = ?", "ann@example.com").Count(&users).Error)
	assert.Zero(t, users)
	assert.Zero(t, f.mail.count())

	// 去掉故障后同一邮箱可以重新注册
	require.NoError(t, f.db.Callback().Create().Remove("test:fail_tenant"))
	user, err := f.svc.Signup(ctx, &dto.SignupRequest{Email: "ann@example.com", Password: "password123", TenantName: "Ann's Shop"})
	require.NoError(t, err)
	require.NotNil(t, user.TenantID)
}

func TestAuthService_VerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, &dto.SignupRequest{Email: "ann@example.com", Password: "password123"})
	require.NoError(t, err)

	err = f.svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "ann@example.com", OTP: "000000"})
	assert.ErrorIs(t, err, ErrInvalidOTP)

	require.NoError(t, f.svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "ann@example.com", OTP: testOTP}))

	err = f.svc.VerifyEmail(ctx, &dto.VerifyEmailRequest{Email: "ann@example.com", OTP: testOTP})
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestAuthService_ResendOTPUnknownEmailIsSilent(t *testing.T) {
	f := newAuthFixture(t)
	err := f.svc.ResendOTP(context.Background(), &dto.ResendOTPRequest{Email: "ghost@example.com", Purpose: OTPPurposeVerify})
	assert.NoError(t, err)
	assert.Zero(t, f.mail.count())
}

func TestAuthService_ResendOTPVerifiedEmailIsSilent(t *testing.T) {
	f := newAuthFixture(t)
	f.signupVerified(t, "ann@example.com", "password123")
	sent := f.mail.count()

	err := f.svc.ResendOTP(context.Background(), &dto.ResendOTPRequest{Email: "ann@example.com", Purpose: OTPPurposeVerify})
	assert.NoError(t, err)
	assert.Equal(t, sent, f.mail.count())
}

// ==================== 登录 ====================

func TestAuthService_LoginRequiresVerifiedEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Signup(ctx, &dto.SignupRequest{Email: "ann@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, &dto.LoginRequest{Email: "ann@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestAuthService_LoginAndRefresh(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signupVerified(t, "ann@example.com", "password123")

	_, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ann@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, &dto.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := f.svc.Login(ctx, &dto.LoginRequest{Email: "ANN@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotNil(t, resp.User.LastLoginAt)

	claims, err := f.jwt.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, middleware.TokenTypeAccess, claims.Subject)

	// access token 不能用来刷新
	_, err = f.svc.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: resp.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidToken)

	refreshed, err := f.svc.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
}

// ==================== 找回密码 ====================

func TestAuthService_ForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signupVerified(t, "ann@example.com", "password123")

	require.NoError(t, f.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "ghost@example.com"}))
	require.NoError(t, f.svc.ForgotPassword(ctx, &dto.ForgotPasswordRequest{Email: "ann@example.com"}))
	assert.Equal(t, 2, f.mail.count()) // 注册 + 重置

	err := f.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Email: "ann@example.com", OTP: testOTP, NewPassword: "newpassword1"})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, &dto.LoginRequest{Email: "ann@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, &dto.LoginRequest{Email: "ann@example.com", Password: "newpassword1"})
	assert.NoError(t, err)

	// 验证码只能用一次
	err = f.svc.ResetPassword(ctx, &dto.ResetPasswordRequest{Email: "ann@example.com", OTP: testOTP, NewPassword: "another-pass"})
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestAuthService_Me(t *testing.T) {
	f := newAuthFixture(t)
	user := f.signupVerified(t, "ann@example.com", "password123")

	me, err := f.svc.Me(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, me.IsVerified)

	_, err = f.svc.Me(context.Background(), 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// ==================== 验证码 ====================

func TestOTPStore_LocksAfterMaxAttempts(t *testing.T) {
	store := NewOTPStore(kv.NewMemoryStore(), time.Minute, 3)
	store.generate = func() (string, error) { return testOTP, nil }
	ctx := context.Background()

	_, err := store.Issue(ctx, OTPPurposeVerify, "ann@example.com")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Verify(ctx, OTPPurposeVerify, "ann@example.com", "111111"), ErrInvalidOTP)
	assert.ErrorIs(t, store.Verify(ctx, OTPPurposeVerify, "ann@example.com", "222222"), ErrInvalidOTP)
	assert.ErrorIs(t, store.Verify(ctx, OTPPurposeVerify, "ann@example.com", "333333"), ErrTooManyAttempts)
	// 已作废，正确的码也不再有效
	assert.ErrorIs(t, store.Verify(ctx, OTPPurposeVerify, "ann@example.com", testOTP), ErrInvalidOTP)
}

func TestOTPStore_PurposesAreIndependent(t *testing.T) {
	store := NewOTPStore(kv.NewMemoryStore(), time.Minute, 5)
	store.generate = func() (string, error) { return testOTP, nil }
	ctx := context.Background()

	_, err := store.Issue(ctx, OTPPurposeReset, "ann@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, store.Verify(ctx, OTPPurposeVerify, "ann@example.com", testOTP), ErrInvalidOTP)
	assert.NoError(t, store.Verify(ctx, OTPPurposeReset, "ANN@example.com", testOTP))
}

func TestOTPStore_WrongGuessKeepsOriginalExpiry(t *testing.T) {
	store := NewOTPStore(kv.NewMemoryStore(), 10*time.Minute, 5)
	store.generate = func() (string, error) { return testOTP, nil }
	issuedAt := time.Now()
	store.now = func() time.Time { return issuedAt }
	ctx := context.Background()

	_, err := store.Issue(ctx, OTPPurposeVerify, "ann@example.com")
	require.NoError(t, err)

	store.now = func() time.Time { return issuedAt.Add(9 * time.Minute) }
	assert.ErrorIs(t, store.Verify(ctx, OTPPurposeVerify, "ann@example.com", "111111"), ErrInvalidOTP)

	// 原有效期已过，错误重试没有续期
	store.now = func() time.Time { return issuedAt.Add(11 * time.Minute) }
	assert.ErrorIs(t, store.Verify(ctx, OTPPurposeVerify, "ann@example.com", testOTP), ErrInvalidOTP)
}
