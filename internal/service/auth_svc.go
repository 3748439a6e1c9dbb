package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/model"
	"shop_insight_v1/internal/repository"
	"shop_insight_v1/pkg/mailer"
)

// ==================== AuthService 认证服务 ====================

// AuthService 注册、邮箱验证、登录、找回密码
type AuthService struct {
	userRepo repository.UserRepository
	otp      *OTPStore
	jwt      *middleware.JWTManager
	mailer   mailer.Mailer
	logger   *zap.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	otp *OTPStore,
	jwt *middleware.JWTManager,
	m mailer.Mailer,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		otp:      otp,
		jwt:      jwt,
		mailer:   m,
		logger:   logger.Named("auth"),
	}
}

// ==================== 注册 ====================

// Signup 创建未验证用户并发送验证码
func (s *AuthService) Signup(ctx context.Context, req *dto.SignupRequest) (*dto.UserInfo, error) {
	email := normalizeEmail(req.Email)
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         model.RoleOwner,
	}
	var tenant *model.Tenant
	if name := strings.TrimSpace(req.TenantName); name != "" {
		tenant = &model.Tenant{Name: name}
	}
	// 用户与租户同一事务，任一失败都不留下半成品
	if err := s.userRepo.CreateWithTenant(ctx, user, tenant); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	s.sendOTP(ctx, OTPPurposeVerify, user.Email)
	return toUserInfo(user), nil
}

// VerifyEmail 校验注册验证码
func (s *AuthService) VerifyEmail(ctx context.Context, req *dto.VerifyEmailRequest) error {
	user, err := s.findUser(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidOTP
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if err := s.otp.Verify(ctx, OTPPurposeVerify, user.Email, req.OTP); err != nil {
		return err
	}
	return s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"is_verified": true})
}

// ResendOTP 重新发送验证码
// 用户不存在或已验证都静默成功，响应不暴露邮箱是否注册
func (s *AuthService) ResendOTP(ctx context.Context, req *dto.ResendOTPRequest) error {
	user, err := s.findUser(ctx, req.Email)
	if err != nil || user == nil {
		return err
	}
	if req.Purpose == OTPPurposeVerify && user.IsVerified {
		return nil
	}
	s.sendOTP(ctx, req.Purpose, user.Email)
	return nil
}

// ==================== 登录 ====================

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.findUser(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}

	accessToken, refreshToken, err := s.jwt.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		s.logger.Warn("update last_login_at failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.jwt.AccessTokenTTL()),
		User:         toUserInfo(user),
	}, nil
}

// RefreshToken 用 refresh token 换新 token 对
func (s *AuthService) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	claims, err := s.jwt.ParseToken(req.RefreshToken)
	if err != nil || claims.Subject != middleware.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := s.jwt.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &dto.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.jwt.AccessTokenTTL()),
	}, nil
}

// ==================== 找回密码 ====================

// ForgotPassword 发送重置验证码；用户不存在也返回成功，避免枚举邮箱
func (s *AuthService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	user, err := s.findUser(ctx, req.Email)
	if err != nil || user == nil {
		return err
	}
	s.sendOTP(ctx, OTPPurposeReset, user.Email)
	return nil
}

// ResetPassword 校验重置验证码并修改密码；邮箱收到验证码同时视为已验证
func (s *AuthService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	user, err := s.findUser(ctx, req.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidOTP
	}

	if err := s.otp.Verify(ctx, OTPPurposeReset, user.Email, req.OTP); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}
	return s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"password_hash": string(hash),
		"is_verified":   true,
	})
}

// ==================== 当前用户 ====================

func (s *AuthService) Me(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

// ==================== 内部方法 ====================

// findUser 不存在时返回 nil, nil
func (s *AuthService) findUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return user, err
}

// sendOTP 发送失败只记日志，用户可以重发
func (s *AuthService) sendOTP(ctx context.Context, purpose, email string) {
	code, err := s.otp.Issue(ctx, purpose, email)
	if err != nil {
		s.logger.Error("issue otp failed", zap.String("purpose", purpose), zap.Error(err))
		return
	}

	subject, body := otpMail(purpose, code)
	if err := s.mailer.Send(ctx, mailer.Message{To: email, Subject: subject, HTMLBody: body}); err != nil {
		s.logger.Error("send otp mail failed", zap.String("purpose", purpose), zap.String("email", email), zap.Error(err))
	}
}

func otpMail(purpose, code string) (subject, body string) {
	if purpose == OTPPurposeReset {
		return "Reset your password",
			fmt.Sprintf("<p>Your password reset code is <b>%s</b>. It expires soon; ignore this mail if you did not ask for it.</p>", code)
	}
	return "Verify your email",
		fmt.Sprintf("<p>Your verification code is <b>%s</b>.</p>", code)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *model.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		TenantID:    u.TenantID,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}
