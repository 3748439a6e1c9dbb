package controller

import (
	"github.com/gin-gonic/gin"

	"shop_insight_v1/internal/api/dto"
	"shop_insight_v1/internal/middleware"
	"shop_insight_v1/internal/service"
)

type AuthController struct {
	authService *service.AuthService
}

func NewAuthController(s *service.AuthService) *AuthController {
	return &AuthController{authService: s}
}

// Signup
// @Summary 注册
// @Description 创建未验证用户并发送 6 位验证码；tenant_name 不为空时同时创建租户
// @Tags Auth (认证)
// @Accept json
// @Produce json
// @Param request body dto.SignupRequest true "注册信息"
// @Success 201 {object} Response{data=dto.UserInfo}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "邮箱已注册"
// @Router /api/auth/signup [post]
func (ctrl *AuthController) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	user, err := ctrl.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, user)
}

// VerifyEmail
// @Summary 验证邮箱
// @Tags Auth (认证)
// @Accept json
// @Produce json
// @Param request body dto.VerifyEmailRequest true "邮箱与验证码"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse "验证码错误或过期"
// @Failure 429 {object} ErrorResponse "错误次数过多"
// @Router /api/auth/verify-email [post]
func (ctrl *AuthController) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	if err := ctrl.authService.VerifyEmail(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"message": "email verified"})
}

// ResendOTP
// @Summary 重发验证码
// @Tags Auth (认证)
// @Accept json
// @Produce json
// @Param request body dto.ResendOTPRequest true "邮箱与用途"
// @Success 200 {object} Response
// @Router /api/auth/resend-otp [post]
func (ctrl *AuthController) ResendOTP(c *gin.Context) {
	var req dto.ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	if err := ctrl.authService.ResendOTP(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"message": "if the account exists, a code has been sent"})
}

// Login
// @Summary 登录
// @Tags Auth (认证)
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "邮箱密码"
// @Success 200 {object} Response{data=dto.LoginResponse}
// @Failure 401 {object} ErrorResponse "邮箱或密码错误"
// @Failure 403 {object} ErrorResponse "邮箱未验证"
// @Router /api/auth/login [post]
func (ctrl *AuthController) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.authService.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// RefreshToken
// @Summary 刷新 Token
// @Tags Auth (认证)
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "refresh token"
// @Success 200 {object} Response{data=dto.RefreshTokenResponse}
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/refresh [post]
func (ctrl *AuthController) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	resp, err := ctrl.authService.RefreshToken(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, resp)
}

// ForgotPassword
// @Summary 找回密码
// @Description 无论邮箱是否存在都返回成功
// @Tags Auth (认证)
// @Accept json
// @Produce json
// @Param request body dto.ForgotPasswordRequest true "邮箱"
// @Success 200 {object} Response
// @Router /api/auth/forgot-password [post]
func (ctrl *AuthController) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	if err := ctrl.authService.ForgotPassword(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"message": "if the account exists, a reset code has been sent"})
}

// ResetPassword
// @Summary 重置密码
// @Tags Auth (认证)
// @Accept json
// @Produce json
// @Param request body dto.ResetPasswordRequest true "邮箱、验证码与新密码"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/auth/reset-password [post]
func (ctrl *AuthController) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	if err := ctrl.authService.ResetPassword(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	success(c, gin.H{"message": "password updated"})
}

// Me
// @Summary 当前用户
// @Tags Auth (认证)
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=dto.UserInfo}
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/me [get]
func (ctrl *AuthController) Me(c *gin.Context) {
	user, err := ctrl.authService.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, user)
}
