package httptransport

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatrelay/backend/internal/auth"
	jwtpkg "chatrelay/backend/internal/auth/jwt"
	"chatrelay/backend/internal/cache"
	"chatrelay/backend/internal/domain"
	"chatrelay/backend/internal/mailer"
	"chatrelay/backend/internal/middleware"
	"chatrelay/backend/internal/monitoring"
)

// resetThrottleWindow 同一邮箱两次密码重置之间的最小间隔
const resetThrottleWindow = time.Minute

// AuthHandler 处理注册、登录等账户入口请求
type AuthHandler struct {
	authService   *auth.Service
	jwtManager    *jwtpkg.Manager
	mail          *mailer.Mailer
	metrics       *monitoring.Metrics
	resetThrottle *cache.TTLCache
	log           *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager, mail *mailer.Mailer, metrics *monitoring.Metrics, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		jwtManager:    jwtManager,
		mail:          mail,
		metrics:       metrics,
		resetThrottle: cache.NewTTLCache(resetThrottleWindow),
		log:           log,
	}
}

type registerRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type resetPasswordRequest struct {
	Email string `json:"email" form:"email" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type userResponse struct {
	Email        string `json:"email"`
	SharedSecret string `json:"sharedSecret,omitempty"`
}

// Register 处理用户注册请求
// @Summary 用户注册
// @Description 创建新账户，返回邮箱和初始共享密钥
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 201 {object} Response "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "邮箱已被注册"
// @Router /v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Register(req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyRegistered):
			Conflict(c, GetErrorMessage(err))
		case errors.Is(err, auth.ErrMissingEmail),
			errors.Is(err, auth.ErrMissingPassword),
			errors.Is(err, auth.ErrEmailTooLong),
			errors.Is(err, auth.ErrPasswordTooLong):
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("注册失败", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	h.metrics.RecordUserRegistered()
	h.log.Info("用户已注册", zap.String("email", user.Email))

	Created(c, userResponse{
		Email:        user.Email,
		SharedSecret: user.SharedSecret,
	})
}

// ResetPassword 处理密码重置请求。
// 为账户生成新随机密码并通过邮件告知。
// @Summary 重置密码
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body resetPasswordRequest true "目标邮箱"
// @Success 200 {object} Response "新密码已发送"
// @Failure 400 {object} Response "邮箱未注册"
// @Failure 429 {object} Response "重置过于频繁"
// @Router /v1/auth/reset_password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	// 防止滥用重置接口反复触发发信。限流键归一化,大小写变体不绕过窗口
	throttleKey := domain.NormalizeIdentity(req.Email)
	if _, throttled := h.resetThrottle.Get(throttleKey); throttled {
		TooManyRequests(c, "重置过于频繁,请稍后再试")
		return
	}

	newPassword, err := h.authService.ResetPassword(req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownUser) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("密码重置失败", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.resetThrottle.Set(throttleKey, struct{}{}, 0)
	h.mail.SendPasswordReset(req.Email, newPassword)
	h.log.Info("密码已重置", zap.String("email", req.Email))

	SuccessWithMsg(c, "新密码已通过邮件发送", nil)
}

// Login 处理登录请求,凭证正确时签发 JWT 令牌对
// @Summary 用户登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录凭证"
// @Success 200 {object} Response "登录成功"
// @Failure 401 {object} Response "凭证错误"
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if !h.authService.Verify(req.Email, req.Password) {
		Unauthorized(c, MsgInvalidCredentials)
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(req.Email)
	if err != nil {
		h.log.Error("签发令牌失败", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.log.Info("用户已登录", zap.String("email", req.Email))

	Success(c, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Refresh 用刷新令牌换取新的访问令牌
// @Summary 刷新访问令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body refreshRequest true "刷新令牌"
// @Success 200 {object} Response "刷新成功"
// @Failure 401 {object} Response "刷新令牌无效"
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		Unauthorized(c, MsgTokenInvalid)
		return
	}

	Success(c, gin.H{"accessToken": accessToken})
}

// Me 返回当前认证身份的账户信息
// @Summary 当前用户
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response "账户信息"
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity := middleware.Identity(c)

	user, err := h.authService.GetUser(identity)
	if err != nil {
		NotFound(c, GetErrorMessage(err))
		return
	}

	Success(c, userResponse{Email: user.Email})
}
