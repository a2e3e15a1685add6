package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatrelay/backend/internal/auth"
	"chatrelay/backend/internal/middleware"
)

// AccountHandler 处理已认证账户的自助管理请求
type AccountHandler struct {
	authService *auth.Service
	log         *zap.Logger
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(authService *auth.Service, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		authService: authService,
		log:         log,
	}
}

type changeEmailRequest struct {
	NewEmail string `json:"new_email" form:"new_email" binding:"required"`
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password" form:"new_password" binding:"required"`
}

// ChangeEmail 把当前账户迁移到新邮箱地址
// @Summary 修改邮箱
// @Tags 账户
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param request body changeEmailRequest true "新邮箱"
// @Success 200 {object} Response "修改成功"
// @Failure 400 {object} Response "新邮箱无效"
// @Failure 409 {object} Response "新邮箱已被注册"
// @Router /v1/account/change_email [post]
func (h *AccountHandler) ChangeEmail(c *gin.Context) {
	identity := middleware.Identity(c)

	var req changeEmailRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.ChangeEmail(identity, req.NewEmail); err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyRegistered):
			Conflict(c, "新邮箱已被注册")
		case errors.Is(err, auth.ErrMissingEmail), errors.Is(err, auth.ErrEmailTooLong):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, auth.ErrUnknownUser):
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("修改邮箱失败", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	h.log.Info("邮箱已修改",
		zap.String("old_email", identity),
		zap.String("new_email", req.NewEmail),
	)
	SuccessWithMsg(c, "邮箱已修改", nil)
}

// ChangePassword 修改当前账户的密码。长度校验针对提交的新密码。
// @Summary 修改密码
// @Tags 账户
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param request body changePasswordRequest true "新密码"
// @Success 200 {object} Response "修改成功"
// @Failure 400 {object} Response "新密码无效"
// @Router /v1/account/change_password [post]
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	identity := middleware.Identity(c)

	var req changePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.ChangePassword(identity, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingPassword), errors.Is(err, auth.ErrPasswordTooLong):
			BadRequest(c, GetErrorMessage(err))
		case errors.Is(err, auth.ErrUnknownUser):
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("修改密码失败", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	h.log.Info("密码已修改", zap.String("email", identity))
	SuccessWithMsg(c, "密码已修改", nil)
}

// RotateSecret 为当前账户生成新的共享密钥并作废旧密钥
// @Summary 重置共享密钥
// @Tags 账户
// @Produce json
// @Security BasicAuth
// @Success 200 {object} Response "新共享密钥"
// @Router /v1/account/rotate_secret [post]
func (h *AccountHandler) RotateSecret(c *gin.Context) {
	identity := middleware.Identity(c)

	secret, err := h.authService.RotateSharedSecret(identity)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownUser) {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.log.Error("重置共享密钥失败", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	h.log.Info("共享密钥已重置", zap.String("email", identity))
	Success(c, gin.H{"sharedSecret": secret})
}
