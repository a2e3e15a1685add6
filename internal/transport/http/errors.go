package httptransport

import (
	"chatrelay/backend/internal/auth"
	"chatrelay/backend/internal/service"
	"chatrelay/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 准入错误
	service.ErrUnknownSender:    "发件人未注册",
	service.ErrMissingRecipient: "缺少收件人",
	service.ErrUnknownRecipient: "收件人未注册",
	service.ErrMissingTimestamp: "缺少时间戳或时间戳格式错误",
	service.ErrMissingBody:      "消息正文不能为空",
	service.ErrStaleTimestamp:   "时间戳超出接受窗口",

	// 账户错误
	auth.ErrMissingEmail:       "邮箱不能为空",
	auth.ErrMissingPassword:    "密码不能为空",
	auth.ErrEmailTooLong:       "邮箱超过长度限制",
	auth.ErrPasswordTooLong:    "密码超过长度限制",
	auth.ErrAlreadyRegistered:  "该邮箱已被注册",
	auth.ErrUnknownUser:        "用户不存在",
	auth.ErrInvalidCredentials: "用户名或密码错误",

	// 存储错误
	storage.ErrUserNotFound: "用户不存在",
	storage.ErrEmailExists:  "该邮箱已被占用",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgTokenInvalid       = "无效的访问令牌"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
