package domain

import (
	"strings"
	"time"
)

// User 表示一个可以收发消息的注册账户。
// Email 同时是账户主键与消息路由的身份标识。
type User struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // bcrypt 哈希，永不外泄
	SharedSecret string    `json:"-"` // 客户端共享密钥，仅在创建/轮换时返回一次
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeIdentity 把邮箱身份归一到规范形式(去空白、小写)。
// 账户目录、信箱键和认证身份必须统一经过这里，
// 否则同一账户的大小写变体会被当成不同收件人。
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
