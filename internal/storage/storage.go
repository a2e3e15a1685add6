package storage

import (
	"errors"

	"chatrelay/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户不存在错误
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 邮箱地址已被注册错误
	ErrEmailExists = errors.New("email already registered")
)

// MailboxStore 定义按收件人缓冲未投递消息的存储操作。
//
// Append 与 Drain 针对同一收件人必须是可线性化的：任何一次
// Append 的消息要么出现在其后某次 Drain 的结果里，要么出现在
// Drain 之后新建的队列里，既不会丢失也不会重复。
type MailboxStore interface {
	Append(recipient string, message domain.Message)
	Drain(recipient string) []domain.Message
	PendingRecipients() int
	PendingMessages() int
}

// AccountRepository 定义账户数据存取操作。
type AccountRepository interface {
	CreateUser(user *domain.User) error
	GetUser(email string) (*domain.User, error)
	UserExists(email string) bool
	UpdateUser(user *domain.User) error
	ChangeEmail(oldEmail, newEmail string) error
}

// Store 聚合全部存储接口。
type Store interface {
	MailboxStore
	AccountRepository

	// 工具方法
	Close() error
	Health() error
}
