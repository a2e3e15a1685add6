package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chatrelay/backend/internal/domain"
	"chatrelay/backend/internal/storage"
)

var (
	// ErrMissingEmail 缺少邮箱地址
	ErrMissingEmail = errors.New("no email address")
	// ErrMissingPassword 缺少密码
	ErrMissingPassword = errors.New("no password")
	// ErrEmailTooLong 邮箱地址超过最大长度
	ErrEmailTooLong = errors.New("email address exceeds maximum length")
	// ErrPasswordTooLong 密码超过最大长度
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
	// ErrAlreadyRegistered 邮箱已被注册
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrUnknownUser 账户不存在
	ErrUnknownUser = errors.New("unknown email address")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Limits 账户字段的长度上限，由配置注入。
type Limits struct {
	MaxEmailLength    int
	MaxPasswordLength int
}

// Service 账户与凭证服务。
//
// 同时充当核心消费的身份目录：Exists 回答"该身份是否注册"，
// Verify 校验 (身份, 口令) 凭证对。
type Service struct {
	accounts storage.AccountRepository
	limits   Limits
}

// NewService 创建账户服务。
func NewService(accounts storage.AccountRepository, limits Limits) *Service {
	return &Service{
		accounts: accounts,
		limits:   limits,
	}
}

// Register 注册新账户，返回账户（含一次性共享密钥）。
func (s *Service) Register(email, password string) (*domain.User, error) {
	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validatePassword(password); err != nil {
		return nil, err
	}
	if s.accounts.UserExists(email) {
		return nil, ErrAlreadyRegistered
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		SharedSecret: generateSharedSecret(),
	}

	if err := s.accounts.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Exists 检查身份是否已注册。
func (s *Service) Exists(identity string) bool {
	return s.accounts.UserExists(identity)
}

// Verify 校验 (身份, 口令) 凭证对。
// 账户不存在与口令错误对调用方不可区分。
func (s *Service) Verify(identity, credential string) bool {
	user, err := s.accounts.GetUser(identity)
	if err != nil {
		return false
	}
	return CheckPassword(credential, user.PasswordHash)
}

// GetUser 获取账户信息。
func (s *Service) GetUser(email string) (*domain.User, error) {
	user, err := s.accounts.GetUser(email)
	if err != nil {
		return nil, ErrUnknownUser
	}
	return user, nil
}

// ResetPassword 为账户生成新的随机密码并替换旧密码。
// 返回明文新密码，由调用方通过邮件通知用户，服务端只存哈希。
func (s *Service) ResetPassword(email string) (string, error) {
	user, err := s.accounts.GetUser(email)
	if err != nil {
		return "", ErrUnknownUser
	}

	newPassword, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = hash
	if err := s.accounts.UpdateUser(user); err != nil {
		return "", err
	}
	return newPassword, nil
}

// ChangePassword 修改账户密码。
// 长度校验针对提交的新密码本身。
func (s *Service) ChangePassword(identity, newPassword string) error {
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.accounts.GetUser(identity)
	if err != nil {
		return ErrUnknownUser
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = hash
	return s.accounts.UpdateUser(user)
}

// ChangeEmail 把账户迁移到新的邮箱地址。
func (s *Service) ChangeEmail(identity, newEmail string) error {
	if err := s.validateEmail(newEmail); err != nil {
		return err
	}
	if s.accounts.UserExists(newEmail) {
		return ErrAlreadyRegistered
	}
	if err := s.accounts.ChangeEmail(identity, strings.ToLower(newEmail)); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUnknownUser
		}
		return err
	}
	return nil
}

// RotateSharedSecret 重新生成账户的共享密钥并返回。
func (s *Service) RotateSharedSecret(identity string) (string, error) {
	user, err := s.accounts.GetUser(identity)
	if err != nil {
		return "", ErrUnknownUser
	}

	user.SharedSecret = generateSharedSecret()
	if err := s.accounts.UpdateUser(user); err != nil {
		return "", err
	}
	return user.SharedSecret, nil
}

func (s *Service) validateEmail(email string) error {
	if email == "" {
		return ErrMissingEmail
	}
	if len(email) > s.limits.MaxEmailLength {
		return ErrEmailTooLong
	}
	return nil
}

func (s *Service) validatePassword(password string) error {
	if password == "" {
		return ErrMissingPassword
	}
	if len(password) > s.limits.MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// generateSharedSecret 生成共享密钥。
func generateSharedSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") +
		strings.ReplaceAll(uuid.NewString(), "-", "")
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generatePassword 生成随机密码（密码重置用）。
func generatePassword(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[idx.Int64()]
	}
	return string(b), nil
}
