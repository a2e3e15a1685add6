package memory

import (
	"sync"
	"time"

	"chatrelay/backend/internal/domain"
	"chatrelay/backend/internal/storage"
)

// Store 使用内存保存账户与未投递消息，进程生命周期内有效。
// 重启丢失全部状态，这是文档化的已知限制。
type Store struct {
	mailboxes *MailboxStore

	mu    sync.RWMutex
	users map[string]*domain.User // email -> user
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes: NewMailboxStore(),
		users:     make(map[string]*domain.User),
	}
}

// Append 把消息追加到收件人的缓冲队列。
func (s *Store) Append(recipient string, message domain.Message) {
	s.mailboxes.Append(recipient, message)
}

// Drain 原子地取走收件人的全部缓冲消息。
func (s *Store) Drain(recipient string) []domain.Message {
	return s.mailboxes.Drain(recipient)
}

// PendingRecipients 返回有未投递消息的收件人数量。
func (s *Store) PendingRecipients() int {
	return s.mailboxes.PendingRecipients()
}

// PendingMessages 返回缓冲中的消息总数。
func (s *Store) PendingMessages() int {
	return s.mailboxes.PendingMessages()
}

// CreateUser 创建新账户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(user.Email)
	if _, exists := s.users[key]; exists {
		return storage.ErrEmailExists
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	// 存副本,调用方保留的指针不会穿透到存储内部
	stored := *user
	s.users[key] = &stored
	return nil
}

// GetUser 根据邮箱地址获取账户。
// 返回的是副本:调用方修改结果不影响存储内的记录,
// 修改只有经 UpdateUser 提交后才生效。
func (s *Store) GetUser(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[normalizeEmail(email)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// UserExists 检查邮箱地址是否已注册。
func (s *Store) UserExists(email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[normalizeEmail(email)]
	return ok
}

// UpdateUser 更新账户信息。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(user.Email)
	if _, ok := s.users[key]; !ok {
		return storage.ErrUserNotFound
	}

	updated := *user
	updated.UpdatedAt = time.Now().UTC()
	s.users[key] = &updated
	return nil
}

// ChangeEmail 把账户迁移到新的邮箱地址。
// 新地址已被占用时返回 ErrEmailExists，旧账户保持不变。
func (s *Store) ChangeEmail(oldEmail, newEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey := normalizeEmail(oldEmail)
	newKey := normalizeEmail(newEmail)

	user, ok := s.users[oldKey]
	if !ok {
		return storage.ErrUserNotFound
	}
	if _, taken := s.users[newKey]; taken {
		return storage.ErrEmailExists
	}

	delete(s.users, oldKey)
	user.Email = newEmail
	user.UpdatedAt = time.Now().UTC()
	s.users[newKey] = user
	return nil
}

// Close 关闭存储连接。内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}

// Health 健康检查。内存存储总是健康的。
func (s *Store) Health() error {
	return nil
}

// normalizeEmail 邮箱键统一走身份归一化。
func normalizeEmail(email string) string {
	return domain.NormalizeIdentity(email)
}
