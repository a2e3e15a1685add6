package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/backend/internal/storage/memory"
)

func testLimits() Limits {
	return Limits{
		MaxEmailLength:    256,
		MaxPasswordLength: 100,
	}
}

func TestAuthService_Register(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	user, err := service.Register("alice@example.com", "Password123!")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.SharedSecret)
	assert.NotEqual(t, "Password123!", user.PasswordHash)

	// 明文密码可以通过凭证校验
	assert.True(t, service.Verify("alice@example.com", "Password123!"))
	assert.False(t, service.Verify("alice@example.com", "wrong"))
}

func TestAuthService_Register_Validation(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	t.Run("缺少邮箱", func(t *testing.T) {
		_, err := service.Register("", "password")
		assert.ErrorIs(t, err, ErrMissingEmail)
	})

	t.Run("缺少密码", func(t *testing.T) {
		_, err := service.Register("alice@example.com", "")
		assert.ErrorIs(t, err, ErrMissingPassword)
	})

	t.Run("邮箱超长", func(t *testing.T) {
		long := strings.Repeat("a", 250) + "@example.com"
		_, err := service.Register(long, "password")
		assert.ErrorIs(t, err, ErrEmailTooLong)
	})

	t.Run("密码超长", func(t *testing.T) {
		_, err := service.Register("alice@example.com", strings.Repeat("p", 101))
		assert.ErrorIs(t, err, ErrPasswordTooLong)
	})

	t.Run("重复注册", func(t *testing.T) {
		_, err := service.Register("bob@example.com", "password")
		require.NoError(t, err)
		_, err = service.Register("bob@example.com", "password")
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	})
}

func TestAuthService_Directory(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	_, err := service.Register("alice@example.com", "password")
	require.NoError(t, err)

	assert.True(t, service.Exists("alice@example.com"))
	assert.False(t, service.Exists("carol@example.com"))

	// 未注册身份的凭证校验直接失败
	assert.False(t, service.Verify("carol@example.com", "password"))
}

func TestAuthService_ResetPassword(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	_, err := service.Register("alice@example.com", "OldPassword")
	require.NoError(t, err)

	newPassword, err := service.ResetPassword("alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, newPassword)

	// 旧密码失效，新密码生效
	assert.False(t, service.Verify("alice@example.com", "OldPassword"))
	assert.True(t, service.Verify("alice@example.com", newPassword))

	_, err = service.ResetPassword("ghost@example.com")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

// 凭证校验和密码重置可以并发执行:校验读到的始终是某个完整的
// 哈希快照,不会读到写到一半的账户记录。配合 -race 运行。
func TestAuthService_ConcurrentVerifyAndReset(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	_, err := service.Register("alice@example.com", "InitialPassword")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_, err := service.ResetPassword("alice@example.com")
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < 10; i++ {
		// 结果不定(取决于重置进度),但调用本身必须安全
		service.Verify("alice@example.com", "InitialPassword")
	}
	<-done
}

func TestAuthService_ChangePassword(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	_, err := service.Register("alice@example.com", "OldPassword")
	require.NoError(t, err)

	t.Run("修改密码成功", func(t *testing.T) {
		err := service.ChangePassword("alice@example.com", "NewPassword")
		require.NoError(t, err)
		assert.True(t, service.Verify("alice@example.com", "NewPassword"))
		assert.False(t, service.Verify("alice@example.com", "OldPassword"))
	})

	t.Run("长度校验针对提交的新密码", func(t *testing.T) {
		err := service.ChangePassword("alice@example.com", strings.Repeat("p", 101))
		assert.ErrorIs(t, err, ErrPasswordTooLong)
		// 原密码不受影响
		assert.True(t, service.Verify("alice@example.com", "NewPassword"))
	})

	t.Run("未知账户", func(t *testing.T) {
		err := service.ChangePassword("ghost@example.com", "whatever")
		assert.ErrorIs(t, err, ErrUnknownUser)
	})
}

func TestAuthService_ChangeEmail(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	_, err := service.Register("alice@example.com", "password")
	require.NoError(t, err)
	_, err = service.Register("bob@example.com", "password")
	require.NoError(t, err)

	t.Run("迁移成功", func(t *testing.T) {
		err := service.ChangeEmail("alice@example.com", "alice2@example.com")
		require.NoError(t, err)
		assert.False(t, service.Exists("alice@example.com"))
		assert.True(t, service.Exists("alice2@example.com"))
		// 凭证跟随账户迁移
		assert.True(t, service.Verify("alice2@example.com", "password"))
	})

	t.Run("新地址已被注册", func(t *testing.T) {
		err := service.ChangeEmail("alice2@example.com", "bob@example.com")
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	})

	t.Run("新地址超长", func(t *testing.T) {
		long := strings.Repeat("a", 250) + "@example.com"
		err := service.ChangeEmail("alice2@example.com", long)
		assert.ErrorIs(t, err, ErrEmailTooLong)
	})
}

func TestAuthService_RotateSharedSecret(t *testing.T) {
	store := memory.NewStore()
	service := NewService(store, testLimits())

	user, err := service.Register("alice@example.com", "password")
	require.NoError(t, err)
	original := user.SharedSecret

	rotated, err := service.RotateSharedSecret("alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, rotated)
	assert.NotEqual(t, original, rotated)

	stored, err := service.GetUser("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, rotated, stored.SharedSecret)

	_, err = service.RotateSharedSecret("ghost@example.com")
	assert.ErrorIs(t, err, ErrUnknownUser)
}
