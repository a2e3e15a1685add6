package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatrelay/backend/internal/auth/jwt"
	"chatrelay/backend/internal/domain"
)

// stubVerifier 只认一组固定凭证,和真实账户目录一样按归一化邮箱查找
type stubVerifier struct{}

func (stubVerifier) Verify(email, password string) bool {
	return domain.NormalizeIdentity(email) == "alice@example.com" && password == "correct"
}

func testGate() *AuthGate {
	manager := jwt.NewManager("test-secret", "chatrelay-test", 15*time.Minute, time.Hour)
	return NewAuthGate(stubVerifier{}, manager, zap.NewNop())
}

func protectedRouter(gate *AuthGate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", gate.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, Identity(c))
	})
	return r
}

func TestAuthGate_BasicCredentials(t *testing.T) {
	r := protectedRouter(testGate())

	t.Run("凭证正确", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.SetBasicAuth("alice@example.com", "correct")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice@example.com", w.Body.String())
	})

	t.Run("大小写变体归一到同一身份", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.SetBasicAuth("Alice@Example.COM", "correct")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice@example.com", w.Body.String())
	})

	t.Run("密码错误", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.SetBasicAuth("alice@example.com", "wrong")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	})
}

func TestAuthGate_BearerToken(t *testing.T) {
	manager := jwt.NewManager("test-secret", "chatrelay-test", 15*time.Minute, time.Hour)
	gate := NewAuthGate(stubVerifier{}, manager, zap.NewNop())
	r := protectedRouter(gate)

	tokens, err := manager.GenerateTokenPair("bob@example.com")
	require.NoError(t, err)

	t.Run("有效令牌", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bob@example.com", w.Body.String())
	})

	t.Run("伪造令牌", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthGate_MissingCredentials(t *testing.T) {
	r := protectedRouter(testGate())

	req := httptest.NewRequest("GET", "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
