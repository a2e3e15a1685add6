package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatrelay/backend/internal/auth/jwt"
	"chatrelay/backend/internal/domain"
)

// IdentityKey 认证通过后写入 gin 上下文的身份键
const IdentityKey = "identity"

// CredentialVerifier 校验邮箱加密码组合
type CredentialVerifier interface {
	Verify(email, password string) bool
}

// AuthDecision 认证结果。通过时携带身份,否则携带拒绝原因。
type AuthDecision struct {
	Authorized bool
	Identity   string
	Reason     string
}

// Authorized 构造通过的认证结果
func Authorized(identity string) AuthDecision {
	return AuthDecision{Authorized: true, Identity: identity}
}

// Unauthorized 构造拒绝的认证结果
func Unauthorized(reason string) AuthDecision {
	return AuthDecision{Reason: reason}
}

// AuthGate 统一的请求认证关卡,同时接受 HTTP Basic(邮箱+密码)
// 和 Bearer(JWT 访问令牌)两种凭证。
type AuthGate struct {
	credentials CredentialVerifier
	jwtManager  *jwt.Manager
	log         *zap.Logger
}

// NewAuthGate 创建认证关卡
func NewAuthGate(credentials CredentialVerifier, jwtManager *jwt.Manager, log *zap.Logger) *AuthGate {
	return &AuthGate{
		credentials: credentials,
		jwtManager:  jwtManager,
		log:         log,
	}
}

// Decide 对单个请求做认证裁决,不写任何响应。
// 通过时携带的身份已归一化,下游以它作为信箱键可直接使用。
func (ag *AuthGate) Decide(c *gin.Context) AuthDecision {
	// Basic 凭证优先:原始客户端只会用这种方式
	if email, password, ok := c.Request.BasicAuth(); ok {
		if !ag.credentials.Verify(email, password) {
			return Unauthorized("invalid credentials")
		}
		return Authorized(domain.NormalizeIdentity(email))
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			claims, err := ag.jwtManager.ValidateToken(parts[1])
			if err != nil {
				return Unauthorized("invalid or expired token")
			}
			return Authorized(domain.NormalizeIdentity(claims.Identity))
		}
	}

	return Unauthorized("authentication required")
}

// RequireAuth 要求请求通过认证,否则以 401 拒绝
func (ag *AuthGate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := ag.Decide(c)
		if !decision.Authorized {
			ag.log.Warn("认证失败",
				zap.String("reason", decision.Reason),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.Header("WWW-Authenticate", `Basic realm="chatrelay"`)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": decision.Reason,
			})
			c.Abort()
			return
		}

		c.Set(IdentityKey, decision.Identity)
		c.Next()
	}
}

// Identity 从 gin 上下文取出认证身份
func Identity(c *gin.Context) string {
	identity, _ := c.Get(IdentityKey)
	s, _ := identity.(string)
	return s
}
