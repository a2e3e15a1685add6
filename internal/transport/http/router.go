package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"chatrelay/backend/internal/auth"
	jwtpkg "chatrelay/backend/internal/auth/jwt"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/mailer"
	"chatrelay/backend/internal/middleware"
	"chatrelay/backend/internal/monitoring"
	"chatrelay/backend/internal/notify"
	"chatrelay/backend/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AuthService    *auth.Service
	MessageService *service.MessageService
	JWTManager     *jwtpkg.Manager
	Mailer         *mailer.Mailer
	Hub            *notify.Hub
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitoringMW := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)

	router.Use(monitoringMW.PanicRecovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(monitoringMW.HTTPMetrics())
	router.Use(monitoringMW.RateLimitMetrics())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Config.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(deps.Config.RateLimit.RPS, deps.Config.RateLimit.Burst)
		router.Use(rateLimiter.Limit())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 允许所有来源时必须关闭凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.Mailer, deps.Metrics, deps.Logger)
	accountHandler := NewAccountHandler(deps.AuthService, deps.Logger)
	messageHandler := NewMessageHandler(deps.MessageService, deps.Metrics, deps.Logger)

	authGate := middleware.NewAuthGate(deps.AuthService, deps.JWTManager, deps.Logger)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	// WebSocket 实时推送
	router.GET("/v1/ws", notify.HandleWebSocket(deps.Hub))

	// V1 API
	v1 := router.Group("/v1")
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/reset_password", authHandler.ResetPassword)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.GET("/me", authGate.RequireAuth(), authHandler.Me)
		}

		// ========== Account Routes ==========
		accountRoutes := v1.Group("/account", authGate.RequireAuth())
		{
			accountRoutes.POST("/change_email", accountHandler.ChangeEmail)
			accountRoutes.POST("/change_password", accountHandler.ChangePassword)
			accountRoutes.POST("/rotate_secret", accountHandler.RotateSecret)
		}

		// ========== Message Routes ==========
		messageRoutes := v1.Group("/messages", authGate.RequireAuth())
		{
			messageRoutes.POST("", messageHandler.Submit)
			messageRoutes.POST("/poll", messageHandler.Poll)
		}
	}

	return router
}
