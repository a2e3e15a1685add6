package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chatrelay/backend/internal/auth"
	jwtpkg "chatrelay/backend/internal/auth/jwt"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/health"
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/mailer"
	"chatrelay/backend/internal/monitoring"
	"chatrelay/backend/internal/notify"
	"chatrelay/backend/internal/service"
	"chatrelay/backend/internal/storage/memory"
	httptransport "chatrelay/backend/internal/transport/http"
)

// main 启动消息中继服务:HTTP API、WebSocket 推送与监控。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting chatrelay server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 存储层:账户目录加信箱,全部驻留内存,重启即清空
	store := memory.NewStore()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)

	alertManager := monitoring.NewAlertManager(log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0)) // 512MB
	alertManager.AddRule(monitoring.MailboxBacklogRule(store, 100000))
	alertManager.AddRule(monitoring.StoreHealthRule(store))

	log.Info("monitoring system initialized")

	// 认证与令牌
	authService := auth.NewService(store, auth.Limits{
		MaxEmailLength:    cfg.Account.MaxEmailLength,
		MaxPasswordLength: cfg.Account.MaxPasswordLength,
	})
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	// WebSocket 推送 Hub
	hub := notify.NewHub(cfg.CORS.AllowedOrigins, jwtManager, log)

	// 消息服务:准入校验 + 推送或信箱暂存
	messageService := service.NewMessageService(
		service.NewAdmissionService(authService),
		service.NewDeliveryService(store, hub, log),
	)

	// 外发邮件(密码重置通知)
	mail := mailer.New(mailer.Config{
		Enabled:  cfg.Mailer.Enabled,
		Host:     cfg.Mailer.Host,
		Port:     cfg.Mailer.Port,
		Username: cfg.Mailer.Username,
		Password: cfg.Mailer.Password,
		From:     cfg.Mailer.From,
	}, log)
	defer mail.Close()

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		AuthService:    authService,
		MessageService: messageService,
		JWTManager:     jwtManager,
		Mailer:         mail,
		Hub:            hub,
		Metrics:        metrics,
		Logger:         log,
	})

	// 健康检查处理器(用于 Kubernetes 等)
	router.GET("/health/live", gin.WrapH(healthChecker.Handler()))
	router.GET("/health/ready", gin.WrapH(healthChecker.Handler()))

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	startedAt := time.Now()

	// 后台发信协程
	mail.Start(groupCtx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting push hub")
		hub.Run(groupCtx)
		return nil
	})

	// 周期性刷新系统与积压指标 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				metrics.UpdatePendingMessages(store.PendingMessages())
				metrics.UpdatePendingRecipients(store.PendingRecipients())
				metrics.UpdateUsersOnline(hub.OnlineCount())
				metrics.UpdateSystemUptime(time.Since(startedAt))

				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				metrics.UpdateMemoryUsage(int64(m.Alloc))
			}
		}
	})

	// 告警监控 goroutine
	group.Go(func() error {
		log.Info("starting alert monitoring")
		alertManager.StartMonitoring(groupCtx, 1*time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if err := store.Close(); err != nil {
			log.Warn("store close warning", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
