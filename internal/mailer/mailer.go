package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"chatrelay/backend/internal/pool"
)

// Config 外发邮件配置
type Config struct {
	Enabled  bool   // 关闭时只记录日志,不真正发信
	Host     string // SMTP 服务器地址
	Port     int    // SMTP 服务器端口
	Username string // SMTP 认证用户名,留空表示不认证
	Password string // SMTP 认证密码
	From     string // 发件人地址
}

// Mailer 通过上游 SMTP 服务器发送系统邮件(目前只有密码重置通知)。
// 真正的发信在后台任务池中执行,不阻塞请求处理。
type Mailer struct {
	config Config
	logger *zap.Logger
	pool   *pool.WorkerPool
}

// New 创建邮件发送器
func New(config Config, logger *zap.Logger) *Mailer {
	return &Mailer{
		config: config,
		logger: logger,
		pool:   pool.NewWorkerPool(2, 64, logger),
	}
}

// Start 启动后台发信协程
func (m *Mailer) Start(ctx context.Context) {
	m.pool.Start(ctx)
}

// Close 等待已入队的邮件发送完毕
func (m *Mailer) Close() {
	m.pool.Stop()
}

// SendPasswordReset 把新生成的密码发送给用户。
// 发信失败只记日志不返回错误:密码已经重置生效,上层不应因通知失败而回滚。
func (m *Mailer) SendPasswordReset(recipient, newPassword string) {
	if !m.config.Enabled {
		m.logger.Info("邮件发送已禁用,跳过密码重置通知",
			zap.String("recipient", recipient))
		return
	}

	body := buildPasswordResetMail(m.config.From, recipient, newPassword, time.Now())

	if !m.pool.TrySubmit(func() { m.send(recipient, body) }) {
		// 队列打满说明 SMTP 上游已经出问题,改为同步发送兜底
		m.logger.Warn("邮件队列已满,改为同步发送", zap.String("recipient", recipient))
		m.send(recipient, body)
	}
}

// send 连接 SMTP 服务器投递一封邮件
func (m *Mailer) send(recipient, body string) {
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var auth sasl.Client
	if m.config.Username != "" {
		auth = sasl.NewPlainClient("", m.config.Username, m.config.Password)
	}

	if err := smtp.SendMail(addr, auth, m.config.From, []string{recipient}, strings.NewReader(body)); err != nil {
		m.logger.Error("密码重置邮件发送失败",
			zap.String("recipient", recipient),
			zap.Error(err))
		return
	}

	m.logger.Info("密码重置邮件已发送", zap.String("recipient", recipient))
}

// buildPasswordResetMail 组装密码重置邮件原文
func buildPasswordResetMail(from, to, newPassword string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: Your password has been reset\r\n")
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your password has been reset. Your new password is:\r\n\r\n%s\r\n\r\n", newPassword)
	b.WriteString("Please change it after your next login.\r\n")
	return b.String()
}
