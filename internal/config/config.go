package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// AccountConfig 定义账户字段的长度上限
type AccountConfig struct {
	MaxEmailLength    int // 邮箱地址最大长度，默认 256
	MaxPasswordLength int // 密码最大长度，默认 100
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "chatrelay"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// MailerConfig 定义外发邮件 (密码重置通知) 配置
type MailerConfig struct {
	Enabled  bool   // 是否真正发信，默认关闭
	Host     string // 上游 SMTP 服务器地址
	Port     int    // 上游 SMTP 服务器端口，默认 587
	Username string // SMTP 认证用户名
	Password string // SMTP 认证密码
	From     string // 发件人地址
}

// RateLimitConfig 定义 HTTP 限流配置
type RateLimitConfig struct {
	Enabled bool    // 是否启用限流，默认开启
	RPS     float64 // 每个客户端每秒允许的请求数
	Burst   int     // 突发容量
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig    // HTTP 服务器配置
	Account   AccountConfig   // 账户字段限制
	CORS      CORSConfig      // 跨域配置
	Log       LogConfig       // 日志配置
	JWT       JWTConfig       // JWT 认证配置
	Mailer    MailerConfig    // 外发邮件配置
	RateLimit RateLimitConfig // 限流配置
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: CHATRELAY_
// 例如: CHATRELAY_SERVER_HOST, CHATRELAY_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("chatrelay")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("account.max_email_length", 256)
	viper.SetDefault("account.max_password_length", 100)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "chatrelay")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("mailer.enabled", false)
	viper.SetDefault("mailer.host", "localhost")
	viper.SetDefault("mailer.port", 587)
	viper.SetDefault("mailer.username", "")
	viper.SetDefault("mailer.password", "")
	viper.SetDefault("mailer.from", "noreply@chatrelay.local")
	viper.SetDefault("ratelimit.enabled", true)
	viper.SetDefault("ratelimit.rps", 20)
	viper.SetDefault("ratelimit.burst", 40)

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set CHATRELAY_JWT_SECRET environment variable")
	}

	// JWT secret 必须至少 32 字符
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	maxEmailLength := viper.GetInt("account.max_email_length")
	if maxEmailLength <= 0 {
		maxEmailLength = 256
	}

	maxPasswordLength := viper.GetInt("account.max_password_length")
	if maxPasswordLength <= 0 {
		maxPasswordLength = 100
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Account: AccountConfig{
			MaxEmailLength:    maxEmailLength,
			MaxPasswordLength: maxPasswordLength,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Mailer: MailerConfig{
			Enabled:  viper.GetBool("mailer.enabled"),
			Host:     viper.GetString("mailer.host"),
			Port:     viper.GetInt("mailer.port"),
			Username: viper.GetString("mailer.username"),
			Password: viper.GetString("mailer.password"),
			From:     viper.GetString("mailer.from"),
		},
		RateLimit: RateLimitConfig{
			Enabled: viper.GetBool("ratelimit.enabled"),
			RPS:     viper.GetFloat64("ratelimit.rps"),
			Burst:   viper.GetInt("ratelimit.burst"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
