package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 消息指标
	MessagesSubmitted prometheus.Counter
	MessagesRejected  *prometheus.CounterVec
	MessagesPushed    prometheus.Counter
	MessagesBuffered  prometheus.Counter
	MessagesPolled    prometheus.Counter

	// 信箱积压指标
	PendingMessages   prometheus.Gauge
	PendingRecipients prometheus.Gauge

	// 用户指标
	UsersRegistered prometheus.Counter
	UsersOnline     prometheus.Gauge

	// 系统指标
	SystemUptime prometheus.Gauge
	MemoryUsage  prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatrelay_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		MessagesSubmitted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_messages_submitted_total",
				Help: "Total number of messages accepted for delivery",
			},
		),

		MessagesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_messages_rejected_total",
				Help: "Total number of messages rejected by admission checks",
			},
			[]string{"reason"},
		),

		MessagesPushed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_messages_pushed_total",
				Help: "Total number of messages delivered by realtime push",
			},
		),

		MessagesBuffered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_messages_buffered_total",
				Help: "Total number of messages buffered in mailboxes",
			},
		),

		MessagesPolled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_messages_polled_total",
				Help: "Total number of messages retrieved by polling",
			},
		),

		PendingMessages: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_pending_messages",
				Help: "Number of messages currently buffered in mailboxes",
			},
		),

		PendingRecipients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_pending_recipients",
				Help: "Number of recipients with a non-empty mailbox",
			},
		),

		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_users_registered_total",
				Help: "Total number of users registered",
			},
		),

		UsersOnline: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_users_online",
				Help: "Number of identities with an active push connection",
			},
		),

		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatrelay_memory_usage_bytes",
				Help: "Memory usage in bytes",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatrelay_panics_total",
				Help: "Total number of panics",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatrelay_rate_limit_blocks_total",
				Help: "Total number of rate limit blocks",
			},
			[]string{"type", "key"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordMessageSubmitted 记录消息被接受
func (m *Metrics) RecordMessageSubmitted() {
	m.MessagesSubmitted.Inc()
}

// RecordMessageRejected 按拒绝原因记录消息被拒
func (m *Metrics) RecordMessageRejected(reason string) {
	m.MessagesRejected.WithLabelValues(reason).Inc()
}

// RecordMessagePushed 记录消息实时推送成功
func (m *Metrics) RecordMessagePushed() {
	m.MessagesPushed.Inc()
}

// RecordMessageBuffered 记录消息写入信箱
func (m *Metrics) RecordMessageBuffered() {
	m.MessagesBuffered.Inc()
}

// RecordMessagesPolled 记录一次拉取取走的消息数
func (m *Metrics) RecordMessagesPolled(count int) {
	m.MessagesPolled.Add(float64(count))
}

// RecordUserRegistered 记录用户注册
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType, key string) {
	m.RateLimitBlocks.WithLabelValues(limitType, key).Inc()
}

// UpdatePendingMessages 更新信箱积压消息数
func (m *Metrics) UpdatePendingMessages(count int) {
	m.PendingMessages.Set(float64(count))
}

// UpdatePendingRecipients 更新有积压的收件人数
func (m *Metrics) UpdatePendingRecipients(count int) {
	m.PendingRecipients.Set(float64(count))
}

// UpdateUsersOnline 更新在线用户数
func (m *Metrics) UpdateUsersOnline(count int) {
	m.UsersOnline.Set(float64(count))
}

// UpdateSystemUptime 更新系统运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateMemoryUsage 更新内存使用量
func (m *Metrics) UpdateMemoryUsage(bytes int64) {
	m.MemoryUsage.Set(float64(bytes))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
