package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatrelay/backend/internal/auth/jwt"
	"chatrelay/backend/internal/domain"
)

// TokenVerifier 校验连接携带的访问令牌并解析出身份
type TokenVerifier interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// EventType WebSocket 事件类型
type EventType string

const (
	EventTypeMessage EventType = "message"
	EventTypePing    EventType = "ping"
	EventTypePong    EventType = "pong"
	EventTypeError   EventType = "error"
)

// Event 推送给客户端的事件帧
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// upgraderFactory 创建带 Origin 校验的升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 同源请求没有 Origin 头
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// Client 一个已认证的 WebSocket 连接
type Client struct {
	identity string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	log      *zap.Logger
}

// Hub 管理全部在线连接,按身份索引。同一身份允许多个连接,
// 推送时向该身份的所有连接扇出。
type Hub struct {
	mu             sync.RWMutex
	clients        map[string]map[*Client]bool // identity -> connections
	register       chan *Client
	unregister     chan *Client
	done           chan struct{} // Run 退出后关闭,挡住迟到的注册
	allowedOrigins []string
	verifier       TokenVerifier
	log            *zap.Logger
}

// NewHub 创建推送 Hub
func NewHub(allowedOrigins []string, verifier TokenVerifier, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Hub{
		clients:        make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		allowedOrigins: allowedOrigins,
		verifier:       verifier,
		log:            log,
	}
}

// Run 启动 Hub 事件循环,直到 ctx 取消
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("推送 Hub 已停止")
			h.closeAllClients()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.identity] == nil {
				h.clients[client.identity] = make(map[*Client]bool)
			}
			h.clients[client.identity][client] = true
			h.mu.Unlock()
			h.log.Info("客户端已连接", zap.String("identity", client.identity))

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.identity]; ok && conns[client] {
				delete(conns, client)
				if len(conns) == 0 {
					delete(h.clients, client.identity)
				}
				close(client.send)
				h.log.Info("客户端已断开", zap.String("identity", client.identity))
			}
			h.mu.Unlock()

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// TryPush 尽力把消息推给收件人的在线连接。
// 至少一个连接接收成功即返回 true;收件人不在线或所有连接
// 的发送缓冲都已满时返回 false,由调用方转入信箱。
func (h *Hub) TryPush(message domain.Message) bool {
	h.mu.RLock()
	conns := h.clients[message.Recipient]
	h.mu.RUnlock()

	if len(conns) == 0 {
		return false
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("序列化推送消息失败", zap.Error(err))
		return false
	}

	event := &Event{
		Type:      EventTypeMessage,
		Data:      data,
		Timestamp: time.Now(),
	}
	frame, err := json.Marshal(event)
	if err != nil {
		h.log.Error("序列化事件帧失败", zap.Error(err))
		return false
	}

	delivered := false
	for client := range conns {
		select {
		case client.send <- frame:
			delivered = true
		default:
			h.log.Warn("客户端发送缓冲已满,跳过",
				zap.String("identity", client.identity))
		}
	}
	return delivered
}

// enroll 把连接交给事件循环登记。Hub 已停止时返回 false,
// 与关闭竞态的迟到升级不会把处理协程永远卡在注册通道上。
func (h *Hub) enroll(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// drop 把连接交给事件循环注销,Hub 已停止时直接返回
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Online 判断某身份当前是否有在线连接
func (h *Hub) Online(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identity]) > 0
}

// OnlineCount 当前在线身份数
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// pingAllClients 周期性向所有客户端发送应用层 ping
func (h *Hub) pingAllClients() {
	msg := &Event{
		Type:      EventTypePing,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conns := range h.clients {
		for client := range conns {
			select {
			case client.send <- data:
			default:
			}
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.clients {
		for client := range conns {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}

// authenticateClient 从 URL 参数或 Authorization 头取令牌并校验
func (h *Hub) authenticateClient(c *gin.Context) (string, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
	}

	if token == "" {
		return "", errors.New("missing authentication token")
	}

	claims, err := h.verifier.ValidateToken(token)
	if err != nil {
		return "", err
	}
	// 连接按归一化身份索引,与投递时的信箱键保持一致
	return domain.NormalizeIdentity(claims.Identity), nil
}

// HandleWebSocket 处理 WebSocket 升级请求
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		identity, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("WebSocket 认证失败",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("WebSocket 升级失败",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			identity: identity,
			conn:     conn,
			send:     make(chan []byte, 256),
			hub:      hub,
			log:      hub.log,
		}

		if !hub.enroll(client) {
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取客户端帧,维护读超时
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var event Event
		err := c.conn.ReadJSON(&event)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("WebSocket 读取错误", zap.Error(err))
			}
			break
		}

		if event.Type == EventTypePong {
			c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// writePump 把 send 缓冲中的帧写给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
