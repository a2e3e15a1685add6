package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatrelay/backend/internal/domain"
)

func TestHub_TryPushOffline(t *testing.T) {
	hub := NewHub(nil, nil, zap.NewNop())

	// 没有任何在线连接时推送失败,消息应转入信箱
	pushed := hub.TryPush(domain.Message{
		Sender:    "alice@example.com",
		Recipient: "bob@example.com",
		Body:      "hi",
		Timestamp: 1,
	})
	assert.False(t, pushed)
	assert.False(t, hub.Online("bob@example.com"))
	assert.Equal(t, 0, hub.OnlineCount())
}

func TestHub_TryPushOnline(t *testing.T) {
	hub := NewHub(nil, nil, zap.NewNop())

	// 直接挂一个带缓冲的连接,绕过网络层
	client := &Client{
		identity: "bob@example.com",
		send:     make(chan []byte, 4),
		hub:      hub,
		log:      hub.log,
	}
	hub.clients["bob@example.com"] = map[*Client]bool{client: true}

	pushed := hub.TryPush(domain.Message{
		Sender:    "alice@example.com",
		Recipient: "bob@example.com",
		Body:      "hi",
		Timestamp: 1,
	})
	assert.True(t, pushed)
	assert.True(t, hub.Online("bob@example.com"))
	assert.Len(t, client.send, 1)
}

func TestHub_TryPushBufferFull(t *testing.T) {
	hub := NewHub(nil, nil, zap.NewNop())

	// 发送缓冲已满的连接视同不可达
	client := &Client{
		identity: "bob@example.com",
		send:     make(chan []byte),
		hub:      hub,
		log:      hub.log,
	}
	hub.clients["bob@example.com"] = map[*Client]bool{client: true}

	pushed := hub.TryPush(domain.Message{
		Sender:    "alice@example.com",
		Recipient: "bob@example.com",
		Body:      "hi",
		Timestamp: 1,
	})
	assert.False(t, pushed)
}

// Hub 停止后迟到的注册被拒绝,而不是把升级协程永远卡在注册通道上。
func TestHub_EnrollAfterShutdown(t *testing.T) {
	hub := NewHub(nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	// 正常注册走事件循环
	client := &Client{
		identity: "bob@example.com",
		send:     make(chan []byte, 4),
		hub:      hub,
		log:      hub.log,
	}
	require.True(t, hub.enroll(client))

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("事件循环未退出")
	}

	// 迟到的注册必须立即返回失败
	late := &Client{
		identity: "carol@example.com",
		send:     make(chan []byte, 4),
		hub:      hub,
		log:      hub.log,
	}
	assert.False(t, hub.enroll(late))

	// 注销同样不会阻塞
	hub.drop(client)
}
