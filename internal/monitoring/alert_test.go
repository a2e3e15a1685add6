package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"chatrelay/backend/internal/domain"
	"chatrelay/backend/internal/storage/memory"
)

func TestMailboxBacklogRule(t *testing.T) {
	mailboxes := memory.NewMailboxStore()
	rule := MailboxBacklogRule(mailboxes, 2)

	assert.False(t, rule.Condition())

	for i := 0; i < 3; i++ {
		mailboxes.Append("bob@example.com", domain.Message{
			Sender: "alice@example.com", Recipient: "bob@example.com", Body: "x", Timestamp: int64(i),
		})
	}
	assert.True(t, rule.Condition())

	// 拉空后告警条件恢复
	mailboxes.Drain("bob@example.com")
	assert.False(t, rule.Condition())
}

func TestAlertManager_TriggerAndResolve(t *testing.T) {
	am := NewAlertManager(zap.NewNop())
	received := 0
	am.AddReceiver(receiverFunc(func(alert *Alert) error {
		received++
		return nil
	}))

	alert := &Alert{ID: "a1", Title: "t", Level: AlertLevelWarning, Component: "test", Timestamp: time.Now()}
	am.TriggerAlert(alert)
	// 未解决的同名告警不重复分发
	am.TriggerAlert(&Alert{ID: "a1", Title: "t", Level: AlertLevelWarning, Component: "test", Timestamp: time.Now()})

	assert.Equal(t, 1, received)
	assert.Len(t, am.GetActiveAlerts(), 1)

	am.ResolveAlert("a1")
	assert.Empty(t, am.GetActiveAlerts())
}

type receiverFunc func(alert *Alert) error

func (f receiverFunc) SendAlert(alert *Alert) error { return f(alert) }
