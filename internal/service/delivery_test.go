package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatrelay/backend/internal/auth"
	"chatrelay/backend/internal/domain"
	"chatrelay/backend/internal/storage/memory"
)

// stubSink 按收件人在线集合决定推送是否成功,并记录推出去的消息
type stubSink struct {
	online map[string]bool
	pushed []domain.Message
}

func (s *stubSink) TryPush(message domain.Message) bool {
	if !s.online[message.Recipient] {
		return false
	}
	s.pushed = append(s.pushed, message)
	return true
}

func TestDeliveryService_PushSkipsMailbox(t *testing.T) {
	mailboxes := memory.NewMailboxStore()
	sink := &stubSink{online: map[string]bool{"bob@example.com": true}}
	svc := NewDeliveryService(mailboxes, sink, zap.NewNop())

	message := domain.Message{Sender: "alice@example.com", Recipient: "bob@example.com", Body: "hi", Timestamp: 1}
	outcome := svc.Deliver(message)

	assert.Equal(t, OutcomePushed, outcome)
	assert.Len(t, sink.pushed, 1)
	// 推送成功的消息不进信箱
	assert.Empty(t, svc.Poll("bob@example.com"))
}

func TestDeliveryService_OfflineFallsBackToMailbox(t *testing.T) {
	mailboxes := memory.NewMailboxStore()
	sink := &stubSink{online: map[string]bool{}}
	svc := NewDeliveryService(mailboxes, sink, zap.NewNop())

	message := domain.Message{Sender: "alice@example.com", Recipient: "bob@example.com", Body: "hi", Timestamp: 1}
	outcome := svc.Deliver(message)

	assert.Equal(t, OutcomeBuffered, outcome)
	assert.Empty(t, sink.pushed)

	buffered := svc.Poll("bob@example.com")
	require.Len(t, buffered, 1)
	assert.Equal(t, "hi", buffered[0].Body)
}

func TestDeliveryService_NilSink(t *testing.T) {
	svc := NewDeliveryService(memory.NewMailboxStore(), nil, zap.NewNop())

	message := domain.Message{Sender: "alice@example.com", Recipient: "bob@example.com", Body: "hi", Timestamp: 1}
	assert.Equal(t, OutcomeBuffered, svc.Deliver(message))
	assert.Len(t, svc.Poll("bob@example.com"), 1)
}

// 端到端:注册过的 alice 给 bob 发消息,bob 第一次拉取拿到消息,
// 第二次拉取为空。
func TestMessageService_SubmitAndPoll(t *testing.T) {
	directory := newStubDirectory("alice@example.com", "bob@example.com")
	mailboxes := memory.NewMailboxStore()
	svc := NewMessageService(
		NewAdmissionService(directory),
		NewDeliveryService(mailboxes, nil, zap.NewNop()),
	)
	now := time.Unix(1_700_000_000, 0)

	outcome, err := svc.Submit(
		"alice@example.com", "bob@example.com", "hi bob",
		fmt.Sprintf("%d", now.Unix()), now,
	)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBuffered, outcome)

	first := svc.Poll("bob@example.com")
	require.Len(t, first, 1)
	assert.Equal(t, "alice@example.com", first[0].Sender)
	assert.Equal(t, "hi bob", first[0].Body)

	assert.Empty(t, svc.Poll("bob@example.com"))
}

// 地址的大小写变体指向同一账户:发给 Bob@Example.com 的消息
// 必须能被 bob@example.com 拉取到,不能搁浅在变体键下。
func TestMessageService_RecipientCaseVariants(t *testing.T) {
	store := memory.NewStore()
	accounts := auth.NewService(store, auth.Limits{MaxEmailLength: 256, MaxPasswordLength: 100})
	_, err := accounts.Register("alice@example.com", "alicepw")
	require.NoError(t, err)
	_, err = accounts.Register("bob@example.com", "bobpw")
	require.NoError(t, err)

	svc := NewMessageService(
		NewAdmissionService(accounts),
		NewDeliveryService(store, nil, zap.NewNop()),
	)
	now := time.Unix(1_700_000_000, 0)

	outcome, err := svc.Submit(
		"Alice@Example.com", "Bob@Example.com", "hi bob",
		fmt.Sprintf("%d", now.Unix()), now,
	)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBuffered, outcome)

	got := svc.Poll("bob@example.com")
	require.Len(t, got, 1)
	assert.Equal(t, "alice@example.com", got[0].Sender)
	assert.Equal(t, "bob@example.com", got[0].Recipient)

	// 拉取后不留残余,变体键下没有搁浅的队列
	assert.Equal(t, 0, store.PendingRecipients())
	assert.Equal(t, 0, store.PendingMessages())
}

// 校验失败的提交不产生任何副作用:目标信箱保持不存在。
func TestMessageService_RejectionHasNoSideEffects(t *testing.T) {
	directory := newStubDirectory("alice@example.com")
	mailboxes := memory.NewMailboxStore()
	svc := NewMessageService(
		NewAdmissionService(directory),
		NewDeliveryService(mailboxes, nil, zap.NewNop()),
	)
	now := time.Unix(1_700_000_000, 0)

	_, err := svc.Submit(
		"alice@example.com", "ghost@example.com", "hi",
		fmt.Sprintf("%d", now.Unix()), now,
	)
	assert.ErrorIs(t, err, ErrUnknownRecipient)
	assert.Equal(t, 0, mailboxes.PendingRecipients())
	assert.Equal(t, 0, mailboxes.PendingMessages())
}
