package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/backend/internal/domain"
)

func testMessage(sender, recipient, body string) domain.Message {
	return domain.Message{
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		Timestamp: time.Now().Unix(),
	}
}

func TestMailboxStore_DrainOnce(t *testing.T) {
	store := NewMailboxStore()

	// Append preserves insertion order
	store.Append("bob@example.com", testMessage("alice@example.com", "bob@example.com", "first"))
	store.Append("bob@example.com", testMessage("alice@example.com", "bob@example.com", "second"))
	store.Append("bob@example.com", testMessage("carol@example.com", "bob@example.com", "third"))

	messages := store.Drain("bob@example.com")
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Body)
	assert.Equal(t, "second", messages[1].Body)
	assert.Equal(t, "third", messages[2].Body)

	// A second immediate drain returns empty
	again := store.Drain("bob@example.com")
	assert.Empty(t, again)
}

func TestMailboxStore_DrainUnknownRecipient(t *testing.T) {
	store := NewMailboxStore()

	messages := store.Drain("nobody@example.com")
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestMailboxStore_DrainRemovesQueueEntry(t *testing.T) {
	store := NewMailboxStore()

	store.Append("bob@example.com", testMessage("alice@example.com", "bob@example.com", "hi"))
	assert.Equal(t, 1, store.PendingRecipients())
	assert.Equal(t, 1, store.PendingMessages())

	store.Drain("bob@example.com")

	// 取空后条目整体消失，不残留空队列
	assert.Equal(t, 0, store.PendingRecipients())
	assert.Equal(t, 0, store.PendingMessages())
}

func TestMailboxStore_CrossRecipientIsolation(t *testing.T) {
	store := NewMailboxStore()

	store.Append("bob@example.com", testMessage("alice@example.com", "bob@example.com", "for bob"))
	store.Append("carol@example.com", testMessage("alice@example.com", "carol@example.com", "for carol"))

	bobMessages := store.Drain("bob@example.com")
	require.Len(t, bobMessages, 1)
	assert.Equal(t, "for bob", bobMessages[0].Body)

	carolMessages := store.Drain("carol@example.com")
	require.Len(t, carolMessages, 1)
	assert.Equal(t, "for carol", carolMessages[0].Body)
}

func TestMailboxStore_NoLossUnderConcurrency(t *testing.T) {
	store := NewMailboxStore()
	recipient := "bob@example.com"

	const senders = 8
	const perSender = 200

	var wg sync.WaitGroup
	var drainedMu sync.Mutex
	drained := make([]domain.Message, 0, senders*perSender)

	// 并发追加
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				store.Append(recipient, testMessage(
					fmt.Sprintf("sender-%d@example.com", s),
					recipient,
					fmt.Sprintf("%d/%d", s, i),
				))
			}
		}(s)
	}

	// 并发取走，与追加交错进行
	stop := make(chan struct{})
	var drainWG sync.WaitGroup
	for d := 0; d < 4; d++ {
		drainWG.Add(1)
		go func() {
			defer drainWG.Done()
			for {
				batch := store.Drain(recipient)
				if len(batch) > 0 {
					drainedMu.Lock()
					drained = append(drained, batch...)
					drainedMu.Unlock()
				}
				select {
				case <-stop:
					return
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	drainWG.Wait()

	// 收尾：取走追加完成后仍残留的消息
	drained = append(drained, store.Drain(recipient)...)

	// 每条消息恰好出现一次，不丢也不重
	require.Len(t, drained, senders*perSender)
	seen := make(map[string]bool, len(drained))
	for _, msg := range drained {
		key := msg.Sender + "|" + msg.Body
		assert.False(t, seen[key], "message drained twice: %s", key)
		seen[key] = true
	}

	// 同一发送者的消息保持各自的插入顺序
	lastIndex := make(map[string]int, senders)
	for _, msg := range drained {
		var s, i int
		_, err := fmt.Sscanf(msg.Body, "%d/%d", &s, &i)
		require.NoError(t, err)
		if last, ok := lastIndex[msg.Sender]; ok {
			assert.Greater(t, i, last, "per-sender order broken for %s", msg.Sender)
		}
		lastIndex[msg.Sender] = i
	}
}

func TestMailboxStore_ConcurrentDrainSingleWinner(t *testing.T) {
	store := NewMailboxStore()
	recipient := "bob@example.com"

	const total = 100
	for i := 0; i < total; i++ {
		store.Append(recipient, testMessage("alice@example.com", recipient, fmt.Sprintf("msg-%d", i)))
	}

	// 多个并发 Drain 只有一个赢家拿到全部消息
	results := make(chan []domain.Message, 8)
	var wg sync.WaitGroup
	for d := 0; d < 8; d++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.Drain(recipient)
		}()
	}
	wg.Wait()
	close(results)

	got := 0
	nonEmpty := 0
	for batch := range results {
		got += len(batch)
		if len(batch) > 0 {
			nonEmpty++
		}
	}
	assert.Equal(t, total, got)
	assert.Equal(t, 1, nonEmpty)
}
