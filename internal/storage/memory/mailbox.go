package memory

import (
	"hash/fnv"
	"sync"

	"chatrelay/backend/internal/domain"
)

// mailboxShardCount 分片数量，必须是 2 的幂。
const mailboxShardCount = 32

// mailboxShard 单个分片：一把锁保护一组收件人队列。
type mailboxShard struct {
	mu     sync.Mutex
	queues map[string][]domain.Message
}

// MailboxStore 把未投递消息按收件人缓冲在内存中。
//
// 存储是易失的：进程退出即丢失全部缓冲消息，这是刻意的设计
// 取舍而非缺陷（投递语义为至多一次，可靠投递由轮询方重试）。
// 收件人按 FNV 哈希分配到固定分片，不同收件人的 Append 基本
// 不互相阻塞；同一收件人的 Append/Drain 由分片锁串行化。
type MailboxStore struct {
	shards [mailboxShardCount]mailboxShard
}

// NewMailboxStore 创建内存邮箱存储。
func NewMailboxStore() *MailboxStore {
	s := &MailboxStore{}
	for i := range s.shards {
		s.shards[i].queues = make(map[string][]domain.Message)
	}
	return s
}

func (s *MailboxStore) shard(recipient string) *mailboxShard {
	h := fnv.New32a()
	h.Write([]byte(recipient))
	return &s.shards[h.Sum32()&(mailboxShardCount-1)]
}

// Append 把消息追加到收件人队列尾部，队列不存在时隐式创建。
// 容量无上限（不做淘汰），调用对格式合法的输入永不失败。
func (s *MailboxStore) Append(recipient string, message domain.Message) {
	sh := s.shard(recipient)
	sh.mu.Lock()
	sh.queues[recipient] = append(sh.queues[recipient], message)
	sh.mu.Unlock()
}

// Drain 原子地取走并返回收件人队列中的全部消息（按插入顺序）。
//
// 队列条目被整体移除而不是清空：对轮询方来说"从未收到过消息"
// 与"刚被取空"不可区分，内部也不会积累空队列。并发 Drain 只有
// 一个赢家拿到全部消息；输掉竞争的 Append 会开启一条新队列。
func (s *MailboxStore) Drain(recipient string) []domain.Message {
	sh := s.shard(recipient)
	sh.mu.Lock()
	queue, ok := sh.queues[recipient]
	if ok {
		delete(sh.queues, recipient)
	}
	sh.mu.Unlock()

	if !ok {
		return []domain.Message{}
	}
	return queue
}

// PendingRecipients 返回当前有未投递消息的收件人数量。
func (s *MailboxStore) PendingRecipients() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.queues)
		sh.mu.Unlock()
	}
	return total
}

// PendingMessages 返回当前缓冲的消息总数。
func (s *MailboxStore) PendingMessages() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, q := range sh.queues {
			total += len(q)
		}
		sh.mu.Unlock()
	}
	return total
}
