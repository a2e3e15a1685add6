package cache

import (
	"sync"
	"time"
)

// TTLCache 带过期时间的进程内缓存
//
// 读取走 sync.Map 无锁路径，过期条目由后台协程定期回收。
// 用于密码重置限流等短生命周期状态。
type TTLCache struct {
	data sync.Map
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewTTLCache 创建缓存，ttl 为条目的默认生存时间
func NewTTLCache(ttl time.Duration) *TTLCache {
	c := &TTLCache{
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Get 获取缓存值，已过期的条目视为不存在并顺手删除
func (c *TTLCache) Get(key string) (interface{}, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	e := val.(*entry)
	if time.Now().After(e.expiresAt) {
		c.data.Delete(key)
		return nil, false
	}
	return e.value, true
}

// Set 写入缓存值，ttl 为 0 时使用默认生存时间
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.data.Store(key, &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Delete 删除缓存值
func (c *TTLCache) Delete(key string) {
	c.data.Delete(key)
}

// Close 停止后台清理协程
func (c *TTLCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *TTLCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.data.Range(func(key, value interface{}) bool {
				if now.After(value.(*entry).expiresAt) {
					c.data.Delete(key)
				}
				return true
			})
		}
	}
}
