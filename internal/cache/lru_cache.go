package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache 带容量上限和TTL的内存缓存
// 单把互斥锁保证Get/Set线性化：淘汰决策和插入相对彼此是原子的，
// 并发Set不会各自淘汰再插入而破坏容量不变量
type LRUCache struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	ll         *list.List // 访问序，队首是最近使用
	items      map[string]*list.Element

	// 时钟可注入，测试中模拟TTL流逝
	now func() time.Time
}

// entry 缓存条目
type entry struct {
	key       string
	value     string
	createdAt time.Time
	ttl       time.Duration
}

// NewLRUCache 创建LRU缓存
func NewLRUCache(config Config) (Cache, error) {
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = DefaultConfig().Capacity
	}

	defaultTTL := config.DefaultTTL
	if defaultTTL == 0 {
		defaultTTL = DefaultConfig().DefaultTTL
	}

	return &LRUCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
		now:        time.Now,
	}, nil
}

// Get 获取缓存内容
// 过期条目视为不存在并顺手移除，不需要同步的后台清理
func (c *LRUCache) Get(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return "", false, nil
	}

	ent := elem.Value.(*entry)
	if c.expired(ent) {
		c.removeElement(elem)
		return "", false, nil
	}

	c.ll.MoveToFront(elem)
	return ent.value, true, nil
}

// Set 写入缓存内容
// 已在容量上限时先淘汰最久未使用的条目再插入
func (c *LRUCache) Set(key string, value string, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		// 同键覆盖，不触发淘汰
		c.ll.MoveToFront(elem)
		ent := elem.Value.(*entry)
		ent.value = value
		ent.createdAt = c.now()
		ent.ttl = ttl
		return nil
	}

	if c.ll.Len() >= c.capacity {
		c.evictOldest()
	}

	elem := c.ll.PushFront(&entry{
		key:       key,
		value:     value,
		createdAt: c.now(),
		ttl:       ttl,
	})
	c.items[key] = elem
	return nil
}

// Delete 删除缓存项
func (c *LRUCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Len 当前存活（未过期）条目数
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for elem := c.ll.Front(); elem != nil; elem = elem.Next() {
		if !c.expired(elem.Value.(*entry)) {
			count++
		}
	}
	return count
}

// Clear 清空所有缓存
func (c *LRUCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[string]*list.Element)
	return nil
}

// expired 条目是否已过期
func (c *LRUCache) expired(ent *entry) bool {
	return c.now().Sub(ent.createdAt) >= ent.ttl
}

// evictOldest 淘汰最久未使用的条目，调用方必须持有锁
func (c *LRUCache) evictOldest() {
	if elem := c.ll.Back(); elem != nil {
		c.removeElement(elem)
	}
}

// removeElement 移除条目，调用方必须持有锁
func (c *LRUCache) removeElement(elem *list.Element) {
	c.ll.Remove(elem)
	delete(c.items, elem.Value.(*entry).key)
}

// 在包初始化时注册LRU缓存
func init() {
	RegisterCache("lru", NewLRUCache)
}
