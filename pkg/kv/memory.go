package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore 进程内实现，未配置 Redis 时使用
type MemoryStore struct {
	items sync.Map // key -> memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     string
	expiresAt time.Time // 零值表示不过期
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	val, ok := m.items.Load(key)
	if !ok {
		return "", ErrNotFound
	}

	item := val.(memoryItem)
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		m.items.Delete(key) // 懒删除
		return "", ErrNotFound
	}
	return item.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items.Store(key, item)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.items.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			m.items.Delete(k)
		}
		return true
	})
	return nil
}

func (m *MemoryStore) Close() error { return nil }
