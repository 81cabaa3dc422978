// Package cache 提供缓存抽象，内置 Redis、内存与空实现。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss 表示键不存在或已过期。
var ErrCacheMiss = errors.New("cache: key not found")

// Cache 定义缓存操作接口。值统一以 JSON 编码存储。
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryCache 进程内缓存，过期键在访问时惰性清理。用于开发和测试。
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

type memoryEntry struct {
	value    []byte
	deadline time.Time
}

func (e memoryEntry) expired() bool {
	return time.Now().After(e.deadline)
}

// NewMemoryCache 创建内存缓存实例。
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]memoryEntry)}
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()

	if !ok || entry.expired() {
		if ok {
			m.mu.Lock()
			delete(m.data, key)
			m.mu.Unlock()
		}
		return ErrCacheMiss
	}
	return json.Unmarshal(entry.value, dest)
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[key] = memoryEntry{value: data, deadline: time.Now().Add(expiration)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.data, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if entry.expired() {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (m *MemoryCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.data[key]; ok && !entry.expired() {
		return false, nil
	}
	m.data[key] = memoryEntry{value: data, deadline: time.Now().Add(expiration)}
	return true, nil
}

func (m *MemoryCache) Ping(ctx context.Context) error { return nil }

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.data = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

// NullCache 空实现，缓存禁用时使用。读操作总是未命中，写操作总是成功。
type NullCache struct{}

// NewNullCache 创建空缓存实例。
func NewNullCache() *NullCache { return &NullCache{} }

func (NullCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrCacheMiss
}

func (NullCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (NullCache) Del(ctx context.Context, keys ...string) error { return nil }

func (NullCache) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func (NullCache) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return false, nil
}

func (NullCache) Ping(ctx context.Context) error { return nil }

func (NullCache) Close() error { return nil }
