// Package event 提供进程内的发布订阅总线。
// 总线用于把购物车变更扩散给同进程内的订阅者（如角标计数器），
// 跨实例的扩散由消息队列桥接到本总线。
package event

import (
	"sync"
)

// 事件来源
const (
	// SourceLocal 表示本实例写入产生的变更
	SourceLocal = "local"
	// SourceRemote 表示由消息队列通知的其他实例的变更
	SourceRemote = "remote"
)

// CartChanged 表示某个用户的购物车内容发生了变更
type CartChanged struct {
	UserID int64
	Source string
}

// Handler 是购物车变更事件的处理函数。
// 处理函数在发布方的 goroutine 中同步执行，不应阻塞。
type Handler func(CartChanged)

// Bus 是进程内事件总线，并发安全。
type Bus struct {
	mu       sync.RWMutex
	nextID   int64
	handlers map[int64]Handler
}

// NewBus 创建事件总线
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[int64]Handler),
	}
}

// Subscribe 注册事件处理函数，返回取消订阅的函数。
// 取消订阅是幂等的，可安全重复调用。
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish 同步地把事件分发给当前所有订阅者
func (b *Bus) Publish(ev CartChanged) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// SubscriberCount 返回当前订阅者数量，主要用于测试和健康检查
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
