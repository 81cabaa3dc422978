package mq

import (
	"fmt"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ChannelPool 复用AMQP通道。通道不是并发安全的，
// 调用方取用期间独占通道，用完归还。
type ChannelPool struct {
	capacity int
	idle     chan *amqp.Channel
	cm       *ConnectionManager
	closed   int32

	created   int64
	reused    int64
	discarded int64
}

// NewChannelPool 创建容量为 capacity 的通道池。
func NewChannelPool(capacity int, cm *ConnectionManager) *ChannelPool {
	return &ChannelPool{
		capacity: capacity,
		idle:     make(chan *amqp.Channel, capacity),
		cm:       cm,
	}
}

// Get 优先复用空闲通道，没有可用的就在当前连接上新开。
func (cp *ChannelPool) Get() (*amqp.Channel, error) {
	if atomic.LoadInt32(&cp.closed) == 1 {
		return nil, fmt.Errorf("channel pool is closed")
	}

	select {
	case ch := <-cp.idle:
		if ch != nil && !ch.IsClosed() {
			atomic.AddInt64(&cp.reused, 1)
			return ch, nil
		}
		atomic.AddInt64(&cp.discarded, 1)
	default:
	}

	conn := cp.cm.GetConnection()
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("connection is not available")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	atomic.AddInt64(&cp.created, 1)
	return ch, nil
}

// Return 归还通道。池满或通道已失效时直接关闭丢弃。
func (cp *ChannelPool) Return(ch *amqp.Channel) {
	if atomic.LoadInt32(&cp.closed) == 1 {
		if ch != nil && !ch.IsClosed() {
			_ = ch.Close()
		}
		return
	}
	if ch == nil || ch.IsClosed() {
		atomic.AddInt64(&cp.discarded, 1)
		return
	}

	select {
	case cp.idle <- ch:
	default:
		_ = ch.Close()
		atomic.AddInt64(&cp.discarded, 1)
	}
}

// Close 关闭池和所有空闲通道。幂等。
func (cp *ChannelPool) Close() {
	if !atomic.CompareAndSwapInt32(&cp.closed, 0, 1) {
		return
	}
	close(cp.idle)
	for ch := range cp.idle {
		if ch != nil && !ch.IsClosed() {
			_ = ch.Close()
		}
	}
}

// WithChannel 取通道执行 fn，自动归还。
func (cp *ChannelPool) WithChannel(fn func(*amqp.Channel) error) error {
	ch, err := cp.Get()
	if err != nil {
		return err
	}
	defer cp.Return(ch)
	return fn(ch)
}

// ChannelPoolStats 通道池统计。
type ChannelPoolStats struct {
	MaxSize   int   `json:"max_size"`
	Available int   `json:"available"`
	Created   int64 `json:"created"`
	Reused    int64 `json:"reused"`
	Discarded int64 `json:"discarded"`
	Closed    bool  `json:"closed"`
}

// GetStats 返回池统计快照。
func (cp *ChannelPool) GetStats() ChannelPoolStats {
	return ChannelPoolStats{
		MaxSize:   cp.capacity,
		Available: len(cp.idle),
		Created:   atomic.LoadInt64(&cp.created),
		Reused:    atomic.LoadInt64(&cp.reused),
		Discarded: atomic.LoadInt64(&cp.discarded),
		Closed:    atomic.LoadInt32(&cp.closed) == 1,
	}
}
