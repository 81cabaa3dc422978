package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// CounterState 表示角标计数器的状态
type CounterState int

const (
	// StateUninitialized 表示尚未绑定用户，角标不可信
	StateUninitialized CounterState = iota
	// StateLoading 表示正在从数据源重算
	StateLoading
	// StateReady 表示计数与数据源一致
	StateReady
)

// String 实现 fmt.Stringer
func (s CounterState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// ErrNoUser 表示计数器尚未绑定用户
var ErrNoUser = errors.New("cart: counter has no bound user")

// CountLoader 从数据源重算某个用户的购物车件数
type CountLoader func(ctx context.Context, userID int64) (int64, error)

// Counter 维护单个用户的购物车角标计数。
// 计数永远通过 loader 从数据源整体重算，不做增量修补，
// 三类触发都会引发重算：绑定用户、本地写入提交、外部变更通知。
type Counter struct {
	mu     sync.Mutex
	state  CounterState
	userID int64
	count  int64
	loader CountLoader
	logger *zap.Logger
}

// NewCounter 创建处于未初始化状态的计数器
func NewCounter(loader CountLoader, logger *zap.Logger) *Counter {
	return &Counter{
		state:  StateUninitialized,
		loader: loader,
		logger: logger,
	}
}

// Bind 把计数器绑定到用户并触发一次重算。
// 重复绑定同一用户也会重算，绑定失败时计数器停留在 Loading 状态、
// 计数清零，等待下一次触发。
func (c *Counter) Bind(ctx context.Context, userID int64) error {
	c.mu.Lock()
	c.userID = userID
	c.state = StateLoading
	c.count = 0
	c.mu.Unlock()

	return c.reload(ctx, userID)
}

// Unbind 解除用户绑定，计数器回到未初始化状态
func (c *Counter) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = 0
	c.count = 0
	c.state = StateUninitialized
}

// Refresh 整体重算当前用户的计数。
// 本地写入提交和外部变更通知都走这里，未绑定用户时返回 ErrNoUser。
func (c *Counter) Refresh(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	if c.state == StateUninitialized {
		c.mu.Unlock()
		return ErrNoUser
	}
	c.state = StateLoading
	c.mu.Unlock()

	return c.reload(ctx, userID)
}

// Snapshot 返回当前状态与计数。
// 只有 Ready 状态下的计数才可用于展示。
func (c *Counter) Snapshot() (CounterState, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.count
}

func (c *Counter) reload(ctx context.Context, userID int64) error {
	count, err := c.loader(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	// 重算期间用户可能已切换或登出，过期结果直接丢弃
	if c.userID != userID || c.state == StateUninitialized {
		return nil
	}
	if err != nil {
		c.logger.Warn("cart count reload failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return err
	}
	c.count = count
	c.state = StateReady
	return nil
}

// Hub 管理所有在线用户的角标计数器，并订阅事件总线。
// 同一用户的多个会话共享同一个计数器实例。
type Hub struct {
	mu       sync.Mutex
	counters map[int64]*Counter
	loader   CountLoader
	logger   *zap.Logger

	unsubscribe func()
}

// NewHub 创建计数器中心
func NewHub(loader CountLoader, logger *zap.Logger) *Hub {
	return &Hub{
		counters: make(map[int64]*Counter),
		loader:   loader,
		logger:   logger,
	}
}

// Counter 返回某个用户的计数器，首次访问时创建并绑定。
// 绑定失败不影响返回，计数器会在下一次触发时重试。
func (h *Hub) Counter(ctx context.Context, userID int64) *Counter {
	h.mu.Lock()
	c, ok := h.counters[userID]
	if !ok {
		c = NewCounter(h.loader, h.logger)
		h.counters[userID] = c
	}
	h.mu.Unlock()

	if !ok {
		if err := c.Bind(ctx, userID); err != nil {
			h.logger.Warn("cart counter initial bind failed",
				zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return c
}

// Drop 移除某个用户的计数器，对应用户登出
func (h *Hub) Drop(userID int64) {
	h.mu.Lock()
	c, ok := h.counters[userID]
	delete(h.counters, userID)
	h.mu.Unlock()

	if ok {
		c.Unbind()
	}
}

// OnCartChanged 处理一次购物车变更事件，触发对应用户的重算。
// 没有计数器的用户说明本实例无人关注其角标，直接忽略。
func (h *Hub) OnCartChanged(ctx context.Context, userID int64) {
	h.mu.Lock()
	c, ok := h.counters[userID]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrNoUser) {
		h.logger.Warn("cart counter refresh failed",
			zap.Int64("user_id", userID), zap.Error(err))
	}
}

// SetUnsubscribe 记录事件总线的退订函数，Close 时调用
func (h *Hub) SetUnsubscribe(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribe = fn
}

// Close 退订事件总线并解绑所有计数器
func (h *Hub) Close() {
	h.mu.Lock()
	fn := h.unsubscribe
	h.unsubscribe = nil
	counters := make([]*Counter, 0, len(h.counters))
	for _, c := range h.counters {
		counters = append(counters, c)
	}
	h.counters = make(map[int64]*Counter)
	h.mu.Unlock()

	if fn != nil {
		fn()
	}
	for _, c := range counters {
		c.Unbind()
	}
}
