package mq

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/event"
)

// cartPublisher 抽象消息发布能力，便于测试
type cartPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}, options *PublishOptions) error
}

// CartNotifier 把本实例的购物车变更事件发布到消息队列。
// 只转发本地来源的事件，远端事件不再回流到队列。
type CartNotifier struct {
	publisher  cartPublisher
	instanceID string
	timeout    time.Duration
	logger     *zap.Logger

	mu          sync.Mutex
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewCartNotifier 创建购物车变更通知器
func NewCartNotifier(publisher cartPublisher, instanceID string, logger *zap.Logger) *CartNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CartNotifier{
		publisher:  publisher,
		instanceID: instanceID,
		timeout:    5 * time.Second,
		logger:     logger,
	}
}

// Start 订阅事件总线，开始转发本地购物车变更
func (n *CartNotifier) Start(bus *event.Bus) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.unsubscribe != nil {
		return
	}

	n.unsubscribe = bus.Subscribe(func(ev event.CartChanged) {
		if ev.Source != event.SourceLocal {
			return
		}

		// 总线回调不能阻塞，发布放到独立goroutine
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.publish(ev.UserID)
		}()
	})
}

func (n *CartNotifier) publish(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	msg := CartChangedMessage{
		UserID:    userID,
		Instance:  n.instanceID,
		ChangedAt: time.Now(),
	}

	if err := n.publisher.PublishJSON(ctx, CartExchange, CartRoutingKey, msg, nil); err != nil {
		// 通知是尽力而为的，失败只影响其他实例的角标时效性
		n.logger.Warn("购物车变更通知发布失败",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}
}

// Close 取消订阅并等待在途发布完成
func (n *CartNotifier) Close() {
	n.mu.Lock()
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
	n.mu.Unlock()

	n.wg.Wait()
}
