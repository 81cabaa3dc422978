package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Lucassml-boop/commerce-e/internal/event"
)

// CartListener 消费其他实例发布的购物车变更消息，转发到进程内事件总线
type CartListener struct {
	cm         *ConnectionManager
	consumer   *Consumer
	bus        *event.Bus
	instanceID string
	queueName  string
	logger     *zap.Logger
}

// NewCartListener 创建购物车变更监听器
func NewCartListener(cm *ConnectionManager, config *ConsumerConfig, bus *event.Bus, instanceID string, logger *zap.Logger) *CartListener {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CartListener{
		cm:         cm,
		consumer:   NewConsumer(cm, config, logger),
		bus:        bus,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Start 声明本实例队列并开始消费
func (l *CartListener) Start(ctx context.Context) error {
	queueName, err := DeclareCartTopology(l.cm)
	if err != nil {
		return fmt.Errorf("failed to declare cart topology: %w", err)
	}
	l.queueName = queueName

	l.consumer.SetHandler(JSONMessageHandler(l.handleMessage))

	if err := l.consumer.StartConsuming(ctx, queueName); err != nil {
		return fmt.Errorf("failed to start consuming cart events: %w", err)
	}

	l.logger.Info("购物车变更监听器启动",
		zap.String("queue", queueName),
		zap.String("instance_id", l.instanceID))

	return nil
}

// handleMessage 处理一条购物车变更消息。
// 本实例发出的消息被跳过，本地变更已经在写入时发布过总线事件。
func (l *CartListener) handleMessage(ctx context.Context, msg CartChangedMessage, delivery amqp.Delivery) error {
	if msg.Instance == l.instanceID {
		return nil
	}

	if msg.UserID <= 0 {
		l.logger.Warn("收到非法的购物车变更消息",
			zap.Int64("user_id", msg.UserID),
			zap.String("instance", msg.Instance))
		return nil
	}

	l.bus.Publish(event.CartChanged{UserID: msg.UserID, Source: event.SourceRemote})
	return nil
}

// Close 停止消费
func (l *CartListener) Close() error {
	return l.consumer.Close()
}
