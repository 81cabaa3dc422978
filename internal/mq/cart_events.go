package mq

import (
	"fmt"
	"time"
)

// 购物车事件的拓扑结构。
// 每个实例绑定一个独占的服务器命名队列，topic交换机负责广播。
const (
	CartExchange   = "cart.events"
	CartRoutingKey = "cart.changed"
)

// CartChangedMessage 购物车变更的跨实例通知消息
type CartChangedMessage struct {
	UserID    int64     `json:"user_id"`
	Instance  string    `json:"instance"`
	ChangedAt time.Time `json:"changed_at"`
}

// CartTopology 返回购物车事件的交换机和队列声明。
// queueName为空时由服务端命名，独占队列随连接断开自动删除。
func CartTopology(queueName string) (*ExchangeConfig, *QueueConfig) {
	exchange := &ExchangeConfig{
		Name:    CartExchange,
		Type:    "topic",
		Durable: true,
	}

	queue := &QueueConfig{
		Name:       queueName,
		AutoDelete: true,
		Exclusive:  true,
		Bindings: []*BindingConfig{
			{
				Exchange:   CartExchange,
				RoutingKey: CartRoutingKey,
			},
		},
	}

	return exchange, queue
}

// DeclareCartTopology 声明购物车事件的交换机和本实例队列，返回实际队列名
func DeclareCartTopology(cm *ConnectionManager) (string, error) {
	ch, err := cm.GetChannel()
	if err != nil {
		return "", fmt.Errorf("failed to get channel: %w", err)
	}
	defer cm.ReturnChannel(ch)

	exchange, queue := CartTopology("")

	if err := ch.ExchangeDeclare(
		exchange.Name,
		exchange.Type,
		exchange.Durable,
		exchange.AutoDelete,
		exchange.Internal,
		exchange.NoWait,
		exchange.Args,
	); err != nil {
		return "", fmt.Errorf("failed to declare exchange %s: %w", exchange.Name, err)
	}

	declared, err := ch.QueueDeclare(
		queue.Name,
		queue.Durable,
		queue.AutoDelete,
		queue.Exclusive,
		queue.NoWait,
		queue.Args,
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare cart queue: %w", err)
	}

	for _, binding := range queue.Bindings {
		if err := ch.QueueBind(
			declared.Name,
			binding.RoutingKey,
			binding.Exchange,
			binding.NoWait,
			binding.Args,
		); err != nil {
			return "", fmt.Errorf("failed to bind cart queue: %w", err)
		}
	}

	return declared.Name, nil
}
