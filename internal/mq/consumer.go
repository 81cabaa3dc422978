package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// MessageHandler 处理一条投递。返回 nil 表示消费成功，消息会被确认。
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Consumer 从单个队列消费消息，内部按 ConcurrentConsumers 启动多个工作协程，
// 每个协程独占一条通道。
type Consumer struct {
	cm      *ConnectionManager
	config  *ConsumerConfig
	logger  *zap.Logger
	handler MessageHandler

	queueName   string
	consumerTag string

	mu      sync.Mutex
	workers []*consumerWorker
	wg      sync.WaitGroup

	running int32
	closed  int32

	processedCount int64
	failedCount    int64
	retriedCount   int64
}

// consumerWorker 持有一条消费通道和它的投递流
type consumerWorker struct {
	id         int
	channel    *amqp.Channel
	deliveries <-chan amqp.Delivery
	cancel     context.CancelFunc
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		PrefetchCount:       10,
		AutoAck:             false,
		EnableRetry:         true,
		MaxRetryAttempts:    3,
		RetryInterval:       time.Second,
		EnableDLX:           true,
		DLXExchange:         "dlx",
		DLXRoutingKey:       "failed",
		ConsumeTimeout:      30 * time.Second,
		ConcurrentConsumers: 1,
	}
}

// NewConsumer 创建消费者，config 为 nil 时使用默认配置
func NewConsumer(cm *ConnectionManager, config *ConsumerConfig, logger *zap.Logger) *Consumer {
	if config == nil {
		config = defaultConsumerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Consumer{
		cm:     cm,
		config: config,
		logger: logger,
	}
}

// SetHandler 设置消息处理函数，必须在 StartConsuming 之前调用
func (c *Consumer) SetHandler(handler MessageHandler) {
	c.handler = handler
}

// StartConsuming 在 queueName 上开始消费。任一工作协程启动失败时回滚已启动的协程。
func (c *Consumer) StartConsuming(ctx context.Context, queueName string) error {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return fmt.Errorf("consumer is already running")
	}
	if c.handler == nil {
		atomic.StoreInt32(&c.running, 0)
		return fmt.Errorf("message handler is not set")
	}

	c.queueName = queueName
	c.consumerTag = fmt.Sprintf("consumer-%s-%d", queueName, time.Now().Unix())

	c.logger.Info("starting consumers",
		zap.String("queue", queueName),
		zap.String("consumer_tag", c.consumerTag),
		zap.Int("workers", c.config.ConcurrentConsumers))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.workers = c.workers[:0]
	for i := 0; i < c.config.ConcurrentConsumers; i++ {
		worker, err := c.startWorker(ctx, i)
		if err != nil {
			c.cancelWorkersLocked()
			c.wg.Wait()
			atomic.StoreInt32(&c.running, 0)
			return fmt.Errorf("failed to start worker %d: %w", i, err)
		}
		c.workers = append(c.workers, worker)
	}

	return nil
}

// startWorker 打开通道、设置 QoS 并启动一个消费协程
func (c *Consumer) startWorker(ctx context.Context, id int) (*consumerWorker, error) {
	ch, err := c.cm.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}

	if err := ch.Qos(c.config.PrefetchCount, c.config.PrefetchSize, false); err != nil {
		c.cm.ReturnChannel(ch)
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queueName,
		fmt.Sprintf("%s-%d", c.consumerTag, id),
		c.config.AutoAck,
		c.config.Exclusive,
		c.config.NoLocal,
		c.config.NoWait,
		nil,
	)
	if err != nil {
		c.cm.ReturnChannel(ch)
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	worker := &consumerWorker{
		id:         id,
		channel:    ch,
		deliveries: deliveries,
		cancel:     cancel,
	}

	c.wg.Add(1)
	go c.consumeLoop(workerCtx, worker)

	return worker, nil
}

// consumeLoop 持续处理投递，直到通道关闭或上下文取消
func (c *Consumer) consumeLoop(ctx context.Context, w *consumerWorker) {
	defer c.wg.Done()
	defer c.cm.ReturnChannel(w.channel)

	c.logger.Info("consumer worker started",
		zap.Int("worker_id", w.id),
		zap.String("queue", c.queueName))

	for {
		select {
		case delivery, ok := <-w.deliveries:
			if !ok {
				c.logger.Info("delivery channel closed", zap.Int("worker_id", w.id))
				return
			}
			c.handleDelivery(ctx, w.id, delivery)

		case <-ctx.Done():
			c.logger.Info("consumer worker stopped", zap.Int("worker_id", w.id))
			return
		}
	}
}

// handleDelivery 调用处理函数，失败时在同一条消息上原地重试，
// 重试耗尽后按死信配置 Nack 或 Reject。
func (c *Consumer) handleDelivery(ctx context.Context, workerID int, delivery amqp.Delivery) {
	start := time.Now()

	handleCtx, cancel := context.WithTimeout(ctx, c.config.ConsumeTimeout)
	defer cancel()

	maxAttempts := 1
	if c.config.EnableRetry {
		maxAttempts += c.config.MaxRetryAttempts
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			atomic.AddInt64(&c.retriedCount, 1)
			select {
			case <-time.After(c.config.RetryInterval):
			case <-handleCtx.Done():
				err = handleCtx.Err()
				break
			}
			if handleCtx.Err() != nil {
				break
			}
		}

		err = c.handler(handleCtx, delivery)
		if err == nil {
			break
		}

		c.logger.Error("message handling failed",
			zap.Error(err),
			zap.String("message_id", delivery.MessageId),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts))
	}

	if err == nil {
		c.ack(delivery)
		atomic.AddInt64(&c.processedCount, 1)
	} else {
		c.reject(delivery)
		atomic.AddInt64(&c.failedCount, 1)
	}

	c.logger.Debug("delivery handled",
		zap.Int("worker_id", workerID),
		zap.String("message_id", delivery.MessageId),
		zap.Bool("ok", err == nil),
		zap.Duration("duration", time.Since(start)))
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if c.config.AutoAck {
		return
	}
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message",
			zap.Error(err),
			zap.String("message_id", delivery.MessageId))
	}
}

// reject 拒绝消息。开启死信交换机时用 Nack 让 broker 转发到 DLX，
// 否则直接丢弃。两种情况都不重新入队。
func (c *Consumer) reject(delivery amqp.Delivery) {
	if c.config.AutoAck {
		return
	}

	var err error
	if c.config.EnableDLX {
		err = delivery.Nack(false, false)
	} else {
		err = delivery.Reject(false)
	}
	if err != nil {
		c.logger.Error("failed to reject message",
			zap.Error(err),
			zap.String("message_id", delivery.MessageId))
	}
}

func (c *Consumer) cancelWorkersLocked() {
	for _, worker := range c.workers {
		worker.cancel()
	}
	c.workers = c.workers[:0]
}

// StopConsuming 停止所有工作协程并等待它们退出
func (c *Consumer) StopConsuming() error {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return fmt.Errorf("consumer is not running")
	}

	c.logger.Info("stopping consumers", zap.String("queue", c.queueName))

	c.mu.Lock()
	c.cancelWorkersLocked()
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// Close 关闭消费者，重复调用无害
func (c *Consumer) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&c.running) == 1 {
		return c.StopConsuming()
	}
	return nil
}

// IsRunning 检查是否正在消费
func (c *Consumer) IsRunning() bool {
	return atomic.LoadInt32(&c.running) == 1
}

// IsClosed 检查是否已关闭
func (c *Consumer) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// GetStats 获取统计信息
func (c *Consumer) GetStats() ConsumerStats {
	c.mu.Lock()
	workers := len(c.workers)
	c.mu.Unlock()

	return ConsumerStats{
		QueueName:      c.queueName,
		ConsumerTag:    c.consumerTag,
		Workers:        workers,
		ProcessedCount: atomic.LoadInt64(&c.processedCount),
		FailedCount:    atomic.LoadInt64(&c.failedCount),
		RetriedCount:   atomic.LoadInt64(&c.retriedCount),
		Running:        c.IsRunning(),
		Closed:         c.IsClosed(),
	}
}

// ConsumerStats 消费者统计信息
type ConsumerStats struct {
	QueueName      string `json:"queue_name"`
	ConsumerTag    string `json:"consumer_tag"`
	Workers        int    `json:"workers"`
	ProcessedCount int64  `json:"processed_count"`
	FailedCount    int64  `json:"failed_count"`
	RetriedCount   int64  `json:"retried_count"`
	Running        bool   `json:"running"`
	Closed         bool   `json:"closed"`
}

// JSONMessageHandler 把消息体按 JSON 解码成 T 再交给 handler
func JSONMessageHandler[T any](handler func(ctx context.Context, data T, delivery amqp.Delivery) error) MessageHandler {
	return func(ctx context.Context, delivery amqp.Delivery) error {
		var data T
		if err := json.Unmarshal(delivery.Body, &data); err != nil {
			return fmt.Errorf("failed to unmarshal JSON message: %w", err)
		}
		return handler(ctx, data, delivery)
	}
}
