package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Producer 向交换机发布消息。
// 购物车变更通知量级不大，单条发布加发布确认即可，不做批量聚合。
type Producer struct {
	cm     *ConnectionManager
	config *ProducerConfig
	logger *zap.Logger

	publishedCount int64
	confirmedCount int64
	failedCount    int64

	closed int32
}

// PublishOptions 发布选项，零值表示沿用默认
type PublishOptions struct {
	Mandatory   bool
	Headers     map[string]interface{}
	ContentType string
	Expiration  string
	MessageID   string
	Timestamp   time.Time
	Type        string
}

func defaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		EnableConfirm:    true,
		ConfirmTimeout:   5 * time.Second,
		EnableRetry:      true,
		MaxRetryAttempts: 3,
		RetryInterval:    time.Second,
		PublishTimeout:   10 * time.Second,
	}
}

// NewProducer 创建生产者，config 为 nil 时使用默认配置
func NewProducer(cm *ConnectionManager, config *ProducerConfig, logger *zap.Logger) *Producer {
	if config == nil {
		config = defaultProducerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Producer{
		cm:     cm,
		config: config,
		logger: logger,
	}
}

// Publish 发布消息，失败时按配置重试
func (p *Producer) Publish(ctx context.Context, exchange, routingKey string, body []byte, options *PublishOptions) error {
	if p.IsClosed() {
		return fmt.Errorf("producer is closed")
	}

	publishing := buildPublishing(body, options)
	mandatory := options != nil && options.Mandatory

	maxAttempts := 1
	if p.config.EnableRetry {
		maxAttempts += p.config.MaxRetryAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(p.config.RetryInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = p.publishOnce(ctx, exchange, routingKey, publishing, mandatory)
		if lastErr == nil {
			return nil
		}

		p.logger.Warn("publish failed",
			zap.String("exchange", exchange),
			zap.String("routing_key", routingKey),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(lastErr))
	}

	atomic.AddInt64(&p.failedCount, 1)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxAttempts, lastErr)
}

// PublishJSON 把 data 编码为 JSON 后发布
func (p *Producer) PublishJSON(ctx context.Context, exchange, routingKey string, data interface{}, options *PublishOptions) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if options == nil {
		options = &PublishOptions{}
	}
	options.ContentType = "application/json"

	return p.Publish(ctx, exchange, routingKey, body, options)
}

// publishOnce 用池里的通道发布一次。确认模式下等待 broker 的 ack。
func (p *Producer) publishOnce(ctx context.Context, exchange, routingKey string, publishing amqp.Publishing, mandatory bool) error {
	ch, err := p.cm.GetChannel()
	if err != nil {
		return fmt.Errorf("failed to get channel: %w", err)
	}
	defer p.cm.ReturnChannel(ch)

	var confirms chan amqp.Confirmation
	if p.config.EnableConfirm {
		if err := ch.Confirm(false); err != nil {
			return fmt.Errorf("failed to set confirm mode: %w", err)
		}
		confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	if err := ch.PublishWithContext(publishCtx, exchange, routingKey, mandatory, false, publishing); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	atomic.AddInt64(&p.publishedCount, 1)

	if !p.config.EnableConfirm {
		return nil
	}

	select {
	case confirmation := <-confirms:
		if !confirmation.Ack {
			return fmt.Errorf("message was nacked by broker")
		}
		atomic.AddInt64(&p.confirmedCount, 1)
		return nil
	case <-time.After(p.config.ConfirmTimeout):
		return fmt.Errorf("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildPublishing 把发布选项套到 amqp.Publishing 上
func buildPublishing(body []byte, options *PublishOptions) amqp.Publishing {
	publishing := amqp.Publishing{
		Body:        body,
		ContentType: "application/octet-stream",
		Timestamp:   time.Now(),
	}
	if options == nil {
		return publishing
	}

	if options.Headers != nil {
		publishing.Headers = options.Headers
	}
	if options.ContentType != "" {
		publishing.ContentType = options.ContentType
	}
	if options.Expiration != "" {
		publishing.Expiration = options.Expiration
	}
	if options.MessageID != "" {
		publishing.MessageId = options.MessageID
	}
	if !options.Timestamp.IsZero() {
		publishing.Timestamp = options.Timestamp
	}
	if options.Type != "" {
		publishing.Type = options.Type
	}

	return publishing
}

// Close 关闭生产者，之后的 Publish 返回错误
func (p *Producer) Close() error {
	atomic.StoreInt32(&p.closed, 1)
	return nil
}

// IsClosed 检查是否已关闭
func (p *Producer) IsClosed() bool {
	return atomic.LoadInt32(&p.closed) == 1
}

// GetStats 获取统计信息
func (p *Producer) GetStats() ProducerStats {
	return ProducerStats{
		PublishedCount: atomic.LoadInt64(&p.publishedCount),
		ConfirmedCount: atomic.LoadInt64(&p.confirmedCount),
		FailedCount:    atomic.LoadInt64(&p.failedCount),
		ConfirmMode:    p.config.EnableConfirm,
	}
}

// ProducerStats 生产者统计信息
type ProducerStats struct {
	PublishedCount int64 `json:"published_count"`
	ConfirmedCount int64 `json:"confirmed_count"`
	FailedCount    int64 `json:"failed_count"`
	ConfirmMode    bool  `json:"confirm_mode"`
}
