// Package mq 提供RabbitMQ连接管理和购物车变更事件的发布订阅。
package mq

import (
	"crypto/tls"
	"fmt"
	"time"
)

// Config RabbitMQ 连接配置。
type Config struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	VHost    string `mapstructure:"vhost" json:"vhost"`

	UseTLS                bool   `mapstructure:"use_tls" json:"use_tls"`
	TLSCertFile           string `mapstructure:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile            string `mapstructure:"tls_key_file" json:"tls_key_file"`
	TLSCACertFile         string `mapstructure:"tls_ca_cert_file" json:"tls_ca_cert_file"`
	TLSServerName         string `mapstructure:"tls_server_name" json:"tls_server_name"`
	TLSInsecureSkipVerify bool   `mapstructure:"tls_insecure_skip_verify" json:"tls_insecure_skip_verify"`

	MaxChannels       int           `mapstructure:"max_channels" json:"max_channels"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" json:"connection_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" json:"heartbeat_interval"`

	EnableReconnect      bool          `mapstructure:"enable_reconnect" json:"enable_reconnect"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval" json:"reconnect_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts" json:"max_reconnect_attempts"`

	Producer *ProducerConfig `mapstructure:"producer" json:"producer"`
	Consumer *ConsumerConfig `mapstructure:"consumer" json:"consumer"`
}

// ProducerConfig 发布端配置。
type ProducerConfig struct {
	EnableConfirm  bool          `mapstructure:"enable_confirm" json:"enable_confirm"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" json:"confirm_timeout"`

	EnableRetry      bool          `mapstructure:"enable_retry" json:"enable_retry"`
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts" json:"max_retry_attempts"`
	RetryInterval    time.Duration `mapstructure:"retry_interval" json:"retry_interval"`

	PublishTimeout time.Duration `mapstructure:"publish_timeout" json:"publish_timeout"`
}

// ConsumerConfig 消费端配置。
type ConsumerConfig struct {
	PrefetchCount int  `mapstructure:"prefetch_count" json:"prefetch_count"`
	PrefetchSize  int  `mapstructure:"prefetch_size" json:"prefetch_size"`
	AutoAck       bool `mapstructure:"auto_ack" json:"auto_ack"`
	Exclusive     bool `mapstructure:"exclusive" json:"exclusive"`
	NoLocal       bool `mapstructure:"no_local" json:"no_local"`
	NoWait        bool `mapstructure:"no_wait" json:"no_wait"`

	EnableRetry      bool          `mapstructure:"enable_retry" json:"enable_retry"`
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts" json:"max_retry_attempts"`
	RetryInterval    time.Duration `mapstructure:"retry_interval" json:"retry_interval"`

	// 重试耗尽后消息经死信交换机转出
	EnableDLX     bool   `mapstructure:"enable_dlx" json:"enable_dlx"`
	DLXExchange   string `mapstructure:"dlx_exchange" json:"dlx_exchange"`
	DLXRoutingKey string `mapstructure:"dlx_routing_key" json:"dlx_routing_key"`

	ConsumeTimeout time.Duration `mapstructure:"consume_timeout" json:"consume_timeout"`

	ConcurrentConsumers int `mapstructure:"concurrent_consumers" json:"concurrent_consumers"`
}

// ExchangeConfig 交换机声明参数。
type ExchangeConfig struct {
	Name       string                 `mapstructure:"name" json:"name"`
	Type       string                 `mapstructure:"type" json:"type"`
	Durable    bool                   `mapstructure:"durable" json:"durable"`
	AutoDelete bool                   `mapstructure:"auto_delete" json:"auto_delete"`
	Internal   bool                   `mapstructure:"internal" json:"internal"`
	NoWait     bool                   `mapstructure:"no_wait" json:"no_wait"`
	Args       map[string]interface{} `mapstructure:"args" json:"args"`
}

// QueueConfig 队列声明参数及其绑定。
type QueueConfig struct {
	Name       string                 `mapstructure:"name" json:"name"`
	Durable    bool                   `mapstructure:"durable" json:"durable"`
	AutoDelete bool                   `mapstructure:"auto_delete" json:"auto_delete"`
	Exclusive  bool                   `mapstructure:"exclusive" json:"exclusive"`
	NoWait     bool                   `mapstructure:"no_wait" json:"no_wait"`
	Args       map[string]interface{} `mapstructure:"args" json:"args"`

	Bindings []*BindingConfig `mapstructure:"bindings" json:"bindings"`
}

// BindingConfig 队列到交换机的绑定。
type BindingConfig struct {
	Exchange   string                 `mapstructure:"exchange" json:"exchange"`
	RoutingKey string                 `mapstructure:"routing_key" json:"routing_key"`
	NoWait     bool                   `mapstructure:"no_wait" json:"no_wait"`
	Args       map[string]interface{} `mapstructure:"args" json:"args"`
}

// DefaultConfig 返回开箱可用的默认配置，指向本机RabbitMQ。
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5672,
		Username: "guest",
		Password: "guest",
		VHost:    "/",

		MaxChannels:       100,
		ConnectionTimeout: 30 * time.Second,
		HeartbeatInterval: 10 * time.Second,

		EnableReconnect:      true,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 10,

		Producer: &ProducerConfig{
			EnableConfirm:    true,
			ConfirmTimeout:   5 * time.Second,
			EnableRetry:      true,
			MaxRetryAttempts: 3,
			RetryInterval:    time.Second,
			PublishTimeout:   10 * time.Second,
		},

		Consumer: &ConsumerConfig{
			PrefetchCount:       10,
			EnableRetry:         true,
			MaxRetryAttempts:    3,
			RetryInterval:       time.Second,
			EnableDLX:           true,
			DLXExchange:         "dlx",
			DLXRoutingKey:       "failed",
			ConsumeTimeout:      30 * time.Second,
			ConcurrentConsumers: 1,
		},
	}
}

// GetConnectionURL 拼接 AMQP(S) 连接串。
func (c *Config) GetConnectionURL() string {
	scheme := "amqp"
	if c.UseTLS {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d%s",
		scheme, c.Username, c.Password, c.Host, c.Port, c.VHost)
}

// GetTLSConfig 构建 TLS 配置，未启用 TLS 时返回 nil。
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	if !c.UseTLS {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		ServerName:         c.TLSServerName,
		InsecureSkipVerify: c.TLSInsecureSkipVerify,
	}
	if c.TLSCertFile != "" && c.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// Validate 校验连接配置及内嵌的生产者/消费者配置。
func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("host is required")
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port must be between 1 and 65535")
	case c.Username == "":
		return fmt.Errorf("username is required")
	case c.MaxChannels <= 0:
		return fmt.Errorf("max_channels must be greater than 0")
	case c.ConnectionTimeout <= 0:
		return fmt.Errorf("connection_timeout must be greater than 0")
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("heartbeat_interval must be greater than 0")
	}

	if c.Producer != nil {
		if err := c.Producer.Validate(); err != nil {
			return fmt.Errorf("producer config: %w", err)
		}
	}
	if c.Consumer != nil {
		if err := c.Consumer.Validate(); err != nil {
			return fmt.Errorf("consumer config: %w", err)
		}
	}
	return nil
}

// Validate 校验生产者配置。
func (c *ProducerConfig) Validate() error {
	switch {
	case c.ConfirmTimeout <= 0:
		return fmt.Errorf("confirm_timeout must be greater than 0")
	case c.MaxRetryAttempts < 0:
		return fmt.Errorf("max_retry_attempts must be >= 0")
	case c.RetryInterval <= 0:
		return fmt.Errorf("retry_interval must be greater than 0")
	case c.PublishTimeout <= 0:
		return fmt.Errorf("publish_timeout must be greater than 0")
	}
	return nil
}

// Validate 校验消费者配置。
func (c *ConsumerConfig) Validate() error {
	switch {
	case c.PrefetchCount < 0:
		return fmt.Errorf("prefetch_count must be >= 0")
	case c.PrefetchSize < 0:
		return fmt.Errorf("prefetch_size must be >= 0")
	case c.MaxRetryAttempts < 0:
		return fmt.Errorf("max_retry_attempts must be >= 0")
	case c.RetryInterval <= 0:
		return fmt.Errorf("retry_interval must be greater than 0")
	case c.ConsumeTimeout <= 0:
		return fmt.Errorf("consume_timeout must be greater than 0")
	case c.ConcurrentConsumers <= 0:
		return fmt.Errorf("concurrent_consumers must be greater than 0")
	}
	return nil
}
