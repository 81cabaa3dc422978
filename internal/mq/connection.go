package mq

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ConnectionState 连接生命周期状态。
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnectionManager 维护到RabbitMQ的单条连接及其通道池，
// 断线感知依赖AMQP心跳和NotifyClose，断开后按配置自动重连。
type ConnectionManager struct {
	config *Config
	logger *zap.Logger

	conn      *amqp.Connection
	connMutex sync.RWMutex
	state     int32 // ConnectionState，atomic 读写

	channelPool *ChannelPool

	stopCh         chan struct{}
	reconnectCount int32

	onConnected    func()
	onDisconnected func(error)
	onReconnected  func()
}

// NewConnectionManager 创建连接管理器，Connect 之前不产生任何网络活动。
func NewConnectionManager(config *Config, logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	cm := &ConnectionManager{
		config: config,
		logger: logger,
		state:  int32(StateDisconnected),
		stopCh: make(chan struct{}),
	}
	cm.channelPool = NewChannelPool(config.MaxChannels, cm)
	return cm
}

// dial 建立AMQP连接并存入管理器。
func (cm *ConnectionManager) dial() error {
	connConfig := amqp.Config{
		Heartbeat: cm.config.HeartbeatInterval,
		Locale:    "en_US",
	}
	if cm.config.UseTLS {
		tlsConfig, err := cm.config.GetTLSConfig()
		if err != nil {
			return fmt.Errorf("build tls config: %w", err)
		}
		connConfig.TLSClientConfig = tlsConfig
	}

	conn, err := amqp.DialConfig(cm.config.GetConnectionURL(), connConfig)
	if err != nil {
		return err
	}

	cm.connMutex.Lock()
	cm.conn = conn
	cm.connMutex.Unlock()

	atomic.StoreInt32(&cm.state, int32(StateConnected))
	return nil
}

// Connect 建立连接并启动断线监控。重复调用返回错误。
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("connection is already in progress or connected")
	}

	// 连接串含凭证，日志只记主机和端口
	cm.logger.Info("connecting to rabbitmq",
		zap.String("host", cm.config.Host),
		zap.Int("port", cm.config.Port),
		zap.String("vhost", cm.config.VHost),
	)

	if err := cm.dial(); err != nil {
		atomic.StoreInt32(&cm.state, int32(StateDisconnected))
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}

	cm.logger.Info("rabbitmq connected")
	go cm.monitorConnection()

	if cm.onConnected != nil {
		cm.onConnected()
	}
	return nil
}

// GetConnection 返回当前底层连接，可能为 nil。
func (cm *ConnectionManager) GetConnection() *amqp.Connection {
	cm.connMutex.RLock()
	defer cm.connMutex.RUnlock()
	return cm.conn
}

// GetChannel 从池中取通道。
func (cm *ConnectionManager) GetChannel() (*amqp.Channel, error) {
	return cm.channelPool.Get()
}

// ReturnChannel 归还通道到池。
func (cm *ConnectionManager) ReturnChannel(ch *amqp.Channel) {
	cm.channelPool.Return(ch)
}

// IsConnected 报告连接是否可用。
func (cm *ConnectionManager) IsConnected() bool {
	return atomic.LoadInt32(&cm.state) == int32(StateConnected)
}

// GetState 返回当前连接状态。
func (cm *ConnectionManager) GetState() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&cm.state))
}

// Close 停止监控、关闭通道池和连接。幂等。
func (cm *ConnectionManager) Close() error {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnected), int32(StateClosed)) &&
		!atomic.CompareAndSwapInt32(&cm.state, int32(StateDisconnected), int32(StateClosed)) &&
		!atomic.CompareAndSwapInt32(&cm.state, int32(StateReconnecting), int32(StateClosed)) {
		return nil
	}

	cm.logger.Info("closing rabbitmq connection")
	close(cm.stopCh)
	cm.channelPool.Close()

	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}
	return nil
}

// monitorConnection 等待连接关闭通知，触发断线处理。
func (cm *ConnectionManager) monitorConnection() {
	conn := cm.GetConnection()
	if conn == nil {
		return
	}

	closeCh := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeCh)

	select {
	case err := <-closeCh:
		// 主动 Close 时通知为 nil，无需处理
		if err != nil {
			cm.logger.Error("rabbitmq connection lost", zap.Error(err))
			cm.handleDisconnection(err)
		}
	case <-cm.stopCh:
	}
}

func (cm *ConnectionManager) handleDisconnection(err error) {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnected), int32(StateReconnecting)) {
		return
	}

	cm.logger.Warn("rabbitmq disconnected, starting reconnect", zap.Error(err))
	if cm.onDisconnected != nil {
		cm.onDisconnected(err)
	}
	if cm.config.EnableReconnect {
		go cm.reconnect()
	}
}

// reconnect 按固定间隔重试，MaxReconnectAttempts<=0 表示不限次数。
func (cm *ConnectionManager) reconnect() {
	defer func() {
		if r := recover(); r != nil {
			cm.logger.Error("panic during reconnect", zap.Any("panic", r))
		}
	}()

	maxAttempts := cm.config.MaxReconnectAttempts
	for attempts := 1; ; attempts++ {
		select {
		case <-cm.stopCh:
			return
		default:
		}

		atomic.AddInt32(&cm.reconnectCount, 1)
		cm.logger.Info("reconnecting to rabbitmq",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", maxAttempts))

		cm.connMutex.Lock()
		if cm.conn != nil {
			_ = cm.conn.Close()
			cm.conn = nil
		}
		cm.connMutex.Unlock()

		if err := cm.dial(); err == nil {
			cm.logger.Info("rabbitmq reconnected", zap.Int("attempts", attempts))
			if cm.onReconnected != nil {
				cm.onReconnected()
			}
			go cm.monitorConnection()
			return
		} else {
			cm.logger.Error("reconnect attempt failed", zap.Error(err), zap.Int("attempt", attempts))
		}

		if maxAttempts > 0 && attempts >= maxAttempts {
			cm.logger.Error("reconnect giving up", zap.Int("max_attempts", maxAttempts))
			atomic.StoreInt32(&cm.state, int32(StateDisconnected))
			return
		}

		select {
		case <-time.After(cm.config.ReconnectInterval):
		case <-cm.stopCh:
			return
		}
	}
}

// SetEventCallbacks 注册连接生命周期回调，须在 Connect 之前调用。
func (cm *ConnectionManager) SetEventCallbacks(
	onConnected func(),
	onDisconnected func(error),
	onReconnected func()) {
	cm.onConnected = onConnected
	cm.onDisconnected = onDisconnected
	cm.onReconnected = onReconnected
}

// ConnectionStats 连接统计。
type ConnectionStats struct {
	State            ConnectionState  `json:"state"`
	ReconnectCount   int32            `json:"reconnect_count"`
	ChannelPoolStats ChannelPoolStats `json:"channel_pool_stats"`
}

// GetStats 返回连接与通道池统计。
func (cm *ConnectionManager) GetStats() ConnectionStats {
	return ConnectionStats{
		State:            cm.GetState(),
		ReconnectCount:   atomic.LoadInt32(&cm.reconnectCount),
		ChannelPoolStats: cm.channelPool.GetStats(),
	}
}
