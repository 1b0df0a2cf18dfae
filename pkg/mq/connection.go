// Package mq 封装 RabbitMQ 连接管理、发布者与消费者运行时。
// 交换机统一为 durable fanout，队列为命名 durable 队列，手动确认，
// 投递失败按 x-attempts 计数有界重试，超限进入死信队列。
package mq

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wyfcoding/goerp/pkg/logger"
)

var (
	// ErrNotConnected 尚未建立连接或连接已断开
	ErrNotConnected = errors.New("mq: not connected to broker")
	// ErrShutdown 连接已主动关闭
	ErrShutdown = errors.New("mq: connection is shutting down")
)

// ConnectionConfig 连接配置
type ConnectionConfig struct {
	URL            string
	ReconnectDelay time.Duration
	// MaxReconnects 为 0 表示无限重连
	MaxReconnects int
}

// Connection 进程级共享连接，断线后自动重连。
// 每个服务进程持有一个 Connection，发布者与各消费者从中派生自己的 channel。
type Connection struct {
	config ConnectionConfig

	mu             sync.RWMutex
	conn           *amqp.Connection
	closed         bool
	reconnectCount int
}

// NewConnection 创建连接管理器，需随后调用 Connect
func NewConnection(cfg ConnectionConfig) *Connection {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	return &Connection{config: cfg}
}

// Connect 建立到 broker 的连接并启动断线监听
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrShutdown
	}

	conn, err := amqp.Dial(c.config.URL)
	if err != nil {
		return err
	}

	c.conn = conn
	c.reconnectCount = 0

	go c.watchClose(conn)

	logger.Info(context.Background(), "connected to broker", "url", redactURL(c.config.URL))
	return nil
}

// watchClose 监听连接关闭事件并按配置重连
func (c *Connection) watchClose(conn *amqp.Connection) {
	err := <-conn.NotifyClose(make(chan *amqp.Error))
	if err != nil {
		logger.Warn(context.Background(), "broker connection closed", "error", err)
	}

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if c.config.MaxReconnects > 0 && c.reconnectCount >= c.config.MaxReconnects {
			c.mu.Unlock()
			logger.Error(context.Background(), "broker reconnect attempts exhausted",
				"attempts", c.reconnectCount)
			return
		}
		c.reconnectCount++
		attempt := c.reconnectCount
		c.mu.Unlock()

		time.Sleep(c.config.ReconnectDelay)

		logger.Info(context.Background(), "reconnecting to broker", "attempt", attempt)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		conn, dialErr := amqp.Dial(c.config.URL)
		if dialErr != nil {
			c.mu.Unlock()
			logger.Warn(context.Background(), "broker reconnect failed", "attempt", attempt, "error", dialErr)
			continue
		}
		c.conn = conn
		c.reconnectCount = 0
		c.mu.Unlock()

		go c.watchClose(conn)
		logger.Info(context.Background(), "broker connection restored")
		return
	}
}

// Channel 基于当前连接打开一个新 channel。
// channel 不可跨 goroutine 共享，各消费者、发布者各自持有。
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, ErrShutdown
	}
	if c.conn == nil || c.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	return c.conn.Channel()
}

// IsConnected 返回当前连接是否可用
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.conn != nil && !c.conn.IsClosed() && !c.closed
}

// Close 关闭连接，之后不再重连
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

// redactURL 去掉连接串中的口令部分，便于安全地记录日志
func redactURL(url string) string {
	u, err := amqp.ParseURI(url)
	if err != nil {
		return "amqp://***"
	}
	u.Password = "***"
	return u.String()
}
