package mq

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wyfcoding/goerp/pkg/logger"
	"github.com/wyfcoding/goerp/pkg/metrics"
)

// attemptsHeader 记录消息的投递尝试次数，首次投递为 1
const attemptsHeader = "x-attempts"

// Delivery 投递给处理函数的消息
type Delivery struct {
	Queue       string
	MessageID   string
	Body        []byte
	Headers     amqp.Table
	Redelivered bool
	// Attempts 本条消息的第几次投递尝试，从 1 开始
	Attempts int
}

// Handler 消息处理函数。返回 nil 表示效果已应用（或为幂等空操作）；
// 返回 Permanent 包装的错误表示消息不可重试；其余错误视为瞬时失败。
type Handler func(ctx context.Context, d Delivery) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	// Queue 本服务在该 exchange 上独占的命名 durable 队列；
	// 同一服务的多个实例共享此队列（竞争消费）
	Queue string
	// Exchange 绑定的 fanout exchange
	Exchange string
	// MaxAttempts 单条消息最大投递尝试次数，超限进入死信队列
	MaxAttempts int
	// HandleTimeout 单条消息处理超时
	HandleTimeout time.Duration
}

// Consumer 单队列消费者运行时。每个 channel 同一时刻只有一条在途消息，
// 保证同一队列上同一自然键的效果按 FIFO 顺序应用。
type Consumer struct {
	conn    *Connection
	pub     *Publisher
	cfg     ConsumerConfig
	handler Handler
	metrics *metrics.Metrics

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewConsumer 创建消费者。pub 用于带计数重新排队需要重试的消息。
func NewConsumer(conn *Connection, pub *Publisher, cfg ConsumerConfig, handler Handler, m *metrics.Metrics) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 30 * time.Second
	}
	return &Consumer{
		conn:    conn,
		pub:     pub,
		cfg:     cfg,
		handler: handler,
		metrics: m,
		quit:    make(chan struct{}),
	}
}

// Start 启动消费循环。阻塞直到 ctx 取消或 Stop 被调用；
// channel 断开后自动重建拓扑并继续消费。
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.quit:
			return nil
		default:
		}

		if err := c.consume(ctx); err != nil {
			logger.Warn(ctx, "consumer interrupted, will retry",
				"queue", c.cfg.Queue, "error", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return nil
			case <-c.quit:
				return nil
			}
		}
	}
}

// Stop 停止接收新消息，等待在途消息处理完毕
func (c *Consumer) Stop() {
	c.once.Do(func() { close(c.quit) })
	c.wg.Wait()
}

// consume 建立拓扑并处理消息，直到出错或收到停止信号
func (c *Consumer) consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.declareTopology(ch); err != nil {
		return err
	}

	// 单条在途消息，避免同一队列上的效果被并发交错应用
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		c.cfg.Queue,
		"",    // consumerTag 由 broker 生成
		false, // autoAck：必须手动确认
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	logger.Info(ctx, "consumer started",
		"queue", c.cfg.Queue, "exchange", c.cfg.Exchange)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.quit:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("mq: delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

// declareTopology 声明 exchange、死信拓扑与本服务队列并完成绑定。
// 声明是幂等的，但参数必须与发布者完全一致。
func (c *Consumer) declareTopology(ch *amqp.Channel) error {
	if err := declareFanoutExchange(ch, c.cfg.Exchange); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}

	dlx := c.cfg.Queue + ".dlx"
	dlq := c.cfg.Queue + ".dlq"

	if err := declareFanoutExchange(ch, dlx); err != nil {
		return fmt.Errorf("declare dead-letter exchange %s: %w", dlx, err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue %s: %w", dlq, err)
	}

	if _, err := ch.QueueDeclare(
		c.cfg.Queue,
		true,  // durable：消息不能因重启丢失
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{"x-dead-letter-exchange": dlx},
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}

	// fanout 绑定不带 routing key，exchange 上的每条消息都会进入本队列
	if err := ch.QueueBind(c.cfg.Queue, "", c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.cfg.Queue, err)
	}

	return nil
}

// handleDelivery 调用处理函数并根据结果确认消息
func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	attempts := attemptsFrom(d.Headers)

	handleCtx, cancel := context.WithTimeout(ctx, c.cfg.HandleTimeout)
	defer cancel()

	start := time.Now()
	err := c.handler(handleCtx, Delivery{
		Queue:       c.cfg.Queue,
		MessageID:   d.MessageId,
		Body:        d.Body,
		Headers:     d.Headers,
		Redelivered: d.Redelivered,
		Attempts:    attempts,
	})
	if c.metrics != nil {
		c.metrics.MessageHandleDuration.WithLabelValues(c.cfg.Queue).Observe(time.Since(start).Seconds())
	}

	switch decide(err, attempts, c.cfg.MaxAttempts) {
	case decisionAck:
		if ackErr := d.Ack(false); ackErr != nil {
			logger.Error(ctx, "failed to ack message",
				"queue", c.cfg.Queue, "message_id", d.MessageId, "error", ackErr)
		}
		c.observe("ack")

	case decisionRetry:
		c.retry(ctx, d, attempts, err)

	case decisionDeadLetter:
		logger.Error(ctx, "message dead-lettered",
			"queue", c.cfg.Queue, "message_id", d.MessageId,
			"attempts", attempts, "error", err)
		// reject 不重新入队，broker 经 DLX 路由到 <queue>.dlq
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Error(ctx, "failed to nack message",
				"queue", c.cfg.Queue, "message_id", d.MessageId, "error", nackErr)
		}
		c.observe("dead_letter")
	}
}

// retry 以递增后的尝试计数把消息重新排到本队列末尾，再确认原消息。
// 重新发布失败则退回 broker 原生 requeue，计数不增长但消息不丢。
// 注意排到队尾会让后续消息超车：重试期间同一自然键的 FIFO 顺序被放宽，
// 效果层按自然键幂等且按增量应用，乱序不会改变最终状态。
func (c *Consumer) retry(ctx context.Context, d amqp.Delivery, attempts int, cause error) {
	logger.Warn(ctx, "transient failure, requeueing message",
		"queue", c.cfg.Queue, "message_id", d.MessageId,
		"attempt", attempts, "error", cause)

	headers := amqp.Table{}
	maps.Copy(headers, d.Headers)
	headers[attemptsHeader] = int32(attempts + 1)

	if err := c.pub.PublishToQueue(ctx, c.cfg.Queue, d.MessageId, d.Body, headers); err != nil {
		logger.Error(ctx, "failed to republish for retry, falling back to broker requeue",
			"queue", c.cfg.Queue, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Error(ctx, "failed to nack message",
				"queue", c.cfg.Queue, "message_id", d.MessageId, "error", nackErr)
		}
		c.observe("requeue")
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		logger.Error(ctx, "failed to ack message after republish",
			"queue", c.cfg.Queue, "message_id", d.MessageId, "error", ackErr)
	}
	c.observe("requeue")
}

func (c *Consumer) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.MessagesConsumedTotal.WithLabelValues(c.cfg.Queue, outcome).Inc()
	}
}

// ackDecision 单条消息的确认决策
type ackDecision int

const (
	decisionAck ackDecision = iota
	decisionRetry
	decisionDeadLetter
)

// decide 根据处理结果与尝试次数决定确认方式
func decide(err error, attempts, maxAttempts int) ackDecision {
	if err == nil {
		return decisionAck
	}
	if IsPermanent(err) {
		return decisionDeadLetter
	}
	if attempts >= maxAttempts {
		return decisionDeadLetter
	}
	return decisionRetry
}

// attemptsFrom 读取投递尝试计数，缺失时视为首次投递
func attemptsFrom(headers amqp.Table) int {
	if headers == nil {
		return 1
	}
	switch v := headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}
