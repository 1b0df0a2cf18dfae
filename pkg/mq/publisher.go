package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher 面向 exchange 的发布者。channel 开启 confirm 模式，
// Publish 在收到 broker ack 前不返回成功，调用方（outbox 中继）据此
// 决定是否将消息标记为已发送。
type Publisher struct {
	conn *Connection

	mu       sync.Mutex
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
	declared map[string]bool
}

// NewPublisher 创建发布者
func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{
		conn:     conn,
		declared: make(map[string]bool),
	}
}

// Publish 将消息以持久化模式发布到指定 fanout exchange，并等待 broker 确认。
// exchange 若未声明则先声明，声明参数必须与消费者侧完全一致。
func (p *Publisher) Publish(ctx context.Context, exchange string, messageID string, body []byte, headers amqp.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	if !p.declared[exchange] {
		if err := declareFanoutExchange(p.ch, exchange); err != nil {
			p.reset()
			return fmt.Errorf("declare exchange %s: %w", exchange, err)
		}
		p.declared[exchange] = true
	}

	return p.publish(ctx, exchange, "", messageID, body, headers)
}

// PublishToQueue 通过 default exchange 将消息直接投递到指定队列。
// 消费者运行时用它带着递增后的 x-attempts 重新排队需要重试的消息。
func (p *Publisher) PublishToQueue(ctx context.Context, queue string, messageID string, body []byte, headers amqp.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	return p.publish(ctx, "", queue, messageID, body, headers)
}

// publish 发布单条消息并等待确认，调用方需持有锁
func (p *Publisher) publish(ctx context.Context, exchange, routingKey, messageID string, body []byte, headers amqp.Table) error {
	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
	}

	if err := p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish to %q/%q: %w", exchange, routingKey, err)
	}

	// confirm 模式下逐条等待 ack；发布端一次只有一条在途消息
	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			p.reset()
			return ErrNotConnected
		}
		if !confirm.Ack {
			return fmt.Errorf("publish to %q/%q: broker nacked delivery %d", exchange, routingKey, confirm.DeliveryTag)
		}
		return nil
	case <-ctx.Done():
		p.reset()
		return ctx.Err()
	}
}

// ensureChannel 打开 confirm 模式的 channel，调用方需持有锁
func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return fmt.Errorf("enable confirm mode: %w", err)
	}

	p.ch = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.declared = make(map[string]bool)
	return nil
}

// reset 丢弃当前 channel，下一次发布时重建
func (p *Publisher) reset() {
	if p.ch != nil {
		p.ch.Close()
	}
	p.ch = nil
	p.confirms = nil
	p.declared = make(map[string]bool)
}

// Close 关闭发布者持有的 channel
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch.Close()
	}
	return nil
}

// declareFanoutExchange 声明 durable fanout exchange
func declareFanoutExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		amqp.ExchangeFanout,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}
