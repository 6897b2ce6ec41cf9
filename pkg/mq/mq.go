// Package mq RabbitMQ发布/消费的薄封装
//
// 消息流：
//
//	Publisher → Exchange(direct) → Queue → Consumer(手动ACK)
//
// 重试与死信由上层（internal/infrastructure/queue）通过DeclareQueue声明延迟队列实现。
package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xiebiao/bookcatalog/pkg/metrics"
)

// Message 待发布的消息
type Message struct {
	Body       []byte
	Headers    amqp.Table
	Expiration string // 消息TTL（毫秒字符串），用于延迟重试
}

// Publisher 消息发布者
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex // Channel上的发布串行化
	logger   *slog.Logger
}

// NewPublisher 创建发布者并声明持久化Exchange
func NewPublisher(url, exchange, exchangeType string, logger *slog.Logger) (*Publisher, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		closeAll(ch, conn)
		return nil, fmt.Errorf("声明Exchange失败: %w", err)
	}

	logger.Info("消息发布者已创建", "exchange", exchange, "type", exchangeType)
	return &Publisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// Exchange 发布使用的Exchange名称
func (p *Publisher) Exchange() string {
	return p.exchange
}

// DeclareQueue 声明持久化队列并（可选）绑定到发布者的Exchange
// routingKey为空时不绑定（如延迟队列、死信队列只通过默认Exchange投递）
func (p *Publisher) DeclareQueue(name, routingKey string, args amqp.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.channel.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("声明Queue %s 失败: %w", name, err)
	}
	if routingKey == "" {
		return nil
	}
	if err := p.channel.QueueBind(name, routingKey, p.exchange, false, nil); err != nil {
		return fmt.Errorf("绑定Queue %s 失败: %w", name, err)
	}
	return nil
}

// Publish 发布到Exchange
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg Message) error {
	return p.publish(ctx, p.exchange, routingKey, msg)
}

// PublishToQueue 通过默认Exchange直接投递到队列
func (p *Publisher) PublishToQueue(ctx context.Context, queue string, msg Message) error {
	return p.publish(ctx, "", queue, msg)
}

func (p *Publisher) publish(ctx context.Context, exchange, routingKey string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg.Body,
		Headers:      msg.Headers,
		Expiration:   msg.Expiration,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("发布消息失败: %w", err)
	}

	metrics.RecordPublish(exchange, routingKey)
	p.logger.DebugContext(ctx, "消息已发布", "exchange", exchange, "routing_key", routingKey)
	return nil
}

// Close 关闭Channel和连接
func (p *Publisher) Close() error {
	return closeAll(p.channel, p.conn)
}

// Consumer 消息消费者（手动ACK）
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *slog.Logger
}

// NewConsumer 创建消费者，声明Exchange与队列并按routingKeys绑定
func NewConsumer(url, exchange, exchangeType, queue string, routingKeys []string, logger *slog.Logger) (*Consumer, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
		closeAll(ch, conn)
		return nil, fmt.Errorf("声明Exchange失败: %w", err)
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		closeAll(ch, conn)
		return nil, fmt.Errorf("声明Queue失败: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			closeAll(ch, conn)
			return nil, fmt.Errorf("绑定Queue失败: %w", err)
		}
	}

	logger.Info("消息消费者已创建", "queue", q.Name, "routing_keys", routingKeys)
	return &Consumer{conn: conn, channel: ch, queue: q.Name, logger: logger}, nil
}

// Queue 消费的队列名称
func (c *Consumer) Queue() string {
	return c.queue
}

// Handler 消息处理函数
// 返回nil时ACK；返回error时NACK并重新入队
type Handler func(ctx context.Context, d amqp.Delivery) error

// ErrChannelClosed 服务端关闭了消费Channel
var ErrChannelClosed = errors.New("消息Channel已关闭")

// Consume 阻塞消费直到ctx取消
// prefetch为同时未确认的最大消息数
func (c *Consumer) Consume(ctx context.Context, prefetch int, handler Handler) error {
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("设置Qos失败: %w", err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("开始消费失败: %w", err)
	}

	c.logger.Info("开始消费消息", "queue", c.queue, "prefetch", prefetch)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("消费者退出", "queue", c.queue)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}

			start := time.Now()
			if err := handler(ctx, msg); err != nil {
				c.logger.WarnContext(ctx, "消息处理失败，重新入队", "queue", c.queue, "error", err)
				_ = msg.Nack(false, true)
				metrics.ObserveConsume(c.queue, metrics.ResultFailure, time.Since(start))
				continue
			}
			_ = msg.Ack(false)
			metrics.ObserveConsume(c.queue, metrics.ResultSuccess, time.Since(start))
		}
	}
}

// Close 关闭Channel和连接
func (c *Consumer) Close() error {
	return closeAll(c.channel, c.conn)
}

func dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("连接RabbitMQ失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("创建Channel失败: %w", err)
	}
	return conn, ch, nil
}

func closeAll(ch *amqp.Channel, conn *amqp.Connection) error {
	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
