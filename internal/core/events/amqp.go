package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultDialTimeout 建连与握手上限；发布 ctx 的 deadline 更短时以 ctx 为准
const DefaultDialTimeout = 3 * time.Second

// AMQPPublisher 长连接 + 每次发布独立 channel；连接断开后下次发布重连
type AMQPPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	if queue == "" {
		queue = TypeUserRegistered
	}
	return &AMQPPublisher{url: url, queue: queue, dialTimeout: DefaultDialTimeout}
}

// New url 为空返回 Nop
func New(url, queue string) Publisher {
	if url == "" {
		return Nop{}
	}
	return NewAMQPPublisher(url, queue)
}

func (p *AMQPPublisher) current() *amqp.Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn
	}
	return nil
}

// connection 拨号不持锁，并发拨号时后到者关闭自己的连接
func (p *AMQPPublisher) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn := p.current(); conn != nil {
		return conn, nil
	}
	timeout := p.dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("rabbitmq: dial: %w", err)
		}
		return nil, fmt.Errorf("rabbitmq: dial: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Locale: "en_US",
		Dial:   amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil && !p.conn.IsClosed() {
		_ = conn.Close()
		return p.conn, nil
	}
	p.conn = conn
	return conn, nil
}

func (p *AMQPPublisher) PublishUserRegistered(ctx context.Context, e UserRegistered) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}
	return p.publish(ctx, registeredMessage(e, body))
}

// registeredMessage 时间戳取事件自身的注册时间
func registeredMessage(e UserRegistered, body []byte) amqp.Publishing {
	ts := e.RegisteredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // durable，broker 重启不丢
		Timestamp:    ts.UTC(),
		Type:         TypeUserRegistered,
		Body:         body,
	}
}

func (p *AMQPPublisher) publish(ctx context.Context, msg amqp.Publishing) error {
	conn, err := p.connection(ctx)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}
