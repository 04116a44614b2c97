package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// rabbitConn is the connection plus channel shared by publisher and consumer.
type rabbitConn struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	Queue string
}

// dialQueue connects and declares a durable queue.
func dialQueue(url, queue string) (*rabbitConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	return &rabbitConn{conn: conn, ch: ch, Queue: queue}, nil
}

func (r *rabbitConn) Close() {
	if r == nil {
		return
	}
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

// RabbitPublisher publishes JSON messages to one queue on the default exchange.
type RabbitPublisher struct {
	*rabbitConn
	mu sync.Mutex
}

func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	rc, err := dialQueue(url, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{rabbitConn: rc}, nil
}

// PublishJSON publishes a persistent JSON-encoded message.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}

// RabbitConsumer reads deliveries with manual acks.
type RabbitConsumer struct {
	*rabbitConn
}

// NewRabbitConsumer sets prefetch for fair dispatch and starts consuming.
func NewRabbitConsumer(url, queue string, prefetch int) (*RabbitConsumer, <-chan amqp.Delivery, error) {
	rc, err := dialQueue(url, queue)
	if err != nil {
		return nil, nil, err
	}
	if err := rc.ch.Qos(prefetch, 0, false); err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("qos: %w", err)
	}
	msgs, err := rc.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("consume: %w", err)
	}
	return &RabbitConsumer{rabbitConn: rc}, msgs, nil
}
