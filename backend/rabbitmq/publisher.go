package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cleanstreet/backend/metrics"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

// Publisher sends JSON messages to a durable direct exchange. A dropped
// connection is re-dialed on the next publish.
type Publisher struct {
	amqpURL    string
	exchange   string
	routingKey string

	// mu serializes use of channel; amqp.Channel is not safe for concurrent use.
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewPublisher(amqpURL, exchangeName, routingKey string) (*Publisher, error) {
	p := &Publisher{
		amqpURL:    amqpURL,
		exchange:   exchangeName,
		routingKey: routingKey,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	p.closeLocked()

	conn, err := amqp.Dial(p.amqpURL)
	if err != nil {
		metrics.RabbitMQConnected.WithLabelValues("publisher").Set(0)
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		metrics.RabbitMQConnected.WithLabelValues("publisher").Set(0)
		return fmt.Errorf("failed to open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		p.exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		metrics.RabbitMQConnected.WithLabelValues("publisher").Set(0)
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	p.conn = conn
	p.channel = channel
	metrics.RabbitMQConnected.WithLabelValues("publisher").Set(1)
	return nil
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.channel != nil {
		if channelErr := p.channel.Close(); channelErr != nil {
			err = channelErr
		}
		p.channel = nil
	}
	if p.conn != nil {
		if connErr := p.conn.Close(); connErr != nil && err == nil {
			err = connErr
		}
		p.conn = nil
	}
	return err
}

// Publish sends message with the configured routing key.
func (p *Publisher) Publish(ctx context.Context, message any) error {
	return p.PublishWithRoutingKey(ctx, p.routingKey, message)
}

// PublishWithRoutingKey sends message with a custom routing key. A failed
// publish reconnects once and tries again.
func (p *Publisher) PublishWithRoutingKey(ctx context.Context, routingKey string, message any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message to JSON: %w", err)
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context done before publishing message: %w", err)
		}
		if p.conn == nil || p.conn.IsClosed() || p.channel == nil {
			if err = p.connectLocked(); err != nil {
				continue
			}
		}
		err = p.channel.Publish(p.exchange, routingKey, false, false, publishing)
		if err == nil {
			return nil
		}
		log.Warnf("rabbitmq publish to %s/%s failed, reconnecting: %v", p.exchange, routingKey, err)
		p.closeLocked()
		metrics.RabbitMQConnected.WithLabelValues("publisher").Set(0)
	}
	return fmt.Errorf("failed to publish message: %w", err)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	metrics.RabbitMQConnected.WithLabelValues("publisher").Set(0)
	return p.closeLocked()
}
