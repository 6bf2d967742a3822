package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cleanstreet/backend/metrics"

	"github.com/apex/log"
	"github.com/streadway/amqp"
)

const retryCountHeaderKey = "x-cleanstreet-retry-count"

// Message is a received RabbitMQ message.
type Message struct {
	Body        []byte
	RoutingKey  string
	ContentType string
	Timestamp   time.Time
	Attempt     int
}

func (m *Message) UnmarshalTo(v any) error {
	return json.Unmarshal(m.Body, v)
}

// CallbackFunc processes a message. Return nil to ack, Permanent(err) to drop
// the message, or any other error to retry it later.
type CallbackFunc func(msg *Message) error

// PermanentError marks a processing failure as non-retriable.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

type action string

const (
	actionAck   action = "ack"
	actionRetry action = "retry"
	actionDrop  action = "drop"
)

// decide maps a callback outcome to what happens to the delivery.
func decide(err error, attempts, maxRetries int) action {
	switch {
	case err == nil:
		return actionAck
	case IsPermanent(err):
		return actionDrop
	case attempts >= maxRetries:
		return actionDrop
	}
	return actionRetry
}

func retryCountFromHeaders(headers amqp.Table) int {
	v, ok := headers[retryCountHeaderKey]
	if !ok || v == nil {
		return 0
	}
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case string:
		parsed, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		n = int64(parsed)
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

func withRetryCountHeader(headers amqp.Table, next int) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out[retryCountHeaderKey] = int32(next)
	return out
}

// Subscriber consumes a durable queue with a bounded worker pool. Transient
// failures are parked in a retry queue whose TTL dead-letters them back to the
// main exchange.
type Subscriber struct {
	amqpURL    string
	exchange   string
	queue      string
	workers    int
	maxRetries int
	retryDelay time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel

	startOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewSubscriber(amqpURL, exchangeName, queueName string, workers, maxRetries int, retryDelay time.Duration) (*Subscriber, error) {
	if workers <= 0 {
		workers = 1
	}
	s := &Subscriber{
		amqpURL:    amqpURL,
		exchange:   exchangeName,
		queue:      queueName,
		workers:    workers,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.connectLocked(nil); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subscriber) retryExchange() string { return s.exchange + ".retry" }
func (s *Subscriber) retryQueue() string    { return s.queue + ".retry" }

func (s *Subscriber) connectLocked(routingKeys []string) error {
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}

	conn, err := amqp.Dial(s.amqpURL)
	if err != nil {
		metrics.RabbitMQConnected.WithLabelValues("subscriber").Set(0)
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		metrics.RabbitMQConnected.WithLabelValues("subscriber").Set(0)
		return fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(what string, err error) error {
		_ = ch.Close()
		_ = conn.Close()
		metrics.RabbitMQConnected.WithLabelValues("subscriber").Set(0)
		return fmt.Errorf("failed to declare %s: %w", what, err)
	}
	if err := ch.ExchangeDeclare(s.exchange, "direct", true, false, false, false, nil); err != nil {
		return fail("exchange", err)
	}
	if err := ch.ExchangeDeclare(s.retryExchange(), "direct", true, false, false, false, nil); err != nil {
		return fail("retry exchange", err)
	}
	if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
		return fail("queue", err)
	}
	if _, err := ch.QueueDeclare(s.retryQueue(), true, false, false, false, amqp.Table{
		"x-message-ttl":          int32(s.retryDelay / time.Millisecond),
		"x-dead-letter-exchange": s.exchange,
	}); err != nil {
		return fail("retry queue", err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(s.queue, key, s.exchange, false, nil); err != nil {
			return fail("binding", err)
		}
		if err := ch.QueueBind(s.retryQueue(), key, s.retryExchange(), false, nil); err != nil {
			return fail("retry binding", err)
		}
	}
	if err := ch.Qos(s.workers, 0, false); err != nil {
		return fail("qos", err)
	}

	s.conn = conn
	s.channel = ch
	metrics.RabbitMQConnected.WithLabelValues("subscriber").Set(1)
	return nil
}

// Start consumes messages and dispatches them to the callback registered for
// their routing key. It reconnects with exponential backoff until Close.
func (s *Subscriber) Start(callbacks map[string]CallbackFunc) {
	s.startOnce.Do(func() {
		keys := make([]string, 0, len(callbacks))
		for k := range callbacks {
			keys = append(keys, k)
		}

		jobs := make(chan amqp.Delivery, s.workers)
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				for d := range jobs {
					s.handle(d, callbacks)
				}
			}()
		}

		go func() {
			defer close(jobs)
			backoff := time.Second
			for {
				s.mu.Lock()
				err := s.connectLocked(keys)
				var msgs <-chan amqp.Delivery
				if err == nil {
					msgs, err = s.channel.Consume(s.queue, "", false, false, false, false, nil)
				}
				s.mu.Unlock()
				if err != nil {
					log.Errorf("rabbitmq consume setup failed queue=%s: %v", s.queue, err)
					select {
					case <-s.done:
						return
					case <-time.After(backoff):
					}
					if backoff < 30*time.Second {
						backoff *= 2
					}
					continue
				}
				log.Infof("rabbitmq consuming exchange=%s queue=%s workers=%d", s.exchange, s.queue, s.workers)
				backoff = time.Second

			consume:
				for {
					select {
					case <-s.done:
						return
					case d, ok := <-msgs:
						if !ok {
							metrics.RabbitMQConnected.WithLabelValues("subscriber").Set(0)
							log.Warnf("rabbitmq delivery channel closed queue=%s, reconnecting", s.queue)
							break consume
						}
						jobs <- d
					}
				}
			}
		}()
	})
}

func (s *Subscriber) handle(d amqp.Delivery, callbacks map[string]CallbackFunc) {
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	attempts := retryCountFromHeaders(d.Headers)
	var err error
	if callback, ok := callbacks[d.RoutingKey]; !ok {
		err = Permanent(fmt.Errorf("no callback for routing key %q", d.RoutingKey))
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = Permanent(fmt.Errorf("callback panic: %v", r))
				}
			}()
			err = callback(&Message{
				Body:        d.Body,
				RoutingKey:  d.RoutingKey,
				ContentType: d.ContentType,
				Timestamp:   d.Timestamp,
				Attempt:     attempts,
			})
		}()
	}

	act := decide(err, attempts, s.maxRetries)
	var ackErr error
	s.mu.Lock()
	switch act {
	case actionAck:
		ackErr = d.Ack(false)
	case actionDrop:
		ackErr = d.Nack(false, false)
	case actionRetry:
		if s.channel == nil {
			ackErr = d.Nack(false, true)
			break
		}
		pubErr := s.channel.Publish(s.retryExchange(), d.RoutingKey, false, false, amqp.Publishing{
			Headers:      withRetryCountHeader(d.Headers, attempts+1),
			ContentType:  d.ContentType,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    d.Timestamp,
		})
		if pubErr == nil {
			ackErr = d.Ack(false)
		} else {
			log.Warnf("rabbitmq retry publish failed, requeueing: %v", pubErr)
			ackErr = d.Nack(false, true)
		}
	}
	s.mu.Unlock()

	if ackErr != nil {
		metrics.AckErrorTotal.Inc()
	}
	metrics.ProcessedTotal.WithLabelValues(string(act)).Inc()
	if err != nil {
		log.Warnf("rabbitmq routing_key=%s attempt=%d action=%s err=%v", d.RoutingKey, attempts, act, err)
	}
}

// Close stops consuming, waits for in-flight messages and closes the connection.
func (s *Subscriber) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.channel != nil {
		err = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		if connErr := s.conn.Close(); connErr != nil && err == nil {
			err = connErr
		}
		s.conn = nil
	}
	metrics.RabbitMQConnected.WithLabelValues("subscriber").Set(0)
	return err
}
