package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds connection and resilience settings for the AMQP client.
type Config struct {
	URL string

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	MaxRetries        int // -1 for infinite
	HeartbeatTimeout  time.Duration

	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// DefaultConfig returns sane defaults for a long-lived service connection.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Minute,
		MaxRetries:        -1,
		HeartbeatTimeout:  10 * time.Second,
		BreakerThreshold:  5,
		BreakerTimeout:    30 * time.Second,
	}
}

// Client is a reconnecting AMQP client publishing and consuming on the
// default exchange. Publishes run through a circuit breaker so a dead
// broker degrades to fast failures instead of piling up timeouts.
type Client struct {
	config Config
	mu     sync.RWMutex

	conn            *amqp.Connection
	ch              *amqp.Channel
	notifyConnClose chan *amqp.Error
	reconnecting    bool
	closed          bool

	breaker *breaker
}

func NewClient(config Config) (*Client, error) {
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = time.Second
	}
	if config.MaxReconnectDelay == 0 {
		config.MaxReconnectDelay = time.Minute
	}
	if config.HeartbeatTimeout == 0 {
		config.HeartbeatTimeout = 10 * time.Second
	}
	if config.BreakerThreshold == 0 {
		config.BreakerThreshold = 5
	}
	if config.BreakerTimeout == 0 {
		config.BreakerTimeout = 30 * time.Second
	}

	c := &Client{
		config: config,
		breaker: &breaker{
			threshold: config.BreakerThreshold,
			timeout:   config.BreakerTimeout,
		},
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.watchConnection()
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Info("connecting to rabbitmq", "url", maskURL(c.config.URL))

	conn, err := amqp.DialConfig(c.config.URL, amqp.Config{
		Heartbeat: c.config.HeartbeatTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	c.conn = conn
	c.ch = ch
	c.notifyConnClose = make(chan *amqp.Error, 1)
	c.conn.NotifyClose(c.notifyConnClose)
	c.reconnecting = false
	return nil
}

func (c *Client) watchConnection() {
	c.mu.RLock()
	closed := c.closed
	notify := c.notifyConnClose
	c.mu.RUnlock()
	if closed {
		return
	}

	if err := <-notify; err != nil {
		slog.Warn("rabbitmq connection lost, reconnecting", "error", err)
		c.reconnect()
	}
}

func (c *Client) reconnect() {
	c.mu.Lock()
	c.reconnecting = true
	c.mu.Unlock()

	backoff := c.config.ReconnectDelay
	for retries := 0; ; retries++ {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}
		if c.config.MaxRetries != -1 && retries >= c.config.MaxRetries {
			slog.Error("rabbitmq reconnect retries exhausted")
			return
		}

		if err := c.connect(); err == nil {
			slog.Info("rabbitmq reconnected")
			go c.watchConnection()
			return
		}

		time.Sleep(backoff)
		backoff *= 2
		if backoff > c.config.MaxReconnectDelay {
			backoff = c.config.MaxReconnectDelay
		}
	}
}

// DeclareQueue declares a durable queue.
func (c *Client) DeclareQueue(name string) (amqp.Queue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ch == nil {
		return amqp.Queue{}, fmt.Errorf("channel is not initialized")
	}
	return c.ch.QueueDeclare(name, true, false, false, false, nil)
}

// DeclareQueueWithDLQ declares a durable queue whose dead-lettered
// messages land on "<name>.dlq".
func (c *Client) DeclareQueueWithDLQ(name string) (amqp.Queue, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ch == nil {
		return amqp.Queue{}, fmt.Errorf("channel is not initialized")
	}

	dlq := name + ".dlq"
	if _, err := c.ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare DLQ: %w", err)
	}
	return c.ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	})
}

// Publish sends a JSON body to a queue via the default exchange.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	if !c.breaker.allow() {
		return fmt.Errorf("circuit breaker is open")
	}

	c.mu.RLock()
	if c.reconnecting || c.ch == nil {
		c.mu.RUnlock()
		c.breaker.recordFailure()
		return fmt.Errorf("connection is not available")
	}
	ch := c.ch
	c.mu.RUnlock()

	err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		c.breaker.recordFailure()
		return err
	}
	c.breaker.recordSuccess()
	return nil
}

// Consume delivers queue messages to the handler until ctx is cancelled.
// A nil handler return acks the message; an error nacks it for
// redelivery, so handlers must swallow permanent failures themselves.
func (c *Client) Consume(ctx context.Context, queue string, handler func(ctx context.Context, body []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		c.mu.RLock()
		if c.reconnecting || c.ch == nil {
			c.mu.RUnlock()
			time.Sleep(time.Second)
			continue
		}
		ch := c.ch
		c.mu.RUnlock()

		msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			slog.Warn("failed to register consumer", "queue", queue, "error", err)
			time.Sleep(2 * time.Second)
			continue
		}

		if err := c.drain(ctx, queue, msgs, handler); err != nil {
			return err
		}
		time.Sleep(c.config.ReconnectDelay)
	}
}

func (c *Client) drain(ctx context.Context, queue string, msgs <-chan amqp.Delivery, handler func(ctx context.Context, body []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				slog.Warn("consumer channel closed, waiting for reconnection", "queue", queue)
				return nil
			}
			if err := handler(ctx, d.Body); err != nil {
				slog.Warn("message handling failed", "queue", queue, "error", err)
				d.Nack(false, true)
			} else {
				d.Ack(false)
			}
		}
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && !c.reconnecting
}

func maskURL(url string) string {
	if parts := strings.Split(url, "@"); len(parts) > 1 {
		if prefix := strings.Split(parts[0], "://"); len(prefix) == 2 {
			return prefix[0] + "://***:***@" + parts[1]
		}
	}
	return url
}

// breaker is a minimal circuit breaker around publishes.
type breaker struct {
	mu          sync.Mutex
	failures    int
	threshold   int
	timeout     time.Duration
	lastFailure time.Time
	open        bool
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	// Half-open probe after the cooldown.
	return time.Since(b.lastFailure) > b.timeout
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	if b.failures >= b.threshold {
		b.open = true
	}
}
