package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultConsumerQueueName is the durable queue the worker consumes from.
const DefaultConsumerQueueName = "synapse.worker"

// RabbitMQConsumerConfig configures a RabbitMQConsumer.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Exchange  string
	Logger    *slog.Logger
}

// RabbitMQConsumer binds one durable queue to the routing keys of its
// registered consumers and dispatches deliveries through a ConsumerRegistry.
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	exchange string
	registry *ConsumerRegistry
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	closeCh chan struct{}
}

// NewRabbitMQConsumer dials the broker and declares the exchange and queue.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *ConsumerRegistry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultConsumerQueueName
	}
	if cfg.Exchange == "" {
		cfg.Exchange = ExchangeName
	}
	if registry == nil {
		registry = NewConsumerRegistry(cfg.Logger)
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareExchange(ch, cfg.Exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	cfg.Logger.Info("RabbitMQ consumer connected", "queue", cfg.QueueName, "exchange", cfg.Exchange)

	return &RabbitMQConsumer{
		conn:     conn,
		channel:  ch,
		queue:    cfg.QueueName,
		exchange: cfg.Exchange,
		registry: registry,
		logger:   cfg.Logger,
		closeCh:  make(chan struct{}),
	}, nil
}

// RegisterConsumer registers the consumer and binds its routing keys.
func (c *RabbitMQConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range consumer.EventTypes() {
		if err := c.channel.QueueBind(c.queue, key, c.exchange, false, nil); err != nil {
			c.logger.Error("failed to bind queue", "routing_key", key, "error", err)
		}
	}
}

// Start consumes until ctx is cancelled or Close is called.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("started consuming events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closeCh:
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed unexpectedly")
			}
			c.settle(msg, c.deliver(ctx, msg.RoutingKey, msg.Body))
		}
	}
}

// deliver dispatches one message body. It returns true when the message
// should be requeued.
func (c *RabbitMQConsumer) deliver(ctx context.Context, routingKey string, body []byte) bool {
	event := &ConsumedEvent{}
	if err := json.Unmarshal(body, event); err != nil {
		// Poison message: ack and drop.
		c.logger.Error("failed to unmarshal event", "routing_key", routingKey, "error", err)
		return false
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}

	if err := c.registry.Dispatch(ctx, event); err != nil {
		return true
	}
	return false
}

func (c *RabbitMQConsumer) settle(msg amqp.Delivery, requeue bool) {
	var err error
	if requeue {
		err = msg.Nack(false, true)
	} else {
		err = msg.Ack(false)
	}
	if err != nil {
		c.logger.Error("failed to settle message", "routing_key", msg.RoutingKey, "requeue", requeue, "error", err)
	}
}

// Close stops Start and closes the connection.
func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closeCh:
	default:
		close(c.closeCh)
	}
	c.running = false

	if err := c.channel.Close(); err != nil {
		c.logger.Warn("error closing channel", "error", err)
	}
	return c.conn.Close()
}
