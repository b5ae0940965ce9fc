package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

const (
	ExchangeName = "case_exchange"
	QueueName    = "case_processing_queue"

	// MaxRetries is how often a failed message is redelivered before it is
	// moved to the dead-letter queue.
	MaxRetries = 10
	// RetryDelay is the time a failed message waits in the retry queue.
	RetryDelay = 10 * time.Second

	retriesHeader = "x-retries"
)

func Init(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares the topic exchange and binds the processing queue to
// topic. Each processing queue gets a _retry sibling that dead-letters back
// into it after RetryDelay and a _dlq sibling for messages that gave up.
func SetupQueues(ch *amqp091.Channel, topic string) error {
	err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("ExchangeDeclare failed: %w", err)
	}

	queues := map[string]amqp091.Table{
		QueueName:          nil,
		QueueName + "_dlq": nil,
		QueueName + "_retry": {
			"x-message-ttl":             int32(RetryDelay.Milliseconds()),
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": QueueName,
		},
	}
	for name, args := range queues {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			args,
		)
		if err != nil {
			return fmt.Errorf("QueueDeclare %s failed: %w", name, err)
		}
	}

	if err := ch.QueueBind(QueueName, topic, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("QueueBind failed: %w", err)
	}
	return nil
}

// channelPublisher is the part of *amqp091.Channel used for publishing.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// RabbitPublisher publishes case events to the topic exchange. It implements
// pipeline.Publisher.
type RabbitPublisher struct {
	ch channelPublisher
}

func NewRabbitPublisher(ch *amqp091.Channel) *RabbitPublisher {
	return &RabbitPublisher{ch: ch}
}

func (p *RabbitPublisher) Publish(ctx context.Context, topic string, body []byte) error {
	return p.ch.PublishWithContext(ctx, ExchangeName, topic, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

type disposition int

const (
	dispositionAck disposition = iota
	dispositionRetry
	dispositionDeadLetter
)

func (d disposition) String() string {
	switch d {
	case dispositionAck:
		return "ack"
	case dispositionRetry:
		return "retry"
	default:
		return "dead-letter"
	}
}

// decide maps the outcome of a handler to what happens with the message.
// retries is the number of redeliveries the message already had.
func decide(err error, retries int) disposition {
	switch {
	case err == nil:
		return dispositionAck
	case errors.Is(err, ErrPoisonMessage):
		return dispositionDeadLetter
	case retries >= MaxRetries:
		return dispositionDeadLetter
	default:
		return dispositionRetry
	}
}

func retriesOf(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// HandleDelivery acks msg on success. On failure the message is published to
// the retry queue with an incremented retry counter or, after MaxRetries or
// for poison messages, to the dead-letter queue. If that publish fails the
// message is requeued.
func HandleDelivery(ctx context.Context, ch channelPublisher, msg amqp091.Delivery, queueName string, processingErr error) {
	retries := retriesOf(msg.Headers)
	d := decide(processingErr, retries)

	if d == dispositionAck {
		if err := msg.Ack(false); err != nil {
			logger.Error("[Queue] Failed to ack message", "err", err)
		}
		return
	}

	logger.Error("[Queue] Error processing message", "queue", queueName, "retries", retries, "next", d, "err", processingErr)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	target := queueName + "_dlq"
	if d == dispositionRetry {
		target = queueName + "_retry"
		headers[retriesHeader] = int32(retries + 1)
	} else {
		logger.Info("[Queue] Sending message to DLQ", "dlq", target)
	}

	pubErr := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType: msg.ContentType,
		Body:        msg.Body,
		Headers:     headers,
	})
	if pubErr != nil {
		logger.Error("[Queue] Failed to publish message", "queue", target, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// ConsumeRabbit delivers messages of the processing queue to handler with at
// most concurrency handlers running at once. It returns when ctx is done or
// the delivery channel is closed.
func ConsumeRabbit(ctx context.Context, conn *amqp091.Connection, handler Handler, concurrency int) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.ConsumeWithContext(
		ctx,
		QueueName,
		QueueName+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logger.Info("[Queue] Listening for messages", "queue", QueueName, "concurrency", concurrency)

	var g errgroup.Group
	g.SetLimit(concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping consumer", "queue", QueueName)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] Message channel closed", "queue", QueueName)
				return nil
			}
			g.Go(func() error {
				err := handler(ctx, msg.Body)
				HandleDelivery(context.WithoutCancel(ctx), ch, msg, QueueName, err)
				return nil
			})
		}
	}
}
