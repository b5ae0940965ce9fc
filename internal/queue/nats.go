package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/casegraph/pkg/logger"
)

const (
	StreamName   = "CASES"
	ConsumerName = "case-processing-group"

	fetchWait = 5 * time.Second
)

// NATSBus publishes and consumes case events on a JetStream stream. It
// implements pipeline.Publisher.
type NATSBus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSBus connects to url and makes sure the stream for subject exists.
func NewNATSBus(ctx context.Context, url string, subject string) (*NATSBus, error) {
	nc, err := nats.Connect(url, nats.Name("casegraph"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{subject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", StreamName, err)
	}

	return &NATSBus{nc: nc, js: js, subject: subject}, nil
}

func (b *NATSBus) Publish(ctx context.Context, topic string, body []byte) error {
	_, err := b.js.Publish(ctx, topic, body)
	return err
}

func (b *NATSBus) Close() {
	b.nc.Close()
}

// Consume fetches messages of the durable consumer and hands them to handler
// with at most concurrency handlers running at once. Failed messages are
// redelivered after RetryDelay up to MaxRetries times; poison messages and
// messages out of retries are terminated.
func (b *NATSBus) Consume(ctx context.Context, handler Handler, concurrency int) error {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: b.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    MaxRetries + 1,
		MaxAckPending: concurrency,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", ConsumerName, err)
	}

	logger.Info("[Queue] Consumer connected", "stream", StreamName, "consumer", ConsumerName, "concurrency", concurrency)

	var g errgroup.Group
	g.SetLimit(concurrency)
	defer g.Wait()

	for {
		if ctx.Err() != nil {
			logger.Info("[Queue] Stopping consumer", "consumer", ConsumerName)
			return nil
		}

		batch, err := consumer.Fetch(concurrency, jetstream.FetchMaxWait(fetchWait))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, nats.ErrTimeout) {
				logger.Warn("[Queue] Fetch failed", "err", err)
			}
			continue
		}

		for msg := range batch.Messages() {
			g.Go(func() error {
				err := handler(ctx, msg.Data())
				settle(msg, err)
				return nil
			})
		}
	}
}

func settle(msg jetstream.Msg, processingErr error) {
	retries := 0
	if meta, err := msg.Metadata(); err == nil && meta.NumDelivered > 0 {
		retries = int(meta.NumDelivered) - 1
	}

	var err error
	switch d := decide(processingErr, retries); d {
	case dispositionAck:
		err = msg.Ack()
	case dispositionRetry:
		logger.Error("[Queue] Error processing message", "retries", retries, "next", d, "err", processingErr)
		err = msg.NakWithDelay(RetryDelay)
	default:
		logger.Error("[Queue] Error processing message", "retries", retries, "next", d, "err", processingErr)
		err = msg.Term()
	}
	if err != nil {
		logger.Error("[Queue] Failed to settle message", "err", err)
	}
}
