package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/config"
)

// Message represents an invoice event consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// ErrClosed is returned by Consume once the client has been closed.
var ErrClosed = errors.New("messaging client closed")

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// noopClient is used when messaging is disabled.
type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, []byte, []byte, map[string]string) error { return nil }
func (n noopClient) Consume(ctx context.Context, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}
func (n noopClient) Topic() string { return n.topic }

// kafkaClient implements the Client via kafka-go. The consumer-group reader
// is created on the first Consume so publish-only processes never join the
// group.
type kafkaClient struct {
	writer    *kafka.Writer
	readerCfg kafka.ReaderConfig
	topic     string
	logger    *zap.Logger

	mu     sync.Mutex // guards reader and closed
	reader *kafka.Reader
	closed bool
}

func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error {
	msg := kafka.Message{Key: key, Value: value, Headers: toKafkaHeaders(headers)}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", k.topic, err)
	}
	return nil
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	reader, err := k.readerFor()
	if err != nil {
		return err
	}

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, io.EOF) {
				return ErrClosed
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handler(ctx, fromKafka(msg)); err != nil {
			// Uncommitted messages are redelivered after a rebalance or restart.
			k.logger.Error("message handler failed", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

// readerFor joins the consumer group on first use.
func (k *kafkaClient) readerFor() (*kafka.Reader, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, ErrClosed
	}
	if k.reader == nil {
		k.reader = kafka.NewReader(k.readerCfg)
	}
	return k.reader, nil
}

func (k *kafkaClient) close() error {
	k.mu.Lock()
	k.closed = true
	reader := k.reader
	k.mu.Unlock()

	err := k.writer.Close()
	if reader != nil {
		err = errors.Join(err, reader.Close())
	}
	return err
}

func fromKafka(msg kafka.Message) Message {
	return Message{
		Topic:   msg.Topic,
		Key:     append([]byte(nil), msg.Key...),
		Value:   append([]byte(nil), msg.Value...),
		Headers: fromKafkaHeaders(msg.Headers),
		Offset:  msg.Offset,
		Time:    msg.Time,
	}
}

func toKafkaHeaders(headers map[string]string) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(headers))
	for key, value := range headers {
		out = append(out, kafka.Header{Key: key, Value: []byte(value)})
	}
	return out
}

func fromKafkaHeaders(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")
		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		client := newKafkaClient(cfg.Messaging, logger)
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				logger.Info("closing kafka client")
				return client.close()
			},
		})
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

func newKafkaClient(cfg config.Messaging, logger *zap.Logger) *kafkaClient {
	kl := kafkaLogger{logger: logger.Named("kafka")}

	return &kafkaClient{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			// Publishes happen inline with a mutation request; do not wait for
			// a batch to fill.
			BatchTimeout: 10 * time.Millisecond,
			Transport: &kafka.Transport{
				ClientID:    cfg.Kafka.ClientID,
				DialTimeout: cfg.Kafka.ConnectTimeout,
			},
			Logger:      kl,
			ErrorLogger: kl,
		},
		readerCfg: kafka.ReaderConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.ConsumerGroup,
			Topic:          cfg.Kafka.Topic,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: cfg.Kafka.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  cfg.Kafka.ConnectTimeout,
				ClientID: cfg.Kafka.ClientID,
			},
			Logger:      kl,
			ErrorLogger: kl,
		},
		topic:  cfg.Kafka.Topic,
		logger: logger,
	}
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
