// Package events publishes completed transactions to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"superpos/backend/internal/domain"
)

const DefaultTransactionTopic = "pos.transaction.completed"

type Publisher interface {
	PublishTransaction(ctx context.Context, tx domain.Transaction) error
	Close() error
}

type Noop struct{}

func (Noop) PublishTransaction(context.Context, domain.Transaction) error { return nil }

func (Noop) Close() error { return nil }

// TransactionCompleted is the message body written for every checkout.
type TransactionCompleted struct {
	Type        string             `json:"type"`
	OccurredAt  time.Time          `json:"occurred_at"`
	Transaction domain.Transaction `json:"transaction"`
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher dials the brokers with a synchronous producer that waits
// for all in-sync replicas.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTransactionTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishTransaction(_ context.Context, tx domain.Transaction) error {
	payload, err := json.Marshal(TransactionCompleted{
		Type:        "transaction.completed",
		OccurredAt:  tx.Timestamp,
		Transaction: tx,
	})
	if err != nil {
		return fmt.Errorf("marshal transaction event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(tx.ID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("send transaction event: %w", err)
	}

	p.logger.Debug("transaction event published",
		zap.String("topic", p.topic),
		zap.String("transaction_id", tx.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Hook adapts a publisher to the cart.CheckoutHook signature.
func Hook(p Publisher) func(ctx context.Context, tx domain.Transaction, customer *domain.Customer) error {
	return func(ctx context.Context, tx domain.Transaction, _ *domain.Customer) error {
		return p.PublishTransaction(ctx, tx)
	}
}
