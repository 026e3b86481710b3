package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"lavka/internal/domain"
)

// OrderPlaced событие об успешно оформленном заказе
type OrderPlaced struct {
	OrderID    string             `json:"order_id"`
	CustomerID string             `json:"customer_id"`
	Total      string             `json:"total"`
	Lines      []domain.OrderLine `json:"lines"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Publisher публикует доменные события. Публикация идёт после коммита,
// её ошибки не влияют на результат оформления.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, e OrderPlaced) error
	Close() error
}

// NopPublisher заглушка для запуска без брокера
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
func (NopPublisher) Close() error                                         { return nil }

// KafkaPublisher пишет события в один топик, ключ — order_id
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

var _ Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, e OrderPlaced) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
