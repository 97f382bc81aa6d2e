package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/storebridge/paypal-bridge/internal/domain"
)

// OrderEvent is the lifecycle message published for the storefront. On
// order.completed the storefront clears the originating cart.
type OrderEvent struct {
	Event      string        `json:"event"`
	Order      *domain.Order `json:"order"`
	OccurredAt time.Time     `json:"occurred_at"`
}

type Producer struct {
	w *kafka.Writer
}

func NewProducer(brokersSTR, topic string) *Producer {
	brokers := strings.Split(brokersSTR, ",")

	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (p *Producer) Close() error {
	return p.w.Close()
}

func (p *Producer) PublishOrderEvent(ctx context.Context, event string, o *domain.Order) error {
	b, err := json.Marshal(OrderEvent{
		Event:      event,
		Order:      o,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.ID.String()),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event", Value: []byte(event)},
		},
	})
}
