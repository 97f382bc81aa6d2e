package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/storebridge/paypal-bridge/internal/application"
	"github.com/storebridge/paypal-bridge/internal/logger"
	"github.com/storebridge/paypal-bridge/internal/nonce"
)

// CompletionEvent is the payment backend's out-of-band completion signal,
// a redundant channel next to the HTTP callback. Finalization is
// idempotent, so receiving both is harmless.
type CompletionEvent struct {
	OrderID       string `json:"order_id"`
	PayPalOrderID string `json:"paypal_order_id"`
	TransactionID string `json:"transaction_id"`
}

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

func StartConsumer(ctx context.Context, fin *application.Finalizer, tokens *nonce.Verifier, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("kafka consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()

		backoff := time.Millisecond * 300
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("kafka fetch error", "err", err)
				time.Sleep(backoff)
				continue
			}

			var ev CompletionEvent
			if err = json.Unmarshal(m.Value, &ev); err != nil {
				logger.Warn("kafka invalid completion event, skip and commit", "err", err)
				_ = r.CommitMessages(ctx, m)
				continue
			}

			_, err = fin.CompleteOrder(ctx, &application.CompleteOrderRequest{
				Nonce:         tokens.Issue(nonce.FlowCheckout),
				OrderID:       ev.OrderID,
				PayPalOrderID: ev.PayPalOrderID,
				TransactionID: ev.TransactionID,
			})
			if err != nil {
				var verr *application.ValidationError
				if errors.Is(err, application.ErrNotFound) || errors.As(err, &verr) {
					// Malformed or stale event; retrying will not help.
					logger.Warn("completion event rejected, skip and commit", "order_id", ev.OrderID, "err", err)
					_ = r.CommitMessages(ctx, m)
					continue
				}
				logger.Warn("complete order failed, will retry", "order_id", ev.OrderID, "err", err)
				time.Sleep(backoff)
				continue
			}

			logger.Info("order completed from event", "order_id", ev.OrderID)

			if err := r.CommitMessages(ctx, m); err != nil {
				logger.Warn("[kafka] commit failed", "err", err)
			} else {
				logger.Info("[kafka] committed", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "order_id", ev.OrderID)
			}
		}
	}()
	return r, nil
}
