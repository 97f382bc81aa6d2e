package application

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/storebridge/paypal-bridge/internal/domain"
	"github.com/storebridge/paypal-bridge/internal/repository"
)

// OrderQuery is the read side used by the payment backend when it
// re-queries order state by identifier. Paid orders are terminal, so they
// are safe to cache in process; pending orders are always read through.
type OrderQuery struct {
	repo repository.OrderRepo
	mu   sync.RWMutex
	byID map[uuid.UUID]*domain.Order
}

func NewOrderQuery(r repository.OrderRepo) *OrderQuery {
	return &OrderQuery{
		repo: r,
		byID: make(map[uuid.UUID]*domain.Order),
	}
}

func (q *OrderQuery) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	q.mu.RLock()
	if o, ok := q.byID[id]; ok {
		q.mu.RUnlock()
		return o, nil
	}
	q.mu.RUnlock()

	o, err := q.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if o.Status.Paid() {
		q.mu.Lock()
		q.byID[o.ID] = o
		q.mu.Unlock()
	}
	return o, nil
}
