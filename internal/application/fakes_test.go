package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storebridge/paypal-bridge/internal/domain"
	"github.com/storebridge/paypal-bridge/internal/logger"
	"github.com/storebridge/paypal-bridge/internal/nonce"
	"github.com/storebridge/paypal-bridge/internal/proxy"
	"github.com/storebridge/paypal-bridge/internal/repository"
)

func init() {
	logger.Init()
}

var testClock = func() time.Time {
	return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
}

func testTokens() *nonce.Verifier {
	return nonce.NewWithClock("test-secret", testClock)
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
	notes  map[uuid.UUID][]string

	createErr error
	markPaid  int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[uuid.UUID]*domain.Order),
		notes:  make(map[uuid.UUID][]string),
	}
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, o *domain.Order, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *o
	f.orders[o.ID] = &cp
	if note != "" {
		f.notes[o.ID] = append(f.notes[o.ID], note)
	}
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]domain.Item(nil), o.Items...)
	cp.ShippingLines = append([]domain.ShippingLine(nil), o.ShippingLines...)
	cp.Snapshots = append([]domain.ShippingSnapshot(nil), o.Snapshots...)
	return &cp, nil
}

func (f *fakeOrderRepo) UpdateShipping(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.orders[o.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	cur.ShippingLines = append([]domain.ShippingLine(nil), o.ShippingLines...)
	cur.ItemsTotal = o.ItemsTotal
	cur.ShippingTotal = o.ShippingTotal
	cur.ShippingTax = o.ShippingTax
	cur.CartTax = o.CartTax
	cur.Total = o.Total
	return nil
}

func (f *fakeOrderRepo) MarkPaid(_ context.Context, id uuid.UUID, paypalOrderID, transactionID, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status.Paid() {
		return repository.ErrAlreadyPaid
	}
	o.Status = domain.StatusProcessing
	o.PayPalOrderID = paypalOrderID
	o.TransactionID = transactionID
	if note != "" {
		f.notes[id] = append(f.notes[id], note)
	}
	f.markPaid++
	return nil
}

func (f *fakeOrderRepo) AppendNote(_ context.Context, id uuid.UUID, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[id] = append(f.notes[id], note)
	return nil
}

type fakeMappings struct {
	byProduct map[int64]int64
	err       error
}

func (f *fakeMappings) RemoteID(_ context.Context, productID, parentProductID int64) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	if id, ok := f.byProduct[productID]; ok {
		return id, true, nil
	}
	if parentProductID != 0 {
		if id, ok := f.byProduct[parentProductID]; ok {
			return id, true, nil
		}
	}
	return 0, false, nil
}

type fakeNotifier struct {
	enabled  bool
	err      error
	payloads []proxy.OrderPayload
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) StoreOrderData(_ context.Context, p proxy.OrderPayload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishOrderEvent(_ context.Context, event string, _ *domain.Order) error {
	f.events = append(f.events, event)
	return f.err
}
