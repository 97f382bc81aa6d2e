package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/storebridge/paypal-bridge/internal/domain"
	"github.com/storebridge/paypal-bridge/internal/logger"
	"github.com/storebridge/paypal-bridge/internal/nonce"
	"github.com/storebridge/paypal-bridge/internal/repository"
)

type CompleteOrderRequest struct {
	Nonce         string `json:"nonce"`
	OrderID       string `json:"order_id"`
	PayPalOrderID string `json:"paypal_order_id"`
	TransactionID string `json:"transaction_id"`

	// Optional live checkout session, used as a recovery source when the
	// order carries no shipping snapshot.
	Session *domain.CheckoutSession `json:"session,omitempty"`
}

type CompleteOrderResponse struct {
	Redirect string `json:"redirect"`
}

// Finalizer drives a pending order to its paid state exactly once, after
// the payment backend signals completion. Completion signals may arrive
// more than once (retries, double clicks, duplicate webhooks), so every
// path through here is idempotent.
type Finalizer struct {
	repo   repository.OrderRepo
	events Publisher
	tokens TokenVerifier

	// Last-resort shipping cost for the flat-rate recovery step, supplied
	// by the deployment.
	fallbackShippingCents int64
}

func NewFinalizer(repo repository.OrderRepo, events Publisher, tokens TokenVerifier, fallbackShippingCents int64) *Finalizer {
	return &Finalizer{
		repo:                  repo,
		events:                events,
		tokens:                tokens,
		fallbackShippingCents: fallbackShippingCents,
	}
}

func (f *Finalizer) CompleteOrder(ctx context.Context, req *CompleteOrderRequest) (*CompleteOrderResponse, error) {
	if !f.tokens.Verify(nonce.FlowCheckout, req.Nonce) {
		return nil, ErrUnauthorized
	}
	if req.OrderID == "" || req.PayPalOrderID == "" {
		return nil, NewValidationError("order_id", "order_id and paypal_order_id are required")
	}
	id, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, NewValidationError("order_id", "order_id is not a valid identifier")
	}

	o, err := f.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Idempotence gate: an already-paid order is a successful no-op.
	if o.Status.Paid() {
		logger.Info("order already paid, returning receipt", "order_id", o.ID)
		return &CompleteOrderResponse{Redirect: receiptURL(o)}, nil
	}

	if err := f.repairShipping(ctx, o, req.Session); err != nil {
		logger.Warn("shipping repair failed", "order_id", o.ID, "err", err)
		return nil, err
	}

	note := fmt.Sprintf("PayPal payment completed. PayPal Order ID: %s, Transaction ID: %s",
		req.PayPalOrderID, req.TransactionID)

	err = f.repo.MarkPaid(ctx, o.ID, req.PayPalOrderID, req.TransactionID, note)
	switch {
	case errors.Is(err, repository.ErrAlreadyPaid):
		// Lost the race to a concurrent completion; same outcome.
		logger.Info("order paid concurrently", "order_id", o.ID)
		return &CompleteOrderResponse{Redirect: receiptURL(o)}, nil
	case errors.Is(err, repository.ErrOrderNotFound):
		return nil, ErrNotFound
	case err != nil:
		logger.Warn("mark paid failed", "order_id", o.ID, "err", err)
		return nil, err
	}

	o.Status = domain.StatusProcessing
	o.PayPalOrderID = req.PayPalOrderID
	o.TransactionID = req.TransactionID
	logger.Info("order completed", "order_id", o.ID, "transaction_id", req.TransactionID)

	// The storefront clears the originating cart on this event.
	if f.events != nil {
		if err := f.events.PublishOrderEvent(ctx, EventOrderCompleted, o); err != nil {
			logger.Warn("publish order.completed failed", "order_id", o.ID, "err", err)
		}
	}

	return &CompleteOrderResponse{Redirect: receiptURL(o)}, nil
}

// repairShipping restores shipping data lost since materialization,
// trying recovery sources in order: recorded snapshot, live session,
// recognized flat-rate method at the configured fallback cost. Each step
// is skipped when not applicable.
func (f *Finalizer) repairShipping(ctx context.Context, o *domain.Order, session *domain.CheckoutSession) error {
	if o.ShippingTotal > 0 {
		return nil
	}

	if len(o.Snapshots) > 0 {
		o.ShippingLines = o.ShippingLines[:0]
		for _, sn := range o.Snapshots {
			o.ShippingLines = append(o.ShippingLines, domain.ShippingLine{
				MethodID:    sn.MethodID,
				MethodTitle: sn.Label,
				TotalCents:  sn.CostCents,
				TaxCents:    sn.TaxCents,
			})
		}
		o.Recalculate()
		logger.Info("shipping restored from snapshot", "order_id", o.ID, "total_cents", o.ShippingTotal)
		return f.repo.UpdateShipping(ctx, o)
	}

	if session != nil && len(session.ChosenMethods) > 0 {
		restored := *o
		restored.ShippingLines = nil
		attachShipping(&restored, session)
		var total int64
		for _, sl := range restored.ShippingLines {
			total += sl.TotalCents
		}
		// Only a positive restored total counts as success; a structural
		// zero line must still fall through to the flat-rate step.
		if total > 0 {
			o.ShippingLines = restored.ShippingLines
			o.Recalculate()
			logger.Info("shipping restored from live session", "order_id", o.ID, "total_cents", o.ShippingTotal)
			return f.repo.UpdateShipping(ctx, o)
		}
	}

	if f.fallbackShippingCents > 0 && f.recordedFlatRate(o, session) {
		o.ShippingLines = []domain.ShippingLine{{
			MethodID:    "flat_rate",
			MethodTitle: "Flat rate shipping",
			TotalCents:  f.fallbackShippingCents,
		}}
		o.Recalculate()
		logger.Info("shipping restored from flat-rate fallback", "order_id", o.ID, "total_cents", o.ShippingTotal)
		return f.repo.UpdateShipping(ctx, o)
	}

	return nil
}

// recordedFlatRate checks every place a chosen method identifier may have
// survived: the order's own (zero-cost) shipping lines and the session.
func (f *Finalizer) recordedFlatRate(o *domain.Order, session *domain.CheckoutSession) bool {
	for _, sl := range o.ShippingLines {
		if strings.Contains(sl.MethodID, "flat_rate") {
			return true
		}
	}
	if session != nil && hasFlatRate(session.ChosenMethods) {
		return true
	}
	return false
}

func receiptURL(o *domain.Order) string {
	return "/checkout/order-received/" + o.ID.String() + "?key=" + o.OrderKey
}
