package application

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storebridge/paypal-bridge/internal/domain"
	"github.com/storebridge/paypal-bridge/internal/logger"
	"github.com/storebridge/paypal-bridge/internal/nonce"
	"github.com/storebridge/paypal-bridge/internal/proxy"
	"github.com/storebridge/paypal-bridge/internal/repository"
)

const (
	EventOrderCreated   = "order.created"
	EventOrderCompleted = "order.completed"

	awaitingPaymentNote = "Awaiting PayPal payment"
)

// TokenVerifier guards the checkout flow against forged requests.
type TokenVerifier interface {
	Verify(flow, token string) bool
}

// Notifier delivers staged order data to the payment backend. Delivery is
// best-effort: the backend can re-query order state by identifier.
type Notifier interface {
	Enabled() bool
	StoreOrderData(ctx context.Context, p proxy.OrderPayload) error
}

// Publisher emits order lifecycle events. The storefront consumes
// order.completed to clear the originating cart.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event string, o *domain.Order) error
}

type CreateOrderRequest struct {
	Nonce                  string                 `json:"nonce"`
	Billing                domain.Address         `json:"billing_address"`
	Shipping               domain.Address         `json:"shipping_address"`
	ShipToDifferentAddress bool                   `json:"ship_to_different_address"`
	CreateAccount          bool                   `json:"createaccount"`
	TestData               string                 `json:"paypal_test_data,omitempty"`
	PricesIncludeTax       bool                   `json:"prices_include_tax"`
	TaxDisplayCart         string                 `json:"tax_display_cart,omitempty"`
	TaxDisplayShop         string                 `json:"tax_display_shop,omitempty"`
	Session                domain.CheckoutSession `json:"session"`
}

type CreateOrderResponse struct {
	OrderID   uuid.UUID         `json:"order_id"`
	OrderKey  string            `json:"order_key"`
	ProxyData map[string]string `json:"proxy_data"`
}

// Materializer converts transient checkout state into a durable pending
// order and stages everything the payment backend needs, without charging.
type Materializer struct {
	repo     repository.OrderRepo
	mappings repository.ProductMappingRepo
	notifier Notifier
	events   Publisher
	tokens   TokenVerifier

	testMode bool
	now      func() time.Time
}

func NewMaterializer(
	repo repository.OrderRepo,
	mappings repository.ProductMappingRepo,
	notifier Notifier,
	events Publisher,
	tokens TokenVerifier,
	testMode bool,
) *Materializer {
	return &Materializer{
		repo:     repo,
		mappings: mappings,
		notifier: notifier,
		events:   events,
		tokens:   tokens,
		testMode: testMode,
		now:      time.Now,
	}
}

func (m *Materializer) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	if !m.tokens.Verify(nonce.FlowCheckout, req.Nonce) {
		return nil, ErrUnauthorized
	}

	billing, err := m.normalizeBilling(req.Billing)
	if err != nil {
		return nil, err
	}
	shipping := resolveShipping(billing, req.Shipping, req.ShipToDifferentAddress)

	o := &domain.Order{
		ID:          uuid.New(),
		OrderKey:    "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:      domain.StatusPending,
		Billing:     billing,
		Shipping:    shipping,
		Currency:    req.Session.Cart.Currency,
		DateCreated: m.now().UTC(),
	}

	o.TestData = req.TestData
	if o.TestData == "" {
		o.TestData = "Order #" + o.ID.String()
	}

	if err := m.attachItems(ctx, o, &req.Session.Cart); err != nil {
		return nil, err
	}
	attachShipping(o, &req.Session)

	o.Recalculate()

	if err := m.repo.CreateOrder(ctx, o, awaitingPaymentNote); err != nil {
		logger.Warn("order create failed", "err", err)
		return nil, err
	}
	logger.Info("order created", "order_id", o.ID, "total_cents", o.Total)

	// Delivery to the proxy backend is fire-and-forget-with-logging: the
	// local order exists either way and checkout proceeds.
	if m.notifier.Enabled() {
		payload := proxy.BuildOrderPayload(o, req.PricesIncludeTax, req.TaxDisplayCart, req.TaxDisplayShop)
		if err := m.notifier.StoreOrderData(ctx, payload); err != nil {
			logger.Warn("proxy delivery failed", "order_id", o.ID, "err", err)
		}
	} else {
		logger.Warn("proxy url or api key missing, order data not sent", "order_id", o.ID)
	}

	if m.events != nil {
		if err := m.events.PublishOrderEvent(ctx, EventOrderCreated, o); err != nil {
			logger.Warn("publish order.created failed", "order_id", o.ID, "err", err)
		}
	}

	return &CreateOrderResponse{
		OrderID:   o.ID,
		OrderKey:  o.OrderKey,
		ProxyData: map[string]string{"message": "Order created successfully"},
	}, nil
}

// A submitted-but-empty field is treated as absent; only whitespace-trimmed
// non-empty values count.
func present(s string) (string, bool) {
	t := strings.TrimSpace(s)
	return t, t != ""
}

func (m *Materializer) normalizeBilling(in domain.Address) (domain.Address, error) {
	out := in
	out.FirstName, _ = present(in.FirstName)
	out.LastName, _ = present(in.LastName)
	out.Email, _ = present(in.Email)
	out.Phone, _ = present(in.Phone)
	out.Address1, _ = present(in.Address1)
	out.Address2, _ = present(in.Address2)
	out.City, _ = present(in.City)
	out.State, _ = present(in.State)
	out.Postcode, _ = present(in.Postcode)
	out.Country, _ = present(in.Country)

	if m.testMode {
		if out.FirstName == "" {
			out.FirstName = "Test"
		}
		if out.LastName == "" {
			out.LastName = "User"
		}
		if out.Email == "" {
			out.Email = "test@example.com"
		}
		return out, nil
	}

	missing := map[string]string{}
	if out.FirstName == "" {
		missing["billing_first_name"] = "billing first name is required"
	}
	if out.LastName == "" {
		missing["billing_last_name"] = "billing last name is required"
	}
	if out.Email == "" {
		missing["billing_email"] = "billing email is required"
	}
	if len(missing) > 0 {
		return out, &ValidationError{Fields: missing}
	}
	return out, nil
}

// resolveShipping fills the shipping address from billing: wholesale when
// not shipping to a different address, field-by-field for absent fields
// otherwise.
func resolveShipping(billing, submitted domain.Address, shipToDifferent bool) domain.Address {
	if !shipToDifferent {
		return billing
	}
	out := billing
	if v, ok := present(submitted.FirstName); ok {
		out.FirstName = v
	}
	if v, ok := present(submitted.LastName); ok {
		out.LastName = v
	}
	if v, ok := present(submitted.Address1); ok {
		out.Address1 = v
	}
	if v, ok := present(submitted.Address2); ok {
		out.Address2 = v
	}
	if v, ok := present(submitted.City); ok {
		out.City = v
	}
	if v, ok := present(submitted.State); ok {
		out.State = v
	}
	if v, ok := present(submitted.Postcode); ok {
		out.Postcode = v
	}
	if v, ok := present(submitted.Country); ok {
		out.Country = v
	}
	return out
}

func (m *Materializer) attachItems(ctx context.Context, o *domain.Order, cart *domain.Cart) error {
	if len(cart.Items) == 0 {
		if !m.testMode {
			return NewValidationError("cart", "cart is empty")
		}
		// Deterministic placeholder so the flow is exercisable end to end
		// without a live cart.
		o.Items = append(o.Items, domain.Item{
			Name:           "Test Product",
			SKU:            "TEST-1",
			Description:    "Test product for testing",
			Quantity:       1,
			UnitPriceCents: 1000,
			SubtotalCents:  1000,
			TotalCents:     1000,
		})
		return nil
	}

	for _, ci := range cart.Items {
		if ci.Quantity <= 0 {
			return NewValidationError("quantity", "line item quantity must be positive")
		}
		it := domain.Item{
			Name:           ci.Name,
			SKU:            ci.SKU,
			Description:    truncate(ci.Description, 127),
			Quantity:       ci.Quantity,
			UnitPriceCents: ci.Subtotal / int64(ci.Quantity),
			SubtotalCents:  ci.Subtotal,
			TotalCents:     ci.Total,
			SubtotalTax:    ci.SubtotalTax,
			TaxCents:       ci.Tax,
			ProductID:      ci.ProductID,
		}
		if it.SKU == "" && ci.ProductID != 0 {
			it.SKU = "SKU-" + strconv.FormatInt(ci.ProductID, 10)
		}
		if ci.ProductID != 0 {
			remote, ok, err := m.mappings.RemoteID(ctx, ci.ProductID, ci.ParentProductID)
			if err != nil {
				logger.Warn("product mapping lookup failed", "product_id", ci.ProductID, "err", err)
			} else if ok {
				it.MappedProductID = remote
			}
		}
		o.Items = append(o.Items, it)
	}
	return nil
}

// attachShipping resolves the session's chosen rate for each package and
// records a durable snapshot alongside the shipping line. When the choice
// looks like flat-rate but no rate resolves (decayed session state), the
// cart's aggregate shipping total is used; failing that a zero-cost line
// keeps downstream totals structurally consistent.
func attachShipping(o *domain.Order, s *domain.CheckoutSession) {
	if len(s.ChosenMethods) == 0 {
		return
	}

	added := false
	for _, pkg := range s.Packages {
		methodID, ok := s.ChosenMethods[pkg.ID]
		if !ok {
			continue
		}
		for _, rate := range pkg.Rates {
			if rate.MethodID != methodID {
				continue
			}
			o.ShippingLines = append(o.ShippingLines, domain.ShippingLine{
				MethodID:    rate.MethodID,
				MethodTitle: rate.Label,
				TotalCents:  rate.CostCents,
				TaxCents:    rate.TaxCents,
			})
			o.Snapshots = append(o.Snapshots, domain.ShippingSnapshot{
				PackageID: pkg.ID,
				MethodID:  rate.MethodID,
				Label:     rate.Label,
				CostCents: rate.CostCents,
				TaxCents:  rate.TaxCents,
				Meta:      rate.Meta,
			})
			added = true
			break
		}
	}
	if added {
		return
	}

	if !hasFlatRate(s.ChosenMethods) {
		return
	}
	if s.Cart.ShippingTotal > 0 {
		o.ShippingLines = append(o.ShippingLines, domain.ShippingLine{
			MethodID:    "flat_rate",
			MethodTitle: "Flat rate shipping",
			TotalCents:  s.Cart.ShippingTotal,
			TaxCents:    s.Cart.ShippingTax,
		})
		return
	}
	o.ShippingLines = append(o.ShippingLines, domain.ShippingLine{
		MethodID:    "flat_rate",
		MethodTitle: "Flat rate shipping",
	})
}

func hasFlatRate(chosen map[string]string) bool {
	for _, m := range chosen {
		if strings.Contains(m, "flat_rate") {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
