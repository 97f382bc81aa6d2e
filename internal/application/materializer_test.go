package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storebridge/paypal-bridge/internal/domain"
)

func newMaterializer(repo *fakeOrderRepo, notifier *fakeNotifier, testMode bool) (*Materializer, *fakePublisher) {
	pub := &fakePublisher{}
	m := NewMaterializer(
		repo,
		&fakeMappings{byProduct: map[int64]int64{42: 9042, 100: 9100}},
		notifier,
		pub,
		testTokens(),
		testMode,
	)
	m.now = testClock
	return m, pub
}

func billingFixture() domain.Address {
	return domain.Address{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@example.com",
		Phone:     "555-0100",
		Address1:  "1 Main St",
		City:      "Springfield",
		State:     "IL",
		Postcode:  "62701",
		Country:   "US",
	}
}

func sessionFixture() domain.CheckoutSession {
	return domain.CheckoutSession{
		Cart: domain.Cart{
			Currency: "USD",
			Items: []domain.CartItem{
				{
					Name:      "T-shirt",
					SKU:       "TS-1",
					ProductID: 42,
					Quantity:  2,
					Subtotal:  4000,
					Total:     4000,
				},
			},
		},
		ChosenMethods: map[string]string{"pkg-0": "flat_rate:1"},
		Packages: []domain.Package{
			{
				ID: "pkg-0",
				Rates: []domain.Rate{
					{MethodID: "flat_rate:1", Label: "Flat rate", CostCents: 500, TaxCents: 50},
					{MethodID: "express:2", Label: "Express", CostCents: 1500},
				},
			},
		},
	}
}

func createReq() *CreateOrderRequest {
	return &CreateOrderRequest{
		Nonce:   testTokens().Issue("checkout"),
		Billing: billingFixture(),
		Session: sessionFixture(),
	}
}

func TestCreateOrderRejectsBadNonce(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	for _, tok := range []string{"", "bogus"} {
		req := createReq()
		req.Nonce = tok
		_, err := m.CreateOrder(context.Background(), req)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
	assert.Empty(t, repo.orders, "no order may exist after rejected requests")
}

func TestCreateOrderPersistsPendingOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	m, pub := newMaterializer(repo, &fakeNotifier{}, false)

	resp, err := m.CreateOrder(context.Background(), createReq())
	require.NoError(t, err)
	require.NotEqual(t, "", resp.OrderKey)

	o := repo.orders[resp.OrderID]
	require.NotNil(t, o)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, "USD", o.Currency)
	assert.Equal(t, []string{"Awaiting PayPal payment"}, repo.notes[resp.OrderID])
	assert.Equal(t, []string{EventOrderCreated}, pub.events)
}

func TestCreateOrderShippingSnapshotAndTotals(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	resp, err := m.CreateOrder(context.Background(), createReq())
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	require.Len(t, o.ShippingLines, 1)
	assert.Equal(t, int64(500), o.ShippingTotal, "shipping must reflect the chosen rate, not zero")
	require.Len(t, o.Snapshots, 1)
	assert.Equal(t, "pkg-0", o.Snapshots[0].PackageID)
	assert.Equal(t, "flat_rate:1", o.Snapshots[0].MethodID)
	assert.Equal(t, int64(500), o.Snapshots[0].CostCents)

	// items 4000 + shipping 500 + shipping tax 50
	assert.Equal(t, o.ItemsTotal+o.ShippingTotal+o.CartTax+o.ShippingTax, o.Total)
	assert.Equal(t, int64(4550), o.Total)
}

func TestCreateOrderShippingFallsBackToCartAggregate(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	req := createReq()
	// Session decayed: the chosen flat-rate no longer resolves to a rate.
	req.Session.Packages = nil
	req.Session.Cart.ShippingTotal = 700
	req.Session.Cart.ShippingTax = 70

	resp, err := m.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	require.Len(t, o.ShippingLines, 1)
	assert.Equal(t, "flat_rate", o.ShippingLines[0].MethodID)
	assert.Equal(t, int64(700), o.ShippingTotal)
	assert.Empty(t, o.Snapshots)
}

func TestCreateOrderShippingZeroCostStructuralLine(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	req := createReq()
	req.Session.Packages = nil
	req.Session.Cart.ShippingTotal = 0

	resp, err := m.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	require.Len(t, o.ShippingLines, 1, "shipping line must exist even at zero cost")
	assert.Equal(t, int64(0), o.ShippingTotal)
}

func TestCreateOrderAddressDefaultsToBilling(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	req := createReq()
	req.ShipToDifferentAddress = false
	req.Shipping = domain.Address{}

	resp, err := m.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	assert.Equal(t, o.Billing, o.Shipping)
}

func TestCreateOrderShippingFieldDefaults(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	req := createReq()
	req.ShipToDifferentAddress = true
	// A submitted-but-empty city is treated as absent and filled from
	// billing; the submitted street wins.
	req.Shipping = domain.Address{Address1: "9 Warehouse Rd", City: ""}

	resp, err := m.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	assert.Equal(t, "9 Warehouse Rd", o.Shipping.Address1)
	assert.Equal(t, "Springfield", o.Shipping.City)
	assert.Equal(t, "Jane", o.Shipping.FirstName)
}

func TestCreateOrderLineItemConservation(t *testing.T) {
	cases := []struct {
		name  string
		items []domain.CartItem
	}{
		{
			name: "single item no tax",
			items: []domain.CartItem{
				{Name: "Mug", ProductID: 42, Quantity: 1, Subtotal: 1200, Total: 1200},
			},
		},
		{
			name: "multi item with per-line tax",
			items: []domain.CartItem{
				{Name: "Mug", ProductID: 42, Quantity: 1, Subtotal: 1200, Total: 1200, SubtotalTax: 120, Tax: 120},
				{Name: "Shirt", ProductID: 100, Quantity: 3, Subtotal: 6000, Total: 5400, SubtotalTax: 600, Tax: 540},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeOrderRepo()
			m, _ := newMaterializer(repo, &fakeNotifier{}, false)

			req := createReq()
			req.Session.Cart.Items = tc.items

			resp, err := m.CreateOrder(context.Background(), req)
			require.NoError(t, err)

			o := repo.orders[resp.OrderID]
			var items, tax int64
			for _, it := range o.Items {
				items += it.TotalCents
				tax += it.TaxCents
			}
			assert.Equal(t, items+o.ShippingTotal+tax+o.ShippingTax, o.Total)
		})
	}
}

func TestCreateOrderEmptyCartProduction(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	req := createReq()
	req.Session.Cart.Items = nil

	_, err := m.CreateOrder(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "cart")
	assert.Empty(t, repo.orders)
}

func TestCreateOrderEmptyCartTestMode(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, true)

	req := createReq()
	req.Session.Cart.Items = nil

	resp, err := m.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Test Product", o.Items[0].Name)
	assert.Equal(t, int64(1000), o.Items[0].TotalCents)
	assert.Equal(t, o.ItemsTotal+o.ShippingTotal+o.CartTax+o.ShippingTax, o.Total)
}

func TestCreateOrderBillingRequiredInProduction(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	req := createReq()
	req.Billing.Email = "   "

	_, err := m.CreateOrder(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "billing_email")
	assert.Empty(t, repo.orders)
}

func TestCreateOrderBillingPlaceholdersInTestMode(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, true)

	req := createReq()
	req.Billing.FirstName = ""
	req.Billing.LastName = ""
	req.Billing.Email = ""

	resp, err := m.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	assert.Equal(t, "Test", o.Billing.FirstName)
	assert.Equal(t, "User", o.Billing.LastName)
	assert.Equal(t, "test@example.com", o.Billing.Email)
}

func TestCreateOrderResolvesProductMappings(t *testing.T) {
	repo := newFakeOrderRepo()
	m, _ := newMaterializer(repo, &fakeNotifier{}, false)

	req := createReq()
	req.Session.Cart.Items = []domain.CartItem{
		{Name: "Variation", ProductID: 7, ParentProductID: 42, Quantity: 1, Subtotal: 1000, Total: 1000},
		{Name: "Unmapped", ProductID: 8, Quantity: 1, Subtotal: 500, Total: 500},
	}

	resp, err := m.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	o := repo.orders[resp.OrderID]
	assert.Equal(t, int64(9042), o.Items[0].MappedProductID, "parent mapping must apply to the variation")
	assert.Equal(t, int64(0), o.Items[1].MappedProductID)
}

func TestCreateOrderProxyDelivery(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{enabled: true}
	m, _ := newMaterializer(repo, notifier, false)

	resp, err := m.CreateOrder(context.Background(), createReq())
	require.NoError(t, err)

	require.Len(t, notifier.payloads, 1)
	p := notifier.payloads[0]
	assert.Equal(t, resp.OrderID.String(), p.OrderID)
	assert.Equal(t, int64(500), p.ShippingAmount)
	assert.Equal(t, int64(50), p.ShippingTax)
	assert.Equal(t, "USD", p.Currency)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, int64(9042), p.LineItems[0].MappedProductID)
}

func TestCreateOrderProxyFailureIsNonFatal(t *testing.T) {
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{enabled: true, err: errors.New("connection refused")}
	m, _ := newMaterializer(repo, notifier, false)

	resp, err := m.CreateOrder(context.Background(), createReq())
	require.NoError(t, err, "delivery failure must not fail checkout")
	assert.NotNil(t, repo.orders[resp.OrderID])
}

func TestCreateOrderRepoFailureReturnsNoOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.createErr = errors.New("db down")
	notifier := &fakeNotifier{enabled: true}
	m, pub := newMaterializer(repo, notifier, false)

	_, err := m.CreateOrder(context.Background(), createReq())
	require.Error(t, err)
	assert.Empty(t, repo.orders)
	assert.Empty(t, notifier.payloads, "nothing may be staged for an unpersisted order")
	assert.Empty(t, pub.events)
}
