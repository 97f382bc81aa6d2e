package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
)

// Paid reports whether the status is terminal with respect to payment.
func (s OrderStatus) Paid() bool {
	return s == StatusProcessing || s == StatusCompleted
}

// Address holds the postal fields submitted at checkout. Billing and
// shipping share the same shape.
type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// Item is one ordered line, carried through from the cart as computed by
// the storefront's tax engine. Amounts are in minor currency units.
type Item struct {
	Name            string `json:"name"`
	SKU             string `json:"sku"`
	Description     string `json:"description,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	SubtotalCents   int64  `json:"subtotal_cents"`
	TotalCents      int64  `json:"total_cents"`
	SubtotalTax     int64  `json:"subtotal_tax_cents"`
	TaxCents        int64  `json:"tax_cents"`
	ProductID       int64  `json:"product_id,omitempty"`
	MappedProductID int64  `json:"mapped_product_id,omitempty"`
}

// ShippingLine is a shipping charge attached to the order.
type ShippingLine struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	TotalCents  int64  `json:"total_cents"`
	TaxCents    int64  `json:"tax_cents"`
}

// ShippingSnapshot is the durable copy of a chosen shipping rate, one per
// shipping package, written at materialization time so the selection can be
// replayed after the originating session is gone.
type ShippingSnapshot struct {
	PackageID  string            `json:"package_id"`
	MethodID   string            `json:"method_id"`
	Label      string            `json:"label"`
	CostCents  int64             `json:"cost_cents"`
	TaxCents   int64             `json:"tax_cents"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// Order is the local pending order during the bridge window: created by
// the materializer, driven to a paid state exactly once by the finalizer.
type Order struct {
	ID       uuid.UUID   `json:"order_id"`
	OrderKey string      `json:"order_key"`
	Status   OrderStatus `json:"status"`

	Billing  Address `json:"billing_address"`
	Shipping Address `json:"shipping_address"`

	Items         []Item             `json:"line_items"`
	ShippingLines []ShippingLine     `json:"shipping_lines"`
	Snapshots     []ShippingSnapshot `json:"shipping_snapshots,omitempty"`

	Currency      string `json:"currency"`
	ItemsTotal    int64  `json:"items_total_cents"`
	ShippingTotal int64  `json:"shipping_total_cents"`
	ShippingTax   int64  `json:"shipping_tax_cents"`
	CartTax       int64  `json:"cart_tax_cents"`
	Total         int64  `json:"total_cents"`

	// Remote identifiers, absent until finalization.
	PayPalOrderID string `json:"paypal_order_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`

	TestData string `json:"test_data,omitempty"`

	DateCreated time.Time `json:"date_created"`
}

// Recalculate derives the order totals from its parts. Line-item amounts
// are never recomputed here; the cart's tax engine is the source of truth.
func (o *Order) Recalculate() {
	var items, cartTax, shipTotal, shipTax int64
	for _, it := range o.Items {
		items += it.TotalCents
		cartTax += it.TaxCents
	}
	for _, sl := range o.ShippingLines {
		shipTotal += sl.TotalCents
		shipTax += sl.TaxCents
	}
	o.ItemsTotal = items
	o.CartTax = cartTax
	o.ShippingTotal = shipTotal
	o.ShippingTax = shipTax
	o.Total = items + shipTotal + cartTax + shipTax
}
