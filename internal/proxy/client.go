// Package proxy talks to Website B, the backend that performs the actual
// PayPal capture. Only one call exists: staging the order data it needs to
// drive its payment UI.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/storebridge/paypal-bridge/internal/domain"
)

const storeDataTimeout = 30 * time.Second

// LineItem is the proxy's wire shape for one ordered line.
type LineItem struct {
	Name            string `json:"name"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TaxAmountCents  int64  `json:"tax_amount_cents"`
	SKU             string `json:"sku"`
	Description     string `json:"description"`
	ProductID       int64  `json:"product_id,omitempty"`
	MappedProductID int64  `json:"mapped_product_id,omitempty"`
}

// OrderPayload is the body POSTed to /store-test-data.
type OrderPayload struct {
	APIKey           string         `json:"api_key"`
	OrderID          string         `json:"order_id"`
	TestData         string         `json:"test_data"`
	ShippingAddress  domain.Address `json:"shipping_address"`
	BillingAddress   domain.Address `json:"billing_address"`
	LineItems        []LineItem     `json:"line_items"`
	ShippingAmount   int64          `json:"shipping_amount"`
	ShippingTax      int64          `json:"shipping_tax"`
	TaxTotal         int64          `json:"tax_total"`
	Currency         string         `json:"currency"`
	PricesIncludeTax bool           `json:"prices_include_tax"`
	TaxDisplayCart   string         `json:"tax_display_cart"`
	TaxDisplayShop   string         `json:"tax_display_shop"`
}

// BuildOrderPayload flattens an order into the proxy contract. The API key
// is filled in by the client.
func BuildOrderPayload(o *domain.Order, pricesIncludeTax bool, taxDisplayCart, taxDisplayShop string) OrderPayload {
	items := make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LineItem{
			Name:            it.Name,
			Quantity:        it.Quantity,
			UnitPriceCents:  it.UnitPriceCents,
			TaxAmountCents:  it.TaxCents,
			SKU:             it.SKU,
			Description:     it.Description,
			ProductID:       it.ProductID,
			MappedProductID: it.MappedProductID,
		})
	}
	return OrderPayload{
		OrderID:          o.ID.String(),
		TestData:         o.TestData,
		ShippingAddress:  o.Shipping,
		BillingAddress:   o.Billing,
		LineItems:        items,
		ShippingAmount:   o.ShippingTotal,
		ShippingTax:      o.ShippingTax,
		TaxTotal:         o.CartTax + o.ShippingTax,
		Currency:         o.Currency,
		PricesIncludeTax: pricesIncludeTax,
		TaxDisplayCart:   taxDisplayCart,
		TaxDisplayShop:   taxDisplayShop,
	}
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: storeDataTimeout},
	}
}

// Enabled reports whether outbound delivery is configured. A missing URL
// or key silently disables notification; the caller logs it.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// StoreOrderData stages the order on the payment backend. Failures are
// returned for logging only; callers never propagate them to the user and
// never retry (the backend re-queries order state by identifier instead).
func (c *Client) StoreOrderData(ctx context.Context, p OrderPayload) error {
	p.APIKey = c.apiKey

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/store-test-data", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("proxy returned status %d", resp.StatusCode)
	}
	return nil
}
