package domain

// Rate is one candidate shipping rate inside a package.
type Rate struct {
	MethodID  string            `json:"method_id"`
	Label     string            `json:"label"`
	CostCents int64             `json:"cost_cents"`
	TaxCents  int64             `json:"tax_cents"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Package is a shipment grouping with its candidate rates.
type Package struct {
	ID    string `json:"id"`
	Rates []Rate `json:"rates"`
}

// CartItem mirrors a storefront cart line with amounts already computed
// by the platform's tax engine.
type CartItem struct {
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	Description string `json:"description,omitempty"`
	ProductID   int64  `json:"product_id"`
	// Parent product for variations, used for mapping fallback.
	ParentProductID int64 `json:"parent_product_id,omitempty"`
	Quantity        int   `json:"quantity"`
	Subtotal        int64 `json:"line_subtotal_cents"`
	Total           int64 `json:"line_total_cents"`
	SubtotalTax     int64 `json:"line_subtotal_tax_cents"`
	Tax             int64 `json:"line_tax_cents"`
}

// Cart is the storefront cart contents plus its aggregate shipping view,
// used for the flat-rate fallback when no package rate resolves.
type Cart struct {
	Items         []CartItem `json:"items"`
	ShippingTotal int64      `json:"shipping_total_cents"`
	ShippingTax   int64      `json:"shipping_tax_cents"`
	Currency      string     `json:"currency"`
}

// CheckoutSession carries the transient checkout state as an explicit
// value, threaded through requests instead of read from ambient globals.
// ChosenMethods maps package ID to the selected rate's method ID.
type CheckoutSession struct {
	Cart          Cart              `json:"cart"`
	ChosenMethods map[string]string `json:"chosen_shipping_methods"`
	Packages      []Package         `json:"packages"`
}
