package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecalculate(t *testing.T) {
	o := Order{
		Items: []Item{
			{TotalCents: 1200, TaxCents: 120},
			{TotalCents: 5400, TaxCents: 540},
		},
		ShippingLines: []ShippingLine{
			{TotalCents: 500, TaxCents: 50},
		},
	}
	o.Recalculate()

	assert.Equal(t, int64(6600), o.ItemsTotal)
	assert.Equal(t, int64(660), o.CartTax)
	assert.Equal(t, int64(500), o.ShippingTotal)
	assert.Equal(t, int64(50), o.ShippingTax)
	assert.Equal(t, int64(7810), o.Total)
}

func TestRecalculateDropsStaleTotals(t *testing.T) {
	o := Order{ShippingTotal: 999, Total: 999}
	o.Recalculate()
	assert.Zero(t, o.ShippingTotal)
	assert.Zero(t, o.Total)
}

func TestStatusPaid(t *testing.T) {
	assert.False(t, StatusPending.Paid())
	assert.True(t, StatusProcessing.Paid())
	assert.True(t, StatusCompleted.Paid())
}
