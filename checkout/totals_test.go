package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/velluxe/storefront-core/types"
)

func defaultCheckoutConfig() *types.CheckoutConfig {
	return &types.CheckoutConfig{
		TaxRateBasisPoints:    1200,
		FreeShippingThreshold: 10000,
		ShippingFee:           150,
	}
}

func snapshotWith(items ...types.CartItem) *types.CartSnapshot {
	return &types.CartSnapshot{UserID: "u1", Items: items}
}

func TestComputeFreeShippingWithReward(t *testing.T) {
	calc := NewTotalsCalculator(defaultCheckoutConfig())

	snapshot := snapshotWith(types.CartItem{
		ProductID: "p1",
		Product:   &types.Product{ID: "p1", Price: 2500, Stock: 10},
		Quantity:  4,
	})

	totals := calc.Compute(snapshot, 500)

	assert.Equal(t, int64(10000), totals.Subtotal)
	assert.Equal(t, int64(1200), totals.Tax)
	assert.Equal(t, int64(0), totals.Shipping, "at the threshold shipping is free")
	assert.Equal(t, int64(500), totals.Discount)
	assert.Equal(t, int64(10700), totals.Total)
}

func TestComputeBelowThresholdChargesShipping(t *testing.T) {
	calc := NewTotalsCalculator(defaultCheckoutConfig())

	snapshot := snapshotWith(types.CartItem{
		ProductID: "p1",
		Product:   &types.Product{ID: "p1", Price: 1000, Stock: 10},
		Quantity:  3,
	})

	totals := calc.Compute(snapshot, 0)

	assert.Equal(t, int64(3000), totals.Subtotal)
	assert.Equal(t, int64(360), totals.Tax)
	assert.Equal(t, int64(150), totals.Shipping)
	assert.Equal(t, int64(3510), totals.Total)
}

func TestComputeEmptyCart(t *testing.T) {
	calc := NewTotalsCalculator(defaultCheckoutConfig())

	totals := calc.Compute(snapshotWith(), 0)

	assert.Equal(t, int64(0), totals.Subtotal)
	assert.Equal(t, int64(0), totals.Tax)
	assert.Equal(t, int64(0), totals.Shipping, "no shipping on an empty cart")
	assert.Equal(t, int64(0), totals.Total)
}

func TestComputeTotalNeverNegative(t *testing.T) {
	calc := NewTotalsCalculator(defaultCheckoutConfig())

	snapshot := snapshotWith(types.CartItem{
		ProductID: "p1",
		Product:   &types.Product{ID: "p1", Price: 100, Stock: 10},
		Quantity:  1,
	})

	totals := calc.Compute(snapshot, 100000)

	assert.Equal(t, int64(0), totals.Total, "an oversized reward floors the total at zero")
}

func TestEffectivePricePrefersItemOverride(t *testing.T) {
	item := types.CartItem{
		ProductID: "p1",
		Product:   &types.Product{ID: "p1", Price: 1000},
		Price:     850,
	}
	assert.Equal(t, int64(850), EffectivePrice(item))

	item.Price = 0
	assert.Equal(t, int64(1000), EffectivePrice(item))

	item.Product = nil
	assert.Equal(t, int64(0), EffectivePrice(item), "deleted products contribute nothing")
}

func TestComputeTaxRoundsHalfUp(t *testing.T) {
	calc := NewTotalsCalculator(defaultCheckoutConfig())

	// 12% of 21 minor units is 2.52, rounds to 3.
	snapshot := snapshotWith(types.CartItem{
		ProductID: "p1",
		Product:   &types.Product{ID: "p1", Price: 21, Stock: 10},
		Quantity:  1,
	})

	totals := calc.Compute(snapshot, 0)
	assert.Equal(t, int64(3), totals.Tax)
}
