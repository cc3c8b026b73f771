package checkout

import (
	"github.com/velluxe/storefront-core/types"
)

// TotalsCalculator derives order totals from a cart snapshot. All
// amounts are integer minor units; tax is rounded half-up.
type TotalsCalculator struct {
	taxRateBasisPoints    int64
	freeShippingThreshold int64
	shippingFee           int64
}

func NewTotalsCalculator(config *types.CheckoutConfig) *TotalsCalculator {
	return &TotalsCalculator{
		taxRateBasisPoints:    config.TaxRateBasisPoints,
		freeShippingThreshold: config.FreeShippingThreshold,
		shippingFee:           config.ShippingFee,
	}
}

// EffectivePrice prefers the item-level override (variation pricing)
// over the product's canonical price. A deleted product with no
// override contributes zero.
func EffectivePrice(item types.CartItem) int64 {
	if item.Price > 0 {
		return item.Price
	}
	if item.Product != nil {
		return item.Product.Price
	}
	return 0
}

func (t *TotalsCalculator) Compute(snapshot *types.CartSnapshot, rewardAmount int64) types.OrderTotals {
	var subtotal int64
	if snapshot != nil {
		for _, item := range snapshot.Items {
			subtotal += EffectivePrice(item) * item.Quantity
		}
	}

	tax := (subtotal*t.taxRateBasisPoints + 5000) / 10000

	// An empty cart ships nothing; the flat fee applies only when
	// there is something below the free-shipping threshold to ship.
	var shipping int64
	if subtotal > 0 && subtotal < t.freeShippingThreshold {
		shipping = t.shippingFee
	}

	discount := rewardAmount
	if discount < 0 {
		discount = 0
	}

	total := subtotal + tax + shipping - discount
	if total < 0 {
		total = 0
	}

	return types.OrderTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}
}
