package checkout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

// Cart holds the client-side snapshot of the user's cart. Stock flags
// derived here come from the last-known product data and are advisory;
// the server stays authoritative and is consulted again right before
// order submission.
type Cart struct {
	mu       sync.RWMutex
	client   types.RequestManager
	logger   types.Logger
	watchdog time.Duration
	snapshot types.CartSnapshot
	loading  bool
}

func NewCart(client types.RequestManager, logger types.Logger, config *types.CheckoutConfig, userID string) *Cart {
	watchdog := config.CartFetchWatchdog
	if watchdog <= 0 {
		watchdog = 8 * time.Second
	}

	return &Cart{
		client:   client,
		logger:   logger,
		watchdog: watchdog,
		snapshot: types.CartSnapshot{UserID: userID},
	}
}

// Refresh fetches the cart from the backend. A watchdog flips the
// loading flag after the configured window so the UI is never stuck on
// a hanging fetch; the underlying request is left to settle on its own
// and still updates the snapshot when it does.
func (c *Cart) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	done := make(chan error, 1)

	go func() {
		body, _, err := c.client.Get(ctx, "/cart", nil)
		if err != nil {
			done <- err
			return
		}

		var snapshot types.CartSnapshot
		if err := utils.Unmarshal(body, &snapshot); err != nil {
			done <- types.WrapError(err, "failed to decode cart")
			return
		}
		snapshot.FetchedAt = time.Now()

		c.mu.Lock()
		c.snapshot = snapshot
		c.loading = false
		c.mu.Unlock()

		done <- nil
	}()

	select {
	case err := <-done:
		c.setLoading(false)
		return err
	case <-time.After(c.watchdog):
		c.setLoading(false)
		c.logger.Warn("Cart fetch watchdog fired", zap.Duration("watchdog", c.watchdog))
		return types.Errorf(types.ErrClientTimeout, "cart fetch exceeded %s", c.watchdog)
	}
}

func (c *Cart) AddItem(product *types.Product, quantity int64, variation string) error {
	if product == nil {
		return types.ErrProductUnavailable
	}

	quantity = clampQuantity(product, quantity)

	price := product.Price
	for _, v := range product.Variations {
		if v.Name == variation && v.Price > 0 {
			price = v.Price
			break
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.snapshot.Items {
		item := &c.snapshot.Items[i]
		if item.ProductID == product.ID && item.Variation == variation {
			item.Quantity += quantity
			item.Product = product
			item.Price = price
			item.OutOfStock = item.Quantity > product.Stock
			return nil
		}
	}

	c.snapshot.Items = append(c.snapshot.Items, types.CartItem{
		ProductID:  product.ID,
		Product:    product,
		Quantity:   quantity,
		Price:      price,
		Variation:  variation,
		OutOfStock: quantity > product.Stock,
	})

	return nil
}

func (c *Cart) UpdateQuantity(productID string, quantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.snapshot.Items {
		item := &c.snapshot.Items[i]
		if item.ProductID != productID {
			continue
		}

		if item.Product != nil {
			quantity = clampQuantity(item.Product, quantity)
			item.OutOfStock = quantity > item.Product.Stock
		}
		item.Quantity = quantity
		return nil
	}

	return types.Errorf(types.ErrCartItemNotFound, "%s", productID)
}

func (c *Cart) RemoveItem(productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.snapshot.Items {
		if c.snapshot.Items[i].ProductID == productID {
			c.snapshot.Items = append(c.snapshot.Items[:i], c.snapshot.Items[i+1:]...)
			return nil
		}
	}

	return types.Errorf(types.ErrCartItemNotFound, "%s", productID)
}

// Snapshot returns a copy; callers never see later mutations.
func (c *Cart) Snapshot() types.CartSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := c.snapshot
	snapshot.Items = make([]types.CartItem, len(c.snapshot.Items))
	copy(snapshot.Items, c.snapshot.Items)
	return snapshot
}

func (c *Cart) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// FlagOutOfStock marks the listed lines after an authoritative stock
// check disagreed with the local snapshot.
func (c *Cart) FlagOutOfStock(productIDs []string) {
	if len(productIDs) == 0 {
		return
	}

	flagged := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		flagged[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.snapshot.Items {
		if _, ok := flagged[c.snapshot.Items[i].ProductID]; ok {
			c.snapshot.Items[i].OutOfStock = true
		}
	}
}

func (c *Cart) setLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

func clampQuantity(product *types.Product, quantity int64) int64 {
	min := product.MinOrderQty
	if min <= 0 {
		min = 1
	}
	if quantity < min {
		return min
	}
	return quantity
}
