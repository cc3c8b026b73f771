package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	coreclient "github.com/velluxe/storefront-core/client"
	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

// StockConflictError carries the itemized mismatch list so the UI can
// tell the user exactly which lines to fix.
type StockConflictError struct {
	Conflicts []types.StockConflict
}

func (e *StockConflictError) Error() string {
	lines := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		name := c.Name
		if name == "" {
			name = c.ProductID
		}
		lines = append(lines, fmt.Sprintf("%s: requested %d, available %d", name, c.Requested, c.Available))
	}
	return "insufficient stock: " + strings.Join(lines, "; ")
}

// Draft is the persisted checkout form state, restored across reloads.
type Draft struct {
	ShippingAddress string `json:"shippingAddress"`
	PaymentMethod   string `json:"paymentMethod"`
}

// Manager drives the checkout flow: totals derivation, the double
// stock gate, idempotent order submission and reward confirmation.
type Manager struct {
	client   types.RequestManager
	cart     *Cart
	rewards  *RewardManager
	totals   *TotalsCalculator
	stock    *StockChecker
	store    types.KeyValue
	logger   types.Logger
	metrics  types.MetricsManager
	validate *validator.Validate
	userID   string
}

func NewManager(
	requestClient types.RequestManager,
	cart *Cart,
	rewards *RewardManager,
	totals *TotalsCalculator,
	store types.KeyValue,
	logger types.Logger,
	metrics types.MetricsManager,
	userID string,
) *Manager {
	return &Manager{
		client:   requestClient,
		cart:     cart,
		rewards:  rewards,
		totals:   totals,
		stock:    NewStockChecker(requestClient),
		store:    store,
		logger:   logger,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		userID:   userID,
	}
}

// Resume runs once at startup: reconciles any pending reward marker
// left behind by an interrupted checkout.
func (m *Manager) Resume(ctx context.Context) error {
	return m.rewards.Resume(ctx)
}

// Totals recomputes the visible order total from the current cart
// snapshot and the currently applied reward.
func (m *Manager) Totals() types.OrderTotals {
	snapshot := m.cart.Snapshot()
	return m.totals.Compute(&snapshot, m.rewards.AppliedAmount())
}

func (m *Manager) SaveDraft(draft *Draft) error {
	data, err := utils.Marshal(draft)
	if err != nil {
		return types.WrapError(err, "failed to encode checkout draft")
	}
	return m.store.Set(types.KeyCheckoutData, data)
}

func (m *Manager) LoadDraft() (*Draft, error) {
	data, ok, err := m.store.Get(types.KeyCheckoutData)
	if err != nil || !ok {
		return nil, err
	}

	var draft Draft
	if err := utils.Unmarshal(data, &draft); err != nil {
		return nil, types.WrapError(err, "corrupt checkout draft")
	}
	return &draft, nil
}

// Submit creates the order. The flow aborts before submission on any
// stock mismatch, locally detected or server-reported, and flags the
// offending cart lines instead of silently proceeding.
func (m *Manager) Submit(ctx context.Context, draft *Draft) (*types.Order, error) {
	snapshot := m.cart.Snapshot()
	if len(snapshot.Items) == 0 {
		return nil, types.ErrCartEmpty
	}

	if conflicts := m.stock.CheckLocal(snapshot); len(conflicts) > 0 {
		return nil, m.abortOnConflicts(conflicts)
	}

	conflicts, err := m.stock.CheckAuthoritative(ctx, snapshot)
	if err != nil {
		m.recordOutcome("stock_check_failed")
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, m.abortOnConflicts(conflicts)
	}

	payload := m.buildPayload(snapshot, draft)
	if err := m.validate.Struct(payload); err != nil {
		return nil, types.Errorf(types.ErrInvalidParameter, "order payload: %v", err)
	}

	opts := &types.CallOptions{IdempotencyKey: uuid.NewString()}

	body, _, err := m.client.Post(ctx, "/orders", payload, opts)
	if err != nil {
		m.recordOutcome("failed")
		m.logger.Error("Order submission failed", zap.Error(err))

		if restoreErr := m.rewards.Restore(ctx); restoreErr != nil {
			m.logger.Warn("Failed to restore reward after checkout failure", zap.Error(restoreErr))
		}
		return nil, err
	}

	order, err := coreclient.DecodeOrder(body)
	if err != nil {
		m.recordOutcome("failed")
		return nil, err
	}

	if err := m.rewards.Confirm(ctx); err != nil && !types.IsError(err, types.ErrRewardNotApplied) {
		m.logger.Warn("Reward confirmation skipped", zap.Error(err))
	}

	if err := m.store.Delete(types.KeyCheckoutData); err != nil {
		m.logger.Warn("Failed to clear checkout draft", zap.Error(err))
	}

	m.recordOutcome("success")
	m.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Int64("total", order.Total))

	return order, nil
}

func (m *Manager) buildPayload(snapshot types.CartSnapshot, draft *Draft) *types.OrderPayload {
	totals := m.totals.Compute(&snapshot, m.rewards.AppliedAmount())

	items := make([]types.OrderItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		items = append(items, types.OrderItem{
			ProductID: item.ProductID,
			Name:      name,
			Quantity:  item.Quantity,
			Price:     EffectivePrice(item),
			Variation: item.Variation,
		})
	}

	return &types.OrderPayload{
		UserID:          m.userID,
		Items:           items,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Discount:        totals.Discount,
		Total:           totals.Total,
		ShippingAddress: draft.ShippingAddress,
		PaymentMethod:   draft.PaymentMethod,
	}
}

func (m *Manager) abortOnConflicts(conflicts []types.StockConflict) error {
	ids := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		ids = append(ids, c.ProductID)
	}
	m.cart.FlagOutOfStock(ids)

	m.recordOutcome("stock_conflict")
	m.logger.Warn("Checkout blocked by stock conflicts", zap.Int("conflicts", len(conflicts)))

	return &StockConflictError{Conflicts: conflicts}
}

func (m *Manager) recordOutcome(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordCheckout(outcome)
	}
}
