package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velluxe/storefront-core/types"
)

func TestCheckLocalDetectsOverstock(t *testing.T) {
	checker := NewStockChecker(newFakeAPI())

	snapshot := *snapshotWith(
		types.CartItem{
			ProductID: "p1",
			Product:   &types.Product{ID: "p1", Name: "Serum", Stock: 3},
			Quantity:  5,
		},
		types.CartItem{
			ProductID: "p2",
			Product:   &types.Product{ID: "p2", Stock: 10},
			Quantity:  2,
		},
	)

	conflicts := checker.CheckLocal(snapshot)

	require.Len(t, conflicts, 1)
	assert.Equal(t, "p1", conflicts[0].ProductID)
	assert.Equal(t, int64(5), conflicts[0].Requested)
	assert.Equal(t, int64(3), conflicts[0].Available)
}

func TestCheckLocalDeletedProductIsConflict(t *testing.T) {
	checker := NewStockChecker(newFakeAPI())

	snapshot := *snapshotWith(types.CartItem{ProductID: "gone", Quantity: 1})

	conflicts := checker.CheckLocal(snapshot)

	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(0), conflicts[0].Available)
}

func TestCheckAuthoritative(t *testing.T) {
	api := newFakeAPI()
	api.respond("POST /products/check-stock", 200, `[
		{"productId":"p1","available":3},
		{"productId":"p2","available":10}
	]`)

	checker := NewStockChecker(api)

	snapshot := *snapshotWith(
		types.CartItem{ProductID: "p1", Quantity: 5},
		types.CartItem{ProductID: "p2", Quantity: 2},
	)

	conflicts, err := checker.CheckAuthoritative(context.Background(), snapshot)
	require.NoError(t, err)

	require.Len(t, conflicts, 1)
	assert.Equal(t, "p1", conflicts[0].ProductID)
	assert.Equal(t, int64(3), conflicts[0].Available)
}

func TestCheckAuthoritativeEmptyCartSkipsCall(t *testing.T) {
	api := newFakeAPI()
	checker := NewStockChecker(api)

	conflicts, err := checker.CheckAuthoritative(context.Background(), *snapshotWith())
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Zero(t, api.callCount("POST /products/check-stock"))
}
