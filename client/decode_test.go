package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeProductListBareArray(t *testing.T) {
	products, err := DecodeProductList([]byte(`[{"_id":"p1","price":1000},{"_id":"p2","price":2500}]`))

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, int64(2500), products[1].Price)
}

func TestDecodeProductListEnvelope(t *testing.T) {
	products, err := DecodeProductList([]byte(`{"products":[{"_id":"p1","price":1000}]}`))

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
}

func TestDecodeProductListRejectsUnknownShape(t *testing.T) {
	_, err := DecodeProductList([]byte(`{"items":[]}`))
	assert.Error(t, err)

	_, err = DecodeProductList([]byte(``))
	assert.Error(t, err)
}

func TestDecodeOrderRequiresID(t *testing.T) {
	order, err := DecodeOrder([]byte(`{"_id":"o1","status":"created","total":3510}`))
	require.NoError(t, err)
	assert.Equal(t, "o1", order.ID)
	assert.Equal(t, int64(3510), order.Total)

	_, err = DecodeOrder([]byte(`{"status":"created"}`))
	assert.Error(t, err)
}

func TestDecodeRewardBalanceUsesServerAggregate(t *testing.T) {
	balance, err := DecodeRewardBalance([]byte(`{
		"availableRewards": 500,
		"rewards": [
			{"_id":"r1","amount":200},
			{"_id":"r2","amount":200}
		]
	}`))

	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.AvailableRewards,
		"the aggregate is reported by the server, not re-summed")
	assert.Len(t, balance.Rewards, 2)
}
