package client

import (
	"bytes"

	"github.com/velluxe/storefront-core/types"
	"github.com/velluxe/storefront-core/utils"
)

// The catalog endpoints answer with either a bare array or a wrapper
// object depending on backend version. Decoding normalizes both into
// one canonical shape so nothing downstream duck-types the payload.

type productListEnvelope struct {
	Products []types.Product `json:"products"`
}

func DecodeProductList(body []byte) ([]types.Product, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "empty product payload")
	}

	if trimmed[0] == '[' {
		var products []types.Product
		if err := utils.Unmarshal(trimmed, &products); err != nil {
			return nil, types.WrapError(err, "failed to decode product list")
		}
		return products, nil
	}

	var envelope productListEnvelope
	if err := utils.Unmarshal(trimmed, &envelope); err != nil {
		return nil, types.WrapError(err, "failed to decode product envelope")
	}
	if envelope.Products == nil {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "payload is neither a list nor a product envelope")
	}
	return envelope.Products, nil
}

func DecodeRewardBalance(body []byte) (*types.RewardBalance, error) {
	var balance types.RewardBalance
	if err := utils.Unmarshal(body, &balance); err != nil {
		return nil, types.WrapError(err, "failed to decode reward balance")
	}
	return &balance, nil
}

func DecodeOrder(body []byte) (*types.Order, error) {
	var order types.Order
	if err := utils.Unmarshal(body, &order); err != nil {
		return nil, types.WrapError(err, "failed to decode order")
	}
	if order.ID == "" {
		return nil, types.Errorf(types.ErrClientResponseInvalid, "order response missing id")
	}
	return &order, nil
}

func DecodeStockLevels(body []byte) ([]types.StockLevel, error) {
	var levels []types.StockLevel
	if err := utils.Unmarshal(body, &levels); err != nil {
		return nil, types.WrapError(err, "failed to decode stock levels")
	}
	return levels, nil
}
