package checkout

import (
	"context"

	"github.com/velluxe/storefront-core/client"
	"github.com/velluxe/storefront-core/types"
)

// StockChecker validates requested quantities twice: optimistically
// against the last-known product snapshot, then authoritatively
// against the server right before submission.
type StockChecker struct {
	client types.RequestManager
}

func NewStockChecker(requestClient types.RequestManager) *StockChecker {
	return &StockChecker{client: requestClient}
}

// CheckLocal derives conflicts from the cart's own product data. A
// line whose product is gone is always a conflict.
func (s *StockChecker) CheckLocal(snapshot types.CartSnapshot) []types.StockConflict {
	var conflicts []types.StockConflict

	for _, item := range snapshot.Items {
		if item.Product == nil {
			conflicts = append(conflicts, types.StockConflict{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: 0,
			})
			continue
		}

		if item.Quantity > item.Product.Stock {
			conflicts = append(conflicts, types.StockConflict{
				ProductID: item.ProductID,
				Name:      item.Product.Name,
				Requested: item.Quantity,
				Available: item.Product.Stock,
			})
		}
	}

	return conflicts
}

// CheckAuthoritative asks the stock service for current availability.
func (s *StockChecker) CheckAuthoritative(ctx context.Context, snapshot types.CartSnapshot) ([]types.StockConflict, error) {
	if len(snapshot.Items) == 0 {
		return nil, nil
	}

	request := types.StockCheckRequest{
		Items: make([]types.StockCheckItem, 0, len(snapshot.Items)),
	}
	for _, item := range snapshot.Items {
		request.Items = append(request.Items, types.StockCheckItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	body, _, err := s.client.Post(ctx, "/products/check-stock", request, nil)
	if err != nil {
		return nil, types.WrapError(err, "stock check failed")
	}

	levels, err := client.DecodeStockLevels(body)
	if err != nil {
		return nil, err
	}

	available := make(map[string]int64, len(levels))
	for _, level := range levels {
		available[level.ProductID] = level.Available
	}

	var conflicts []types.StockConflict
	for _, item := range snapshot.Items {
		level, ok := available[item.ProductID]
		if !ok {
			continue
		}
		if item.Quantity > level {
			name := ""
			if item.Product != nil {
				name = item.Product.Name
			}
			conflicts = append(conflicts, types.StockConflict{
				ProductID: item.ProductID,
				Name:      name,
				Requested: item.Quantity,
				Available: level,
			})
		}
	}

	return conflicts, nil
}
