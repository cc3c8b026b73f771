package types

import (
	"time"
)

// All monetary amounts are integer minor units (centavos).

type Variation struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Product struct {
	ID          string      `json:"_id"`
	Name        string      `json:"name"`
	Price       int64       `json:"price"`
	Stock       int64       `json:"stock"`
	MinOrderQty int64       `json:"minOrderQty"`
	Variations  []Variation `json:"variations,omitempty"`
}

// CartItem is one cart line. Product is nullable: the product may have
// been deleted server-side after the line was added. Price is the
// item-level override (variation pricing); zero means fall back to the
// product's canonical price.
type CartItem struct {
	ProductID  string   `json:"productId"`
	Product    *Product `json:"product,omitempty"`
	Quantity   int64    `json:"quantity"`
	Price      int64    `json:"price,omitempty"`
	Variation  string   `json:"variation,omitempty"`
	OutOfStock bool     `json:"outOfStock"`
}

type CartSnapshot struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	FetchedAt time.Time  `json:"fetchedAt"`
}

type OrderTotals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

type OrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
	Price     int64  `json:"price" validate:"min=0"`
	Variation string `json:"variation,omitempty"`
}

type OrderPayload struct {
	UserID          string      `json:"userId" validate:"required"`
	Items           []OrderItem `json:"items" validate:"required,min=1,dive"`
	Subtotal        int64       `json:"subtotal" validate:"min=0"`
	Tax             int64       `json:"tax" validate:"min=0"`
	Shipping        int64       `json:"shipping" validate:"min=0"`
	Discount        int64       `json:"discount" validate:"min=0"`
	Total           int64       `json:"total" validate:"min=0"`
	ShippingAddress string      `json:"shippingAddress" validate:"required"`
	PaymentMethod   string      `json:"paymentMethod" validate:"required"`
}

type Order struct {
	ID        string    `json:"_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	OrderPayload
}

type StockCheckItem struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
}

type StockCheckRequest struct {
	Items []StockCheckItem `json:"items"`
}

type StockLevel struct {
	ProductID string `json:"productId"`
	Available int64  `json:"available"`
}

// StockConflict itemizes lines whose requested quantity exceeds the
// authoritative availability.
type StockConflict struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}
