package model

import "github.com/shopspring/decimal"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type CartProduct struct {
	ID    *int64          `json:"id,omitempty"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Code  *string         `json:"code,omitempty"`
}

type CartItem struct {
	Product  CartProduct `json:"product"`
	Quantity int         `json:"quantity"`
}

func (c CartItem) OrderItem() OrderItem {
	return OrderItem{
		ProductID:    c.Product.ID,
		ProductName:  c.Product.Name,
		ProductPrice: c.Product.Price,
		Quantity:     c.Quantity,
		CouponCode:   c.Product.Code,
	}
}

type CreateOrderRequest struct {
	Items         []CartItem      `json:"items"`
	PointDiscount decimal.Decimal `json:"pointDiscount"`
	PaymentMethod string          `json:"paymentMethod"`
}

type PayRequest struct {
	PaymentReference *string `json:"tngReference"`
}

type CouponRequest struct {
	Type         string `json:"type"`
	CustomAmount int64  `json:"customAmount"`
}

type CartAddRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type ProductRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

type StatusRequest struct {
	Status string `json:"status"`
}
