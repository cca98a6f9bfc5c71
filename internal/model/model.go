package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Phone     string    `json:"phone"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	ImageURL    *string         `json:"image_url,omitempty"`
}

type Order struct {
	ID               string          `json:"id"`
	UserID           int64           `json:"user_id"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PointDiscount    decimal.Decimal `json:"point_discount"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	Status           OrderStatus     `json:"status"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentReference *string         `json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	Items            []OrderItem     `json:"items,omitempty"`
}

// OrderItem is a snapshot of the product line at order time.
type OrderItem struct {
	ProductID    *int64          `json:"product_id,omitempty"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
	CouponCode   *string         `json:"coupon_code,omitempty"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.ProductPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Coupon struct {
	ID            int64           `json:"-"`
	Code          string          `json:"code"`
	Kind          CouponKind      `json:"kind"`
	Label         string          `json:"type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	Price         int64           `json:"price"`
	UserID        int64           `json:"-"`
	IsUsed        bool            `json:"is_used"`
	PurchasedAt   time.Time       `json:"purchased_at"`
	UsedAt        *time.Time      `json:"used_at,omitempty"`
}

type PointTransaction struct {
	ID          int64           `json:"-"`
	UserID      int64           `json:"-"`
	Points      int64           `json:"points"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	OrderID     *string         `json:"order_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PaymentResult struct {
	OrderID      string `json:"orderId"`
	PointsEarned int64  `json:"pointsEarned"`
}

type AdminLog struct {
	AdminID    int64
	Action     string
	TargetType string
	TargetID   string
	Details    string
}

// OrderSummary is an order row joined with its owner for admin listings.
type OrderSummary struct {
	Order
	Username string `json:"username"`
	Phone    string `json:"phone,omitempty"`
}

type Stats struct {
	UserCount    int64           `json:"userCount"`
	OrderCount   int64           `json:"orderCount"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TodayOrders  int64           `json:"todayOrders"`
	TodayRevenue decimal.Decimal `json:"todayRevenue"`
}
