package model

import "fmt"

type OrderStatus string

const (
	Pending   OrderStatus = "pending"
	Paid      OrderStatus = "paid"
	Shipped   OrderStatus = "shipped"
	Completed OrderStatus = "completed"
	Cancelled OrderStatus = "cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case Pending, Paid, Shipped, Completed, Cancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// CanTransition reports whether an order may move from s to next.
// Same-status moves are not transitions.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case Pending:
		return next == Paid || next == Cancelled
	case Paid:
		return next == Shipped
	case Shipped:
		return next == Completed
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == Completed || s == Cancelled
}

type TransactionType string

const (
	Earn          TransactionType = "earn"
	Redeem        TransactionType = "redeem"
	RegisterBonus TransactionType = "register_bonus"
	PurchaseEarn  TransactionType = "purchase_earn"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case Earn, Redeem, RegisterBonus, PurchaseEarn:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

type CouponKind string

const (
	PercentageCoupon  CouponKind = "percentage"
	FixedAmountCoupon CouponKind = "fixed_amount"
)

func ParseCouponKind(s string) (CouponKind, error) {
	switch k := CouponKind(s); k {
	case PercentageCoupon, FixedAmountCoupon:
		return k, nil
	}
	return "", fmt.Errorf("unknown coupon kind %q", s)
}
