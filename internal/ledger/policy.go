package ledger

import (
	"fmt"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
	"github.com/shopspring/decimal"
)

type CouponOffer struct {
	Label    string
	Kind     model.CouponKind
	Price    int64
	Discount decimal.Decimal
}

// Policy holds the loyalty constants: bonus sizes, coupon prices and the
// points-to-currency peg.
type Policy struct {
	RegisterBonus int64
	// points debited per currency unit of order discount
	PointsPerCurrencyUnit int64
	// points credited per whole currency unit paid
	EarnPointsPerCurrencyUnit int64
	CouponOffers              map[string]CouponOffer
	MaxIDAttempts             int
	RefundOnCancel            bool
	DefaultPaymentMethod      string
}

func DefaultPolicy() Policy {
	return Policy{
		RegisterBonus:             99,
		PointsPerCurrencyUnit:     100,
		EarnPointsPerCurrencyUnit: 1,
		CouponOffers: map[string]CouponOffer{
			"10%": {Label: "10%", Kind: model.PercentageCoupon, Price: 9, Discount: decimal.RequireFromString("0.10")},
			"20%": {Label: "20%", Kind: model.PercentageCoupon, Price: 19, Discount: decimal.RequireFromString("0.20")},
		},
		MaxIDAttempts:        3,
		RefundOnCancel:       true,
		DefaultPaymentMethod: "tng",
	}
}

// Offer resolves a coupon request. A catalog label wins over customAmount;
// otherwise customAmount buys a fixed discount at one point per currency unit.
func (p Policy) Offer(label string, customAmount int64) (CouponOffer, error) {
	if offer, ok := p.CouponOffers[label]; ok {
		return offer, nil
	}
	if customAmount > 0 {
		return CouponOffer{
			Label:    fmt.Sprintf("RM%d", customAmount),
			Kind:     model.FixedAmountCoupon,
			Price:    customAmount,
			Discount: decimal.NewFromInt(customAmount),
		}, nil
	}
	return CouponOffer{}, errs.Wrapf(errs.ErrUnknownCoupon, "type %q amount %d", label, customAmount)
}

// PointsForDiscount converts a currency discount into the points it costs.
// A discount that does not map to a whole number of points is rejected.
func (p Policy) PointsForDiscount(discount decimal.Decimal) (int64, error) {
	points := discount.Mul(decimal.NewFromInt(p.PointsPerCurrencyUnit))
	if !points.IsInteger() {
		return 0, errs.Invalid("point discount %s costs %s points, not a whole number", discount, points)
	}
	return points.IntPart(), nil
}

// PointsEarned is floor(final) scaled by the earn rate.
func (p Policy) PointsEarned(final decimal.Decimal) int64 {
	if final.IsNegative() {
		return 0
	}
	return final.Floor().IntPart() * p.EarnPointsPerCurrencyUnit
}
