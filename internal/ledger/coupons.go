package ledger

import (
	"context"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
)

// PurchaseCoupon exchanges points for a coupon from the policy catalog.
func (s *Service) PurchaseCoupon(ctx context.Context, userID int64, label string, customAmount int64) (model.Coupon, error) {
	offer, err := s.policy.Offer(label, customAmount)
	if err != nil {
		return model.Coupon{}, err
	}

	var coupon model.Coupon
	err = s.withUniqueID(s.ids.CouponCode, func(code string) error {
		return s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
			_, err := s.apply(ctx, tx, entry{
				userID:      userID,
				delta:       -offer.Price,
				kind:        model.Redeem,
				description: "coupon purchase: " + offer.Label,
			})
			if err != nil {
				return err
			}

			coupon, err = tx.InsertCoupon(ctx, model.Coupon{
				Code:          code,
				Kind:          offer.Kind,
				Label:         offer.Label,
				DiscountValue: offer.Discount,
				Price:         offer.Price,
				UserID:        userID,
				PurchasedAt:   s.now(),
			})
			return err
		})
	})
	if err != nil {
		return model.Coupon{}, err
	}

	s.logger.Infow("coupon purchased", "user_id", userID, "code", coupon.Code, "type", coupon.Label, "price", coupon.Price)
	return coupon, nil
}

// consumeCoupon marks a coupon owned by userID as used. Unknown, foreign
// and already used coupons are all reported as unavailable.
func (s *Service) consumeCoupon(ctx context.Context, tx Tx, userID int64, code string) error {
	coupon, err := tx.LockCoupon(ctx, code)
	if err != nil {
		if errs.Is(err, errs.ErrNotFound) {
			return errs.Wrapf(errs.ErrCouponUnavailable, "coupon %s", code)
		}
		return err
	}

	if coupon.UserID != userID || coupon.IsUsed {
		return errs.Wrapf(errs.ErrCouponUnavailable, "coupon %s", code)
	}

	usedAt := s.now()
	return tx.SetCouponUsed(ctx, code, &usedAt)
}
