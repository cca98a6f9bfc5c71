package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
	"github.com/shopspring/decimal"
)

// CreateOrder persists a pending order, its item snapshots, the coupons it
// consumes and the point debit funding pointDiscount, atomically.
func (s *Service) CreateOrder(ctx context.Context, userID int64, items []model.OrderItem, pointDiscount decimal.Decimal, paymentMethod string) (model.Order, error) {
	items, total, err := normalizeItems(items)
	if err != nil {
		return model.Order{}, err
	}

	if pointDiscount.IsNegative() || !isCents(pointDiscount) {
		return model.Order{}, errs.Invalid("invalid point discount %s", pointDiscount)
	}
	if pointDiscount.GreaterThan(total) {
		return model.Order{}, errs.Invalid("point discount %s exceeds total %s", pointDiscount, total)
	}

	if paymentMethod == "" {
		paymentMethod = s.policy.DefaultPaymentMethod
	}

	pointsUsed, err := s.policy.PointsForDiscount(pointDiscount)
	if err != nil {
		return model.Order{}, err
	}
	if pointDiscount.IsPositive() && pointsUsed == 0 {
		return model.Order{}, errs.Invalid("point discount %s is not backed by points", pointDiscount)
	}

	order := model.Order{
		UserID:        userID,
		TotalAmount:   total,
		PointDiscount: pointDiscount,
		FinalAmount:   total.Sub(pointDiscount),
		Status:        model.Pending,
		PaymentMethod: paymentMethod,
	}

	err = s.withUniqueID(s.ids.OrderID, func(id string) error {
		order.ID = id
		order.CreatedAt = s.now()

		return s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
			// user row first so every ledger transaction locks users before coupons
			if _, err := tx.LockUserPoints(ctx, userID); err != nil {
				return err
			}

			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}

			for _, item := range items {
				if item.CouponCode != nil {
					if err := s.consumeCoupon(ctx, tx, userID, *item.CouponCode); err != nil {
						return err
					}
				}
				if err := tx.InsertOrderItem(ctx, order.ID, item); err != nil {
					return err
				}
			}

			if pointsUsed == 0 {
				return nil
			}

			orderID := order.ID
			_, err := s.apply(ctx, tx, entry{
				userID:      userID,
				delta:       -pointsUsed,
				kind:        model.Redeem,
				description: "order point discount",
				orderID:     &orderID,
			})
			return err
		})
	})
	if err != nil {
		return model.Order{}, err
	}

	order.Items = items
	s.logger.Infow("order created",
		"order_id", order.ID,
		"user_id", userID,
		"total", order.TotalAmount.String(),
		"final", order.FinalAmount.String(),
		"points_used", pointsUsed)

	return order, nil
}

// PayOrder moves a pending order owned by userID to paid and credits the
// purchase reward. Missing, foreign and non-pending orders are reported
// the same way.
func (s *Service) PayOrder(ctx context.Context, orderID string, userID int64, paymentReference *string) (model.PaymentResult, error) {
	result := model.PaymentResult{OrderID: orderID}

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			if errs.Is(err, errs.ErrOrderNotFound) {
				return errs.Wrapf(errs.ErrOrderNotPayable, "order %s", orderID)
			}
			return err
		}

		if order.UserID != userID || order.Status != model.Pending {
			return errs.Wrapf(errs.ErrOrderNotPayable, "order %s", orderID)
		}

		if err := tx.SetOrderPaid(ctx, orderID, paymentReference); err != nil {
			return err
		}

		result.PointsEarned = s.policy.PointsEarned(order.FinalAmount)
		if result.PointsEarned == 0 {
			return nil
		}

		_, err = s.apply(ctx, tx, entry{
			userID:      userID,
			delta:       result.PointsEarned,
			kind:        model.PurchaseEarn,
			description: "purchase reward",
			orderID:     &orderID,
		})
		return err
	})
	if err != nil {
		return model.PaymentResult{}, err
	}

	s.logger.Infow("order paid", "order_id", orderID, "user_id", userID, "points_earned", result.PointsEarned)
	return result, nil
}

// UpdateOrderStatus is the administrative transition. Repeating the current
// status is a no-op; only forward moves of the lifecycle are accepted.
// The returned flag reports whether the status actually changed.
func (s *Service) UpdateOrderStatus(ctx context.Context, adminID int64, orderID string, status model.OrderStatus) (model.Order, bool, error) {
	if _, err := model.ParseOrderStatus(string(status)); err != nil {
		return model.Order{}, false, errs.Mark(err, errs.ErrInvalidInput)
	}

	var order model.Order
	changed := false

	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Status == status {
			return nil
		}

		if order.Status.IsTerminal() {
			return errs.Wrapf(errs.ErrInvalidTransition, "order %s is already %s", orderID, order.Status)
		}

		// paying goes through PayOrder so the reward is credited
		if status == model.Paid || !order.Status.CanTransition(status) {
			return errs.Wrapf(errs.ErrInvalidTransition, "%s -> %s", order.Status, status)
		}

		if err := tx.SetOrderStatus(ctx, orderID, status); err != nil {
			return err
		}

		if status == model.Cancelled && s.policy.RefundOnCancel {
			if err := s.refund(ctx, tx, order); err != nil {
				return err
			}
		}

		previous := order.Status
		order.Status = status
		changed = true

		return tx.InsertAdminLog(ctx, model.AdminLog{
			AdminID:    adminID,
			Action:     "update_order_status",
			TargetType: "order",
			TargetID:   orderID,
			Details:    fmt.Sprintf("status %s -> %s", previous, status),
		})
	})
	if err != nil {
		return model.Order{}, false, err
	}

	if changed {
		s.logger.Infow("order status updated", "order_id", orderID, "status", status, "admin_id", adminID)
	}
	return order, changed, nil
}

// refund returns the points redeemed by a cancelled order and releases the
// coupons its items consumed.
func (s *Service) refund(ctx context.Context, tx Tx, order model.Order) error {
	redeemed, err := tx.OrderPoints(ctx, order.ID, model.Redeem)
	if err != nil {
		return err
	}

	if redeemed < 0 {
		orderID := order.ID
		_, err := s.apply(ctx, tx, entry{
			userID:      order.UserID,
			delta:       -redeemed,
			kind:        model.Earn,
			description: "refund for cancelled order",
			orderID:     &orderID,
		})
		if err != nil {
			return err
		}
	}

	items, err := tx.OrderItems(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.CouponCode == nil {
			continue
		}
		if err := tx.SetCouponUsed(ctx, *item.CouponCode, nil); err != nil {
			return err
		}
	}
	return nil
}

func normalizeItems(items []model.OrderItem) ([]model.OrderItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, errs.ErrEmptyOrder
	}

	total := decimal.Zero
	out := make([]model.OrderItem, 0, len(items))
	for i, item := range items {
		item.ProductName = strings.TrimSpace(item.ProductName)
		if item.ProductName == "" {
			return nil, decimal.Zero, errs.Invalid("item %d: product name required", i)
		}
		if item.Quantity <= 0 {
			return nil, decimal.Zero, errs.Invalid("item %d: quantity %d", i, item.Quantity)
		}
		if item.ProductPrice.IsNegative() || !isCents(item.ProductPrice) {
			return nil, decimal.Zero, errs.Invalid("item %d: price %s", i, item.ProductPrice)
		}
		if item.CouponCode != nil {
			code := strings.TrimSpace(*item.CouponCode)
			if code == "" {
				item.CouponCode = nil
			} else {
				item.CouponCode = &code
			}
		}

		total = total.Add(item.Subtotal())
		out = append(out, item)
	}

	return out, total, nil
}

func isCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
