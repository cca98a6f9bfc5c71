package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func item(name, price string, qty int) model.OrderItem {
	return model.OrderItem{ProductName: name, ProductPrice: decimal.RequireFromString(price), Quantity: qty}
}

func withCoupon(it model.OrderItem, code string) model.OrderItem {
	it.CouponCode = &code
	return it
}

func strPtr(s string) *string { return &s }

func basket() []model.OrderItem {
	return []model.OrderItem{
		item("Nasi Lemak", "15.00", 2),
		item("Teh Tarik", "20.00", 1),
	}
}

func TestCreateOrderWithPointDiscount(t *testing.T) {
	svc, store, _ := setup(t)
	userID := store.seedUser("alice", 1500)

	order, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)

	requireAmount(t, "50.00", order.TotalAmount)
	requireAmount(t, "10.00", order.PointDiscount)
	requireAmount(t, "40.00", order.FinalAmount)
	require.Equal(t, model.Pending, order.Status)
	require.Equal(t, "tng", order.PaymentMethod)
	require.Equal(t, testNow, order.CreatedAt)

	stored, items, ok := store.order(order.ID)
	require.True(t, ok)
	requireAmount(t, "40.00", stored.FinalAmount)
	if diff := cmp.Diff(basket(), items, decimalEqual); diff != "" {
		t.Fatalf("stored items mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, int64(500), store.balance(userID))
	txs := store.transactions(userID)
	require.Len(t, txs, 2)
	require.Equal(t, model.Redeem, txs[1].Type)
	require.Equal(t, int64(-1000), txs[1].Points)
	require.NotNil(t, txs[1].OrderID)
	require.Equal(t, order.ID, *txs[1].OrderID)

	requireConsistent(t, store, userID)
}

func TestCreateOrderWithoutDiscountLeavesPointsAlone(t *testing.T) {
	svc, store, _ := setup(t)
	userID := store.seedUser("bob", 0)

	order, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.Zero, "card")
	require.NoError(t, err)

	requireAmount(t, "50.00", order.FinalAmount)
	require.Equal(t, "card", order.PaymentMethod)
	require.Empty(t, store.transactions(userID))
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name     string
		items    []model.OrderItem
		discount string
	}{
		{name: "no items", items: nil, discount: "0"},
		{name: "zero quantity", items: []model.OrderItem{item("Kopi", "3.00", 0)}, discount: "0"},
		{name: "negative price", items: []model.OrderItem{item("Kopi", "-3.00", 1)}, discount: "0"},
		{name: "fractional cents price", items: []model.OrderItem{item("Kopi", "3.005", 1)}, discount: "0"},
		{name: "blank name", items: []model.OrderItem{item("  ", "3.00", 1)}, discount: "0"},
		{name: "discount above total", items: []model.OrderItem{item("Kopi", "3.00", 1)}, discount: "3.01"},
		{name: "negative discount", items: []model.OrderItem{item("Kopi", "3.00", 1)}, discount: "-1"},
		{name: "fractional cents discount", items: []model.OrderItem{item("Kopi", "3.00", 1)}, discount: "0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := setup(t)
			userID := store.seedUser("alice", 10000)

			_, err := svc.CreateOrder(context.Background(), userID, tt.items, decimal.RequireFromString(tt.discount), "")
			require.Equal(t, errs.ErrInvalidInput, errs.KindOf(err), "got %v", err)

			require.Zero(t, store.orderCount())
			require.Equal(t, int64(10000), store.balance(userID))
		})
	}
}

func TestCreateOrderWithCustomPeg(t *testing.T) {
	tests := []struct {
		name       string
		peg        int64
		discount   string
		wantPoints int64
		wantErr    bool
	}{
		{name: "one point per unit, whole discount", peg: 1, discount: "5.00", wantPoints: 5},
		{name: "one point per unit, fractional discount", peg: 1, discount: "0.99", wantErr: true},
		{name: "150 per unit, half point", peg: 150, discount: "0.01", wantErr: true},
		{name: "150 per unit, whole points", peg: 150, discount: "0.02", wantPoints: 3},
		{name: "1000 per unit, smallest discount", peg: 1000, discount: "0.01", wantPoints: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := setup(t)
			svc.policy.PointsPerCurrencyUnit = tt.peg
			userID := store.seedUser("alice", 100)

			_, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString(tt.discount), "")
			if tt.wantErr {
				require.Equal(t, errs.ErrInvalidInput, errs.KindOf(err), "got %v", err)
				require.Zero(t, store.orderCount())
				require.Equal(t, int64(100), store.balance(userID))
				return
			}

			require.NoError(t, err)
			require.Equal(t, 100-tt.wantPoints, store.balance(userID))
			requireConsistent(t, store, userID)
		})
	}
}

func TestCreateOrderWithoutPointsGetsNoDiscount(t *testing.T) {
	svc, store, _ := setup(t)
	svc.policy.PointsPerCurrencyUnit = 1
	userID := store.seedUser("bob", 0)

	_, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString("0.99"), "")
	require.Error(t, err)

	_, err = svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString("1.00"), "")
	require.True(t, errs.Is(err, errs.ErrInsufficientPoints), "got %v", err)

	require.Zero(t, store.orderCount())
	require.Empty(t, store.transactions(userID))
}

func TestCreateOrderInsufficientPointsWritesNothing(t *testing.T) {
	svc, store, _ := setup(t)
	userID := store.seedUser("alice", 999)

	_, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString("10.00"), "")
	require.True(t, errs.Is(err, errs.ErrInsufficientPoints))

	require.Zero(t, store.orderCount())
	require.Zero(t, store.itemCount())
	require.Equal(t, int64(999), store.balance(userID))
	require.Len(t, store.transactions(userID), 1)
}

func TestCreateOrderIsAtomic(t *testing.T) {
	for _, op := range []string{"InsertOrderItem", "SetUserPoints", "InsertPointTransaction"} {
		t.Run(op, func(t *testing.T) {
			svc, store, _ := setup(t)
			userID := store.seedUser("alice", 2000)
			store.failOn[op] = errs.Storage(errors.New("connection lost"), op)

			_, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString("10.00"), "")
			require.True(t, errs.Is(err, errs.ErrStorageFailure))

			require.Zero(t, store.orderCount())
			require.Zero(t, store.itemCount())
			require.Equal(t, int64(2000), store.balance(userID))
			require.Len(t, store.transactions(userID), 1)
		})
	}
}

func TestCreateOrderUnknownUser(t *testing.T) {
	svc, store, _ := setup(t)

	_, err := svc.CreateOrder(context.Background(), 77, basket(), decimal.Zero, "")
	require.True(t, errs.Is(err, errs.ErrUserNotFound))
	require.Zero(t, store.orderCount())
}

func TestCreateOrderRetriesOnIDCollision(t *testing.T) {
	svc, store, gen := setup(t)
	userID := store.seedUser("alice", 5000)
	gen.orders = []string{"CPMWL1", "CPMWL1", "CPMWL2"}

	first, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)
	require.Equal(t, "CPMWL1", first.ID)

	second, err := svc.CreateOrder(context.Background(), userID, basket(), decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)
	require.Equal(t, "CPMWL2", second.ID)

	require.Equal(t, 2, store.orderCount())
	require.Equal(t, 4, store.itemCount())
	require.Equal(t, int64(3000), store.balance(userID))
	requireConsistent(t, store, userID)
}

func TestCreateOrderConsumesCoupon(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	userID := store.seedUser("alice", 100)
	otherID := store.seedUser("bob", 100)

	coupon, err := svc.PurchaseCoupon(ctx, userID, "10%", 0)
	require.NoError(t, err)

	items := []model.OrderItem{withCoupon(item("Coupon 10%", "0.00", 1), coupon.Code), item("Kopi", "3.00", 1)}

	// someone else's coupon
	_, err = svc.CreateOrder(ctx, otherID, items, decimal.Zero, "")
	require.True(t, errs.Is(err, errs.ErrCouponUnavailable))

	order, err := svc.CreateOrder(ctx, userID, items, decimal.Zero, "")
	require.NoError(t, err)
	requireAmount(t, "3.00", order.TotalAmount)

	used, _ := store.coupon(coupon.Code)
	require.True(t, used.IsUsed)
	require.NotNil(t, used.UsedAt)

	_, err = svc.CreateOrder(ctx, userID, items, decimal.Zero, "")
	require.True(t, errs.Is(err, errs.ErrCouponUnavailable))

	_, err = svc.CreateOrder(ctx, userID, []model.OrderItem{withCoupon(item("Ghost", "1.00", 1), "CPNMISSING")}, decimal.Zero, "")
	require.True(t, errs.Is(err, errs.ErrCouponUnavailable))

	require.Equal(t, 1, store.orderCount())
	requireConsistent(t, store, userID, otherID)
}

func TestPayOrderCreditsReward(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	userID := store.seedUser("alice", 1500)

	order, err := svc.CreateOrder(ctx, userID, basket(), decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)

	result, err := svc.PayOrder(ctx, order.ID, userID, strPtr("TNG-123"))
	require.NoError(t, err)
	require.Equal(t, model.PaymentResult{OrderID: order.ID, PointsEarned: 40}, result)

	stored, _, _ := store.order(order.ID)
	require.Equal(t, model.Paid, stored.Status)
	require.Equal(t, "TNG-123", *stored.PaymentReference)

	require.Equal(t, int64(540), store.balance(userID))
	txs := store.transactions(userID)
	last := txs[len(txs)-1]
	require.Equal(t, model.PurchaseEarn, last.Type)
	require.Equal(t, int64(40), last.Points)
	require.Equal(t, order.ID, *last.OrderID)

	_, err = svc.PayOrder(ctx, order.ID, userID, nil)
	require.True(t, errs.Is(err, errs.ErrOrderNotPayable))
	require.Equal(t, int64(540), store.balance(userID))

	requireConsistent(t, store, userID)
}

func TestPayOrderFloorsReward(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	userID := store.seedUser("alice", 0)

	order, err := svc.CreateOrder(ctx, userID, []model.OrderItem{item("Roti", "0.99", 1)}, decimal.Zero, "")
	require.NoError(t, err)

	result, err := svc.PayOrder(ctx, order.ID, userID, nil)
	require.NoError(t, err)
	require.Zero(t, result.PointsEarned)
	require.Empty(t, store.transactions(userID))

	stored, _, _ := store.order(order.ID)
	require.Equal(t, model.Paid, stored.Status)
}

func TestPayOrderNotPayable(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	ownerID := store.seedUser("alice", 0)
	strangerID := store.seedUser("mallory", 0)

	order, err := svc.CreateOrder(ctx, ownerID, basket(), decimal.Zero, "")
	require.NoError(t, err)

	_, err = svc.PayOrder(ctx, order.ID, strangerID, nil)
	require.True(t, errs.Is(err, errs.ErrOrderNotPayable))

	_, err = svc.PayOrder(ctx, "CPMWL404", ownerID, nil)
	require.True(t, errs.Is(err, errs.ErrOrderNotPayable))

	stored, _, _ := store.order(order.ID)
	require.Equal(t, model.Pending, stored.Status)
	require.Empty(t, store.transactions(strangerID))
}

func TestUpdateOrderStatusLifecycle(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	adminID := store.seedUser("admin", 0)
	userID := store.seedUser("alice", 0)

	order, err := svc.CreateOrder(ctx, userID, basket(), decimal.Zero, "")
	require.NoError(t, err)

	_, _, err = svc.UpdateOrderStatus(ctx, adminID, order.ID, model.Paid)
	require.True(t, errs.Is(err, errs.ErrInvalidTransition))

	_, err = svc.PayOrder(ctx, order.ID, userID, nil)
	require.NoError(t, err)

	steps := []struct {
		status      model.OrderStatus
		wantChanged bool
		wantErr     error
	}{
		{model.Completed, false, errs.ErrInvalidTransition},
		{model.Cancelled, false, errs.ErrInvalidTransition},
		{model.Shipped, true, nil},
		{model.Shipped, false, nil},
		{model.Completed, true, nil},
		{model.Completed, false, nil},
		{model.Shipped, false, errs.ErrInvalidTransition},
		{model.OrderStatus("lost"), false, errs.ErrInvalidInput},
	}
	for _, step := range steps {
		updated, changed, err := svc.UpdateOrderStatus(ctx, adminID, order.ID, step.status)
		if step.wantErr != nil {
			require.True(t, errs.Is(err, step.wantErr), "%s: got %v", step.status, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, step.status, updated.Status)
		require.Equal(t, step.wantChanged, changed, step.status)
	}

	stored, _, _ := store.order(order.ID)
	require.Equal(t, model.Completed, stored.Status)

	// the repeated shipped update is a no-op and is not logged
	require.Len(t, store.state.logs, 2)
	require.Equal(t, "update_order_status", store.state.logs[0].Action)
	require.Equal(t, adminID, store.state.logs[0].AdminID)

	_, _, err = svc.UpdateOrderStatus(ctx, adminID, "CPMWL404", model.Shipped)
	require.True(t, errs.Is(err, errs.ErrOrderNotFound))
}

func TestCancelRefundsPointsAndReleasesCoupons(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	adminID := store.seedUser("admin", 0)
	userID := store.seedUser("alice", 1100)

	coupon, err := svc.PurchaseCoupon(ctx, userID, "20%", 0)
	require.NoError(t, err)

	items := append(basket(), withCoupon(item("Coupon 20%", "0.00", 1), coupon.Code))
	order, err := svc.CreateOrder(ctx, userID, items, decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)
	require.Equal(t, int64(81), store.balance(userID))

	cancelled, changed, err := svc.UpdateOrderStatus(ctx, adminID, order.ID, model.Cancelled)
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, model.Cancelled, cancelled.Status)

	require.Equal(t, int64(1081), store.balance(userID))
	txs := store.transactions(userID)
	last := txs[len(txs)-1]
	require.Equal(t, model.Earn, last.Type)
	require.Equal(t, int64(1000), last.Points)
	require.Equal(t, order.ID, *last.OrderID)

	released, _ := store.coupon(coupon.Code)
	require.False(t, released.IsUsed)
	require.Nil(t, released.UsedAt)

	_, err = svc.PayOrder(ctx, order.ID, userID, nil)
	require.True(t, errs.Is(err, errs.ErrOrderNotPayable))

	requireConsistent(t, store, userID)
}

func TestCancelWithoutRefundPolicy(t *testing.T) {
	svc, store, _ := setup(t)
	svc.policy.RefundOnCancel = false
	ctx := context.Background()
	userID := store.seedUser("alice", 1000)

	order, err := svc.CreateOrder(ctx, userID, basket(), decimal.RequireFromString("10.00"), "")
	require.NoError(t, err)

	_, _, err = svc.UpdateOrderStatus(ctx, 0, order.ID, model.Cancelled)
	require.NoError(t, err)

	require.Zero(t, store.balance(userID))
	requireConsistent(t, store, userID)
}
