package storage

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgTx implements ledger.Tx on top of one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

const orderColumns = `o.id, o.user_id, o.total_amount, o.point_discount, o.final_amount,
	o.status, o.payment_method, o.payment_reference, o.created_at`

const couponColumns = `id, code, kind, type, discount_value, price, is_used, user_id, purchased_at, used_at`

func scanOrder(row pgx.Row, extra ...any) (model.Order, error) {
	var (
		o      model.Order
		status string
	)
	dest := append([]any{&o.ID, &o.UserID, &o.TotalAmount, &o.PointDiscount, &o.FinalAmount,
		&status, &o.PaymentMethod, &o.PaymentReference, &o.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.Order{}, err
	}

	parsed, err := model.ParseOrderStatus(status)
	if err != nil {
		return model.Order{}, errs.Storage(err, "scan order")
	}
	o.Status = parsed
	return o, nil
}

func scanCoupon(row pgx.Row) (model.Coupon, error) {
	var (
		c    model.Coupon
		kind string
	)
	err := row.Scan(&c.ID, &c.Code, &kind, &c.Label, &c.DiscountValue, &c.Price,
		&c.IsUsed, &c.UserID, &c.PurchasedAt, &c.UsedAt)
	if err != nil {
		return model.Coupon{}, err
	}

	parsed, err := model.ParseCouponKind(kind)
	if err != nil {
		return model.Coupon{}, errs.Storage(err, "scan coupon")
	}
	c.Kind = parsed
	return c, nil
}

func (t *pgTx) CreateUser(ctx context.Context, username, passwordHash, phone string) (model.User, error) {
	const query = `
		INSERT INTO users (username, password_hash, phone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	user := model.User{Username: username, Phone: phone}
	err := t.tx.QueryRow(ctx, query, username, passwordHash, phone).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.Wrapf(errs.ErrLoginAlreadyExists, "username %s", username)
		}
		return model.User{}, errs.Storage(err, "insert user")
	}

	return user, nil
}

func (t *pgTx) LockUserPoints(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT points FROM users WHERE id = $1 FOR UPDATE`

	var points int64
	if err := t.tx.QueryRow(ctx, query, userID).Scan(&points); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.Wrapf(errs.ErrUserNotFound, "user %d", userID)
		}
		return 0, errs.Storage(err, "lock user")
	}

	return points, nil
}

func (t *pgTx) SetUserPoints(ctx context.Context, userID int64, points int64) error {
	const query = `UPDATE users SET points = $2 WHERE id = $1`

	if _, err := t.tx.Exec(ctx, query, userID, points); err != nil {
		return errs.Storage(err, "update points")
	}
	return nil
}

func (t *pgTx) InsertPointTransaction(ctx context.Context, pt model.PointTransaction) error {
	const query = `
		INSERT INTO point_transactions (user_id, points, type, description, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := t.tx.Exec(ctx, query, pt.UserID, pt.Points, string(pt.Type), pt.Description, pt.OrderID, pt.CreatedAt)
	if err != nil {
		return errs.Storage(err, "insert point transaction")
	}
	return nil
}

func (t *pgTx) OrderPoints(ctx context.Context, orderID string, kind model.TransactionType) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(points), 0)
		FROM point_transactions
		WHERE order_id = $1 AND type = $2`

	var sum int64
	if err := t.tx.QueryRow(ctx, query, orderID, string(kind)).Scan(&sum); err != nil {
		return 0, errs.Storage(err, "sum order points")
	}
	return sum, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order model.Order) error {
	const query = `
		INSERT INTO orders (id, user_id, total_amount, point_discount, final_amount, status, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.Exec(ctx, query, order.ID, order.UserID, order.TotalAmount, order.PointDiscount,
		order.FinalAmount, string(order.Status), order.PaymentMethod, order.CreatedAt)
	if err != nil {
		return conflict(err, "insert order")
	}
	return nil
}

func (t *pgTx) InsertOrderItem(ctx context.Context, orderID string, item model.OrderItem) error {
	const query = `
		INSERT INTO order_items (order_id, product_id, product_name, product_price, quantity, coupon_code)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := t.tx.Exec(ctx, query, orderID, item.ProductID, item.ProductName, item.ProductPrice, item.Quantity, item.CouponCode)
	if err != nil {
		return errs.Storage(err, "insert order item")
	}
	return nil
}

func (t *pgTx) OrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	return orderItems(ctx, t.tx, orderID)
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 FOR UPDATE`

	order, err := scanOrder(t.tx.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, errs.Wrapf(errs.ErrOrderNotFound, "order %s", orderID)
		}
		return model.Order{}, errs.Storage(err, "lock order")
	}
	return order, nil
}

func (t *pgTx) SetOrderPaid(ctx context.Context, orderID string, paymentReference *string) error {
	const query = `UPDATE orders SET status = 'paid', payment_reference = $2 WHERE id = $1`

	if _, err := t.tx.Exec(ctx, query, orderID, paymentReference); err != nil {
		return errs.Storage(err, "mark order paid")
	}
	return nil
}

func (t *pgTx) SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	const query = `UPDATE orders SET status = $2 WHERE id = $1`

	if _, err := t.tx.Exec(ctx, query, orderID, string(status)); err != nil {
		return errs.Storage(err, "update order status")
	}
	return nil
}

func (t *pgTx) InsertCoupon(ctx context.Context, c model.Coupon) (model.Coupon, error) {
	const query = `
		INSERT INTO coupons (code, kind, type, discount_value, price, user_id, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := t.tx.QueryRow(ctx, query, c.Code, string(c.Kind), c.Label, c.DiscountValue, c.Price, c.UserID, c.PurchasedAt).Scan(&c.ID)
	if err != nil {
		return model.Coupon{}, conflict(err, "insert coupon")
	}
	return c, nil
}

func (t *pgTx) LockCoupon(ctx context.Context, code string) (model.Coupon, error) {
	const query = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1 FOR UPDATE`

	c, err := scanCoupon(t.tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Coupon{}, errs.Wrapf(errs.ErrCouponNotFound, "coupon %s", code)
		}
		return model.Coupon{}, errs.Storage(err, "lock coupon")
	}
	return c, nil
}

func (t *pgTx) SetCouponUsed(ctx context.Context, code string, usedAt *time.Time) error {
	const query = `UPDATE coupons SET is_used = $2, used_at = $3 WHERE code = $1`

	if _, err := t.tx.Exec(ctx, query, code, usedAt != nil, usedAt); err != nil {
		return errs.Storage(err, "update coupon")
	}
	return nil
}

func (t *pgTx) InsertAdminLog(ctx context.Context, entry model.AdminLog) error {
	return insertAdminLog(ctx, t.tx, entry)
}

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func insertAdminLog(ctx context.Context, q execQuerier, entry model.AdminLog) error {
	const query = `
		INSERT INTO admin_logs (admin_id, action, target_type, target_id, details)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := q.Exec(ctx, query, entry.AdminID, entry.Action, entry.TargetType, entry.TargetID, entry.Details)
	if err != nil {
		return errs.Storage(err, "insert admin log")
	}
	return nil
}

func orderItems(ctx context.Context, q execQuerier, orderID string) ([]model.OrderItem, error) {
	const query = `
		SELECT product_id, product_name, product_price, quantity, coupon_code
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, errs.Storage(err, "get order items")
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.ProductPrice, &it.Quantity, &it.CouponCode); err != nil {
			return nil, errs.Storage(err, "scan order item")
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "order items rows")
	}

	return items, nil
}
