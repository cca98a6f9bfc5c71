package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (s *PostgresStorage) GetUserByLogin(ctx context.Context, username string) (model.User, string, error) {
	const query = `SELECT id, username, phone, points, created_at, password_hash FROM users WHERE username = $1`

	var user model.User
	var hash string

	err := s.db.QueryRow(ctx, query, username).Scan(&user.ID, &user.Username, &user.Phone, &user.Points, &user.CreatedAt, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, "", errs.ErrUserNotFound
		}
		return model.User{}, "", errs.Storage(err, "get user by login")
	}

	return user, hash, nil
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	const query = `SELECT id, username, phone, points, created_at FROM users WHERE id = $1`

	var user model.User

	err := s.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.Phone, &user.Points, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, errs.ErrUserNotFound
		}
		return model.User{}, errs.Storage(err, "get user by id")
	}

	return user, nil
}

// ListCustomers returns every user except the given account, newest first.
func (s *PostgresStorage) ListCustomers(ctx context.Context, exclude string) ([]model.User, error) {
	const query = `
		SELECT id, username, phone, points, created_at
		FROM users
		WHERE username <> $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, exclude)
	if err != nil {
		return nil, errs.Storage(err, "list users")
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Phone, &u.Points, &u.CreatedAt); err != nil {
			return nil, errs.Storage(err, "scan user")
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "users rows")
	}

	return users, nil
}

func (s *PostgresStorage) ListProducts(ctx context.Context) ([]model.Product, error) {
	const query = `SELECT id, name, price, description, image_url FROM products ORDER BY id DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, errs.Storage(err, "list products")
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.ImageURL); err != nil {
			return nil, errs.Storage(err, "scan product")
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "products rows")
	}

	return products, nil
}

func (s *PostgresStorage) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	const query = `SELECT id, name, price, description, image_url FROM products WHERE id = $1`

	var p model.Product
	err := s.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Description, &p.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, errs.Wrapf(errs.ErrProductNotFound, "product %d", id)
		}
		return model.Product{}, errs.Storage(err, "get product")
	}

	return p, nil
}

// CreateProduct inserts a catalog entry and the admin log row together.
func (s *PostgresStorage) CreateProduct(ctx context.Context, adminID int64, p model.Product) (model.Product, error) {
	const query = `
		INSERT INTO products (name, price, description)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query, p.Name, p.Price, p.Description).Scan(&p.ID); err != nil {
			return errs.Storage(err, "insert product")
		}

		return insertAdminLog(ctx, tx, model.AdminLog{
			AdminID:    adminID,
			Action:     "create_product",
			TargetType: "product",
			TargetID:   fmt.Sprint(p.ID),
			Details:    fmt.Sprintf("created product %s, price RM%s", p.Name, p.Price.StringFixed(2)),
		})
	})
	if err != nil {
		return model.Product{}, err
	}

	return p, nil
}

func (s *PostgresStorage) DeleteProduct(ctx context.Context, adminID int64, id int64) error {
	const query = `DELETE FROM products WHERE id = $1`

	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, id)
		if err != nil {
			return errs.Storage(err, "delete product")
		}
		if tag.RowsAffected() == 0 {
			return errs.Wrapf(errs.ErrProductNotFound, "product %d", id)
		}

		return insertAdminLog(ctx, tx, model.AdminLog{
			AdminID:    adminID,
			Action:     "delete_product",
			TargetType: "product",
			TargetID:   fmt.Sprint(id),
			Details:    "deleted product",
		})
	})
}

func (s *PostgresStorage) ListCoupons(ctx context.Context, userID int64) ([]model.Coupon, error) {
	const query = `SELECT ` + couponColumns + ` FROM coupons WHERE user_id = $1 ORDER BY purchased_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, errs.Storage(err, "list coupons")
	}
	defer rows.Close()

	coupons := []model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, errs.Storage(err, "scan coupon")
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "coupons rows")
	}

	return coupons, nil
}

// PointHistory returns the user's most recent point transactions.
func (s *PostgresStorage) PointHistory(ctx context.Context, userID int64, limit int) ([]model.PointTransaction, error) {
	const query = `
		SELECT id, user_id, points, type, description, order_id, created_at
		FROM point_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, errs.Storage(err, "point history")
	}
	defer rows.Close()

	history := []model.PointTransaction{}
	for rows.Next() {
		var (
			pt   model.PointTransaction
			kind string
		)
		if err := rows.Scan(&pt.ID, &pt.UserID, &pt.Points, &kind, &pt.Description, &pt.OrderID, &pt.CreatedAt); err != nil {
			return nil, errs.Storage(err, "scan point transaction")
		}
		if pt.Type, err = model.ParseTransactionType(kind); err != nil {
			return nil, errs.Storage(err, "scan point transaction")
		}
		history = append(history, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "point history rows")
	}

	return history, nil
}

const orderSummaryQuery = `SELECT ` + orderColumns + `, COALESCE(u.username, ''), COALESCE(u.phone, '')
	FROM orders o
	LEFT JOIN users u ON o.user_id = u.id`

// GetOrder returns the order with its owner and item snapshots.
func (s *PostgresStorage) GetOrder(ctx context.Context, orderID string) (model.OrderSummary, error) {
	var summary model.OrderSummary

	order, err := scanOrder(s.db.QueryRow(ctx, orderSummaryQuery+` WHERE o.id = $1`, orderID), &summary.Username, &summary.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OrderSummary{}, errs.Wrapf(errs.ErrOrderNotFound, "order %s", orderID)
		}
		return model.OrderSummary{}, errs.Storage(err, "get order")
	}

	order.Items, err = orderItems(ctx, s.db, orderID)
	if err != nil {
		return model.OrderSummary{}, err
	}

	summary.Order = order
	return summary, nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context) ([]model.OrderSummary, error) {
	rows, err := s.db.Query(ctx, orderSummaryQuery+` ORDER BY o.created_at DESC`)
	if err != nil {
		return nil, errs.Storage(err, "list orders")
	}
	defer rows.Close()

	orders := []model.OrderSummary{}
	for rows.Next() {
		var summary model.OrderSummary
		order, err := scanOrder(rows, &summary.Username, &summary.Phone)
		if err != nil {
			return nil, errs.Storage(err, "scan order")
		}
		summary.Order = order
		orders = append(orders, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Storage(err, "orders rows")
	}

	return orders, nil
}

func (s *PostgresStorage) CountCustomers(ctx context.Context, exclude string) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username <> $1`, exclude).Scan(&n); err != nil {
		return 0, errs.Storage(err, "count users")
	}
	return n, nil
}

func (s *PostgresStorage) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, errs.Storage(err, "count orders")
	}
	return n, nil
}

// Revenue sums final amounts of orders in the given statuses.
func (s *PostgresStorage) Revenue(ctx context.Context, statuses []model.OrderStatus) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(final_amount), 0) FROM orders WHERE status = ANY($1)`

	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	var total decimal.Decimal
	if err := s.db.QueryRow(ctx, query, names).Scan(&total); err != nil {
		return decimal.Zero, errs.Storage(err, "sum revenue")
	}
	return total, nil
}

// DailySummary counts orders created in [from, to) and sums their final amounts.
func (s *PostgresStorage) DailySummary(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error) {
	const query = `
		SELECT COUNT(*), COALESCE(SUM(final_amount), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2`

	var (
		n     int64
		total decimal.Decimal
	)
	if err := s.db.QueryRow(ctx, query, from, to).Scan(&n, &total); err != nil {
		return 0, decimal.Zero, errs.Storage(err, "daily summary")
	}
	return n, total, nil
}
