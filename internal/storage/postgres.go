package storage

import (
	"context"
	"errors"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/ledger"
	"github.com/and161185/shopledger/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

// AdminSeed describes the administrator account created on first start.
type AdminSeed struct {
	Username string
	Password string
	Points   int64
}

type PostgresStorage struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

func (store *PostgresStorage) initSchema(ctx context.Context) error {
	const initSchemaQuery = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		description TEXT NOT NULL DEFAULT '',
		image_url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		total_amount NUMERIC(12,2) NOT NULL CHECK (total_amount >= 0),
		point_discount NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (point_discount >= 0),
		final_amount NUMERIC(12,2) NOT NULL CHECK (final_amount >= 0),
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'paid', 'shipped', 'completed', 'cancelled')),
		payment_method TEXT NOT NULL DEFAULT 'tng',
		payment_reference TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (final_amount = total_amount - point_discount)
	);
	CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT,
		product_name TEXT NOT NULL,
		product_price NUMERIC(12,2) NOT NULL CHECK (product_price >= 0),
		quantity INT NOT NULL CHECK (quantity > 0),
		coupon_code TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS coupons (
		id BIGSERIAL PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('percentage', 'fixed_amount')),
		type TEXT NOT NULL,
		discount_value NUMERIC(12,2) NOT NULL CHECK (discount_value > 0),
		price BIGINT NOT NULL CHECK (price > 0),
		is_used BOOLEAN NOT NULL DEFAULT FALSE,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		used_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS point_transactions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		points BIGINT NOT NULL CHECK (points <> 0),
		type TEXT NOT NULL CHECK (type IN ('earn', 'redeem', 'register_bonus', 'purchase_earn')),
		description TEXT NOT NULL DEFAULT '',
		order_id TEXT REFERENCES orders(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS point_transactions_user_idx ON point_transactions (user_id, created_at DESC);
	CREATE TABLE IF NOT EXISTS admin_logs (
		id BIGSERIAL PRIMARY KEY,
		admin_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		target_type TEXT,
		target_id TEXT,
		details TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`

	_, err := store.db.Exec(ctx, initSchemaQuery)
	return err
}

var sampleProducts = []model.Product{
	{Name: "Car Coating A", Price: decimal.RequireFromString("99.99"), Description: "Premium car coating service"},
	{Name: "Motorcycle Coating B", Price: decimal.RequireFromString("79.99"), Description: "Professional motorcycle coating"},
	{Name: "Bicycle Coating C", Price: decimal.RequireFromString("49.99"), Description: "Custom bicycle coating"},
	{Name: "Metal Coating D", Price: decimal.RequireFromString("129.99"), Description: "Professional metal surface treatment"},
	{Name: "Plastic Coating E", Price: decimal.RequireFromString("69.99"), Description: "Plastic material coating service"},
}

// seed creates the admin account with a balance backed by an earn
// transaction, and the sample catalog when no products exist.
func (store *PostgresStorage) seed(ctx context.Context, admin AdminSeed) error {
	if admin.Username == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return errs.Wrap(err, "hash admin password")
	}

	return pgx.BeginFunc(ctx, store.db, func(tx pgx.Tx) error {
		const insertAdminQuery = `
			INSERT INTO users (username, password_hash, points)
			VALUES ($1, $2, $3)
			ON CONFLICT (username) DO NOTHING
			RETURNING id`

		var adminID int64
		err := tx.QueryRow(ctx, insertAdminQuery, admin.Username, string(hash), admin.Points).Scan(&adminID)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return errs.Wrap(err, "insert admin")
		default:
			store.logger.Infow("admin account created", "username", admin.Username)
			if admin.Points > 0 {
				const seedPointsQuery = `
					INSERT INTO point_transactions (user_id, points, type, description)
					VALUES ($1, $2, 'earn', 'initial admin balance')`
				if _, err := tx.Exec(ctx, seedPointsQuery, adminID, admin.Points); err != nil {
					return errs.Wrap(err, "seed admin points")
				}
			}
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
			return errs.Wrap(err, "count products")
		}
		if count > 0 {
			return nil
		}

		for _, p := range sampleProducts {
			const insertProductQuery = `INSERT INTO products (name, price, description) VALUES ($1, $2, $3)`
			if _, err := tx.Exec(ctx, insertProductQuery, p.Name, p.Price, p.Description); err != nil {
				return errs.Wrap(err, "insert sample product")
			}
		}
		store.logger.Infow("sample products added", "count", len(sampleProducts))
		return nil
	})
}

func NewPostgresStorage(ctx context.Context, databaseURI string, admin AdminSeed, logger *zap.SugaredLogger) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, errs.Storage(err, "create pool")
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.Ping(ctx); err != nil {
		db.Close()
		return nil, errs.Storage(err, "ping")
	}

	if err := storage.initSchema(ctx); err != nil {
		db.Close()
		return nil, errs.Storage(err, "init schema")
	}

	if err := storage.seed(ctx, admin); err != nil {
		db.Close()
		return nil, errs.Storage(err, "seed")
	}

	return storage, nil
}

func (store *PostgresStorage) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStorage) Close() {
	store.db.Close()
}

// WithTransaction runs fn in one read-committed transaction. The
// transaction commits only when fn returns nil; errors and panics roll it
// back.
func (store *PostgresStorage) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) (err error) {
	tx, err := store.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errs.Storage(err, "begin tx")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			store.logger.Warnw("rollback failed", "error", rbErr)
		}
	}()

	if err = fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return errs.Storage(err, "commit")
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// conflict marks a unique violation as a uniqueness conflict and anything
// else as a storage failure.
func conflict(err error, msg string) error {
	if isUniqueViolation(err) {
		return errs.Mark(errs.Wrap(err, msg), errs.ErrUniquenessConflict)
	}
	return errs.Storage(err, msg)
}
