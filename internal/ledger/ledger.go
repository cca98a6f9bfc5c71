// Package ledger implements the points account, coupon issuer and order
// engine. Every mutation runs as a single Store.WithTransaction call.
package ledger

import (
	"context"
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/ids"
	"github.com/and161185/shopledger/internal/model"
	"go.uber.org/zap"
)

// Store runs fn inside one all-or-nothing transaction. fn's error rolls
// the transaction back and is returned unchanged.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of row operations available inside a transaction. Lock*
// methods take row locks held until the transaction ends.
type Tx interface {
	CreateUser(ctx context.Context, username, passwordHash, phone string) (model.User, error)
	LockUserPoints(ctx context.Context, userID int64) (int64, error)
	SetUserPoints(ctx context.Context, userID int64, points int64) error
	InsertPointTransaction(ctx context.Context, pt model.PointTransaction) error
	OrderPoints(ctx context.Context, orderID string, t model.TransactionType) (int64, error)

	InsertOrder(ctx context.Context, order model.Order) error
	InsertOrderItem(ctx context.Context, orderID string, item model.OrderItem) error
	OrderItems(ctx context.Context, orderID string) ([]model.OrderItem, error)
	LockOrder(ctx context.Context, orderID string) (model.Order, error)
	SetOrderPaid(ctx context.Context, orderID string, paymentReference *string) error
	SetOrderStatus(ctx context.Context, orderID string, status model.OrderStatus) error

	InsertCoupon(ctx context.Context, coupon model.Coupon) (model.Coupon, error)
	LockCoupon(ctx context.Context, code string) (model.Coupon, error)
	SetCouponUsed(ctx context.Context, code string, usedAt *time.Time) error

	InsertAdminLog(ctx context.Context, entry model.AdminLog) error
}

type Service struct {
	store  Store
	ids    ids.Generator
	policy Policy
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store Store, gen ids.Generator, policy Policy, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		ids:    gen,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// withUniqueID retries fn with fresh identifiers while it reports a
// uniqueness conflict, up to Policy.MaxIDAttempts times.
func (s *Service) withUniqueID(next func() string, fn func(id string) error) error {
	attempts := s.policy.MaxIDAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		id := next()
		err = fn(id)
		if err == nil || !errs.Is(err, errs.ErrUniquenessConflict) {
			return err
		}
		s.logger.Warnw("generated identifier collided", "id", id, "attempt", attempt)
	}

	return errs.Mark(errs.Newf("no unique identifier after %d attempts: %s", attempts, err), errs.ErrStorageFailure)
}
