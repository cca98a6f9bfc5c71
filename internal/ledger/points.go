package ledger

import (
	"context"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
)

type entry struct {
	userID      int64
	delta       int64
	kind        model.TransactionType
	description string
	orderID     *string
}

// Credit adds amount points to the user and returns the new balance.
func (s *Service) Credit(ctx context.Context, userID, amount int64, kind model.TransactionType, description string, orderID *string) (int64, error) {
	if amount <= 0 {
		return 0, errs.Wrapf(errs.ErrInvalidAmount, "credit %d", amount)
	}
	return s.post(ctx, entry{userID: userID, delta: amount, kind: kind, description: description, orderID: orderID})
}

// Debit removes amount points from the user and returns the new balance.
// It fails with ErrInsufficientPoints rather than going below zero.
func (s *Service) Debit(ctx context.Context, userID, amount int64, kind model.TransactionType, description string, orderID *string) (int64, error) {
	if amount <= 0 {
		return 0, errs.Wrapf(errs.ErrInvalidAmount, "debit %d", amount)
	}
	return s.post(ctx, entry{userID: userID, delta: -amount, kind: kind, description: description, orderID: orderID})
}

func (s *Service) post(ctx context.Context, e entry) (int64, error) {
	if _, err := model.ParseTransactionType(string(e.kind)); err != nil {
		return 0, errs.Mark(err, errs.ErrInvalidInput)
	}

	var balance int64
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		balance, err = s.apply(ctx, tx, e)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// apply moves the balance and appends the matching transaction row inside tx.
func (s *Service) apply(ctx context.Context, tx Tx, e entry) (int64, error) {
	if e.delta == 0 {
		return 0, errs.Wrap(errs.ErrInvalidAmount, "zero point delta")
	}

	current, err := tx.LockUserPoints(ctx, e.userID)
	if err != nil {
		return 0, err
	}

	next := current + e.delta
	if next < 0 {
		return 0, errs.Wrapf(errs.ErrInsufficientPoints, "user %d has %d points, needs %d", e.userID, current, -e.delta)
	}

	if err := tx.SetUserPoints(ctx, e.userID, next); err != nil {
		return 0, err
	}

	err = tx.InsertPointTransaction(ctx, model.PointTransaction{
		UserID:      e.userID,
		Points:      e.delta,
		Type:        e.kind,
		Description: e.description,
		OrderID:     e.orderID,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return 0, err
	}

	return next, nil
}

// Register creates a user and credits the registration bonus in one
// transaction.
func (s *Service) Register(ctx context.Context, username, passwordHash, phone string) (model.User, error) {
	if username == "" || passwordHash == "" {
		return model.User{}, errs.Invalid("username and password required")
	}

	var user model.User
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		user, err = tx.CreateUser(ctx, username, passwordHash, phone)
		if err != nil {
			return err
		}

		if s.policy.RegisterBonus <= 0 {
			return nil
		}

		user.Points, err = s.apply(ctx, tx, entry{
			userID:      user.ID,
			delta:       s.policy.RegisterBonus,
			kind:        model.RegisterBonus,
			description: "registration bonus",
		})
		return err
	})
	if err != nil {
		return model.User{}, err
	}

	s.logger.Infow("user registered", "user_id", user.ID, "points", user.Points)
	return user, nil
}
