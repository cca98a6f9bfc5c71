package errs

import (
	cr "github.com/cockroachdb/errors"
)

// Error kinds. Concrete errors are marked with one of these so callers can
// branch with errors.Is while keeping the specific message.
var (
	ErrInvalidInput       = cr.New("invalid input")
	ErrInsufficientPoints = cr.New("insufficient points")
	ErrOrderNotPayable    = cr.New("order not payable")
	ErrUniquenessConflict = cr.New("uniqueness conflict")
	ErrStorageFailure     = cr.New("storage failure")
	ErrNotFound           = cr.New("not found")
	ErrUnauthorized       = cr.New("unauthorized")
)

var (
	ErrUserNotFound       = Mark(cr.New("user not found"), ErrNotFound)
	ErrOrderNotFound      = Mark(cr.New("order not found"), ErrNotFound)
	ErrProductNotFound    = Mark(cr.New("product not found"), ErrNotFound)
	ErrCouponNotFound     = Mark(cr.New("coupon not found"), ErrNotFound)
	ErrInvalidToken       = Mark(cr.New("invalid token"), ErrUnauthorized)
	ErrLoginAlreadyExists = Mark(cr.New("login already exists"), ErrInvalidInput)
	ErrEmptyOrder         = Mark(cr.New("order has no items"), ErrInvalidInput)
	ErrInvalidAmount      = Mark(cr.New("invalid amount"), ErrInvalidInput)
	ErrInvalidTransition  = Mark(cr.New("invalid status transition"), ErrInvalidInput)
	ErrCouponUnavailable  = Mark(cr.New("coupon unavailable"), ErrInvalidInput)
	ErrUnknownCoupon      = Mark(cr.New("unknown coupon type"), ErrInvalidInput)
)

func Newf(format string, args ...interface{}) error {
	return cr.Newf(format, args...)
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

func Mark(err error, kind error) error {
	if err == nil {
		return kind
	}
	return cr.Mark(err, kind)
}

// Invalid builds an InvalidInput error with a formatted message.
func Invalid(format string, args ...interface{}) error {
	return cr.Mark(cr.Newf(format, args...), ErrInvalidInput)
}

// Storage marks a driver or transaction error as a StorageFailure.
func Storage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Mark(cr.Wrap(err, msg), ErrStorageFailure)
}

func Is(err, target error) bool {
	return cr.Is(err, target)
}

var kinds = []error{
	ErrInvalidInput,
	ErrInsufficientPoints,
	ErrOrderNotPayable,
	ErrUniquenessConflict,
	ErrNotFound,
	ErrUnauthorized,
	ErrStorageFailure,
}

// KindOf returns the taxonomy kind carried by err. Unmarked errors are
// reported as storage failures.
func KindOf(err error) error {
	for _, kind := range kinds {
		if cr.Is(err, kind) {
			return kind
		}
	}
	return ErrStorageFailure
}
