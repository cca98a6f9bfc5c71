// Package reporting serves the read-only admin views.
package reporting

import (
	"context"
	"time"

	"github.com/and161185/shopledger/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

//go:generate mockgen -destination=../mocks/mock_reader.go -package=mocks github.com/and161185/shopledger/internal/reporting Reader

type Reader interface {
	CountCustomers(ctx context.Context, exclude string) (int64, error)
	CountOrders(ctx context.Context) (int64, error)
	Revenue(ctx context.Context, statuses []model.OrderStatus) (decimal.Decimal, error)
	DailySummary(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error)

	ListOrders(ctx context.Context) ([]model.OrderSummary, error)
	GetOrder(ctx context.Context, orderID string) (model.OrderSummary, error)
	ListCustomers(ctx context.Context, exclude string) ([]model.User, error)
}

// RevenueStatuses are the order states counted as sales.
var RevenueStatuses = []model.OrderStatus{model.Paid, model.Shipped, model.Completed}

type Service struct {
	reader        Reader
	adminUsername string
	now           func() time.Time
}

func NewService(reader Reader, adminUsername string) *Service {
	return &Service{reader: reader, adminUsername: adminUsername, now: time.Now}
}

// Stats runs the dashboard queries concurrently. Today is the current
// calendar day in the server's local time zone.
func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.reader.CountCustomers(ctx, s.adminUsername)
		stats.UserCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.reader.CountOrders(ctx)
		stats.OrderCount = n
		return err
	})
	g.Go(func() error {
		total, err := s.reader.Revenue(ctx, RevenueStatuses)
		stats.TotalRevenue = total
		return err
	})
	g.Go(func() error {
		n, total, err := s.reader.DailySummary(ctx, dayStart, dayEnd)
		stats.TodayOrders = n
		stats.TodayRevenue = total
		return err
	})

	if err := g.Wait(); err != nil {
		return model.Stats{}, err
	}

	return stats, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]model.OrderSummary, error) {
	return s.reader.ListOrders(ctx)
}

func (s *Service) OrderDetail(ctx context.Context, orderID string) (model.OrderSummary, error) {
	return s.reader.GetOrder(ctx, orderID)
}

// ListCustomers lists every account except the administrator.
func (s *Service) ListCustomers(ctx context.Context) ([]model.User, error) {
	return s.reader.ListCustomers(ctx, s.adminUsername)
}
