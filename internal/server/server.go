package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/and161185/shopledger/internal/config"
	"github.com/and161185/shopledger/internal/deps"
	"github.com/and161185/shopledger/internal/events"
	"github.com/and161185/shopledger/internal/middleware"
	"github.com/and161185/shopledger/internal/model"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=../mocks/mock_server.go -package=mocks github.com/and161185/shopledger/internal/server Ledger,Storage,Reporter

// Ledger is the transactional core: every call is one atomic unit.
type Ledger interface {
	Register(ctx context.Context, username, passwordHash, phone string) (model.User, error)
	PurchaseCoupon(ctx context.Context, userID int64, label string, customAmount int64) (model.Coupon, error)
	CreateOrder(ctx context.Context, userID int64, items []model.OrderItem, pointDiscount decimal.Decimal, paymentMethod string) (model.Order, error)
	PayOrder(ctx context.Context, orderID string, userID int64, paymentReference *string) (model.PaymentResult, error)
	UpdateOrderStatus(ctx context.Context, adminID int64, orderID string, status model.OrderStatus) (model.Order, bool, error)
}

type Storage interface {
	Ping(ctx context.Context) error

	GetUserByLogin(ctx context.Context, username string) (model.User, string, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)

	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	CreateProduct(ctx context.Context, adminID int64, p model.Product) (model.Product, error)
	DeleteProduct(ctx context.Context, adminID int64, id int64) error

	ListCoupons(ctx context.Context, userID int64) ([]model.Coupon, error)
	PointHistory(ctx context.Context, userID int64, limit int) ([]model.PointTransaction, error)
}

type Reporter interface {
	Stats(ctx context.Context) (model.Stats, error)
	ListOrders(ctx context.Context) ([]model.OrderSummary, error)
	OrderDetail(ctx context.Context, orderID string) (model.OrderSummary, error)
	ListCustomers(ctx context.Context) ([]model.User, error)
}

type Server struct {
	ledger    Ledger
	storage   Storage
	reporter  Reporter
	publisher events.Publisher
	config    *config.Config
	deps      *deps.Deps

	events  chan events.Event
	workers sync.WaitGroup
	cancel  context.CancelFunc
	http    *http.Server
}

func NewServer(ledger Ledger, storage Storage, reporter Reporter, publisher events.Publisher, cfg *config.Config, deps *deps.Deps) *Server {
	queue := cfg.EventQueueSize
	if queue < 1 {
		queue = 1
	}

	return &Server{
		ledger:    ledger,
		storage:   storage,
		reporter:  reporter,
		publisher: publisher,
		config:    cfg,
		deps:      deps,
		events:    make(chan events.Event, queue),
	}
}

func (srv *Server) buildRouter() http.Handler {
	logger := srv.deps.Logger

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.StripSlashes)
	router.Use(middleware.LogMiddleware(logger))
	router.Use(middleware.DecompressMiddleware)
	router.Use(middleware.CompressMiddleware(logger))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.JSONError(w, http.StatusNotFound, "API endpoint not found")
	})

	router.Get("/api/health", srv.HealthHandler)
	router.Post("/api/register", srv.RegisterHandler)
	router.Post("/api/login", srv.LoginHandler)
	router.Get("/api/products", srv.ListProductsHandler)

	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(srv.storage, srv.deps.TokenManager, logger))

		r.Get("/api/profile", srv.ProfileHandler)
		r.Post("/api/cart/add", srv.AddToCartHandler)
		r.Post("/api/orders/create", srv.CreateOrderHandler)
		r.Post("/api/orders/{id}/pay", srv.PayOrderHandler)
		r.Get("/api/coupons", srv.ListCouponsHandler)
		r.Post("/api/coupons/purchase", srv.PurchaseCouponHandler)
		r.Get("/api/points/history", srv.PointHistoryHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly(srv.config.AdminUsername))

			r.Post("/api/products", srv.CreateProductHandler)
			r.Delete("/api/products/{id}", srv.DeleteProductHandler)
			r.Get("/api/admin/orders", srv.AdminOrdersHandler)
			r.Get("/api/admin/order/{id}", srv.AdminOrderHandler)
			r.Put("/api/admin/order/{id}/status", srv.AdminOrderStatusHandler)
			r.Get("/api/admin/users", srv.AdminUsersHandler)
			r.Get("/api/admin/stats", srv.AdminStatsHandler)
		})
	})

	return router
}

// Start binds the listener, then serves and publishes events in the
// background until Shutdown.
func (srv *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.config.RunAddress)
	if err != nil {
		return err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	srv.cancel = cancel
	srv.startEventWorkers(workerCtx)

	srv.http = &http.Server{
		Handler:           srv.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.deps.Logger.Errorw("server error", "error", err)
		}
	}()

	srv.deps.Logger.Infow("server started", "address", ln.Addr().String())
	return nil
}

func (srv *Server) Shutdown(ctx context.Context) error {
	var err error
	if srv.http != nil {
		err = srv.http.Shutdown(ctx)
	}

	if srv.cancel != nil {
		srv.cancel()
	}
	srv.workers.Wait()

	if closeErr := srv.publisher.Close(); closeErr != nil {
		srv.deps.Logger.Warnw("close event publisher", "error", closeErr)
	}

	return err
}
