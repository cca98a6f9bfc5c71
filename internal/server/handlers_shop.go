package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/events"
	"github.com/and161185/shopledger/internal/middleware"
	"github.com/and161185/shopledger/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type cartItemResponse struct {
	Product  cartProductResponse `json:"product"`
	Quantity int                 `json:"quantity"`
}

type cartProductResponse struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID            string            `json:"id"`
	TotalAmount   decimal.Decimal   `json:"totalAmount"`
	PointDiscount decimal.Decimal   `json:"pointDiscount"`
	FinalAmount   decimal.Decimal   `json:"finalAmount"`
	PaymentMethod string            `json:"paymentMethod"`
	Status        model.OrderStatus `json:"status"`
}

func (srv *Server) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := srv.storage.ListProducts(r.Context())
	if err != nil {
		srv.writeError(w, r, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}

	srv.writeJSON(w, http.StatusOK, products)
}

func (srv *Server) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req model.CartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		srv.writeError(w, r, err)
		return
	}
	if req.ProductID <= 0 || req.Quantity <= 0 {
		middleware.JSONError(w, http.StatusBadRequest, "invalid product or quantity")
		return
	}

	product, err := srv.storage.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	srv.writeJSON(w, http.StatusOK, map[string]any{
		"message": "added to cart",
		"cartItem": cartItemResponse{
			Product:  cartProductResponse{ID: product.ID, Name: product.Name, Price: product.Price},
			Quantity: req.Quantity,
		},
		"total": product.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
	})
}

func (srv *Server) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		middleware.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req model.CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		srv.writeError(w, r, err)
		return
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.OrderItem())
	}

	order, err := srv.ledger.CreateOrder(r.Context(), user.ID, items, req.PointDiscount, req.PaymentMethod)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	srv.emit(events.New(events.OrderCreated, user.ID, order.ID, map[string]any{
		"finalAmount":   order.FinalAmount.StringFixed(2),
		"pointDiscount": order.PointDiscount.StringFixed(2),
		"paymentMethod": order.PaymentMethod,
	}))

	srv.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "order created",
		"order": orderResponse{
			ID:            order.ID,
			TotalAmount:   order.TotalAmount,
			PointDiscount: order.PointDiscount,
			FinalAmount:   order.FinalAmount,
			PaymentMethod: order.PaymentMethod,
			Status:        order.Status,
		},
	})
}

func (srv *Server) PayOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		middleware.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// the body is optional
	var req model.PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.JSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	orderID := chi.URLParam(r, "id")
	result, err := srv.ledger.PayOrder(r.Context(), orderID, user.ID, req.PaymentReference)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	srv.emit(events.New(events.OrderPaid, user.ID, result.OrderID, map[string]any{
		"pointsEarned": result.PointsEarned,
	}))

	srv.writeJSON(w, http.StatusOK, map[string]any{
		"message":      "payment successful",
		"orderId":      result.OrderID,
		"pointsEarned": result.PointsEarned,
	})
}

func (srv *Server) ListCouponsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		middleware.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	coupons, err := srv.storage.ListCoupons(r.Context(), user.ID)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}
	if coupons == nil {
		coupons = []model.Coupon{}
	}

	srv.writeJSON(w, http.StatusOK, coupons)
}

func (srv *Server) PurchaseCouponHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		middleware.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req model.CouponRequest
	if err := decodeJSON(r, &req); err != nil {
		srv.writeError(w, r, err)
		return
	}

	coupon, err := srv.ledger.PurchaseCoupon(r.Context(), user.ID, req.Type, req.CustomAmount)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	srv.emit(events.New(events.CouponPurchased, user.ID, "", map[string]any{
		"code":  coupon.Code,
		"type":  coupon.Label,
		"price": coupon.Price,
	}))

	srv.writeJSON(w, http.StatusOK, map[string]any{
		"message": "coupon purchased",
		"coupon": map[string]any{
			"code":          coupon.Code,
			"type":          coupon.Label,
			"price":         coupon.Price,
			"discountValue": coupon.DiscountValue,
		},
	})
}

func (srv *Server) PointHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		middleware.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			srv.writeError(w, r, errs.Invalid("limit must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	history, err := srv.storage.PointHistory(r.Context(), user.ID, limit)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}
	if history == nil {
		history = []model.PointTransaction{}
	}

	srv.writeJSON(w, http.StatusOK, history)
}
