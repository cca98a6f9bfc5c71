package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/events"
	"github.com/and161185/shopledger/internal/middleware"
	"github.com/and161185/shopledger/internal/model"
	"github.com/go-chi/chi/v5"
)

func (srv *Server) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.UserFrom(r.Context())

	var req model.ProductRequest
	if err := decodeJSON(r, &req); err != nil {
		srv.writeError(w, r, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || !req.Price.IsPositive() || !req.Price.Round(2).Equal(req.Price) {
		middleware.JSONError(w, http.StatusBadRequest, "name and a positive price with at most two decimals are required")
		return
	}

	product, err := srv.storage.CreateProduct(r.Context(), admin.ID, model.Product{
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	srv.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "product created",
		"product": product,
	})
}

func (srv *Server) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.UserFrom(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.JSONError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := srv.storage.DeleteProduct(r.Context(), admin.ID, id); err != nil {
		srv.writeError(w, r, err)
		return
	}

	srv.writeJSON(w, http.StatusOK, messageResponse{Message: "product deleted"})
}

func (srv *Server) AdminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := srv.reporter.ListOrders(r.Context())
	if err != nil {
		srv.writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []model.OrderSummary{}
	}

	srv.writeJSON(w, http.StatusOK, orders)
}

func (srv *Server) AdminOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := srv.reporter.OrderDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	items := order.Items
	if items == nil {
		items = []model.OrderItem{}
	}
	order.Items = nil

	srv.writeJSON(w, http.StatusOK, map[string]any{
		"order": order,
		"items": items,
	})
}

func (srv *Server) AdminOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.UserFrom(r.Context())

	var req model.StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		srv.writeError(w, r, err)
		return
	}

	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		srv.writeError(w, r, errs.Mark(err, errs.ErrInvalidInput))
		return
	}

	orderID := chi.URLParam(r, "id")
	order, changed, err := srv.ledger.UpdateOrderStatus(r.Context(), admin.ID, orderID, status)
	if err != nil {
		srv.writeError(w, r, err)
		return
	}

	if changed {
		srv.emit(events.New(events.OrderStatusChanged, order.UserID, order.ID, map[string]any{
			"status":  order.Status,
			"adminId": admin.ID,
		}))
	}

	srv.writeJSON(w, http.StatusOK, map[string]any{
		"message": "order status updated",
		"orderId": order.ID,
		"status":  order.Status,
	})
}

func (srv *Server) AdminUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := srv.reporter.ListCustomers(r.Context())
	if err != nil {
		srv.writeError(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}

	srv.writeJSON(w, http.StatusOK, users)
}

func (srv *Server) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := srv.reporter.Stats(r.Context())
	if err != nil {
		srv.writeError(w, r, errs.Wrap(err, "collect stats"))
		return
	}

	srv.writeJSON(w, http.StatusOK, stats)
}
