package server

import (
	"encoding/json"
	"net/http"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/middleware"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

type messageResponse struct {
	Message string `json:"message"`
}

func (srv *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.deps.Logger.Warnw("encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Mark(errs.Wrap(err, "decode request body"), errs.ErrInvalidInput)
	}
	return nil
}

// writeError maps the error kind to a status. Client errors carry the
// error text, everything else is logged and reported generically.
func (srv *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch errs.KindOf(err) {
	case errs.ErrInvalidInput:
		middleware.JSONError(w, http.StatusBadRequest, err.Error())
	case errs.ErrInsufficientPoints:
		middleware.JSONError(w, http.StatusBadRequest, "insufficient points")
	case errs.ErrOrderNotPayable:
		middleware.JSONError(w, http.StatusNotFound, "order not found or not payable")
	case errs.ErrNotFound:
		middleware.JSONError(w, http.StatusNotFound, err.Error())
	case errs.ErrUnauthorized:
		middleware.JSONError(w, http.StatusUnauthorized, "unauthorized")
	default:
		srv.deps.Logger.Errorw("request failed",
			"method", r.Method,
			"uri", r.RequestURI,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"error", err,
		)
		middleware.JSONError(w, http.StatusInternalServerError, "internal server error")
	}
}
