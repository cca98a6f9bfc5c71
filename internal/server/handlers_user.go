package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/events"
	"github.com/and161185/shopledger/internal/middleware"
	"github.com/and161185/shopledger/internal/model"
	"github.com/and161185/shopledger/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

type authResponse struct {
	Message string     `json:"message"`
	User    model.User `json:"user"`
	Token   string     `json:"token"`
}

func (srv *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := srv.storage.Ping(r.Context()); err != nil {
		srv.deps.Logger.Warnw("health check", "error", err)
		middleware.JSONError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}

	srv.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (srv *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		srv.writeError(w, r, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" || req.Phone == "" {
		middleware.JSONError(w, http.StatusBadRequest, "username, password and phone are required")
		return
	}
	if !utils.IsValidPhone(req.Phone) {
		middleware.JSONError(w, http.StatusBadRequest, "invalid phone number")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		srv.writeError(w, r, errs.Wrap(err, "hash password"))
		return
	}

	user, err := srv.ledger.Register(r.Context(), req.Username, string(hash), req.Phone)
	if err != nil {
		if errs.Is(err, errs.ErrLoginAlreadyExists) {
			middleware.JSONError(w, http.StatusBadRequest, "username already exists")
			return
		}
		srv.writeError(w, r, err)
		return
	}

	token, err := srv.deps.TokenManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		srv.writeError(w, r, errs.Wrap(err, "generate token"))
		return
	}

	srv.emit(events.New(events.UserRegistered, user.ID, "", map[string]any{
		"username": user.Username,
		"points":   user.Points,
	}))

	srv.writeJSON(w, http.StatusCreated, authResponse{
		Message: "registration successful",
		User:    user,
		Token:   token,
	})
}

func (srv *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		srv.writeError(w, r, err)
		return
	}
	if creds.Username == "" || creds.Password == "" {
		middleware.JSONError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, hash, err := srv.storage.GetUserByLogin(r.Context(), creds.Username)
	if err != nil {
		if errs.Is(err, errs.ErrUserNotFound) {
			middleware.JSONError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		srv.writeError(w, r, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		middleware.JSONError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := srv.deps.TokenManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		srv.writeError(w, r, errs.Wrap(err, "generate token"))
		return
	}

	srv.writeJSON(w, http.StatusOK, authResponse{
		Message: "login successful",
		User:    user,
		Token:   token,
	})
}

func (srv *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		middleware.JSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	srv.writeJSON(w, http.StatusOK, map[string]model.User{"user": user})
}
