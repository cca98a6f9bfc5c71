package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/and161185/shopledger/internal/auth"
	"github.com/and161185/shopledger/internal/errs"
	"github.com/and161185/shopledger/internal/model"
	"go.uber.org/zap"
)

type Storage interface {
	GetUserByID(ctx context.Context, id int64) (model.User, error)
}

type contextKey string

const UserContextKey contextKey = "user"

// UserFrom returns the authenticated user stored by AuthMiddleware.
func UserFrom(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(UserContextKey).(model.User)
	return user, ok
}

// JSONError writes {"error": msg} with the given status.
func JSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func AuthMiddleware(store Storage, tm *auth.TokenManager, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				JSONError(w, http.StatusUnauthorized, "access token required")
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := tm.ParseToken(tokenStr)
			if err != nil {
				JSONError(w, http.StatusForbidden, "invalid token")
				return
			}

			user, err := store.GetUserByID(r.Context(), claims.UserID)
			if err != nil {
				if errs.Is(err, errs.ErrUserNotFound) {
					JSONError(w, http.StatusUnauthorized, "user not found")
					return
				}
				logger.Errorw("load user", "user_id", claims.UserID, "error", err)
				JSONError(w, http.StatusInternalServerError, "internal error")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly lets through only the account named adminUsername. It must run
// after AuthMiddleware.
func AdminOnly(adminUsername string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFrom(r.Context())
			if !ok {
				JSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if user.Username != adminUsername {
				JSONError(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
