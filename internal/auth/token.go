package auth

import (
	"time"

	"github.com/and161185/shopledger/internal/errs"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims identifies the account a token was issued for.
type Claims struct {
	UserID   int64
	Username string
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenManager(secretKey string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secretKey: []byte(secretKey), ttl: ttl, now: time.Now}
}

func (tm *TokenManager) GenerateToken(userID int64, username string) (string, error) {
	now := tm.now()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"exp":      now.Add(tm.ttl).Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

func (tm *TokenManager) ParseToken(tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errs.ErrInvalidToken
		}
		return tm.secretKey, nil
	}, jwt.WithTimeFunc(tm.now))

	if err != nil || !token.Valid {
		return Claims{}, errs.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errs.ErrInvalidToken
	}

	idFloat, ok := claims["user_id"].(float64)
	if !ok {
		return Claims{}, errs.ErrInvalidToken
	}
	username, _ := claims["username"].(string)

	return Claims{UserID: int64(idFloat), Username: username}, nil
}
