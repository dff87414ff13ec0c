package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

const jwtClaimUserID = "user_id"

const tokenTTL = 30 * 24 * time.Hour

var ErrNoUserInContext = errors.New("user id not found in context")

// MintToken issues a signed token for the given user id.
func MintToken(secret string, userID int) (string, error) {
	claims := jwt.MapClaims{
		jwtClaimUserID: userID,
		"exp":          time.Now().Add(tokenTTL).Unix(),
		"iat":          time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Authenticate verifies the bearer token and stores the principal's user id
// in the request context. Tokens may also arrive in the "token" query
// parameter, which the websocket endpoint uses since browsers cannot set
// headers on upgrade requests.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "missing authentication token", http.StatusUnauthorized)
				return
			}

			userID, err := parseToken(secret, raw)
			if err != nil {
				http.Error(w, "invalid authentication token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(userIDContextKey).(int)
	if !ok || userID <= 0 {
		return 0, ErrNoUserInContext
	}
	return userID, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func parseToken(secret, raw string) (int, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}

	idFloat, ok := claims[jwtClaimUserID].(float64)
	if !ok || idFloat != float64(int(idFloat)) {
		return 0, fmt.Errorf("missing or malformed %q claim", jwtClaimUserID)
	}
	userID := int(idFloat)
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id in %q claim: %d", jwtClaimUserID, userID)
	}
	return userID, nil
}
