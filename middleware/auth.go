package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Имена claims в токене внешнего сервиса аутентификации.
const (
	jwtClaimUserID   = "user_id"
	jwtClaimPlayerID = "player_id"
	jwtClaimRole     = "role"
)

// Authenticate проверяет подпись JWT внешнего сервиса аутентификации и
// кладёт claims в контекст запроса. Само выписывание токенов ядру не
// принадлежит - отсюда берётся только проверенная пара (userId, playerId).
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
