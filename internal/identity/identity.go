package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
)

// New returns nil when no secret is configured; every caller is then
// anonymous.
func New(secret string) *jwtauth.JWTAuth {
	if secret == "" {
		return nil
	}
	return jwtauth.New("HS256", []byte(secret), nil)
}

// TokenFromQuery reads ?token=, the only place a browser websocket can
// carry it.
func TokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}

// Optional verifies a bearer token when one is sent. Requests without a
// token pass through anonymously; a bad token is rejected.
func Optional(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	if ja == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	verify := jwtauth.Verify(ja, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, TokenFromQuery)
	return func(next http.Handler) http.Handler {
		return verify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _, err := jwtauth.FromContext(r.Context())
			if err != nil && !errors.Is(err, jwtauth.ErrNoTokenFound) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"message": "unauthorized",
					"code":    http.StatusUnauthorized,
					"error":   err.Error(),
				})
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// UserID is the token subject, or "" for anonymous callers.
func UserID(ctx context.Context) string {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil || claims == nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
