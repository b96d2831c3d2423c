package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/talos-registry/talos-server/internal/http/response"
	"github.com/talos-registry/talos-server/internal/security"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated principal of a bearer-authed request.
type Identity struct {
	UserID   uint
	Username string
	Email    string
	Role     string
}

// AuthMiddleware requires a valid bearer access token and stores the caller's
// identity in the request context.
func AuthMiddleware(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			raw := strings.TrimSpace(auth[7:])
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			userID, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token", nil)
				return
			}
			identity := &Identity{
				UserID:   uint(userID),
				Username: claims.Username,
				Email:    claims.Email,
				Role:     claims.Role,
			}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}
