package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/security"
)

func newTestJWTManager() *security.JWTManager {
	return security.NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456", 15*time.Minute)
}

func TestAuthMiddlewareMissingTokenReturnsUnauthorized(t *testing.T) {
	h := AuthMiddleware(newTestJWTManager())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rr.Code)
	}
}

func TestAuthMiddlewareRejectsForeignToken(t *testing.T) {
	foreign := security.NewJWTManager("other-iss", "aud", "abcdefghijklmnopqrstuvwxyz123456", 15*time.Minute)
	token, _, err := foreign.Issue(&domain.User{ID: 42, Username: "alice", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	h := AuthMiddleware(newTestJWTManager())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign issuer, got %d", rr.Code)
	}
}

func TestAuthMiddlewareValidBearerTokenCarriesIdentity(t *testing.T) {
	jwtMgr := newTestJWTManager()
	token, _, err := jwtMgr.Issue(&domain.User{ID: 42, Username: "alice", Email: "alice@example.com", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var seen *Identity
	h := AuthMiddleware(jwtMgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for valid token, got %d", rr.Code)
	}
	if seen == nil || seen.UserID != 42 || seen.Username != "alice" || seen.Role != domain.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", seen)
	}
}
