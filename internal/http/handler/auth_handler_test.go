package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/http/middleware"
	"github.com/talos-registry/talos-server/internal/security"
	"github.com/talos-registry/talos-server/internal/service"
)

type stubAuthService struct {
	result  *service.AuthResult
	profile *service.Profile
	err     error
}

func (s *stubAuthService) Register(context.Context, service.RegisterRequest) (*service.AuthResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) Login(context.Context, service.LoginRequest) (*service.AuthResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) Refresh(context.Context, string) (*service.AuthResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) Logout(context.Context, string) error { return s.err }

func (s *stubAuthService) GetProfile(context.Context, uint) (*service.Profile, error) {
	return s.profile, s.err
}

func (s *stubAuthService) UpdateProfile(context.Context, uint, service.UpdateProfileRequest) error {
	return s.err
}

func newAuthHandlerForTest(stub *stubAuthService) *AuthHandler {
	return NewAuthHandler(stub, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postJSON(t *testing.T, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestLoginReturnsFlatAuthResult(t *testing.T) {
	stub := &stubAuthService{result: &service.AuthResult{
		Success:      true,
		Token:        "jwt-value",
		RefreshToken: "refresh-value",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         service.UserDTO{ID: 1, Username: "alice", Email: "alice@example.com", Role: domain.RoleUser},
	}}
	h := newAuthHandlerForTest(stub)

	rr := postJSON(t, h.Login, "/api/v1/auth/login", `{"email":"alice@example.com","password":"pw"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["success"] != true || body["token"] != "jwt-value" || body["refreshToken"] != "refresh-value" {
		t.Fatalf("unexpected body shape: %v", body)
	}
	if _, wrapped := body["data"]; wrapped {
		t.Fatal("auth results must not be wrapped in a data envelope")
	}
}

func TestAuthErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized},
		{"validation", service.ErrValidation, http.StatusBadRequest},
		{"email taken", service.ErrEmailTaken, http.StatusConflict},
		{"username taken", service.ErrUsernameTaken, http.StatusConflict},
		{"refresh invalid", service.ErrRefreshInvalid, http.StatusUnauthorized},
		{"refresh revoked", service.ErrRefreshRevoked, http.StatusUnauthorized},
		{"refresh expired", service.ErrRefreshExpired, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newAuthHandlerForTest(&stubAuthService{err: tc.err})
			rr := postJSON(t, h.Refresh, "/api/v1/auth/refresh", `{"refreshToken":"t"}`)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["success"] != false {
				t.Fatalf("expected success=false envelope, got %v", body)
			}
		})
	}
}

func TestRefreshDistinguishesTokenStates(t *testing.T) {
	for _, tc := range []struct {
		err      error
		wantCode string
	}{
		{service.ErrRefreshInvalid, "TOKEN_INVALID"},
		{service.ErrRefreshRevoked, "TOKEN_REVOKED"},
		{service.ErrRefreshExpired, "TOKEN_EXPIRED"},
	} {
		h := newAuthHandlerForTest(&stubAuthService{err: tc.err})
		rr := postJSON(t, h.Refresh, "/api/v1/auth/refresh", `{"refreshToken":"t"}`)
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Error.Code != tc.wantCode {
			t.Fatalf("expected code %s, got %s", tc.wantCode, body.Error.Code)
		}
	}
}

func TestRefreshEmptyBodyIsBadRequest(t *testing.T) {
	h := newAuthHandlerForTest(&stubAuthService{})
	if rr := postJSON(t, h.Refresh, "/api/v1/auth/refresh", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing refreshToken, got %d", rr.Code)
	}
	if rr := postJSON(t, h.Refresh, "/api/v1/auth/refresh", `not-json`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rr.Code)
	}
}

func TestLogoutStatusCodes(t *testing.T) {
	h := newAuthHandlerForTest(&stubAuthService{})
	if rr := postJSON(t, h.Logout, "/api/v1/auth/logout", `{"refreshToken":"t"}`); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := postJSON(t, h.Logout, "/api/v1/auth/logout", `{}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty token, got %d", rr.Code)
	}

	h = newAuthHandlerForTest(&stubAuthService{err: service.ErrRefreshInvalid})
	if rr := postJSON(t, h.Logout, "/api/v1/auth/logout", `{"refreshToken":"t"}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when no live token matches, got %d", rr.Code)
	}
}

func TestGetProfileRequiresIdentity(t *testing.T) {
	h := newAuthHandlerForTest(&stubAuthService{profile: &service.Profile{Success: true, ID: 1, Username: "alice"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	rr := httptest.NewRecorder()
	h.GetProfile(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
}

func TestGetProfileThroughAuthMiddleware(t *testing.T) {
	stub := &stubAuthService{profile: &service.Profile{Success: true, ID: 7, Username: "alice", TemplateCount: 3}}
	h := newAuthHandlerForTest(stub)

	jwtMgr := security.NewJWTManager("iss", "aud", "abcdefghijklmnopqrstuvwxyz123456", 15*time.Minute)
	token, _, err := jwtMgr.Issue(&domain.User{ID: 7, Username: "alice", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	protected := middleware.AuthMiddleware(jwtMgr)(http.HandlerFunc(h.GetProfile))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var profile service.Profile
	if err := json.Unmarshal(rr.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if profile.ID != 7 || profile.TemplateCount != 3 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}
