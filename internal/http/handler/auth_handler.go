package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/talos-registry/talos-server/internal/http/middleware"
	"github.com/talos-registry/talos-server/internal/http/response"
	"github.com/talos-registry/talos-server/internal/observability"
	"github.com/talos-registry/talos-server/internal/repository"
	"github.com/talos-registry/talos-server/internal/service"
)

type AuthHandler struct {
	auth   service.AuthServiceInterface
	logger *slog.Logger
}

func NewAuthHandler(auth service.AuthServiceInterface, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	result, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "user.registered", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	result, err := h.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.Audit(r, "login.rejected")
		}
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "login.succeeded", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required", nil)
		return
	}
	result, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required", nil)
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, service.ErrRefreshInvalid) {
			response.Error(w, r, http.StatusNotFound, "TOKEN_NOT_FOUND", "no live token matches", nil)
			return
		}
		h.writeAuthError(w, r, err)
		return
	}
	observability.Audit(r, "session.revoked")
	response.JSON(w, r, http.StatusOK, messageResponse{Success: true, Message: "logged out"})
}

func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity", nil)
		return
	}
	profile, err := h.auth.GetProfile(r.Context(), identity.UserID)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, profile)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity", nil)
		return
	}
	var req service.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	if err := h.auth.UpdateProfile(r.Context(), identity.UserID, req); err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, messageResponse{Success: true, Message: "profile updated"})
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, service.ErrCurrentPasswordIncorrect):
		response.Error(w, r, http.StatusBadRequest, "CURRENT_PASSWORD_INCORRECT", "current password incorrect", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password", nil)
	case errors.Is(err, service.ErrRefreshInvalid):
		response.Error(w, r, http.StatusUnauthorized, "TOKEN_INVALID", "invalid refresh token", nil)
	case errors.Is(err, service.ErrRefreshRevoked):
		response.Error(w, r, http.StatusUnauthorized, "TOKEN_REVOKED", "refresh token revoked", nil)
	case errors.Is(err, service.ErrRefreshExpired):
		response.Error(w, r, http.StatusUnauthorized, "TOKEN_EXPIRED", "refresh token expired", nil)
	case errors.Is(err, service.ErrEmailTaken):
		response.Error(w, r, http.StatusConflict, "EMAIL_TAKEN", "email already registered", nil)
	case errors.Is(err, service.ErrUsernameTaken):
		response.Error(w, r, http.StatusConflict, "USERNAME_TAKEN", "username already registered", nil)
	case errors.Is(err, service.ErrUserExists):
		response.Error(w, r, http.StatusConflict, "USER_EXISTS", "user already exists", nil)
	case errors.Is(err, repository.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found", nil)
	default:
		h.logger.ErrorContext(r.Context(), "auth operation failed", "path", r.URL.Path, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}
