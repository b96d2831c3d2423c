package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/http/response"
	"github.com/talos-registry/talos-server/internal/observability"
	"github.com/talos-registry/talos-server/internal/service"
)

// ApiKeyAdminHandler manages service keys. Its routes sit behind the API key
// gate itself, so only a holder of a live key can mint or revoke keys.
type ApiKeyAdminHandler struct {
	keys   service.ApiKeyServiceInterface
	logger *slog.Logger
}

func NewApiKeyAdminHandler(keys service.ApiKeyServiceInterface, logger *slog.Logger) *ApiKeyAdminHandler {
	return &ApiKeyAdminHandler{keys: keys, logger: logger}
}

type mintKeyRequest struct {
	Owner          string `json:"owner"`
	Role           string `json:"role"`
	Scope          string `json:"scope"`
	ExpiresInHours int    `json:"expiresInHours"`
}

type mintKeyResponse struct {
	Success bool               `json:"success"`
	Key     *service.MintedKey `json:"key"`
}

type listKeysResponse struct {
	Success bool            `json:"success"`
	Keys    []domain.ApiKey `json:"keys"`
}

type revokeKeyRequest struct {
	Key string `json:"key"`
}

func (h *ApiKeyAdminHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	mintReq := service.MintKeyRequest{Owner: req.Owner, Role: req.Role, Scope: req.Scope}
	if req.ExpiresInHours > 0 {
		ttl := time.Duration(req.ExpiresInHours) * time.Hour
		mintReq.ExpiresIn = &ttl
	}
	minted, err := h.keys.Mint(r.Context(), mintReq)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		h.logger.ErrorContext(r.Context(), "mint api key failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
		return
	}
	observability.Audit(r, "apikey.minted", "owner", minted.Owner, "role", minted.Role)
	response.JSON(w, r, http.StatusCreated, mintKeyResponse{Success: true, Key: minted})
}

func (h *ApiKeyAdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req revokeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "key is required", nil)
		return
	}
	if err := h.keys.Revoke(r.Context(), req.Key); err != nil {
		if errors.Is(err, service.ErrApiKeyNotFound) {
			response.Error(w, r, http.StatusNotFound, "KEY_NOT_FOUND", "api key not found", nil)
			return
		}
		h.logger.ErrorContext(r.Context(), "revoke api key failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
		return
	}
	observability.Audit(r, "apikey.revoked")
	response.JSON(w, r, http.StatusOK, messageResponse{Success: true, Message: "api key revoked"})
}

func (h *ApiKeyAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list api keys failed", "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, listKeysResponse{Success: true, Keys: keys})
}
