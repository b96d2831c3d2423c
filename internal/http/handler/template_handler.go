package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/http/middleware"
	"github.com/talos-registry/talos-server/internal/http/response"
	"github.com/talos-registry/talos-server/internal/repository"
	"github.com/talos-registry/talos-server/internal/service"
)

type TemplateHandler struct {
	templates service.TemplateServiceInterface
	logger    *slog.Logger
}

func NewTemplateHandler(templates service.TemplateServiceInterface, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger}
}

type templateResponse struct {
	Success  bool             `json:"success"`
	Template *domain.Template `json:"template"`
}

type templatePageResponse struct {
	Success bool `json:"success"`
	repository.PageResult[domain.Template]
}

// List serves the public catalog. Only public templates are returned here;
// the service-to-service registry routes see everything.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	query := listQueryFromRequest(r)
	query.Visibility = domain.VisibilityPublic
	h.writeList(w, r, query)
}

// ListAll is mounted behind the API key gate and includes private templates.
func (h *TemplateHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, listQueryFromRequest(r))
}

func (h *TemplateHandler) writeList(w http.ResponseWriter, r *http.Request, query repository.TemplateListQuery) {
	page, err := h.templates.List(r.Context(), query)
	if err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, templatePageResponse{Success: true, PageResult: page})
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := templateID(w, r)
	if !ok {
		return
	}
	tmpl, err := h.templates.Get(r.Context(), id)
	if err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, templateResponse{Success: true, Template: tmpl})
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity", nil)
		return
	}
	var req service.TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	tmpl, err := h.templates.Create(r.Context(), identity.UserID, req)
	if err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, templateResponse{Success: true, Template: tmpl})
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity", nil)
		return
	}
	id, ok := templateID(w, r)
	if !ok {
		return
	}
	var req service.TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	tmpl, err := h.templates.Update(r.Context(), identity.UserID, id, req)
	if err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, templateResponse{Success: true, Template: tmpl})
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity", nil)
		return
	}
	id, ok := templateID(w, r)
	if !ok {
		return
	}
	if err := h.templates.Delete(r.Context(), identity.UserID, id); err != nil {
		h.writeTemplateError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, messageResponse{Success: true, Message: "template deleted"})
}

func (h *TemplateHandler) writeTemplateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, service.ErrTemplateNotFound):
		response.Error(w, r, http.StatusNotFound, "TEMPLATE_NOT_FOUND", "template not found", nil)
	case errors.Is(err, service.ErrTemplateForbidden):
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "template not owned by caller", nil)
	default:
		h.logger.ErrorContext(r.Context(), "template operation failed", "path", r.URL.Path, "error", err)
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}

func templateID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid template id", nil)
		return 0, false
	}
	return uint(id), true
}

func listQueryFromRequest(r *http.Request) repository.TemplateListQuery {
	q := r.URL.Query()
	query := repository.TemplateListQuery{}
	query.Page, _ = strconv.Atoi(q.Get("page"))
	query.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if owner, err := strconv.ParseUint(q.Get("owner_id"), 10, 64); err == nil {
		query.OwnerID = uint(owner)
	}
	query.Visibility = q.Get("visibility")
	return query
}
