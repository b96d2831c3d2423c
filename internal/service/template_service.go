package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/observability"
	"github.com/talos-registry/talos-server/internal/repository"
)

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTemplateForbidden = errors.New("template not owned by caller")
)

type TemplateDependencyRequest struct {
	Package string `json:"package"`
	Version string `json:"version"`
	OS      string `json:"os"`
	Command string `json:"command"`
}

type TemplateRequest struct {
	Name         string                      `json:"name"`
	Description  string                      `json:"description"`
	Visibility   string                      `json:"visibility"`
	Dependencies []TemplateDependencyRequest `json:"dependencies"`
}

// TemplateService fronts the template repository with a read-through cache on
// single-template reads. Writes invalidate before returning, so a reader that
// follows a writer never sees the stale row past the delete.
type TemplateService struct {
	templates repository.TemplateRepository
	cache     TemplateCacheStore
	cacheTTL  time.Duration
	logger    *slog.Logger
}

func NewTemplateService(templates repository.TemplateRepository, cache TemplateCacheStore, cacheTTL time.Duration, logger *slog.Logger) *TemplateService {
	if cache == nil {
		cache = NewNoopTemplateCacheStore()
	}
	return &TemplateService{templates: templates, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

func (s *TemplateService) Get(ctx context.Context, id uint) (*domain.Template, error) {
	cacheKey := templateCacheKey(id)
	if raw, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
		observability.RecordCacheLookup(ctx, "template", "error")
		s.logger.WarnContext(ctx, "template cache read failed", "template_id", id, "error", err)
	} else if ok {
		var tmpl domain.Template
		if err := json.Unmarshal(raw, &tmpl); err == nil {
			observability.RecordCacheLookup(ctx, "template", "hit")
			return &tmpl, nil
		}
		// Unreadable entry; fall through to the database and overwrite it.
		observability.RecordCacheLookup(ctx, "template", "error")
	} else {
		observability.RecordCacheLookup(ctx, "template", "miss")
	}

	tmpl, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("find template: %w", err)
	}

	if raw, err := json.Marshal(tmpl); err == nil {
		if err := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL); err != nil {
			s.logger.WarnContext(ctx, "template cache write failed", "template_id", id, "error", err)
		}
	}
	return tmpl, nil
}

func (s *TemplateService) List(ctx context.Context, query repository.TemplateListQuery) (repository.PageResult[domain.Template], error) {
	return s.templates.ListPaged(ctx, query)
}

func (s *TemplateService) Create(ctx context.Context, ownerID uint, req TemplateRequest) (*domain.Template, error) {
	tmpl, err := buildTemplate(ownerID, req)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	s.logger.InfoContext(ctx, "template created", "template_id", tmpl.ID, "owner_id", ownerID)
	return tmpl, nil
}

func (s *TemplateService) Update(ctx context.Context, ownerID, id uint, req TemplateRequest) (*domain.Template, error) {
	existing, err := s.templates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	if existing.OwnerID != ownerID {
		return nil, ErrTemplateForbidden
	}

	updated, err := buildTemplate(ownerID, req)
	if err != nil {
		return nil, err
	}
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	if err := s.templates.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	if err := s.cache.Delete(ctx, templateCacheKey(id)); err != nil {
		s.logger.WarnContext(ctx, "template cache invalidation failed", "template_id", id, "error", err)
	}
	return updated, nil
}

func (s *TemplateService) Delete(ctx context.Context, ownerID, id uint) error {
	deleted, err := s.templates.Delete(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if !deleted {
		if _, err := s.templates.FindByID(ctx, id); errors.Is(err, repository.ErrTemplateNotFound) {
			return ErrTemplateNotFound
		}
		return ErrTemplateForbidden
	}
	if err := s.cache.Delete(ctx, templateCacheKey(id)); err != nil {
		s.logger.WarnContext(ctx, "template cache invalidation failed", "template_id", id, "error", err)
	}
	s.logger.InfoContext(ctx, "template deleted", "template_id", id, "owner_id", ownerID)
	return nil
}

func buildTemplate(ownerID uint, req TemplateRequest) (*domain.Template, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	if visibility != domain.VisibilityPublic && visibility != domain.VisibilityPrivate {
		return nil, fmt.Errorf("%w: visibility must be public or private", ErrValidation)
	}

	deps := make([]domain.TemplateDependency, 0, len(req.Dependencies))
	for _, d := range req.Dependencies {
		if d.Package == "" || d.Version == "" {
			return nil, fmt.Errorf("%w: dependency package and version are required", ErrValidation)
		}
		deps = append(deps, domain.TemplateDependency{
			Package: d.Package,
			Version: d.Version,
			OS:      d.OS,
			Command: d.Command,
		})
	}
	return &domain.Template{
		OwnerID:      ownerID,
		Name:         req.Name,
		Description:  req.Description,
		Visibility:   visibility,
		Dependencies: deps,
	}, nil
}

func templateCacheKey(id uint) string {
	return fmt.Sprintf("template:%d", id)
}
