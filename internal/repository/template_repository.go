package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/observability"
)

var ErrTemplateNotFound = errors.New("template not found")

type TemplateListQuery struct {
	PageRequest
	OwnerID    uint
	Visibility string
}

type TemplateRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Template, error)
	ListPaged(ctx context.Context, query TemplateListQuery) (PageResult[domain.Template], error)
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)
	Create(ctx context.Context, tmpl *domain.Template) error
	Update(ctx context.Context, tmpl *domain.Template) error
	Delete(ctx context.Context, id, ownerID uint) (bool, error)
}

type GormTemplateRepository struct{ db *gorm.DB }

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &GormTemplateRepository{db: db}
}

func (r *GormTemplateRepository) FindByID(ctx context.Context, id uint) (*domain.Template, error) {
	var t domain.Template
	err := r.db.WithContext(ctx).Preload("Dependencies").First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "template", "find_by_id", "not_found")
			return nil, ErrTemplateNotFound
		}
		observability.RecordRepositoryOperation(ctx, "template", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "template", "find_by_id", "success")
	return &t, nil
}

func (r *GormTemplateRepository) ListPaged(ctx context.Context, query TemplateListQuery) (PageResult[domain.Template], error) {
	req := normalizePageRequest(query.PageRequest)
	result := PageResult[domain.Template]{Page: req.Page, PageSize: req.PageSize}

	base := r.db.WithContext(ctx).Model(&domain.Template{})
	if query.OwnerID != 0 {
		base = base.Where("owner_id = ?", query.OwnerID)
	}
	if query.Visibility != "" {
		base = base.Where("visibility = ?", query.Visibility)
	}

	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(ctx, "template", "list_paged", "error")
		return PageResult[domain.Template]{}, err
	}

	offset := (req.Page - 1) * req.PageSize
	err := base.Preload("Dependencies").
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).Limit(req.PageSize).
		Find(&result.Items).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "template", "list_paged", "error")
		return PageResult[domain.Template]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(ctx, "template", "list_paged", "success")
	return result, nil
}

func (r *GormTemplateRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Template{}).Where("owner_id = ?", ownerID).Count(&count).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "template", "count_by_owner", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(ctx, "template", "count_by_owner", "success")
	return count, nil
}

func (r *GormTemplateRepository) Create(ctx context.Context, tmpl *domain.Template) error {
	err := r.db.WithContext(ctx).Create(tmpl).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "template", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "template", "create", "success")
	return nil
}

func (r *GormTemplateRepository) Update(ctx context.Context, tmpl *domain.Template) error {
	err := r.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(tmpl).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "template", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "template", "update", "success")
	return nil
}

func (r *GormTemplateRepository) Delete(ctx context.Context, id, ownerID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&domain.Template{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "template", "delete", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "template", "delete", "success")
	return res.RowsAffected > 0, nil
}
