package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/talos-registry/talos-server/internal/domain"
)

func TestTemplateListPagedFilters(t *testing.T) {
	repo := NewTemplateRepository(newTestDB(t))
	for i := 0; i < 3; i++ {
		tmpl := &domain.Template{OwnerID: 1, Name: fmt.Sprintf("tmpl-%d", i), Visibility: domain.VisibilityPublic}
		if err := repo.Create(context.Background(), tmpl); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := repo.Create(context.Background(), &domain.Template{OwnerID: 2, Name: "private", Visibility: domain.VisibilityPrivate}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := repo.ListPaged(context.Background(), TemplateListQuery{
		PageRequest: PageRequest{Page: 1, PageSize: 2},
		Visibility:  domain.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Fatalf("unexpected page: total=%d items=%d pages=%d", page.Total, len(page.Items), page.TotalPages)
	}

	count, err := repo.CountByOwner(context.Background(), 1)
	if err != nil || count != 3 {
		t.Fatalf("count by owner = %d, err = %v", count, err)
	}
}

func TestTemplateDependenciesRoundTrip(t *testing.T) {
	repo := NewTemplateRepository(newTestDB(t))
	tmpl := &domain.Template{
		OwnerID:    1,
		Name:       "dev-box",
		Visibility: domain.VisibilityPublic,
		Dependencies: []domain.TemplateDependency{
			{Package: "ripgrep", Version: "14.1.0", OS: "linux", Command: "apt install ripgrep"},
			{Package: "ripgrep", Version: "14.1.0", OS: "darwin", Command: "brew install ripgrep"},
		},
	}
	if err := repo.Create(context.Background(), tmpl); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.FindByID(context.Background(), tmpl.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got.Dependencies) != 2 {
		t.Fatalf("expected preloaded dependencies, got %d", len(got.Dependencies))
	}
}

func TestTemplateDeleteChecksOwner(t *testing.T) {
	repo := NewTemplateRepository(newTestDB(t))
	tmpl := &domain.Template{OwnerID: 1, Name: "dev-box", Visibility: domain.VisibilityPublic}
	if err := repo.Create(context.Background(), tmpl); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := repo.Delete(context.Background(), tmpl.ID, 99)
	if err != nil || deleted {
		t.Fatalf("expected foreign owner delete to be refused, got deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.Delete(context.Background(), tmpl.ID, 1)
	if err != nil || !deleted {
		t.Fatalf("expected owner delete to succeed, got deleted=%v err=%v", deleted, err)
	}
	if _, err := repo.FindByID(context.Background(), tmpl.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
