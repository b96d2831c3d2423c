package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/talos-registry/talos-server/internal/domain"
)

func TestUserCreateAndFind(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	u := &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: domain.RoleUser}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create: %v", err)
	}

	byEmail, err := repo.FindByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != u.ID || byEmail.Username != "alice" {
		t.Fatalf("unexpected user: %+v", byEmail)
	}

	if _, err := repo.FindByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUserCreateTranslatesUniqueViolation(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	if err := repo.Create(context.Background(), &domain.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := repo.Create(context.Background(), &domain.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected duplicate email translation, got %v", err)
	}

	err = repo.Create(context.Background(), &domain.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected duplicate username translation, got %v", err)
	}
}

func TestUserExistsExcludesSelf(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	u := &domain.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create: %v", err)
	}

	exists, err := repo.ExistsByUsername(context.Background(), "bob", 0)
	if err != nil || !exists {
		t.Fatalf("expected username taken, got exists=%v err=%v", exists, err)
	}
	exists, err = repo.ExistsByUsername(context.Background(), "bob", u.ID)
	if err != nil || exists {
		t.Fatalf("expected own row excluded, got exists=%v err=%v", exists, err)
	}
	exists, err = repo.ExistsByEmail(context.Background(), "bob@example.com", u.ID)
	if err != nil || exists {
		t.Fatalf("expected own email excluded, got exists=%v err=%v", exists, err)
	}
}
