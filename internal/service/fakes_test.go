package service

import (
	"context"
	"sync"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/repository"
)

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, users: make(map[uint]*domain.User)}
}

func (r *inMemoryUserRepo) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *inMemoryUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) ExistsByEmail(_ context.Context, email string, excludeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryUserRepo) ExistsByUsername(_ context.Context, username string, excludeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repository.ErrDuplicateUser
		}
	}
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	r.nextID++
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *inMemoryUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.ID != user.ID && (u.Email == user.Email || u.Username == user.Username) {
			return repository.ErrDuplicateUser
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

type inMemoryRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newInMemoryRefreshTokenRepo() *inMemoryRefreshTokenRepo {
	return &inMemoryRefreshTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *inMemoryRefreshTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *token
	r.tokens[token.Token] = &clone
	return nil
}

func (r *inMemoryRefreshTokenRepo) FindByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *inMemoryRefreshTokenRepo) Revoke(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.Revoked {
		return false, nil
	}
	now := time.Now()
	t.Revoked = true
	t.RevokedAt = &now
	return true, nil
}

func (r *inMemoryRefreshTokenRepo) Rotate(_ context.Context, oldToken string, replacement *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[oldToken]
	if !ok || t.Revoked {
		return repository.ErrRefreshTokenRevoked
	}
	now := time.Now()
	t.Revoked = true
	t.RevokedAt = &now
	clone := *replacement
	r.tokens[replacement.Token] = &clone
	return nil
}

func (r *inMemoryRefreshTokenRepo) DeleteExpiredBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for value, t := range r.tokens {
		if t.ExpiresAt.Before(cutoff) {
			delete(r.tokens, value)
			deleted++
		}
	}
	return deleted, nil
}

type inMemoryTemplateRepo struct {
	mu         sync.Mutex
	nextID     uint
	templates  map[uint]*domain.Template
	findCalls  int
	countCalls int
}

func newInMemoryTemplateRepo() *inMemoryTemplateRepo {
	return &inMemoryTemplateRepo{nextID: 1, templates: make(map[uint]*domain.Template)}
}

func (r *inMemoryTemplateRepo) FindByID(_ context.Context, id uint) (*domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	t, ok := r.templates[id]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *inMemoryTemplateRepo) ListPaged(_ context.Context, query repository.TemplateListQuery) (repository.PageResult[domain.Template], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]domain.Template, 0, len(r.templates))
	for _, t := range r.templates {
		if query.OwnerID != 0 && t.OwnerID != query.OwnerID {
			continue
		}
		if query.Visibility != "" && t.Visibility != query.Visibility {
			continue
		}
		items = append(items, *t)
	}
	return repository.PageResult[domain.Template]{
		Items:    items,
		Page:     1,
		PageSize: len(items),
		Total:    int64(len(items)),
	}, nil
}

func (r *inMemoryTemplateRepo) CountByOwner(_ context.Context, ownerID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	var count int64
	for _, t := range r.templates {
		if t.OwnerID == ownerID {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryTemplateRepo) Create(_ context.Context, tmpl *domain.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tmpl.ID = r.nextID
	r.nextID++
	clone := *tmpl
	r.templates[tmpl.ID] = &clone
	return nil
}

func (r *inMemoryTemplateRepo) Update(_ context.Context, tmpl *domain.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.templates[tmpl.ID]; !ok {
		return repository.ErrTemplateNotFound
	}
	clone := *tmpl
	r.templates[tmpl.ID] = &clone
	return nil
}

func (r *inMemoryTemplateRepo) Delete(_ context.Context, id, ownerID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok || t.OwnerID != ownerID {
		return false, nil
	}
	delete(r.templates, id)
	return true, nil
}

type inMemoryApiKeyRepo struct {
	mu     sync.Mutex
	nextID uint
	keys   map[string]*domain.ApiKey
	audits []domain.ApiKeyAudit
}

func newInMemoryApiKeyRepo() *inMemoryApiKeyRepo {
	return &inMemoryApiKeyRepo{nextID: 1, keys: make(map[string]*domain.ApiKey)}
}

func (r *inMemoryApiKeyRepo) Create(_ context.Context, key *domain.ApiKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.ID = r.nextID
	key.CreatedAt = time.Now()
	r.nextID++
	clone := *key
	r.keys[key.Key] = &clone
	return nil
}

func (r *inMemoryApiKeyRepo) FindByKey(_ context.Context, key string) (*domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[key]
	if !ok {
		return nil, repository.ErrApiKeyNotFound
	}
	clone := *k
	return &clone, nil
}

func (r *inMemoryApiKeyRepo) List(_ context.Context) ([]domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]domain.ApiKey, 0, len(r.keys))
	for _, k := range r.keys {
		keys = append(keys, *k)
	}
	return keys, nil
}

func (r *inMemoryApiKeyRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.keys)), nil
}

func (r *inMemoryApiKeyRepo) Deactivate(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[key]
	if !ok || !k.IsActive {
		return false, nil
	}
	k.IsActive = false
	return true, nil
}

func (r *inMemoryApiKeyRepo) AppendAudit(_ context.Context, audit *domain.ApiKeyAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, *audit)
	return nil
}
