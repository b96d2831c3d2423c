package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talos-registry/talos-server/internal/domain"
	"github.com/talos-registry/talos-server/internal/observability"
	"github.com/talos-registry/talos-server/internal/repository"
	"github.com/talos-registry/talos-server/internal/security"
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrEmailTaken               = errors.New("email already registered")
	ErrUsernameTaken            = errors.New("username already registered")
	ErrUserExists               = errors.New("user already exists")
	ErrRefreshInvalid           = errors.New("invalid refresh token")
	ErrRefreshRevoked           = errors.New("refresh token revoked")
	ErrRefreshExpired           = errors.New("refresh token expired")
	ErrCurrentPasswordIncorrect = errors.New("current password incorrect")
	ErrValidation               = errors.New("validation failed")
)

const minPasswordLength = 8

// Compared against when the account does not exist, so a login probe costs a
// full bcrypt verification either way.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserDTO struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthResult is the body returned by login, register and refresh. The access
// token is a signed JWT; the refresh token is an opaque value the client must
// present verbatim on /refresh and /logout.
type AuthResult struct {
	Success      bool      `json:"success"`
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         UserDTO   `json:"user"`
}

type Profile struct {
	Success       bool      `json:"success"`
	ID            uint      `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
	TemplateCount int64     `json:"templateCount"`
}

type AuthService struct {
	users      repository.UserRepository
	tokens     repository.RefreshTokenRepository
	templates  repository.TemplateRepository
	jwtMgr     *security.JWTManager
	refreshTTL time.Duration
	logger     *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	templates repository.TemplateRepository,
	jwtMgr *security.JWTManager,
	refreshTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		templates:  templates,
		jwtMgr:     jwtMgr,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := validateRegistration(req); err != nil {
		observability.RecordAuthAttempt(ctx, "register", "invalid")
		return nil, err
	}

	if taken, err := s.users.ExistsByEmail(ctx, req.Email, 0); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		observability.RecordAuthAttempt(ctx, "register", "conflict")
		return nil, ErrEmailTaken
	}
	if taken, err := s.users.ExistsByUsername(ctx, req.Username, 0); err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	} else if taken {
		observability.RecordAuthAttempt(ctx, "register", "conflict")
		return nil, ErrUsernameTaken
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The unique index is the authority; the pre-checks above only
		// provide a friendlier error for the common case.
		if errors.Is(err, repository.ErrDuplicateUser) {
			observability.RecordAuthAttempt(ctx, "register", "conflict")
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthAttempt(ctx, "register", "success")
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return result, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	if req.Email == "" || req.Password == "" {
		observability.RecordAuthAttempt(ctx, "login", "invalid")
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.VerifyPassword(req.Password, dummyPasswordHash)
			observability.RecordAuthAttempt(ctx, "login", "failure")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !security.VerifyPassword(req.Password, user.PasswordHash) {
		observability.RecordAuthAttempt(ctx, "login", "failure")
		s.logger.WarnContext(ctx, "login rejected", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	result, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	observability.RecordAuthAttempt(ctx, "login", "success")
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	return result, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		observability.RecordAuthAttempt(ctx, "refresh", "invalid")
		return nil, ErrRefreshInvalid
	}

	stored, err := s.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			observability.RecordAuthAttempt(ctx, "refresh", "invalid")
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	now := time.Now()
	if stored.Revoked {
		observability.RecordAuthAttempt(ctx, "refresh", "revoked")
		s.logger.WarnContext(ctx, "revoked refresh token presented",
			"user_id", stored.UserID, "token_prefix", security.TokenPrefix(refreshToken))
		return nil, ErrRefreshRevoked
	}
	if !stored.ExpiresAt.After(now) {
		observability.RecordAuthAttempt(ctx, "refresh", "expired")
		return nil, ErrRefreshExpired
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthAttempt(ctx, "refresh", "invalid")
			return nil, ErrRefreshInvalid
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	value, err := security.NewRefreshTokenValue()
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	replacement := &domain.RefreshToken{
		Token:     value,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if err := s.tokens.Rotate(ctx, refreshToken, replacement); err != nil {
		// A concurrent refresh already rotated this token; the loser
		// is treated the same as any other revoked presentation.
		if errors.Is(err, repository.ErrRefreshTokenRevoked) {
			observability.RecordAuthAttempt(ctx, "refresh", "revoked")
			return nil, ErrRefreshRevoked
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	access, expiresAt, err := s.jwtMgr.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	observability.RecordAuthAttempt(ctx, "refresh", "success")
	return &AuthResult{
		Success:      true,
		Token:        access,
		RefreshToken: replacement.Token,
		ExpiresAt:    expiresAt,
		User:         toUserDTO(user),
	}, nil
}

// Logout revokes the presented refresh token. It returns ErrRefreshInvalid
// when no live token matches, so revoking twice is visible to the caller.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return ErrRefreshInvalid
	}
	revoked, err := s.tokens.Revoke(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if !revoked {
		observability.RecordAuthAttempt(ctx, "logout", "invalid")
		return ErrRefreshInvalid
	}
	observability.RecordAuthAttempt(ctx, "logout", "success")
	s.logger.InfoContext(ctx, "refresh token revoked", "token_prefix", security.TokenPrefix(refreshToken))
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, err := s.templates.CountByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count templates: %w", err)
	}
	return s.toProfile(user, count), nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if username := strings.TrimSpace(req.Username); username != "" && username != user.Username {
		taken, err := s.users.ExistsByUsername(ctx, username, userID)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return ErrUsernameTaken
		}
		user.Username = username
	}
	if email := normalizeEmail(req.Email); email != "" && email != user.Email {
		if !strings.Contains(email, "@") {
			return fmt.Errorf("%w: malformed email", ErrValidation)
		}
		taken, err := s.users.ExistsByEmail(ctx, email, userID)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return ErrEmailTaken
		}
		user.Email = email
	}
	if req.NewPassword != "" {
		if len(req.NewPassword) < minPasswordLength {
			return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
		}
		if !security.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
			return ErrCurrentPasswordIncorrect
		}
		hash, err := security.HashPassword(req.NewPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	s.logger.InfoContext(ctx, "profile updated", "user_id", user.ID)
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	access, expiresAt, err := s.jwtMgr.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	value, err := security.NewRefreshTokenValue()
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}
	refresh := &domain.RefreshToken{
		Token:     value,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.tokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &AuthResult{
		Success:      true,
		Token:        access,
		RefreshToken: refresh.Token,
		ExpiresAt:    expiresAt,
		User:         toUserDTO(user),
	}, nil
}

func (s *AuthService) toProfile(user *domain.User, templateCount int64) *Profile {
	return &Profile{
		Success:       true,
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Role:          user.Role,
		CreatedAt:     user.CreatedAt,
		TemplateCount: templateCount,
	}
}

func toUserDTO(user *domain.User) UserDTO {
	return UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func validateRegistration(req RegisterRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: malformed email", ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if req.Password != req.ConfirmPassword {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
