package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/delivery-issue-service/internal/auth"
	"github.com/spec-kit/delivery-issue-service/internal/config"
	"github.com/spec-kit/delivery-issue-service/internal/domain"
	"github.com/spec-kit/delivery-issue-service/internal/events"
	"github.com/spec-kit/delivery-issue-service/internal/repository"
	apperrors "github.com/spec-kit/delivery-issue-service/pkg/util"
)

// TokenPair is the credential envelope returned on register/login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	ExpiresIn    int64
}

// AuthService coordinates registration, login and session lifecycle.
type AuthService struct {
	users      repository.UserRepository
	sessions   repository.RefreshTokenRepository
	tokenMgr   *auth.TokenManager
	dispatcher events.Dispatcher
	bcryptCost int
	refreshTTL time.Duration
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo    repository.UserRepository
	SessionRepo repository.RefreshTokenRepository
	Dispatcher  events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.SessionRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.BcryptCost,
		refreshTTL: cfg.RefreshTokenTTL(),
	}
}

// Register creates a new account and opens a session. Duplicate emails,
// compared case-insensitively, fail with a conflict.
func (s *AuthService) Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, *TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		return nil, nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login authenticates a user and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token is not rotated; it stays usable until its own expiry or logout.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	hash := auth.HashRefreshToken(refreshToken)
	session, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid refresh token")
		}
		return "", time.Time{}, apperrors.MapError(err)
	}
	now := time.Now()
	if !session.Usable(now) {
		if !session.Revoked && !session.ExpiresAt.After(now) {
			// Expired but still present: purge opportunistically.
			_ = s.sessions.DeleteByTokenHash(ctx, hash)
		}
		return "", time.Time{}, apperrors.NewUnauthorized("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, apperrors.NewUnauthorized("invalid refresh token")
		}
		return "", time.Time{}, apperrors.MapError(err)
	}

	access, expiresAt, err := s.tokenMgr.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	return access, expiresAt, nil
}

// Logout revokes the presented refresh token. Idempotent: revoking an absent
// or already-revoked token succeeds.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.sessions.Revoke(ctx, auth.HashRefreshToken(refreshToken)); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// LogoutAll revokes every refresh token owned by the user.
func (s *AuthService) LogoutAll(ctx context.Context, user *domain.User) error {
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:  events.EventUserLoggedOut,
		Actor: events.Actor{UserID: user.ID, Role: user.Role},
		Payload: events.UserLoggedOutPayload{
			Everywhere: true,
		},
	})
	return nil
}

// PurgeExpiredSessions deletes refresh tokens that can never validate again.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx, time.Now())
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) openSession(ctx context.Context, user *domain.User) (*TokenPair, error) {
	access, expiresAt, err := s.tokenMgr.GenerateAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	opaque, err := auth.NewRefreshToken()
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	record := &domain.RefreshToken{
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(opaque),
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		return nil, apperrors.MapError(err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: opaque,
		ExpiresAt:    expiresAt,
		ExpiresIn:    int64(s.tokenMgr.AccessTokenTTL().Seconds()),
	}, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
