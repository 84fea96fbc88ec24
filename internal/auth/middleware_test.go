package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/delivery-issue-service/internal/auth"
	"github.com/spec-kit/delivery-issue-service/internal/domain"
	apperrors "github.com/spec-kit/delivery-issue-service/pkg/util"
)

type stubUserRepo struct {
	users map[string]*domain.User
}

func (s *stubUserRepo) Create(context.Context, *domain.User) error { return nil }

func (s *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := s.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *stubUserRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubUserRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.users[id]
	return ok, nil
}

func newProtectedApp(tokens *auth.TokenManager, users *stubUserRepo, extra ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": domainErr.Message})
		},
	})

	handlers := []fiber.Handler{auth.NewAuthMiddleware(tokens, users).Handle}
	handlers = append(handlers, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			return apperrors.NewInternalError(nil)
		}
		return c.JSON(fiber.Map{"userId": principal.User.ID, "role": string(principal.Role)})
	})
	app.Get("/protected", handlers...)
	return app
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	users := &stubUserRepo{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Email: "ada@example.com", Role: domain.RoleCustomer},
	}}
	app := newProtectedApp(tokens, users)

	token, _, err := tokens.GenerateAccessToken("user-1", domain.RoleCustomer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddlewareRejectsMissingAndMalformedHeaders(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	app := newProtectedApp(tokens, &stubUserRepo{users: map[string]*domain.User{}})

	cases := map[string]string{
		"missing header":  "",
		"no scheme":       "just-a-token",
		"wrong scheme":    "Basic dXNlcjpwYXNz",
		"garbage payload": "Bearer not.a.jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Millisecond)
	users := &stubUserRepo{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Role: domain.RoleCustomer},
	}}
	app := newProtectedApp(tokens, users)

	token, _, err := tokens.GenerateAccessToken("user-1", domain.RoleCustomer)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddlewareRejectsDeletedUser(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	app := newProtectedApp(tokens, &stubUserRepo{users: map[string]*domain.User{}})

	token, _, err := tokens.GenerateAccessToken("user-gone", domain.RoleCustomer)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleOptionalNeverFailsRequest(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	users := &stubUserRepo{users: map[string]*domain.User{
		"user-1": {ID: "user-1", Role: domain.RoleCustomer},
	}}
	mw := auth.NewAuthMiddleware(tokens, users)

	app := fiber.New()
	app.Get("/maybe", mw.HandleOptional, func(c *fiber.Ctx) error {
		if principal, ok := auth.PrincipalFromContext(c); ok {
			return c.JSON(fiber.Map{"userId": principal.User.ID})
		}
		return c.JSON(fiber.Map{"userId": nil})
	})

	// No token: passes through anonymously.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/maybe", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Valid token: principal attached.
	token, _, err := tokens.GenerateAccessToken("user-1", domain.RoleCustomer)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Garbage token: still 200, just anonymous.
	req = httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireRoleWrongRoleForbiddenNotUnauthorized(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", time.Minute)
	users := &stubUserRepo{users: map[string]*domain.User{
		"cust-1": {ID: "cust-1", Role: domain.RoleCustomer},
		"sup-1":  {ID: "sup-1", Role: domain.RoleSupport},
	}}
	app := newProtectedApp(tokens, users, auth.RequireRole(domain.RoleSupport))

	custToken, _, err := tokens.GenerateAccessToken("cust-1", domain.RoleCustomer)
	require.NoError(t, err)
	supToken, _, err := tokens.GenerateAccessToken("sup-1", domain.RoleSupport)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+custToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+supToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequireRoleWithoutPrincipalUnauthorized(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": domainErr.Message})
		},
	})
	app.Get("/guarded", auth.RequireRole(domain.RoleSupport), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/guarded", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
