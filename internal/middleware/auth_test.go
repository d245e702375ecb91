package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cnsr/cta-inspection/internal/auth"
	"github.com/cnsr/cta-inspection/internal/models"
)

func newTestMiddleware(t *testing.T) (*auth.Service, *AuthMiddleware) {
	t.Helper()
	authService, err := auth.NewService("test-secret", 0)
	require.NoError(t, err)
	return authService, NewAuthMiddleware(authService)
}

func tokenFor(t *testing.T, s *auth.Service, role models.Role) string {
	t.Helper()
	token, err := s.GenerateToken(&models.User{ID: primitive.NewObjectID(), Email: string(role) + "@cnsr.bj", Role: role})
	require.NoError(t, err)
	return "Bearer " + token
}

// serve runs h and reports whether the inner handler was reached.
func serve(h func(http.Handler) http.Handler, req *http.Request) (*httptest.ResponseRecorder, bool) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	w := httptest.NewRecorder()
	h(inner).ServeHTTP(w, req)
	return w, called
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	authService, m := newTestMiddleware(t)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cta/photos", nil)
		req.Header.Set("Authorization", tokenFor(t, authService, models.RoleSupervisor))

		var claims *models.Claims
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ = GetUserFromContext(r.Context())
		})
		w := httptest.NewRecorder()
		m.Authenticate(inner).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, claims)
		assert.Equal(t, "superviseur@cnsr.bj", claims.Email)
		assert.Equal(t, models.RoleSupervisor, claims.Role)
	})

	t.Run("missing authorization header", func(t *testing.T) {
		w, called := serve(m.Authenticate, httptest.NewRequest(http.MethodGet, "/api/cta/photos", nil))
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Message)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cta/photos", nil)
		req.Header.Set("Authorization", "Bearer invalid-token")
		w, called := serve(m.Authenticate, req)
		assert.False(t, called)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token without bearer scheme", func(t *testing.T) {
		token := strings.TrimPrefix(tokenFor(t, authService, models.RoleAdmin), "Bearer ")
		for _, header := range []string{token, "Token " + token} {
			req := httptest.NewRequest(http.MethodGet, "/api/cta/photos", nil)
			req.Header.Set("Authorization", header)
			w, called := serve(m.Authenticate, req)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		}
	})

	t.Run("skip auth paths", func(t *testing.T) {
		for _, path := range []string{"/api/auth/login", "/metrics", "/health"} {
			w, called := serve(m.Authenticate, httptest.NewRequest(http.MethodGet, path, nil))
			assert.True(t, called, path)
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	authService, m := newTestMiddleware(t)

	cases := []struct {
		role    models.Role
		allowed bool
	}{
		{models.RoleSupervisor, true},
		{models.RoleAdmin, true},
		{models.RoleTechnician, false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/supervisor/fiches-en-attente", nil)
		req.Header.Set("Authorization", tokenFor(t, authService, tc.role))

		chain := func(next http.Handler) http.Handler {
			return m.Authenticate(m.RequireRole(models.RoleSupervisor)(next))
		}
		w, called := serve(chain, req)
		assert.Equal(t, tc.allowed, called, tc.role)
		if !tc.allowed {
			assert.Equal(t, http.StatusForbidden, w.Code)
		}
	}

	w, called := serve(m.RequireRole(models.RoleSupervisor), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RequirePermission(t *testing.T) {
	authService, m := newTestMiddleware(t)

	cases := []struct {
		role    models.Role
		action  string
		allowed bool
	}{
		{models.RoleAdmin, models.ActionManageUsers, true},
		{models.RoleTechnician, models.ActionSubmitInspection, true},
		{models.RoleTechnician, models.ActionReviewInspection, false},
		{models.RoleSupervisor, models.ActionReviewInspection, true},
		{models.RoleSupervisor, models.ActionManageUsers, false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.Header.Set("Authorization", tokenFor(t, authService, tc.role))
		chain := func(next http.Handler) http.Handler {
			return m.Authenticate(m.RequirePermission(tc.action)(next))
		}
		_, called := serve(chain, req)
		assert.Equal(t, tc.allowed, called, "%s %s", tc.role, tc.action)
	}
}

func TestGetUserFromContext(t *testing.T) {
	claims := &models.Claims{UserID: "test-id", Email: "a@cnsr.bj", Role: models.RoleAdmin}

	got, ok := GetUserFromContext(WithClaims(context.Background(), claims))
	assert.True(t, ok)
	assert.Equal(t, claims, got)

	_, ok = GetUserFromContext(context.Background())
	assert.False(t, ok)
}
