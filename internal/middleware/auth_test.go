package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroshield/scan-api/pkg/auth"

	"github.com/neuroshield/scan-api/internal/model"
)

func newAuthTestRouter(t *testing.T, roles ...model.Role) (*gin.Engine, auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwt := auth.NewJWTService("test-secret", time.Hour)
	m := NewAuthMiddleware(jwt)

	r := gin.New()
	grp := r.Group("/", m.Authenticate())
	if len(roles) > 0 {
		grp.Use(m.RequireRole(roles...))
	}
	grp.GET("/ping", func(c *gin.Context) {
		ident, ok := IdentityFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": ident.UserID})
	})
	return r, jwt
}

func tokenFor(t *testing.T, jwt auth.JWTService, role model.Role) string {
	t.Helper()

	token, err := jwt.GenerateAccessToken(&model.User{
		Base:  model.Base{ID: uuid.New()},
		Email: "u@example.com",
		Role:  role,
	})
	require.NoError(t, err)
	return token
}

func doRequest(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateMissingHeader(t *testing.T) {
	r, _ := newAuthTestRouter(t)
	w := doRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateBadFormat(t *testing.T) {
	r, jwt := newAuthTestRouter(t)
	w := doRequest(r, tokenFor(t, jwt, model.RoleDoctor))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	r, _ := newAuthTestRouter(t)
	w := doRequest(r, "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticateValidToken(t *testing.T) {
	r, jwt := newAuthTestRouter(t)
	w := doRequest(r, "Bearer "+tokenFor(t, jwt, model.RoleDoctor))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoleAllows(t *testing.T) {
	r, jwt := newAuthTestRouter(t, model.RoleDoctor)
	w := doRequest(r, "Bearer "+tokenFor(t, jwt, model.RoleDoctor))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoleDenies(t *testing.T) {
	r, jwt := newAuthTestRouter(t, model.RoleAdmin)
	w := doRequest(r, "Bearer "+tokenFor(t, jwt, model.RolePatient))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
