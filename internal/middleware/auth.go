package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/neuroshield/scan-api/pkg/auth"
	"github.com/neuroshield/scan-api/pkg/httputil"

	"github.com/neuroshield/scan-api/internal/model"
)

const identityKey = "identity"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores the caller identity in
// the request context. Role and patient binding come from the token only.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, httputil.Response{Status: "error", Message: "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, httputil.Response{Status: "error", Message: "invalid authorization format"})
			c.Abort()
			return
		}

		identity, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, httputil.Response{Status: "error", Message: "invalid token"})
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole gates a route group on the caller's role.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, httputil.Response{Status: "error", Message: "not authenticated"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if ident.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, httputil.Response{Status: "error", Message: "permission denied"})
		c.Abort()
	}
}

// IdentityFrom extracts the verified identity set by Authenticate.
func IdentityFrom(c *gin.Context) (*model.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	ident, ok := v.(*model.Identity)
	return ident, ok
}
