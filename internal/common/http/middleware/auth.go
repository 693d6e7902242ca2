package middleware

import (
	"context"
	"strings"

	pkgerrors "agentbench/pkg/errors"
	"agentbench/pkg/utils/contextkey"
	"agentbench/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Identity describes an authenticated caller.
type Identity struct {
	UserID int64
	Role   string
}

// Authenticator verifies a bearer credential (session token or API key)
// and resolves the caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (Identity, error)
}

// AuthPolicy controls which callers a route group admits.
type AuthPolicy struct {
	Mode  string // "public" skips authentication entirely
	Roles []string
}

// AuthMiddleware enforces credential validation and role checks for protected routes.
func AuthMiddleware(auth Authenticator, policy AuthPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.ToLower(policy.Mode) == "public" {
			c.Next()
			return
		}
		if auth == nil {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth service unavailable")
			return
		}

		credential := extractBearerToken(c.GetHeader("Authorization"))
		identity, err := auth.Authenticate(c.Request.Context(), credential)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		if len(policy.Roles) > 0 && !hasRole(identity.Role, policy.Roles) {
			response.AbortWithErrorCode(c, pkgerrors.Forbidden, "insufficient role")
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("user_role", identity.Role)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, identity.UserID)
		ctx = context.WithValue(ctx, contextkey.UserRole, identity.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id set by AuthMiddleware.
func CurrentUserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func hasRole(role string, allowed []string) bool {
	for _, item := range allowed {
		if strings.EqualFold(role, item) {
			return true
		}
	}
	return false
}
