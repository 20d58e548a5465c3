package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-notice-api/internal/models"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
	"github.com/noah-isme/campus-notice-api/pkg/response"
)

type currentRoleReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// RBAC gates a route to the named roles. The user's current role is
// re-read from storage rather than trusted from the token, so a role
// change takes effect before the access token expires.
func RBAC(users currentRoleReader, allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
			c.Abort()
			return
		}

		if _, ok := allowedSet[user.RoleName]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		// Downstream sees the current role, not the role at token issuance.
		refreshed := *claims
		refreshed.Role = user.RoleName
		refreshed.RoleID = user.RoleID
		c.Set(ContextUserKey, &refreshed)
		c.Next()
	}
}
