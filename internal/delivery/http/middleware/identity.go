package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jeni5888/mayalens/internal/domain"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"

	callerKey = "caller"
)

// Identity extracts the verified caller the authentication gateway injects
// upstream. Requests without an identity are rejected; the engine never
// does its own token verification.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader(userIDHeader))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or invalid caller identity",
			})
			return
		}

		role := domain.Role(c.GetHeader(userRoleHeader))
		if role != domain.RoleAdmin {
			role = domain.RoleUser
		}

		c.Set(callerKey, domain.Caller{ID: id, Role: role})
		c.Next()
	}
}

// CallerFrom returns the authenticated caller placed by Identity.
func CallerFrom(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}
