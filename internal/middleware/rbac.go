package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingowow-api/internal/models"
	appErrors "github.com/noah-isme/lingowow-api/pkg/errors"
	"github.com/noah-isme/lingowow-api/pkg/response"
)

// RequireCapability lets the request through only when the caller's role holds capability.
// Ownership rules (a student reading their own data) stay in the services.
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !models.Can(claims.Role, capability) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
